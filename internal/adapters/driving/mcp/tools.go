package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

// ContactsInput is the input schema of both contact tools.
type ContactsInput struct {
	Account  string   `json:"account,omitempty" jsonschema:"the account whose address books to crawl (over HTTP: the token's account)"`
	Root     int      `json:"root,omitempty" jsonschema:"folder to start from (default: the whole mailbox)"`
	Existing []string `json:"existing,omitempty" jsonschema:"source refs the caller already knows; these are reported separately"`
}

// ContactOutput is one contact.
type ContactOutput struct {
	Email       string            `json:"email"`
	Name        string            `json:"name,omitempty"`
	ID          string            `json:"id,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	SourceType  string            `json:"source_type"`
	SourceRef   string            `json:"source_ref"`
	GroupMember bool              `json:"group_member,omitempty"`
}

// GroupOutput is one contact group.
type GroupOutput struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Tags               []string        `json:"tags,omitempty"`
	Members            []ContactOutput `json:"members"`
	FailedDereferences int             `json:"failed_dereferences,omitempty"`
}

// CollectionOutput is the output schema of get_contacts.
type CollectionOutput struct {
	Contacts  []ContactOutput `json:"contacts"`
	Groups    []GroupOutput   `json:"groups"`
	Known     int             `json:"known" jsonschema:"number of entities matched by the existing refs"`
	Remaining []string        `json:"remaining,omitempty" jsonschema:"existing refs that matched nothing"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

// FolderOutput is one visible address book of a tree, addressed by path.
type FolderOutput struct {
	Path     string          `json:"path"`
	Shared   bool            `json:"shared,omitempty"`
	Color    string          `json:"color,omitempty"`
	Contacts []ContactOutput `json:"contacts"`
	Groups   []GroupOutput   `json:"groups"`
}

// TreeOutput is the output schema of get_contacts_tree.
type TreeOutput struct {
	Folders   []FolderOutput `json:"folders"`
	Known     int            `json:"known"`
	Remaining []string       `json:"remaining,omitempty"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

// registerTools registers all tool handlers with server.
func (s *session) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_contacts",
		Description: "List every contact and contact group an account can see, including shared address books",
	}, s.handleGetContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_contacts_tree",
		Description: "List an account's address books folder by folder",
	}, s.handleGetContactsTree)
}

func (s *session) handleGetContacts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContactsInput,
) (*mcp.CallToolResult, CollectionOutput, error) {
	req, err := s.toolRequest(input)
	if err != nil {
		return nil, CollectionOutput{}, err
	}
	res, err := s.ports.Contacts.FetchCollection(ctx, req)
	if err != nil {
		return nil, CollectionOutput{}, err
	}

	output := CollectionOutput{
		Contacts:  []ContactOutput{},
		Groups:    []GroupOutput{},
		Known:     res.Existing.Len(),
		Remaining: res.Remaining,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if res.Collection != nil {
		output.Contacts = contactsOutput(res.Collection.Contacts)
		output.Groups = groupsOutput(res.Collection.Groups)
	}
	return nil, output, nil
}

func (s *session) handleGetContactsTree(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContactsInput,
) (*mcp.CallToolResult, TreeOutput, error) {
	req, err := s.toolRequest(input)
	if err != nil {
		return nil, TreeOutput{}, err
	}
	res, err := s.ports.Contacts.FetchTree(ctx, req)
	if err != nil {
		return nil, TreeOutput{}, err
	}

	output := TreeOutput{
		Folders:   []FolderOutput{},
		Known:     res.Existing.Len(),
		Remaining: res.Remaining,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if res.Tree != nil {
		output.Folders = foldersOutput(res.Tree, nil, output.Folders)
	}
	return nil, output, nil
}

func (s *session) toolRequest(input ContactsInput) (driving.CrawlRequest, error) {
	req, err := s.crawlRequest(input.Account)
	if err != nil {
		return driving.CrawlRequest{}, err
	}
	req.RootID = input.Root
	req.Existing = input.Existing
	return req, nil
}

// foldersOutput lists the visible nodes of a tree in pre-order.
func foldersOutput(n *domain.TreeNode, path []string, out []FolderOutput) []FolderOutput {
	if !n.Hide {
		path = append(path, n.Name)
		out = append(out, FolderOutput{
			Path:     strings.Join(path, "/"),
			Shared:   n.IsShare,
			Color:    n.Color,
			Contacts: contactsOutput(n.Contacts),
			Groups:   groupsOutput(n.Groups),
		})
	}
	for _, sub := range n.Subfolders {
		out = foldersOutput(sub, path, out)
	}
	return out
}

func contactsOutput(contacts []domain.Contact) []ContactOutput {
	out := make([]ContactOutput, len(contacts))
	for i, c := range contacts {
		out[i] = ContactOutput{
			Email:       c.Email,
			Name:        c.Name,
			ID:          c.ID,
			Properties:  c.Properties,
			Tags:        c.Tags,
			SourceType:  string(c.SourceType),
			SourceRef:   c.SourceRef,
			GroupMember: c.GroupMember,
		}
		if len(out[i].Properties) == 0 {
			out[i].Properties = nil
		}
	}
	return out
}

func groupsOutput(groups []domain.Group) []GroupOutput {
	out := make([]GroupOutput, len(groups))
	for i, g := range groups {
		out[i] = GroupOutput{
			ID:                 g.ID,
			Name:               g.Name,
			Tags:               g.Tags,
			Members:            contactsOutput(g.Members),
			FailedDereferences: len(g.FailedDereferences),
		}
	}
	return out
}
