package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

var (
	crawlTree     bool
	crawlJSON     bool
	crawlDebug    bool
	crawlRoot     int
	crawlExisting []string
	crawlToken    string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [account-id]",
	Short: "Crawl an account's address books",
	Long: `Walks the address book folders of an account and prints the contacts
and groups found. Folders shared with the account are included when the
account's contacts_include_shared setting is on.

Pass --existing with sync refs the client already holds: matching entities
are reported separately and the refs that were not seen are listed as
remaining.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlTree, "tree", false, "output a folder tree instead of a flat collection")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "output results as JSON")
	crawlCmd.Flags().BoolVar(&crawlDebug, "debug", false, "enable debug logging for this crawl")
	crawlCmd.Flags().IntVar(&crawlRoot, "root", 0, "folder to start from (0 = account root)")
	crawlCmd.Flags().StringSliceVar(&crawlExisting, "existing", nil, "sync refs already known to the client")
	crawlCmd.Flags().StringVar(&crawlToken, "token", "", "session token forwarded to peer servers")
	rootCmd.AddCommand(crawlCmd)
}

// crawlJSONOutput is the JSON form of a crawl.
type crawlJSONOutput struct {
	Collection *domain.Collection `json:"collection,omitempty"`
	Tree       *domain.TreeNode   `json:"tree,omitempty"`
	Existing   domain.Collection  `json:"existing"`
	Remaining  []string           `json:"remaining"`
	ElapsedMS  int64              `json:"elapsedMs"`
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if contactsService == nil {
		return errors.New("contacts service not configured")
	}

	req := driving.CrawlRequest{
		AccountID: args[0],
		RootID:    crawlRoot,
		Existing:  crawlExisting,
		Debug:     crawlDebug,
		AuthToken: crawlToken,
	}

	var (
		res *driving.CrawlResult
		err error
	)
	if crawlTree {
		res, err = contactsService.FetchTree(cmd.Context(), req)
	} else {
		res, err = contactsService.FetchCollection(cmd.Context(), req)
	}
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	if crawlJSON {
		return outputCrawlJSON(cmd, res)
	}
	return outputCrawlText(cmd, res)
}

func outputCrawlJSON(cmd *cobra.Command, res *driving.CrawlResult) error {
	out := crawlJSONOutput{
		Collection: res.Collection,
		Tree:       res.Tree,
		Existing:   res.Existing,
		Remaining:  res.Remaining,
		ElapsedMS:  res.Elapsed.Milliseconds(),
	}
	if out.Remaining == nil {
		out.Remaining = []string{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputCrawlText(cmd *cobra.Command, res *driving.CrawlResult) error {
	r := newRenderer(cmd.OutOrStdout())

	var contacts, groups int
	if res.Mode == driving.CrawlTree && res.Tree != nil {
		cmd.Print(r.Tree(res.Tree))
		contacts, groups = res.Tree.Count()
	} else if res.Collection != nil {
		cmd.Print(r.Collection(*res.Collection))
		contacts, groups = len(res.Collection.Contacts), len(res.Collection.Groups)
	}

	if !res.Existing.IsEmpty() {
		cmd.Println()
		cmd.Println("Already known:")
		cmd.Print(r.Collection(res.Existing))
	}
	if len(res.Remaining) > 0 {
		cmd.Println()
		cmd.Printf("Not seen (%d):\n", len(res.Remaining))
		for _, ref := range res.Remaining {
			cmd.Printf("  %s\n", ref)
		}
	}

	cmd.Println()
	cmd.Printf("Crawled %d contacts and %d groups in %s\n", contacts, groups, res.Elapsed)
	return nil
}
