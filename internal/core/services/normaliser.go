package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

const (
	// emailField is the stored attribute holding a contact's address.
	emailField = "email"

	// DeliveryAddressAttr is the directory attribute holding the primary
	// address of an entry that has several aliases.
	DeliveryAddressAttr = "mailDeliveryAddress"
)

// DefaultDirectoryAttrs maps property fields to directory attribute names.
// Fields without an entry are always empty for directory records.
var DefaultDirectoryAttrs = map[string]string{
	"firstName": "givenName",
	"lastName":  "sn",
}

// validate checks addresses with the "email" tag.
var validate = validator.New()

// Normaliser converts raw contacts into domain.Contact values.
type Normaliser struct {
	fields   []string
	dirAttrs map[string]string
}

// NewNormaliser creates a normaliser copying fields into Properties.
// A nil dirAttrs uses DefaultDirectoryAttrs.
func NewNormaliser(fields []string, dirAttrs map[string]string) *Normaliser {
	if dirAttrs == nil {
		dirAttrs = DefaultDirectoryAttrs
	}
	attrs := make(map[string]string, len(dirAttrs))
	for k, v := range dirAttrs {
		attrs[k] = v
	}
	return &Normaliser{
		fields:   append([]string(nil), fields...),
		dirAttrs: attrs,
	}
}

// Fields returns the configured property fields.
func (n *Normaliser) Fields() []string {
	return append([]string(nil), n.fields...)
}

// Normalise converts raw. groupRef is the sync key of the enclosing group,
// empty when raw is a top-level contact.
//
// Returns domain.ErrNoEmail or domain.ErrInvalidEmail for unusable entries.
func (n *Normaliser) Normalise(raw domain.RawContact, groupRef string) (domain.Contact, error) {
	switch r := raw.(type) {
	case domain.InlineMember:
		return n.inline(r, groupRef)
	case *domain.ContactRecord:
		if r == nil {
			return domain.Contact{}, domain.ErrNoEmail
		}
		return n.record(r, groupRef)
	case domain.DirectoryRecord:
		return n.directory(r, groupRef)
	case domain.AttributeBag:
		return n.bag(r, groupRef)
	default:
		return domain.Contact{}, fmt.Errorf("%w: unsupported raw contact %T", domain.ErrInvalidInput, raw)
	}
}

func (n *Normaliser) inline(r domain.InlineMember, groupRef string) (domain.Contact, error) {
	email := extractAddress(r.Value)
	if email == "" {
		return domain.Contact{}, domain.ErrNoEmail
	}
	if err := checkEmail(email); err != nil {
		return domain.Contact{}, err
	}
	return domain.Contact{
		Email:       email,
		Properties:  n.emptyProperties(),
		SourceType:  domain.SourceGroupMember,
		SourceRef:   groupRef,
		GroupMember: true,
	}, nil
}

func (n *Normaliser) record(r *domain.ContactRecord, groupRef string) (domain.Contact, error) {
	email := strings.TrimSpace(r.Field(emailField))
	if email == "" {
		return domain.Contact{}, domain.ErrNoEmail
	}
	if err := checkEmail(email); err != nil {
		return domain.Contact{}, err
	}

	props := make(map[string]string, len(n.fields))
	for _, field := range n.fields {
		props[field] = r.Field(field)
	}

	c := domain.Contact{
		Email:      email,
		Properties: props,
	}
	if groupRef != "" {
		c.SourceType = domain.SourceGroupMember
		c.SourceRef = groupRef
		c.GroupMember = true
		return c, nil
	}

	c.Name = r.FileAs
	c.Tags = append([]string(nil), r.Tags...)
	c.ID = r.Ref()
	c.SourceType = domain.SourcePrimaryStore
	c.SourceRef = domain.ContactRef(c.ID)
	return c, nil
}

func (n *Normaliser) directory(r domain.DirectoryRecord, groupRef string) (domain.Contact, error) {
	var email string
	switch values := r.Attr(emailField); len(values) {
	case 0:
	case 1:
		email = values[0]
	default:
		// aliases: the delivery address is the primary one
		email = first(r.Attr(DeliveryAddressAttr))
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Contact{}, domain.ErrNoEmail
	}
	if err := checkEmail(email); err != nil {
		return domain.Contact{}, err
	}

	props := make(map[string]string, len(n.fields))
	for _, field := range n.fields {
		props[field] = ""
		if attr, ok := n.dirAttrs[field]; ok {
			props[field] = first(r.Attr(attr))
		}
	}

	return domain.Contact{
		Email:       email,
		Properties:  props,
		SourceType:  domain.SourceDirectory,
		SourceRef:   groupRef,
		GroupMember: groupRef != "",
	}, nil
}

func (n *Normaliser) bag(r domain.AttributeBag, groupRef string) (domain.Contact, error) {
	var email string
	for _, attr := range r.Attrs {
		if attr.Name == emailField && strings.TrimSpace(attr.Value) != "" {
			email = strings.TrimSpace(attr.Value)
		}
	}
	if email == "" {
		return domain.Contact{}, domain.ErrNoEmail
	}
	if err := checkEmail(email); err != nil {
		return domain.Contact{}, err
	}
	return domain.Contact{
		Email:       email,
		Properties:  n.emptyProperties(),
		SourceType:  domain.SourceGroupMember,
		SourceRef:   groupRef,
		GroupMember: groupRef != "",
	}, nil
}

func (n *Normaliser) emptyProperties() map[string]string {
	props := make(map[string]string, len(n.fields))
	for _, field := range n.fields {
		props[field] = ""
	}
	return props
}

// extractAddress pulls the address out of "Name <addr>" and removes
// whitespace and commas.
func extractAddress(s string) string {
	if open := strings.Index(s, "<"); open >= 0 {
		if end := strings.Index(s[open+1:], ">"); end >= 0 {
			s = s[open+1 : open+1+end]
		}
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ',' {
			return -1
		}
		return r
	}, s)
}

func checkEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidEmail, email)
	}
	return nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
