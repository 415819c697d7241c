package driven

import "github.com/custodia-labs/addrcrawl/internal/core/domain"

// MemberCodec decodes the member list stored on a contact group.
type MemberCodec interface {
	// Decode parses an encoded member list.
	Decode(blob string) ([]domain.MemberRef, error)

	// Encode produces the stored form of a member list.
	Encode(members []domain.MemberRef) (string, error)
}
