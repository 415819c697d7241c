// Package codec encodes contact group member lists.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
)

// Ensure JSONCodec implements the interface.
var _ driven.MemberCodec = (*JSONCodec)(nil)

// JSONCodec stores a member list as a JSON array of {"type","value"} objects.
type JSONCodec struct{}

// NewJSONCodec creates a member codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Decode parses an encoded member list. An empty blob is an empty list.
func (c *JSONCodec) Decode(blob string) ([]domain.MemberRef, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, nil
	}

	var members []domain.MemberRef
	if err := json.Unmarshal([]byte(blob), &members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	for i, m := range members {
		if !m.Type.IsValid() {
			return nil, fmt.Errorf("decode members: entry %d: unknown type %q", i, m.Type)
		}
	}
	return members, nil
}

// Encode produces the stored form of a member list.
func (c *JSONCodec) Encode(members []domain.MemberRef) (string, error) {
	if members == nil {
		members = []domain.MemberRef{}
	}
	for i, m := range members {
		if !m.Type.IsValid() {
			return "", fmt.Errorf("encode members: entry %d: unknown type %q", i, m.Type)
		}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("encode members: %w", err)
	}
	return string(data), nil
}
