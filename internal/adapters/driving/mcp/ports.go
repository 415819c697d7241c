package mcp

import (
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server needs.
type Ports struct {
	// Contacts crawls address books.
	Contacts driving.ContactsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Contacts == nil {
		return ErrMissingContactsService
	}
	return nil
}
