// Package mcp provides an MCP (Model Context Protocol) server adapter for addrcrawl.
// It lets AI assistants read the address books crawled by this server.
package mcp

import "errors"

// ErrMissingContactsService is returned when the contacts service is not provided.
var ErrMissingContactsService = errors.New("mcp: contacts service is required")
