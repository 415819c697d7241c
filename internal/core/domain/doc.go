// Package domain defines the core entities of the address-book crawler.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - FolderNode: A folder or mountpoint as reported by the mailbox
//   - RawContact: The four raw contact shapes a mailbox can hand out
//   - Contact, Group: Normalised entities
//   - Collection, TreeNode: The two output shapes of a crawl
//   - DelegationRequest, PartialResult: The cross-server sub-protocol
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
