// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Mailbox: Folder tree and contact listing for one account
//   - MailboxOpener: Opens a mailbox in a viewer's permission context
//   - Directory: Account and server provisioning lookups
//   - MemberCodec: Decodes a group's member blob
//   - SettingsStore: Per-user settings
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RemoteDelegate: Cross-server crawl. Without it, remote shares are skipped.
//   - TokenIssuer / TokenVerifier: Session tokens for delegation.
//   - CrawlMetrics: Crawl counters. Without it, nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
