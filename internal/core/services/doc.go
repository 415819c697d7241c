// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO. Besides domain and the ports they
// only use small libraries (validation, bounded concurrency).
package services
