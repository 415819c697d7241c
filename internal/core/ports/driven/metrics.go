package driven

import "time"

// Delegation outcomes reported to CrawlMetrics.
const (
	DelegationSuccess = "success"
	DelegationSkipped = "skipped"
)

// CrawlMetrics records crawl activity.
type CrawlMetrics interface {
	// CrawlCompleted records one finished crawl.
	CrawlCompleted(mode string, contacts, groups int, elapsed time.Duration)

	// SubtreeSkipped records a subtree dropped for reason.
	SubtreeSkipped(reason string)

	// EntityRejected records a dropped contact or group.
	EntityRejected(reason string)

	// DelegationFinished records one cross-server call.
	DelegationFinished(server, outcome string, elapsed time.Duration)
}
