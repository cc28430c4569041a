package event

// IssueQueue is consumed by the notification service
const IssueQueue = "issue_noti_events"

const (
	EventIssueReported  = "issue_reported"
	EventIssueEscalated = "issue_escalated"
	EventIssueResolved  = "issue_resolved"
)

// IssueEvent is the payload pushed to the notification service when an issue
// changes hands or reaches a terminal state.
type IssueEvent struct {
	EventType string `json:"event_type"`
	IssueID   string `json:"issue_id"`
	Actor     string `json:"actor"`
	FromTier  string `json:"from_tier,omitempty"`
	ToTier    string `json:"to_tier,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
