package model

// UnassignedKey is the grouping key for tickets that have no assignee.
// Such tickets are still mirrored to Notion but never reported to a user.
const UnassignedKey = "unassigned"

// TicketRecord is the canonical ticket representation shared by the Jira
// source and the Notion mirror. ID is the reconciliation key on both sides.
type TicketRecord struct {
	ID           string
	Title        string
	Status       string
	StoryPoints  *float64 // nil when the ticket has no estimate
	SprintName   string
	AssigneeID   string // Jira account id; empty when unassigned
	AssigneeName string // display name, stored as the Notion Owner column
	Tags         []string
}

// Points returns the story point value with a nil estimate flattened to 0,
// which is also how the mirror stores it.
func (t TicketRecord) Points() float64 {
	if t.StoryPoints == nil {
		return 0
	}
	return *t.StoryPoints
}

// Equal reports whether two records agree on every persisted attribute.
// AssigneeID is intentionally excluded: the mirror only stores the display
// name, so records read back from Notion carry an empty account id. Any
// difference here triggers a full-record upsert.
func (t TicketRecord) Equal(o TicketRecord) bool {
	if t.ID != o.ID || t.Title != o.Title || t.Status != o.Status ||
		t.SprintName != o.SprintName || t.AssigneeName != o.AssigneeName ||
		t.Points() != o.Points() {
		return false
	}
	if len(t.Tags) != len(o.Tags) {
		return false
	}
	for i := range t.Tags {
		if t.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

// UserProfile maps one person across the three systems. The roster is loaded
// once at startup and never mutated.
type UserProfile struct {
	DisplayName string `json:"name"`
	JiraUserID  string `json:"jira_user_id"`
	SlackUserID string `json:"slack_user_id"`
}

// SprintReport is the per-user projection rendered into a Slack message.
// It is rebuilt on every run and never persisted.
type SprintReport struct {
	SprintName string
	User       UserProfile
	Tickets    []TicketRecord
	TotalCount int
}
