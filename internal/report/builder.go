package report

import (
	"fmt"
	"sort"
	"strings"

	"su_report_bot/internal/model"
)

// completedStatuses are the ticket states treated as finished work in the
// weekly report.
var completedStatuses = map[string]bool{
	"Done":      true,
	"Completed": true,
	"Closed":    true,
}

// IsCompleted reports whether a status counts as finished.
func IsCompleted(status string) bool {
	return completedStatuses[status]
}

// Builder renders sprint reports into Slack markdown. It needs the Jira base
// URL to link ticket ids back to the source issue.
type Builder struct {
	JiraBaseURL string
}

func NewBuilder(jiraBaseURL string) *Builder {
	return &Builder{JiraBaseURL: jiraBaseURL}
}

// Sprint builds the per-user report projection. Tickets keep their source
// order; the sprint name joins the distinct sprints the user is part of.
func (b *Builder) Sprint(user model.UserProfile, tickets []model.TicketRecord) model.SprintReport {
	return model.SprintReport{
		SprintName: strings.Join(ActiveSprintNames(tickets), ", "),
		User:       user,
		Tickets:    tickets,
		TotalCount: len(tickets),
	}
}

// SprintMessage renders the sync-run report sent after each mirror update.
func (b *Builder) SprintMessage(rep model.SprintReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*📊 SPRINT REPORT [%s]*\n", rep.SprintName)
	fmt.Fprintf(&sb, "*📈 Total tickets: %d*\n\n", rep.TotalCount)
	for _, t := range rep.Tickets {
		fmt.Fprintf(&sb, "• %s: %s `%s`\n", b.ticketLink(t.ID), t.Title, t.Status)
	}
	return sb.String()
}

// WeeklyMessage renders the weekly status DM with Ongoing / Completed /
// Summary sections. An empty summary leaves the section blank for the user
// to fill in.
func (b *Builder) WeeklyMessage(sprintNames string, ongoing, completed []model.TicketRecord, summary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*🏃 Sprint:* %s\n\n", sprintNames)
	sb.WriteString("*🔄 Ongoing:*\n")
	sb.WriteString(b.formatRecords(ongoing))
	sb.WriteString("\n\n*✅ Completed:*\n")
	sb.WriteString(b.formatRecords(completed))
	sb.WriteString("\n\n*📝 Summary:*\n")
	sb.WriteString(summary)
	return sb.String()
}

func (b *Builder) formatRecords(records []model.TicketRecord) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("• %s %s `%s`", b.ticketLink(r.ID), r.Title, r.Status))
	}
	return strings.Join(lines, "\n")
}

func (b *Builder) ticketLink(id string) string {
	return fmt.Sprintf("<%s/browse/%s|%s>", b.JiraBaseURL, id, id)
}

// ActiveSprintNames returns the sorted distinct sprint names of the tickets.
func ActiveSprintNames(tickets []model.TicketRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range tickets {
		if t.SprintName != "" && !seen[t.SprintName] {
			seen[t.SprintName] = true
			names = append(names, t.SprintName)
		}
	}
	sort.Strings(names)
	return names
}
