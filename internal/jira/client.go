package jira

import (
	"context"
	"fmt"
	"strings"

	gojira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"su_report_bot/internal/config"
	"su_report_bot/internal/logger"
	"su_report_bot/internal/model"
)

// typeToTag maps issue types to the mirror Tags column. Stories are handled
// separately because their tag carries the parent summary.
var typeToTag = map[string]string{
	"Bug": "Fix",
}

// Client fetches sprint tickets for the configured roster and normalizes
// them into TicketRecord values.
type Client struct {
	api             *gojira.Client
	baseURL         string
	sprintField     string
	storyPointField string
	userIDs         []string

	// parent summaries are stable within a run, so one lookup per epic is enough
	parentSummaries map[string]string
}

// NewClient builds a Jira client authenticated with basic auth.
func NewClient(cfg *config.Config, users []model.UserProfile) (*Client, error) {
	tp := gojira.BasicAuthTransport{
		Username: cfg.JiraUserName,
		Password: cfg.JiraAPIToken,
	}
	api, err := gojira.NewClient(tp.Client(), cfg.JiraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}

	userIDs := make([]string, 0, len(users))
	for _, u := range users {
		if u.JiraUserID != "" {
			userIDs = append(userIDs, u.JiraUserID)
		}
	}

	return &Client{
		api:             api,
		baseURL:         cfg.JiraBaseURL,
		sprintField:     cfg.SprintField,
		storyPointField: cfg.StoryPointField,
		userIDs:         userIDs,
		parentSummaries: make(map[string]string),
	}, nil
}

// OpenSprintTickets returns all open-sprint tickets assigned to the roster,
// newest first, as canonical records.
func (c *Client) OpenSprintTickets(ctx context.Context) ([]model.TicketRecord, error) {
	if len(c.userIDs) == 0 {
		return nil, fmt.Errorf("no roster users with a jira user id")
	}

	jql := buildJQL(c.userIDs)
	logger.GetLogger().Debug("searching jira", zap.String("jql", jql))

	var issues []gojira.Issue
	opts := &gojira.SearchOptions{MaxResults: 100}
	for {
		page, resp, err := c.api.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, fmt.Errorf("search jira issues: %w", err)
		}
		issues = append(issues, page...)
		if len(page) == 0 || resp.StartAt+len(page) >= resp.Total {
			break
		}
		opts.StartAt = resp.StartAt + len(page)
	}

	records := make([]model.TicketRecord, 0, len(issues))
	for _, issue := range issues {
		records = append(records, c.issueToRecord(ctx, issue))
	}
	logger.GetLogger().Info("fetched jira tickets",
		zap.Int("count", len(records)),
		zap.Strings("active_sprints", sprintNames(records)))
	return records, nil
}

// Ticket fetches a single ticket by key. Used to refresh mirror records that
// are no longer part of the current sprint.
func (c *Client) Ticket(ctx context.Context, id string) (model.TicketRecord, error) {
	issue, _, err := c.api.Issue.GetWithContext(ctx, id, nil)
	if err != nil {
		return model.TicketRecord{}, fmt.Errorf("get jira issue %s: %w", id, err)
	}
	return c.issueToRecord(ctx, *issue), nil
}

func (c *Client) issueToRecord(ctx context.Context, issue gojira.Issue) model.TicketRecord {
	rec := model.TicketRecord{
		ID:    issue.Key,
		Title: issue.Fields.Summary,
	}
	if issue.Fields.Status != nil {
		rec.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		rec.AssigneeID = issue.Fields.Assignee.AccountID
		rec.AssigneeName = issue.Fields.Assignee.DisplayName
	}
	if rec.AssigneeName == "" {
		rec.AssigneeName = "Unassigned"
	}
	if sp, ok := issue.Fields.Unknowns[c.storyPointField].(float64); ok {
		rec.StoryPoints = &sp
	}
	if actives := activeSprints(issue.Fields.Unknowns[c.sprintField]); len(actives) > 0 {
		rec.SprintName = actives[0]
	}
	if tag := tagFor(issue, func(key string) (string, error) {
		return c.parentSummary(ctx, key)
	}); tag != "" {
		rec.Tags = []string{tag}
	}
	return rec
}

// tagFor derives the mirror tag from the issue type: stories inherit their
// parent summary, bugs become "Fix", anything else keeps the type name.
func tagFor(issue gojira.Issue, parentSummary func(key string) (string, error)) string {
	if issue.Fields.Type.Name == "Story" {
		if issue.Fields.Parent == nil {
			return ""
		}
		summary, err := parentSummary(issue.Fields.Parent.Key)
		if err != nil || summary == "" {
			return "Feat - " + issue.Fields.Parent.Key
		}
		return "Feat - " + summary
	}
	if tag, ok := typeToTag[issue.Fields.Type.Name]; ok {
		return tag
	}
	return issue.Fields.Type.Name
}

func (c *Client) parentSummary(ctx context.Context, key string) (string, error) {
	if summary, ok := c.parentSummaries[key]; ok {
		return summary, nil
	}
	issue, _, err := c.api.Issue.GetWithContext(ctx, key, &gojira.GetQueryOptions{Fields: "summary"})
	if err != nil {
		logger.GetLogger().Warn("failed to fetch parent issue", zap.String("key", key), zap.Error(err))
		return "", err
	}
	c.parentSummaries[key] = issue.Fields.Summary
	return issue.Fields.Summary, nil
}

func buildJQL(userIDs []string) string {
	clauses := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		clauses = append(clauses, fmt.Sprintf("assignee = %q", id))
	}
	return fmt.Sprintf("(%s) AND sprint in openSprints() AND type != Sub-task ORDER BY created DESC",
		strings.Join(clauses, " OR "))
}

// activeSprints pulls the names of active sprints out of the sprint custom
// field, which arrives untyped as a list of sprint objects.
func activeSprints(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var names []string
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		state, _ := m["state"].(string)
		name, _ := m["name"].(string)
		if state == "active" && name != "" {
			names = append(names, name)
		}
	}
	return names
}

func sprintNames(records []model.TicketRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if r.SprintName != "" && !seen[r.SprintName] {
			seen[r.SprintName] = true
			names = append(names, r.SprintName)
		}
	}
	return names
}
