package sync

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"su_report_bot/internal/logger"
	"su_report_bot/internal/model"
	"su_report_bot/internal/report"
)

// Summarizer fills the Summary section of the weekly report. Optional.
type Summarizer interface {
	SummarizeTickets(ctx context.Context, displayName string, tickets []model.TicketRecord) (string, error)
}

// WeeklySummary aggregates the outcome of one weekly notification run.
type WeeklySummary struct {
	Users          int `json:"users"`
	Delivered      int `json:"delivered"`
	DeliveryFailed int `json:"delivery_failed"`
	SkippedUsers   int `json:"skipped_users"`
}

// WeeklyReporter sends each roster user their weekly status DM, built from
// the mirror rather than the live Jira snapshot: the mirror is the curated
// record the team actually reviews.
type WeeklyReporter struct {
	// Source is only used to narrow the mirror to active sprints; when the
	// lookup fails the reporter degrades to all mirrored records.
	Source     IssueSource
	Store      MirrorStore
	Notify     Notifier
	Reports    *report.Builder
	Users      []model.UserProfile
	Summarizer Summarizer // nil disables the AI summary
}

// Run builds and delivers the weekly reports. Only a mirror read failure is
// fatal; everything per-user degrades to best effort.
func (w *WeeklyReporter) Run(ctx context.Context) (WeeklySummary, error) {
	log := logger.GetLogger()
	summary := WeeklySummary{Users: len(w.Users)}

	stored, err := w.Store.Snapshot(ctx)
	if err != nil {
		return summary, &FatalError{Stage: StageFetch, Err: err}
	}

	activeSprints := w.activeSprints(ctx)

	for _, user := range w.Users {
		if user.DisplayName == "" || user.SlackUserID == "" {
			summary.SkippedUsers++
			log.Info("roster entry incomplete, skipping", zap.String("user", user.DisplayName))
			continue
		}

		records := userRecords(stored, user.DisplayName, activeSprints)
		if len(records) == 0 {
			summary.SkippedUsers++
			continue
		}

		var ongoing, completed []model.TicketRecord
		for _, rec := range records {
			if report.IsCompleted(rec.Status) {
				completed = append(completed, rec)
			} else {
				ongoing = append(ongoing, rec)
			}
		}

		sprints := strings.Join(report.ActiveSprintNames(records), ", ")
		msg := w.Reports.WeeklyMessage(sprints, ongoing, completed, w.summarize(ctx, user, records))
		if err := w.Notify.SendDirectMessage(ctx, user.SlackUserID, msg); err != nil {
			summary.DeliveryFailed++
			log.Error("weekly delivery failed, skipping user",
				zap.String("user", user.DisplayName),
				zap.String("slack_user_id", user.SlackUserID),
				zap.Error(err))
			continue
		}
		summary.Delivered++
	}

	log.Info("weekly report finished",
		zap.Int("delivered", summary.Delivered),
		zap.Int("delivery_failed", summary.DeliveryFailed),
		zap.Int("skipped_users", summary.SkippedUsers))
	return summary, nil
}

// activeSprints asks Jira which sprints are currently open. A failure here
// is not fatal: the weekly report then covers every mirrored record.
func (w *WeeklyReporter) activeSprints(ctx context.Context) map[string]bool {
	if w.Source == nil {
		return nil
	}
	tickets, err := w.Source.OpenSprintTickets(ctx)
	if err != nil {
		logger.GetLogger().Warn("could not resolve active sprints, reporting all mirrored records", zap.Error(err))
		return nil
	}
	actives := make(map[string]bool)
	for _, name := range report.ActiveSprintNames(tickets) {
		actives[name] = true
	}
	return actives
}

func (w *WeeklyReporter) summarize(ctx context.Context, user model.UserProfile, records []model.TicketRecord) string {
	if w.Summarizer == nil {
		return ""
	}
	summary, err := w.Summarizer.SummarizeTickets(ctx, user.DisplayName, records)
	if err != nil {
		logger.GetLogger().Warn("summary generation failed, leaving section blank",
			zap.String("user", user.DisplayName), zap.Error(err))
		return ""
	}
	return summary
}

// userRecords selects the mirror records owned by the user, restricted to
// the active sprints when known, ordered by status then ticket id so the
// message is stable across runs.
func userRecords(stored map[string]model.TicketRecord, owner string, activeSprints map[string]bool) []model.TicketRecord {
	var records []model.TicketRecord
	for _, rec := range stored {
		if rec.AssigneeName != owner {
			continue
		}
		if len(activeSprints) > 0 && !activeSprints[rec.SprintName] {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Status != records[j].Status {
			return records[i].Status < records[j].Status
		}
		return records[i].ID < records[j].ID
	})
	return records
}
