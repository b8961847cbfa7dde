package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"su_report_bot/internal/logger"
	"su_report_bot/internal/model"
	"su_report_bot/internal/report"
)

// Stage identifies where the run currently is, or where it ended.
type Stage int

const (
	StageFetch Stage = iota
	StageReconcile
	StagePersist
	StageReport
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "FETCH"
	case StageReconcile:
		return "RECONCILE"
	case StagePersist:
		return "PERSIST"
	case StageReport:
		return "REPORT"
	case StageDone:
		return "DONE"
	case StageError:
		return "ERROR"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// FatalError aborts the run. Only unrecoverable fetch failures (Jira or
// Notion unreachable/unauthenticated) are fatal; per-record and per-user
// failures degrade to best effort instead.
type FatalError struct {
	Stage Stage
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error in %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IssueSource fetches canonical ticket records from the tracker.
type IssueSource interface {
	OpenSprintTickets(ctx context.Context) ([]model.TicketRecord, error)
	Ticket(ctx context.Context, id string) (model.TicketRecord, error)
}

// MirrorStore is the persisted ticket mirror.
type MirrorStore interface {
	Snapshot(ctx context.Context) (map[string]model.TicketRecord, error)
	Upsert(ctx context.Context, rec model.TicketRecord) error
	QueryBySprint(ctx context.Context, sprintName string) ([]model.TicketRecord, error)
}

// Notifier delivers one rendered report to one user.
type Notifier interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// UpsertResult records the outcome of one mirror write.
type UpsertResult struct {
	Record model.TicketRecord
	Err    error
}

// DeliveryResult records the outcome of one user notification.
type DeliveryResult struct {
	User model.UserProfile
	Err  error
}

// RunSummary aggregates per-stage counts for the structured log line and the
// HTTP trigger response.
type RunSummary struct {
	Stage          string `json:"stage"`
	Fetched        int    `json:"fetched"`
	Planned        int    `json:"planned"`
	Upserted       int    `json:"upserted"`
	UpsertFailed   int    `json:"upsert_failed"`
	Refreshed      int    `json:"refreshed"`
	RefreshFailed  int    `json:"refresh_failed"`
	Delivered      int    `json:"delivered"`
	DeliveryFailed int    `json:"delivery_failed"`
	SkippedUsers   int    `json:"skipped_users"`
}

// Runner sequences one full run: FETCH, RECONCILE, PERSIST, REPORT, DONE.
// Item-level failures inside PERSIST and REPORT never abort the run.
type Runner struct {
	Source  IssueSource
	Store   MirrorStore
	Notify  Notifier
	Reports *report.Builder
	Users   []model.UserProfile

	// SkipReport ends the run after PERSIST (the `sync` subcommand).
	SkipReport bool

	// RefreshHistory also re-fetches mirror records that fell out of the
	// current sprint and updates their status from Jira.
	RefreshHistory bool
}

// Run executes the pipeline once. The returned summary is valid even when
// the error is non-nil; in that case summary.Stage is ERROR.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	log := logger.GetLogger()
	summary := RunSummary{}

	// FETCH
	snapshot, err := r.Source.OpenSprintTickets(ctx)
	if err != nil {
		summary.Stage = StageError.String()
		return summary, &FatalError{Stage: StageFetch, Err: err}
	}
	stored, err := r.Store.Snapshot(ctx)
	if err != nil {
		summary.Stage = StageError.String()
		return summary, &FatalError{Stage: StageFetch, Err: err}
	}
	summary.Fetched = len(snapshot)

	// RECONCILE
	plan := Reconcile(snapshot, stored)
	summary.Planned = len(plan.ToUpsert)
	log.Info("reconciled snapshot against mirror",
		zap.Int("snapshot", len(snapshot)),
		zap.Int("mirror", len(stored)),
		zap.Int("to_upsert", len(plan.ToUpsert)))

	// PERSIST
	for _, res := range r.persist(ctx, plan.ToUpsert) {
		if res.Err != nil {
			summary.UpsertFailed++
			log.Error("record write failed, skipping",
				zap.String("ticket", res.Record.ID), zap.Error(res.Err))
			continue
		}
		summary.Upserted++
	}
	if r.RefreshHistory {
		refreshed, failed := r.refreshHistory(ctx, snapshot, stored)
		summary.Refreshed = refreshed
		summary.RefreshFailed = failed
	}
	log.Info("persist stage finished",
		zap.Int("upserted", summary.Upserted),
		zap.Int("upsert_failed", summary.UpsertFailed),
		zap.Int("refreshed", summary.Refreshed),
		zap.Int("refresh_failed", summary.RefreshFailed))

	if r.SkipReport {
		summary.Stage = StageDone.String()
		return summary, nil
	}

	// REPORT
	for _, res := range r.deliver(ctx, plan.ByAssignee) {
		if res.Err != nil {
			summary.DeliveryFailed++
			log.Error("delivery failed, skipping user",
				zap.String("user", res.User.DisplayName),
				zap.String("slack_user_id", res.User.SlackUserID),
				zap.Error(res.Err))
			continue
		}
		summary.Delivered++
	}
	summary.SkippedUsers = len(r.Users) - summary.Delivered - summary.DeliveryFailed
	log.Info("report stage finished",
		zap.Int("delivered", summary.Delivered),
		zap.Int("delivery_failed", summary.DeliveryFailed),
		zap.Int("skipped_users", summary.SkippedUsers))

	summary.Stage = StageDone.String()
	return summary, nil
}

func (r *Runner) persist(ctx context.Context, toUpsert []model.TicketRecord) []UpsertResult {
	results := make([]UpsertResult, 0, len(toUpsert))
	for _, rec := range toUpsert {
		results = append(results, UpsertResult{Record: rec, Err: r.Store.Upsert(ctx, rec)})
	}
	return results
}

// refreshHistory updates mirror records that are no longer in the current
// sprint from a per-ticket Jira fetch. The stored sprint, owner and tags are
// preserved; only live fields (title, status, points) move.
func (r *Runner) refreshHistory(ctx context.Context, snapshot []model.TicketRecord, stored map[string]model.TicketRecord) (refreshed, failed int) {
	log := logger.GetLogger()
	current := make(map[string]bool, len(snapshot))
	for _, rec := range snapshot {
		current[rec.ID] = true
	}

	for id, old := range stored {
		if current[id] {
			continue
		}
		fresh, err := r.Source.Ticket(ctx, id)
		if err != nil {
			failed++
			log.Warn("history refresh fetch failed, skipping",
				zap.String("ticket", id), zap.Error(err))
			continue
		}
		fresh.SprintName = old.SprintName
		fresh.AssigneeName = old.AssigneeName
		fresh.Tags = old.Tags
		if fresh.Equal(old) {
			continue
		}
		if err := r.Store.Upsert(ctx, fresh); err != nil {
			failed++
			log.Error("history refresh write failed, skipping",
				zap.String("ticket", id), zap.Error(err))
			continue
		}
		refreshed++
	}
	return refreshed, failed
}

// deliver sends one sprint report per roster user with a non-empty ticket
// group. Users with no tickets this sprint get nothing, not an empty note.
func (r *Runner) deliver(ctx context.Context, byAssignee map[string][]model.TicketRecord) []DeliveryResult {
	var results []DeliveryResult
	for _, user := range r.Users {
		tickets := byAssignee[user.JiraUserID]
		if len(tickets) == 0 {
			continue
		}
		if user.SlackUserID == "" {
			logger.GetLogger().Info("user has no slack id, skipping",
				zap.String("user", user.DisplayName))
			continue
		}
		msg := r.Reports.SprintMessage(r.Reports.Sprint(user, tickets))
		results = append(results, DeliveryResult{
			User: user,
			Err:  r.Notify.SendDirectMessage(ctx, user.SlackUserID, msg),
		})
	}
	return results
}
