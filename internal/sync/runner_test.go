package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"su_report_bot/internal/model"
	"su_report_bot/internal/report"
)

type fakeSource struct {
	tickets  []model.TicketRecord
	fetchErr error
	byID     map[string]model.TicketRecord
	getErr   map[string]error
}

func (f *fakeSource) OpenSprintTickets(ctx context.Context) ([]model.TicketRecord, error) {
	return f.tickets, f.fetchErr
}

func (f *fakeSource) Ticket(ctx context.Context, id string) (model.TicketRecord, error) {
	if err := f.getErr[id]; err != nil {
		return model.TicketRecord{}, err
	}
	rec, ok := f.byID[id]
	if !ok {
		return model.TicketRecord{}, fmt.Errorf("issue not found: %s", id)
	}
	return rec, nil
}

type fakeStore struct {
	records map[string]model.TicketRecord
	failIDs map[string]error
	snapErr error
	upserts []string
}

func newFakeStore(records ...model.TicketRecord) *fakeStore {
	return &fakeStore{records: asStore(records...), failIDs: map[string]error{}}
}

func (f *fakeStore) Snapshot(ctx context.Context) (map[string]model.TicketRecord, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	out := make(map[string]model.TicketRecord, len(f.records))
	for k, v := range f.records {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Upsert(ctx context.Context, rec model.TicketRecord) error {
	f.upserts = append(f.upserts, rec.ID)
	if err := f.failIDs[rec.ID]; err != nil {
		return err
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeStore) QueryBySprint(ctx context.Context, sprintName string) ([]model.TicketRecord, error) {
	var out []model.TicketRecord
	for _, rec := range f.records {
		if rec.SprintName == sprintName {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	sent map[string][]string
	fail map[string]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: map[string][]string{}, fail: map[string]error{}}
}

func (f *fakeNotifier) SendDirectMessage(ctx context.Context, userID, text string) error {
	if err := f.fail[userID]; err != nil {
		return err
	}
	f.sent[userID] = append(f.sent[userID], text)
	return nil
}

var testUsers = []model.UserProfile{
	{DisplayName: "Alice", JiraUserID: "alice", SlackUserID: "U-ALICE"},
	{DisplayName: "Bob", JiraUserID: "bob", SlackUserID: "U-BOB"},
}

func newRunner(source *fakeSource, store *fakeStore, notify *fakeNotifier) *Runner {
	return &Runner{
		Source:  source,
		Store:   store,
		Notify:  notify,
		Reports: report.NewBuilder("https://example.atlassian.net"),
		Users:   testUsers,
	}
}

func TestRunHappyPath(t *testing.T) {
	source := &fakeSource{tickets: []model.TicketRecord{ticket("T-1", "Fix bug", "Done", "alice")}}
	store := newFakeStore()
	notify := newFakeNotifier()

	summary, err := newRunner(source, store, notify).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StageDone.String(), summary.Stage)
	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Upserted)
	assert.Zero(t, summary.UpsertFailed)

	assert.Contains(t, store.records, "T-1")

	require.Len(t, notify.sent["U-ALICE"], 1)
	msg := notify.sent["U-ALICE"][0]
	assert.Contains(t, msg, "T-1")
	assert.Contains(t, msg, "Fix bug `Done`")
	assert.Contains(t, msg, "Total tickets: 1")
	assert.Empty(t, notify.sent["U-BOB"], "users with no tickets get no message")
}

func TestRunSecondRunIsNoop(t *testing.T) {
	source := &fakeSource{tickets: []model.TicketRecord{
		ticket("T-1", "Fix bug", "Done", "alice"),
		ticket("T-2", "Add feature", "In Progress", "bob"),
	}}
	store := newFakeStore()
	notify := newFakeNotifier()

	_, err := newRunner(source, store, notify).Run(context.Background())
	require.NoError(t, err)

	summary, err := newRunner(source, store, notify).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Planned)
	assert.Zero(t, summary.Upserted)
}

func TestRunRecordWriteFailureDoesNotBlockOthers(t *testing.T) {
	source := &fakeSource{tickets: []model.TicketRecord{
		ticket("T-2", "Broken write", "To Do", "bob"),
		ticket("T-3", "Healthy write", "Done", "alice"),
	}}
	store := newFakeStore()
	store.failIDs["T-2"] = errors.New("validation rejected")
	notify := newFakeNotifier()

	summary, err := newRunner(source, store, notify).Run(context.Background())

	require.NoError(t, err, "record write failures are not fatal")
	assert.Equal(t, 1, summary.Upserted)
	assert.Equal(t, 1, summary.UpsertFailed)
	assert.Contains(t, store.records, "T-3")
	assert.NotContains(t, store.records, "T-2")
	require.Len(t, notify.sent["U-ALICE"], 1, "alice still gets her report")
	require.Len(t, notify.sent["U-BOB"], 1, "bob's report lists the snapshot, not the store")
}

func TestRunFatalFetch(t *testing.T) {
	source := &fakeSource{fetchErr: errors.New("401 unauthorized")}
	store := newFakeStore()
	notify := newFakeNotifier()

	summary, err := newRunner(source, store, notify).Run(context.Background())

	require.Error(t, err)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StageFetch, fatal.Stage)
	assert.Equal(t, StageError.String(), summary.Stage)
	assert.Empty(t, store.upserts)
	assert.Empty(t, notify.sent)
}

func TestRunFatalMirrorSnapshot(t *testing.T) {
	source := &fakeSource{tickets: []model.TicketRecord{ticket("T-1", "Fix bug", "Done", "alice")}}
	store := newFakeStore()
	store.snapErr = errors.New("notion unreachable")
	notify := newFakeNotifier()

	summary, err := newRunner(source, store, notify).Run(context.Background())

	require.Error(t, err)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, StageError.String(), summary.Stage)
}

func TestRunDeliveryFailureDoesNotBlockOthers(t *testing.T) {
	source := &fakeSource{tickets: []model.TicketRecord{
		ticket("T-1", "a", "Done", "alice"),
		ticket("T-2", "b", "Done", "bob"),
	}}
	store := newFakeStore()
	notify := newFakeNotifier()
	notify.fail["U-ALICE"] = errors.New("slack 500")

	summary, err := newRunner(source, store, notify).Run(context.Background())

	require.NoError(t, err, "delivery failures are not fatal")
	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 1, summary.DeliveryFailed)
	require.Len(t, notify.sent["U-BOB"], 1)
}

func TestRunUnassignedNeverDelivered(t *testing.T) {
	source := &fakeSource{tickets: []model.TicketRecord{ticket("T-1", "Orphan", "To Do", "")}}
	store := newFakeStore()
	notify := newFakeNotifier()

	summary, err := newRunner(source, store, notify).Run(context.Background())

	require.NoError(t, err)
	assert.Contains(t, store.records, "T-1", "unassigned tickets are still mirrored")
	assert.Empty(t, notify.sent)
	assert.Zero(t, summary.Delivered)
}

func TestRunSkipReport(t *testing.T) {
	source := &fakeSource{tickets: []model.TicketRecord{ticket("T-1", "Fix bug", "Done", "alice")}}
	store := newFakeStore()
	notify := newFakeNotifier()

	runner := newRunner(source, store, notify)
	runner.SkipReport = true
	summary, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Upserted)
	assert.Empty(t, notify.sent)
}

func TestRunHistoryRefresh(t *testing.T) {
	old := ticket("T-9", "Legacy work", "In Progress", "alice")
	old.SprintName = "Sprint 40"

	fresh := ticket("T-9", "Legacy work", "Done", "alice")
	fresh.SprintName = "" // no longer in an open sprint

	source := &fakeSource{
		tickets: nil,
		byID:    map[string]model.TicketRecord{"T-9": fresh},
	}
	store := newFakeStore(old)
	notify := newFakeNotifier()

	runner := newRunner(source, store, notify)
	runner.RefreshHistory = true
	summary, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Refreshed)
	got := store.records["T-9"]
	assert.Equal(t, "Done", got.Status, "status moves with jira")
	assert.Equal(t, "Sprint 40", got.SprintName, "stored sprint is preserved")
	assert.Equal(t, "alice", got.AssigneeName, "stored owner is preserved")
}

func TestRunHistoryRefreshFailureContinues(t *testing.T) {
	oldA := ticket("T-8", "a", "In Progress", "alice")
	oldB := ticket("T-9", "b", "In Progress", "alice")
	freshB := ticket("T-9", "b", "Done", "alice")

	source := &fakeSource{
		byID:   map[string]model.TicketRecord{"T-9": freshB},
		getErr: map[string]error{"T-8": errors.New("gone")},
	}
	store := newFakeStore(oldA, oldB)
	notify := newFakeNotifier()

	runner := newRunner(source, store, notify)
	runner.RefreshHistory = true
	summary, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Refreshed)
	assert.Equal(t, 1, summary.RefreshFailed)
	assert.Equal(t, "Done", store.records["T-9"].Status)
}
