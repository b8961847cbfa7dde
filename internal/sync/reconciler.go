package sync

import "su_report_bot/internal/model"

// Plan is the output of reconciling a Jira snapshot against the mirror.
type Plan struct {
	// ToUpsert holds every snapshot record that is absent from the mirror or
	// differs from it in any attribute. Differences always overwrite the
	// whole record; there is no field-level merge.
	ToUpsert []model.TicketRecord

	// ByAssignee groups the snapshot (and only the snapshot) per assignee in
	// source order. Tickets without an assignee land under
	// model.UnassignedKey and are never delivered.
	ByAssignee map[string][]model.TicketRecord
}

// Reconcile compares the current Jira snapshot with the mirror contents.
// Running it twice against identical inputs yields an empty ToUpsert.
func Reconcile(snapshot []model.TicketRecord, store map[string]model.TicketRecord) Plan {
	plan := Plan{ByAssignee: make(map[string][]model.TicketRecord)}
	for _, rec := range snapshot {
		stored, ok := store[rec.ID]
		if !ok || !rec.Equal(stored) {
			plan.ToUpsert = append(plan.ToUpsert, rec)
		}

		key := rec.AssigneeID
		if key == "" {
			key = model.UnassignedKey
		}
		plan.ByAssignee[key] = append(plan.ByAssignee[key], rec)
	}
	return plan
}
