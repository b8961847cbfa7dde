package notion

import (
	"context"
	"fmt"
	"sort"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"su_report_bot/internal/logger"
	"su_report_bot/internal/model"
)

// Database column names of the ticket mirror.
const (
	propTicket = "Ticket"
	propTitle  = "Title"
	propSP     = "SP"
	propOwner  = "Owner"
	propStatus = "Status"
	propSprint = "Sprint"
	propTags   = "Tags"
)

// Store mirrors ticket records into a Notion database, one page per ticket,
// keyed by the ticket id held in the Ticket title column.
type Store struct {
	client      *notionapi.Client
	databaseID  notionapi.DatabaseID
	jiraBaseURL string

	// pageIDs maps ticket ids to their Notion page, filled by Snapshot so
	// Upsert knows whether to create or overwrite.
	pageIDs map[string]notionapi.PageID
}

// NewStore builds a Store for the given database. jiraBaseURL is used to
// link each Ticket cell back to the source issue.
func NewStore(token, databaseID, jiraBaseURL string) *Store {
	return &Store{
		client:      notionapi.NewClient(notionapi.Token(token)),
		databaseID:  notionapi.DatabaseID(databaseID),
		jiraBaseURL: jiraBaseURL,
		pageIDs:     make(map[string]notionapi.PageID),
	}
}

// Snapshot reads the full database and returns the mirrored records keyed by
// ticket id. Pages without a readable ticket id are logged and skipped.
func (s *Store) Snapshot(ctx context.Context) (map[string]model.TicketRecord, error) {
	records := make(map[string]model.TicketRecord)
	req := &notionapi.DatabaseQueryRequest{PageSize: 100}
	for {
		resp, err := s.client.Database.Query(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("query notion database: %w", err)
		}
		for _, page := range resp.Results {
			rec, err := pageToRecord(page)
			if err != nil {
				logger.GetLogger().Warn("skipping notion page",
					zap.String("page_id", string(page.ID)), zap.Error(err))
				continue
			}
			s.pageIDs[rec.ID] = notionapi.PageID(page.ID)
			records[rec.ID] = rec
		}
		if !resp.HasMore {
			break
		}
		req.StartCursor = resp.NextCursor
	}
	return records, nil
}

// Upsert creates the page for an unseen ticket id and overwrites every
// mapped property otherwise. Applying the same record twice yields the same
// stored state.
func (s *Store) Upsert(ctx context.Context, rec model.TicketRecord) error {
	props := s.recordToProperties(rec)

	if pageID, ok := s.pageIDs[rec.ID]; ok {
		_, err := s.client.Page.Update(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
		if err != nil {
			return fmt.Errorf("update notion page for %s: %w", rec.ID, err)
		}
		return nil
	}

	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.databaseID,
		},
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("create notion page for %s: %w", rec.ID, err)
	}
	s.pageIDs[rec.ID] = notionapi.PageID(page.ID)
	return nil
}

// QueryBySprint returns all records whose Sprint column equals sprintName,
// sorted by status. Not part of the sync path; kept for staleness checks.
func (s *Store) QueryBySprint(ctx context.Context, sprintName string) ([]model.TicketRecord, error) {
	var records []model.TicketRecord
	req := &notionapi.DatabaseQueryRequest{
		PageSize: 100,
		Filter: notionapi.PropertyFilter{
			Property: propSprint,
			Select:   &notionapi.SelectFilterCondition{Equals: sprintName},
		},
	}
	for {
		resp, err := s.client.Database.Query(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("query notion database by sprint: %w", err)
		}
		for _, page := range resp.Results {
			rec, err := pageToRecord(page)
			if err != nil {
				logger.GetLogger().Warn("skipping notion page",
					zap.String("page_id", string(page.ID)), zap.Error(err))
				continue
			}
			records = append(records, rec)
		}
		if !resp.HasMore {
			break
		}
		req.StartCursor = resp.NextCursor
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Status < records[j].Status })
	return records, nil
}

func (s *Store) recordToProperties(rec model.TicketRecord) notionapi.Properties {
	browseURL := fmt.Sprintf("%s/browse/%s", s.jiraBaseURL, rec.ID)

	props := notionapi.Properties{
		propTicket: notionapi.TitleProperty{
			Title: []notionapi.RichText{{
				Text: &notionapi.Text{
					Content: rec.ID,
					Link:    &notionapi.Link{Url: browseURL},
				},
			}},
		},
		propTitle: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{
				Text: &notionapi.Text{Content: rec.Title},
			}},
		},
		propSP: notionapi.NumberProperty{Number: rec.Points()},
		propOwner: notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.AssigneeName},
		},
		propStatus: notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.Status},
		},
	}
	if rec.SprintName != "" {
		props[propSprint] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.SprintName},
		}
	}
	if len(rec.Tags) > 0 {
		options := make([]notionapi.Option, 0, len(rec.Tags))
		for _, tag := range rec.Tags {
			options = append(options, notionapi.Option{Name: tag})
		}
		props[propTags] = notionapi.MultiSelectProperty{MultiSelect: options}
	}
	return props
}

func pageToRecord(page notionapi.Page) (model.TicketRecord, error) {
	id := titleContent(page.Properties[propTicket])
	if id == "" {
		return model.TicketRecord{}, fmt.Errorf("page has no ticket id")
	}

	rec := model.TicketRecord{
		ID:           id,
		Title:        richTextContent(page.Properties[propTitle]),
		Status:       selectName(page.Properties[propStatus]),
		SprintName:   selectName(page.Properties[propSprint]),
		AssigneeName: selectName(page.Properties[propOwner]),
	}
	if n, ok := page.Properties[propSP].(*notionapi.NumberProperty); ok {
		sp := n.Number
		rec.StoryPoints = &sp
	}
	if ms, ok := page.Properties[propTags].(*notionapi.MultiSelectProperty); ok {
		for _, opt := range ms.MultiSelect {
			rec.Tags = append(rec.Tags, opt.Name)
		}
		sort.Strings(rec.Tags)
	}
	return rec, nil
}

func titleContent(p notionapi.Property) string {
	tp, ok := p.(*notionapi.TitleProperty)
	if !ok {
		return ""
	}
	return plainText(tp.Title)
}

func richTextContent(p notionapi.Property) string {
	rt, ok := p.(*notionapi.RichTextProperty)
	if !ok {
		return ""
	}
	return plainText(rt.RichText)
}

func selectName(p notionapi.Property) string {
	sp, ok := p.(*notionapi.SelectProperty)
	if !ok {
		return ""
	}
	return sp.Select.Name
}

func plainText(rts []notionapi.RichText) string {
	if len(rts) == 0 {
		return ""
	}
	if rts[0].Text != nil {
		return rts[0].Text.Content
	}
	return rts[0].PlainText
}
