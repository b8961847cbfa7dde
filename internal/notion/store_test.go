package notion

import (
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"su_report_bot/internal/model"
)

func fptr(v float64) *float64 { return &v }

func testStore() *Store {
	return NewStore("secret", "db-1", "https://example.atlassian.net")
}

func TestRecordToProperties(t *testing.T) {
	rec := model.TicketRecord{
		ID:           "T-1",
		Title:        "Fix bug",
		Status:       "Done",
		StoryPoints:  fptr(3),
		SprintName:   "Sprint 42",
		AssigneeName: "Alice",
		Tags:         []string{"Fix"},
	}

	props := testStore().recordToProperties(rec)

	title, ok := props[propTicket].(notionapi.TitleProperty)
	require.True(t, ok)
	require.Len(t, title.Title, 1)
	assert.Equal(t, "T-1", title.Title[0].Text.Content)
	require.NotNil(t, title.Title[0].Text.Link)
	assert.Equal(t, "https://example.atlassian.net/browse/T-1", title.Title[0].Text.Link.Url)

	text, ok := props[propTitle].(notionapi.RichTextProperty)
	require.True(t, ok)
	assert.Equal(t, "Fix bug", text.RichText[0].Text.Content)

	assert.Equal(t, notionapi.NumberProperty{Number: 3}, props[propSP])
	assert.Equal(t, notionapi.SelectProperty{Select: notionapi.Option{Name: "Alice"}}, props[propOwner])
	assert.Equal(t, notionapi.SelectProperty{Select: notionapi.Option{Name: "Done"}}, props[propStatus])
	assert.Equal(t, notionapi.SelectProperty{Select: notionapi.Option{Name: "Sprint 42"}}, props[propSprint])
	assert.Equal(t, notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{{Name: "Fix"}}}, props[propTags])
}

func TestRecordToPropertiesDefaults(t *testing.T) {
	rec := model.TicketRecord{ID: "T-2", Title: "No frills", Status: "To Do", AssigneeName: "Unassigned"}

	props := testStore().recordToProperties(rec)

	assert.Equal(t, notionapi.NumberProperty{Number: 0}, props[propSP], "nil story points are stored as zero")
	assert.NotContains(t, props, propSprint, "no sprint column without a sprint")
	assert.NotContains(t, props, propTags)
}

func page(props notionapi.Properties) notionapi.Page {
	return notionapi.Page{ID: "page-1", Properties: props}
}

func titleProp(content string) *notionapi.TitleProperty {
	return &notionapi.TitleProperty{Title: []notionapi.RichText{{Text: &notionapi.Text{Content: content}}}}
}

func TestPageToRecord(t *testing.T) {
	rec, err := pageToRecord(page(notionapi.Properties{
		propTicket: titleProp("T-1"),
		propTitle:  &notionapi.RichTextProperty{RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: "Fix bug"}}}},
		propSP:     &notionapi.NumberProperty{Number: 3},
		propOwner:  &notionapi.SelectProperty{Select: notionapi.Option{Name: "Alice"}},
		propStatus: &notionapi.SelectProperty{Select: notionapi.Option{Name: "Done"}},
		propSprint: &notionapi.SelectProperty{Select: notionapi.Option{Name: "Sprint 42"}},
		propTags:   &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{{Name: "Fix"}}},
	}))

	require.NoError(t, err)
	assert.Equal(t, model.TicketRecord{
		ID:           "T-1",
		Title:        "Fix bug",
		Status:       "Done",
		StoryPoints:  fptr(3),
		SprintName:   "Sprint 42",
		AssigneeName: "Alice",
		Tags:         []string{"Fix"},
	}, rec)
}

func TestPageToRecordUsesPlainTextFallback(t *testing.T) {
	rec, err := pageToRecord(page(notionapi.Properties{
		propTicket: &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: "T-3"}}},
	}))

	require.NoError(t, err)
	assert.Equal(t, "T-3", rec.ID)
}

func TestPageToRecordWithoutTicketID(t *testing.T) {
	_, err := pageToRecord(page(notionapi.Properties{}))
	assert.Error(t, err)

	_, err = pageToRecord(page(notionapi.Properties{propTicket: &notionapi.TitleProperty{}}))
	assert.Error(t, err)
}

func TestPropertyRoundTrip(t *testing.T) {
	// A record written and read back through the property mapping must be
	// Equal to the original, otherwise every run would re-upsert everything.
	original := model.TicketRecord{
		ID:           "T-9",
		Title:        "Round trip",
		Status:       "In Progress",
		SprintName:   "Sprint 42",
		AssigneeID:   "acc-alice",
		AssigneeName: "Alice",
		Tags:         []string{"Feat - Portal"},
	}

	store := testStore()
	props := store.recordToProperties(original)

	// simulate the API echo: value properties come back as pointers
	echoed := notionapi.Properties{}
	tp := props[propTicket].(notionapi.TitleProperty)
	echoed[propTicket] = &tp
	rt := props[propTitle].(notionapi.RichTextProperty)
	echoed[propTitle] = &rt
	np := props[propSP].(notionapi.NumberProperty)
	echoed[propSP] = &np
	for _, name := range []string{propOwner, propStatus, propSprint} {
		sp := props[name].(notionapi.SelectProperty)
		echoed[name] = &sp
	}
	ms := props[propTags].(notionapi.MultiSelectProperty)
	echoed[propTags] = &ms

	got, err := pageToRecord(page(echoed))
	require.NoError(t, err)
	assert.True(t, original.Equal(got), "round-tripped record must compare equal")
}
