package calendar

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

var stamp = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func datePtr(s string) *model.LocalDate {
	d := model.MustParseDate(s)
	return &d
}

func eventsByUID(t *testing.T, cal *ical.Calendar) map[string]*ical.VEvent {
	t.Helper()
	parsed, err := ical.ParseCalendar(strings.NewReader(cal.Serialize()))
	require.NoError(t, err)
	out := map[string]*ical.VEvent{}
	for _, ev := range parsed.Events() {
		out[ev.Id()] = ev
	}
	return out
}

func propValue(ev *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ev.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func TestExportAllDaySeriesWithExclusions(t *testing.T) {
	tasks := []model.Task{{
		ID:             "T",
		Title:          "Weekly review",
		Priority:       model.PriorityHigh,
		ProjectID:      "work",
		DueDate:        datePtr("2024-01-01"),
		RecurrenceRule: "RRULE:FREQ=WEEKLY;BYDAY=MO\nEXDATE;VALUE=DATE:20240115",
		CreatedAt:      stamp,
		UpdatedAt:      stamp,
	}}
	overrides := []model.OccurrenceOverride{
		{TaskID: "T", Date: model.MustParseDate("2024-01-08"), Status: model.StatusArchived},
		{TaskID: "T", Date: model.MustParseDate("2024-01-22"), Status: model.StatusCompleted},
	}

	events := eventsByUID(t, Export(tasks, overrides, Options{Location: time.UTC, Name: "Pulse", Stamp: stamp}))
	require.Len(t, events, 1)
	ev := events["T@pulse"]
	require.NotNil(t, ev)

	assert.Equal(t, "Weekly review", propValue(ev, ical.ComponentPropertySummary))
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", propValue(ev, ical.ComponentPropertyRrule))
	assert.Equal(t, "20240108,20240115", propValue(ev, ical.ComponentPropertyExdate))
	assert.Equal(t, "3", propValue(ev, ical.ComponentPropertyPriority))
	assert.Equal(t, "work", propValue(ev, ical.ComponentPropertyCategories))

	start := ev.GetProperty(ical.ComponentPropertyDtStart)
	require.NotNil(t, start)
	assert.Equal(t, "20240101", start.Value)
}

func TestExportTimedTaskAndSkips(t *testing.T) {
	begin := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	end := begin.Add(30 * time.Minute)
	deleted := stamp
	tasks := []model.Task{
		{ID: "call", Title: "Call", DueDate: datePtr("2024-01-02"), StartTime: &begin, EndTime: &end, RecurrenceRule: "FREQ=DAILY;COUNT=3", CreatedAt: stamp, UpdatedAt: stamp},
		{ID: "undated", Title: "Someday", CreatedAt: stamp, UpdatedAt: stamp},
		{ID: "gone", Title: "Gone", DueDate: datePtr("2024-01-02"), DeletedAt: &deleted, CreatedAt: stamp, UpdatedAt: stamp},
		{ID: "broken", Title: "Broken", DueDate: datePtr("2024-01-03"), RecurrenceRule: "FREQ=DAILY;;", CreatedAt: stamp, UpdatedAt: stamp},
	}
	overrides := []model.OccurrenceOverride{{TaskID: "call", Date: model.MustParseDate("2024-01-03"), Status: model.StatusArchived}}

	events := eventsByUID(t, Export(tasks, overrides, Options{Location: time.UTC, Stamp: stamp}))
	require.Len(t, events, 2)

	call := events["call@pulse"]
	require.NotNil(t, call)
	assert.Equal(t, "20240102T090000Z", propValue(call, ical.ComponentPropertyDtStart))
	assert.Equal(t, "20240102T093000Z", propValue(call, ical.ComponentPropertyDtEnd))
	assert.Equal(t, "FREQ=DAILY;COUNT=3", propValue(call, ical.ComponentPropertyRrule))
	assert.Equal(t, "20240103T090000Z", propValue(call, ical.ComponentPropertyExdate))

	broken := events["broken@pulse"]
	require.NotNil(t, broken)
	assert.Nil(t, broken.GetProperty(ical.ComponentPropertyRrule))
}

func TestWriteFromStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryRepository()
	require.NoError(t, store.CreateTask(ctx, model.Task{ID: "a", Title: "A", DueDate: datePtr("2024-01-01"), RecurrenceRule: "FREQ=DAILY", CreatedAt: stamp, UpdatedAt: stamp}))
	require.NoError(t, store.CreateTask(ctx, model.Task{ID: "b", Title: "B", DueDate: datePtr("2024-01-05"), CreatedAt: stamp, UpdatedAt: stamp}))
	require.NoError(t, store.SetOverride(ctx, model.OccurrenceOverride{TaskID: "a", Date: model.MustParseDate("2024-01-02"), Status: model.StatusArchived, UpdatedAt: stamp}))

	var buf bytes.Buffer
	n, err := Write(ctx, &buf, store, Options{Location: time.UTC, Stamp: stamp})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, buf.String(), "EXDATE;VALUE=DATE:20240102")
}
