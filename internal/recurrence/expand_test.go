package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

func weeklyMondayTask() model.Task {
	due := model.MustParseDate("2024-01-01")
	return model.Task{
		ID:             "T",
		Title:          "Weekly review",
		Priority:       model.PriorityMedium,
		DueDate:        &due,
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO",
	}
}

func january(loc *time.Location) ExpandConfig {
	return ExpandConfig{
		Location:   loc,
		RangeStart: model.MustParseDate("2024-01-01"),
		RangeEnd:   model.MustParseDate("2024-01-31"),
	}
}

func dates(occs []model.Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Date.String())
	}
	return out
}

func TestGenerateWeeklyMondays(t *testing.T) {
	res := Generate(weeklyMondayTask(), january(time.UTC), nil)
	require.NoError(t, res.RuleErr)

	assert.Equal(t, []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22", "2024-01-29"}, dates(res.Occurrences))
	for i, occ := range res.Occurrences {
		assert.Equal(t, i != 0, occ.Virtual, "virtual flag of %s", occ.Date)
		assert.Equal(t, "T", occ.MasterID)
		assert.Equal(t, occ.Date, *occ.Task.DueDate)
	}
	assert.Equal(t, "T", res.Occurrences[0].DisplayID)
	assert.NotEqual(t, res.Occurrences[1].DisplayID, res.Occurrences[2].DisplayID)
}

func TestGenerateSkipsExcludedDate(t *testing.T) {
	task := weeklyMondayTask()
	rule, err := AddExclusionDate(task.RecurrenceRule, model.MustParseDate("2024-01-15"))
	require.NoError(t, err)
	task.RecurrenceRule = rule

	res := Generate(task, january(time.UTC), nil)
	assert.Equal(t, []string{"2024-01-01", "2024-01-08", "2024-01-22", "2024-01-29"}, dates(res.Occurrences))
}

func TestGenerateAppliesOverlay(t *testing.T) {
	overlay := model.Overlay{
		{TaskID: "T", Date: model.MustParseDate("2024-01-08")}:     model.StatusArchived,
		{TaskID: "T", Date: model.MustParseDate("2024-01-22")}:     model.StatusCompleted,
		{TaskID: "T", Date: model.MustParseDate("2024-01-29")}:     model.StatusSkipped,
		{TaskID: "other", Date: model.MustParseDate("2024-01-01")}: model.StatusArchived,
	}
	res := Generate(weeklyMondayTask(), january(time.UTC), overlay)

	assert.Equal(t, []string{"2024-01-01", "2024-01-15", "2024-01-22", "2024-01-29"}, dates(res.Occurrences))
	assert.Equal(t, model.StatusNone, res.Occurrences[0].Status)
	assert.Equal(t, model.StatusCompleted, res.Occurrences[2].Status)
	assert.Equal(t, model.StatusSkipped, res.Occurrences[3].Status)
}

func TestGenerateNonRecurringYieldsTaskOnce(t *testing.T) {
	due := model.MustParseDate("2023-06-01")
	task := model.Task{ID: "solo", Title: "One-off", DueDate: &due, Completed: true}

	res := Generate(task, january(time.UTC), model.Overlay{{TaskID: "solo", Date: due}: model.StatusArchived})
	require.Len(t, res.Occurrences, 1)
	occ := res.Occurrences[0]
	assert.False(t, occ.Virtual)
	assert.Equal(t, task, occ.Task)
	assert.Equal(t, "solo", occ.DisplayID)
	assert.Equal(t, due, occ.Date)
}

func TestGenerateMalformedRuleFallsBackToSingle(t *testing.T) {
	task := weeklyMondayTask()
	task.RecurrenceRule = "FREQ=SOMETIMES"

	res := Generate(task, january(time.UTC), nil)
	assert.ErrorIs(t, res.RuleErr, ErrMalformedRule)
	require.Len(t, res.Occurrences, 1)
	assert.False(t, res.Occurrences[0].Virtual)
	assert.Equal(t, task.RecurrenceRule, res.Occurrences[0].Task.RecurrenceRule)
}

func TestGenerateCarriesDuration(t *testing.T) {
	start := time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	due := model.DateOf(start)
	task := model.Task{
		ID: "run", Title: "Run", DueDate: &due, StartTime: &start, EndTime: &end,
		RecurrenceRule: "FREQ=DAILY;INTERVAL=2",
	}

	res := Generate(task, ExpandConfig{Location: time.UTC, RangeStart: model.MustParseDate("2024-01-05"), RangeEnd: model.MustParseDate("2024-01-10")}, nil)
	assert.Equal(t, []string{"2024-01-06", "2024-01-08", "2024-01-10"}, dates(res.Occurrences))
	for _, occ := range res.Occurrences {
		require.NotNil(t, occ.Task.StartTime)
		require.NotNil(t, occ.Task.EndTime)
		assert.Equal(t, 18, occ.Task.StartTime.Hour())
		assert.Equal(t, 45*time.Minute, occ.Task.EndTime.Sub(*occ.Task.StartTime))
		assert.True(t, occ.Virtual)
	}
}

func TestGenerateUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	start := time.Date(2024, 3, 4, 23, 30, 0, 0, loc) // Monday evening, Tuesday in UTC
	due := model.DateOf(start)
	task := model.Task{ID: "late", Title: "Late call", DueDate: &due, StartTime: &start, RecurrenceRule: "FREQ=WEEKLY"}

	res := Generate(task, ExpandConfig{Location: loc, RangeStart: model.MustParseDate("2024-03-01"), RangeEnd: model.MustParseDate("2024-03-12")}, nil)
	assert.Equal(t, []string{"2024-03-04", "2024-03-11"}, dates(res.Occurrences))
	assert.False(t, res.Occurrences[0].Virtual)
}

func TestGenerateWeeklyCycleCount(t *testing.T) {
	due := model.MustParseDate("2024-01-03")
	task := model.Task{ID: "w", Title: "w", DueDate: &due, RecurrenceRule: "FREQ=WEEKLY;BYDAY=WE,FR"}

	for weeks := 1; weeks <= 12; weeks++ {
		cfg := ExpandConfig{Location: time.UTC, RangeStart: model.MustParseDate("2024-02-05"), RangeEnd: model.MustParseDate("2024-02-05").AddDays(7*weeks - 1)}
		res := Generate(task, cfg, nil)
		require.Len(t, res.Occurrences, 2*weeks)
		for i := 1; i < len(res.Occurrences); i++ {
			assert.True(t, res.Occurrences[i-1].Date.Before(res.Occurrences[i].Date))
		}
	}
}

func TestGenerateAnchorOutsideRuleIsNotForced(t *testing.T) {
	due := model.MustParseDate("2024-01-02") // Tuesday
	task := model.Task{ID: "tue", Title: "x", DueDate: &due, RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO"}

	res := Generate(task, january(time.UTC), nil)
	assert.Equal(t, []string{"2024-01-08", "2024-01-15", "2024-01-22", "2024-01-29"}, dates(res.Occurrences))
	for _, occ := range res.Occurrences {
		assert.True(t, occ.Virtual)
	}
}

func TestGenerateCapsOccurrences(t *testing.T) {
	due := model.MustParseDate("2024-01-01")
	task := model.Task{ID: "d", Title: "d", DueDate: &due, RecurrenceRule: "FREQ=DAILY"}

	cfg := january(time.UTC)
	cfg.MaxOccurrences = 10
	res := Generate(task, cfg, nil)
	assert.Len(t, res.Occurrences, 10)
	assert.True(t, res.Truncated)

	cfg.MaxOccurrences = 31
	res = Generate(task, cfg, nil)
	assert.Len(t, res.Occurrences, 31)
	assert.False(t, res.Truncated)
}

func TestOccurs(t *testing.T) {
	task := weeklyMondayTask()
	ok, err := Occurs(task, model.MustParseDate("2024-01-22"), time.UTC)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Occurs(task, model.MustParseDate("2024-01-23"), time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)

	task.RecurrenceRule = "FREQ=WEEKLY;BYDAY=MO\nEXDATE:20240122"
	ok, err = Occurs(task, model.MustParseDate("2024-01-22"), time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)

	task.RecurrenceRule = "nonsense"
	_, err = Occurs(task, model.MustParseDate("2024-01-22"), time.UTC)
	assert.True(t, IsMalformed(err))
}

func TestGenerateKeepsOneOccurrencePerDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	due := model.DateOf(start)
	task := model.Task{ID: "T", Title: "meds", DueDate: &due, StartTime: &start, RecurrenceRule: "FREQ=DAILY;BYHOUR=8,18"}

	res := Generate(task, ExpandConfig{Location: time.UTC, RangeStart: due, RangeEnd: due.AddDays(1)}, nil)
	require.NoError(t, res.RuleErr)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, dates(res.Occurrences))
	assert.False(t, res.Occurrences[0].Virtual)
	assert.Equal(t, "T", res.Occurrences[0].DisplayID)
	assert.True(t, res.Occurrences[1].Virtual)
	assert.NotEqual(t, res.Occurrences[0].DisplayID, res.Occurrences[1].DisplayID)
	for _, occ := range res.Occurrences {
		assert.Equal(t, 8, occ.Task.StartTime.Hour(), "first instant of %s", occ.Date)
	}
}

func TestGenerateSubDailyRuleCapsByDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	due := model.DateOf(start)
	task := model.Task{ID: "h", Title: "stretch", DueDate: &due, StartTime: &start, RecurrenceRule: "FREQ=HOURLY;INTERVAL=6"}

	cfg := ExpandConfig{Location: time.UTC, RangeStart: due, RangeEnd: due.AddDays(2)}
	res := Generate(task, cfg, nil)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, dates(res.Occurrences))
	assert.False(t, res.Truncated)

	cfg.MaxOccurrences = 2
	res = Generate(task, cfg, nil)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, dates(res.Occurrences))
	assert.True(t, res.Truncated)

	ok, err := Occurs(task, model.MustParseDate("2024-01-02"), time.UTC)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateAppliesUTCExclusionInLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	start := time.Date(2024, 1, 14, 22, 0, 0, 0, loc)
	due := model.DateOf(start)
	task := model.Task{
		ID: "late", Title: "late", DueDate: &due, StartTime: &start,
		// 03:00 UTC on the 16th is 22:00 on the 15th in loc.
		RecurrenceRule: "RRULE:FREQ=DAILY\nEXDATE:20240116T030000Z",
	}

	res := Generate(task, ExpandConfig{Location: loc, RangeStart: due, RangeEnd: due.AddDays(2)}, nil)
	assert.Equal(t, []string{"2024-01-14", "2024-01-16"}, dates(res.Occurrences))
}
