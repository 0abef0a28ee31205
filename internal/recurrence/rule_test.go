package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

func TestParseExposesRuleFields(t *testing.T) {
	spec, err := ParseInLocation("RRULE:FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=15;COUNT=6\nEXDATE;VALUE=DATE:20240415,20240215", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, rrule.MONTHLY, spec.Freq)
	assert.Equal(t, 2, spec.Interval)
	assert.Equal(t, 6, spec.Count)
	assert.Nil(t, spec.Until)
	day, ok := spec.Value("bymonthday")
	assert.True(t, ok)
	assert.Equal(t, "15", day)
	assert.Equal(t, []model.LocalDate{model.MustParseDate("2024-02-15"), model.MustParseDate("2024-04-15")}, spec.ExDates)
	assert.True(t, spec.IsExcluded(model.MustParseDate("2024-04-15")))
	assert.False(t, spec.IsExcluded(model.MustParseDate("2024-03-15")))
}

func TestParseDefaultsIntervalAndReadsUntil(t *testing.T) {
	spec, err := ParseInLocation("FREQ=DAILY;UNTIL=20240110T120000Z", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Interval)
	require.NotNil(t, spec.Until)
	assert.True(t, spec.Until.Equal(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)))
}

func TestParseRejectsMalformedRules(t *testing.T) {
	cases := []string{
		"FREQ=FORTNIGHTLY",
		"FREQ=WEEKLY;BYDAY",
		"INTERVAL=2",
		"FREQ=DAILY;;",
		"RRULE:FREQ=DAILY\nRRULE:FREQ=WEEKLY",
		"FREQ=DAILY\nEXDATE:2024",
		"DTSTART:20240101T000000Z",
	}
	for _, in := range cases {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformedRule, "input %q", in)
	}

	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrNoRule)
}

func TestParseSerializeRoundTrip(t *testing.T) {
	inputs := []string{
		"FREQ=WEEKLY;BYDAY=MO",
		"RRULE:FREQ=DAILY;INTERVAL=3",
		"FREQ=MONTHLY;BYDAY=-1FR;COUNT=4",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE\nEXDATE;VALUE=DATE:20240103,20240101",
		"DTSTART:20240101T090000Z\nRRULE:FREQ=YEARLY;UNTIL=20300101T000000Z",
		"FREQ=WEEKLY;WKST=SU;BYDAY=TU\r\nEXDATE:20240102T090000Z",
	}
	for _, in := range inputs {
		spec, err := ParseInLocation(in, time.UTC)
		require.NoError(t, err, in)

		again, err := ParseInLocation(spec.String(), time.UTC)
		require.NoError(t, err, in)
		assert.Equal(t, spec, again, "round trip of %q", in)
	}
}

func TestSerializeKeepsBareSingleLineRule(t *testing.T) {
	spec, err := Parse("FREQ=WEEKLY;BYDAY=MO")
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", spec.String())
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", spec.RRule())
}

func TestAddExclusionDate(t *testing.T) {
	once, err := AddExclusionDate("FREQ=WEEKLY;BYDAY=MO", model.MustParseDate("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;BYDAY=MO\nEXDATE;VALUE=DATE:20240115", once)

	twice, err := AddExclusionDate(once, model.MustParseDate("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	more, err := AddExclusionDate(once, model.MustParseDate("2024-01-08"))
	require.NoError(t, err)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;BYDAY=MO\nEXDATE;VALUE=DATE:20240108,20240115", more)

	_, err = AddExclusionDate("", model.MustParseDate("2024-01-08"))
	assert.ErrorIs(t, err, ErrNoRule)
}

func TestAddUntilBoundReplacesCountAndUntil(t *testing.T) {
	until := time.Date(2024, 1, 14, 23, 59, 59, 0, time.UTC)

	capped, err := AddUntilBound("FREQ=DAILY;COUNT=30;BYHOUR=9", until)
	require.NoError(t, err)
	assert.Equal(t, "FREQ=DAILY;BYHOUR=9;UNTIL=20240114T235959Z", capped)

	replaced, err := AddUntilBound("FREQ=WEEKLY;UNTIL=20250101T000000Z;BYDAY=MO", until)
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;UNTIL=20240114T235959Z;BYDAY=MO", replaced)

	withEx, err := AddUntilBound("RRULE:FREQ=WEEKLY\nEXDATE;VALUE=DATE:20240108", until)
	require.NoError(t, err)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;UNTIL=20240114T235959Z\nEXDATE;VALUE=DATE:20240108", withEx)

	_, err = AddUntilBound("FREQ=NEVER", until)
	assert.ErrorIs(t, err, ErrMalformedRule)
}

func TestParseResolvesDateTimeExclusionsInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)

	spec, err := ParseInLocation("FREQ=DAILY\nEXDATE:20240116T030000Z", loc)
	require.NoError(t, err)
	assert.Equal(t, []model.LocalDate{model.MustParseDate("2024-01-15")}, spec.ExDates)

	spec, err = ParseInLocation("FREQ=DAILY\nEXDATE:20240116T030000Z", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []model.LocalDate{model.MustParseDate("2024-01-16")}, spec.ExDates)

	spec, err = ParseInLocation("FREQ=DAILY\nEXDATE:20240115T230000", loc)
	require.NoError(t, err)
	assert.Equal(t, []model.LocalDate{model.MustParseDate("2024-01-15")}, spec.ExDates)

	_, err = ParseInLocation("FREQ=DAILY\nEXDATE;TZID=Nowhere/Special:20240115T230000", loc)
	assert.ErrorIs(t, err, ErrMalformedRule)

	rule, err := AddExclusionDateInLocation("RRULE:FREQ=DAILY\nEXDATE:20240116T030000Z", model.MustParseDate("2024-01-20"), loc)
	require.NoError(t, err)
	assert.Equal(t, "RRULE:FREQ=DAILY\nEXDATE;VALUE=DATE:20240115,20240120", rule)
}
