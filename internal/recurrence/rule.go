package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

const untilLayout = "20060102T150405Z"

var (
	// ErrMalformedRule is returned when a rule string cannot be tokenized
	// by the RRULE grammar.
	ErrMalformedRule = errors.New("recurrence: malformed rule")
	// ErrNoRule is a caller bug: rule mutations need a recurring task.
	ErrNoRule = errors.New("recurrence: empty rule")
	// ErrSeriesEnded is returned when a split date lies after the last
	// instant of a COUNT or UNTIL bounded series.
	ErrSeriesEnded = errors.New("recurrence: series ends before date")
)

// Part is one KEY=VALUE token of the RRULE line, kept byte-for-byte.
type Part struct {
	Key string
	Raw string
}

func (p Part) Value() string {
	_, v, _ := strings.Cut(p.Raw, "=")
	return v
}

// RuleSpec is a parsed rule string. The RRULE tokens are kept verbatim so
// that mutations only touch what they have to.
type RuleSpec struct {
	Freq     rrule.Frequency
	Interval int
	Count    int
	Until    *time.Time
	ExDates  []model.LocalDate

	parts    []Part
	extra    []string
	prefixed bool
	opt      rrule.ROption
}

// Parse reads a rule string, resolving floating UNTIL values in time.Local.
func Parse(rule string) (RuleSpec, error) {
	return ParseInLocation(rule, time.Local)
}

// ParseInLocation accepts either a bare RRULE value
// ("FREQ=WEEKLY;BYDAY=MO") or a multi-line property block with RRULE,
// EXDATE and other lines. Unknown property lines are preserved verbatim.
func ParseInLocation(rule string, loc *time.Location) (RuleSpec, error) {
	if loc == nil {
		loc = time.Local
	}
	normalized := strings.ReplaceAll(rule, "\r\n", "\n")
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(normalized, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return RuleSpec{}, ErrNoRule
	}

	var spec RuleSpec
	ruleLine := ""
	hasRule := false
	for _, line := range lines {
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "RRULE:"):
			if hasRule {
				return RuleSpec{}, fmt.Errorf("%w: more than one RRULE line", ErrMalformedRule)
			}
			ruleLine, hasRule = line[len("RRULE:"):], true
			spec.prefixed = true
		case strings.HasPrefix(upper, "EXDATE"):
			dates, err := parseExDateLine(line, loc)
			if err != nil {
				return RuleSpec{}, err
			}
			spec.ExDates = append(spec.ExDates, dates...)
		case strings.HasPrefix(upper, "FREQ=") || !strings.Contains(line, ":"):
			if hasRule {
				return RuleSpec{}, fmt.Errorf("%w: more than one RRULE line", ErrMalformedRule)
			}
			ruleLine, hasRule = line, true
		default:
			spec.extra = append(spec.extra, line)
		}
	}
	if !hasRule {
		return RuleSpec{}, fmt.Errorf("%w: no RRULE in %q", ErrMalformedRule, rule)
	}
	if len(lines) > 1 {
		spec.prefixed = true
	}

	for _, tok := range strings.Split(ruleLine, ";") {
		key, _, ok := strings.Cut(tok, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return RuleSpec{}, fmt.Errorf("%w: bad token %q", ErrMalformedRule, tok)
		}
		spec.parts = append(spec.parts, Part{Key: strings.ToUpper(strings.TrimSpace(key)), Raw: tok})
	}
	if _, ok := spec.Value("FREQ"); !ok {
		return RuleSpec{}, fmt.Errorf("%w: FREQ is required", ErrMalformedRule)
	}

	opt, err := rrule.StrToROptionInLocation(ruleLine, loc)
	if err != nil {
		return RuleSpec{}, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	spec.opt = *opt
	spec.Freq = opt.Freq
	spec.Interval = opt.Interval
	if spec.Interval <= 0 {
		spec.Interval = 1
	}
	spec.Count = opt.Count
	if !opt.Until.IsZero() {
		until := opt.Until
		spec.Until = &until
	}
	spec.ExDates = normalizeDates(spec.ExDates)
	return spec, nil
}

// Value returns the verbatim value of an RRULE key such as BYDAY.
func (s RuleSpec) Value(key string) (string, bool) {
	key = strings.ToUpper(key)
	for _, p := range s.parts {
		if p.Key == key {
			return p.Value(), true
		}
	}
	return "", false
}

func (s RuleSpec) Parts() []Part {
	return append([]Part(nil), s.parts...)
}

func (s RuleSpec) IsExcluded(date model.LocalDate) bool {
	i := sort.Search(len(s.ExDates), func(i int) bool { return !s.ExDates[i].Before(date) })
	return i < len(s.ExDates) && s.ExDates[i] == date
}

// RRule returns only the RRULE value, without EXDATE or other lines.
func (s RuleSpec) RRule() string {
	raws := make([]string, 0, len(s.parts))
	for _, p := range s.parts {
		raws = append(raws, p.Raw)
	}
	return strings.Join(raws, ";")
}

// String serializes the spec. A lone rule keeps its original bare or
// prefixed form; once other lines exist the RRULE: prefix is always written.
func (s RuleSpec) String() string {
	multi := len(s.extra) > 0 || len(s.ExDates) > 0
	lines := make([]string, 0, len(s.extra)+2)
	lines = append(lines, s.extra...)
	if s.prefixed || multi {
		lines = append(lines, "RRULE:"+s.RRule())
	} else {
		lines = append(lines, s.RRule())
	}
	if len(s.ExDates) > 0 {
		vals := make([]string, 0, len(s.ExDates))
		for _, d := range s.ExDates {
			vals = append(vals, d.Compact())
		}
		lines = append(lines, "EXDATE;VALUE=DATE:"+strings.Join(vals, ","))
	}
	return strings.Join(lines, "\n")
}

// Option returns the rrule-go option set for this rule anchored at dtstart.
func (s RuleSpec) Option(dtstart time.Time) rrule.ROption {
	opt := s.opt
	opt.Dtstart = dtstart
	return opt
}

func (s RuleSpec) withoutKeys(keys ...string) RuleSpec {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	out := s
	out.parts = make([]Part, 0, len(s.parts))
	for _, p := range s.parts {
		if !drop[p.Key] {
			out.parts = append(out.parts, p)
		}
	}
	return out
}

// withPart replaces the first token for key in place, or appends it.
func (s RuleSpec) withPart(key, value string) RuleSpec {
	out := s
	out.parts = make([]Part, 0, len(s.parts)+1)
	replaced := false
	for _, p := range s.parts {
		if p.Key == key {
			if replaced {
				continue
			}
			out.parts = append(out.parts, Part{Key: key, Raw: key + "=" + value})
			replaced = true
			continue
		}
		out.parts = append(out.parts, p)
	}
	if !replaced {
		out.parts = append(out.parts, Part{Key: key, Raw: key + "=" + value})
	}
	return out
}

// AddExclusionDate adds date to the rule's EXDATE set. Adding a date that is
// already excluded returns rule unchanged.
func AddExclusionDate(rule string, date model.LocalDate) (string, error) {
	return AddExclusionDateInLocation(rule, date, time.Local)
}

// AddExclusionDateInLocation is AddExclusionDate with existing DATE-TIME
// exclusions resolved to days in loc.
func AddExclusionDateInLocation(rule string, date model.LocalDate, loc *time.Location) (string, error) {
	spec, err := ParseInLocation(rule, loc)
	if err != nil {
		return "", err
	}
	if spec.IsExcluded(date) {
		return rule, nil
	}
	spec.ExDates = normalizeDates(append(append([]model.LocalDate(nil), spec.ExDates...), date))
	return spec.String(), nil
}

// AddUntilBound caps the rule at the inclusive instant until, replacing any
// earlier UNTIL or COUNT.
func AddUntilBound(rule string, until time.Time) (string, error) {
	return AddUntilBoundInLocation(rule, until, time.Local)
}

// AddUntilBoundInLocation is AddUntilBound with the rule read in loc.
func AddUntilBoundInLocation(rule string, until time.Time, loc *time.Location) (string, error) {
	spec, err := ParseInLocation(rule, loc)
	if err != nil {
		return "", err
	}
	capped := spec.withoutKeys("COUNT").withPart("UNTIL", until.UTC().Format(untilLayout))
	if _, err := ParseInLocation(capped.String(), loc); err != nil {
		return "", err
	}
	return capped.String(), nil
}

// parseExDateLine reads the exclusion days of one EXDATE line. DATE values
// are taken as written; DATE-TIME values are converted to loc first, with
// floating values read in the line's TZID or else in loc.
func parseExDateLine(line string, loc *time.Location) ([]model.LocalDate, error) {
	params, values, ok := strings.Cut(line, ":")
	if !ok {
		return nil, fmt.Errorf("%w: bad EXDATE line %q", ErrMalformedRule, line)
	}
	floating := loc
	for _, p := range strings.Split(params, ";")[1:] {
		key, val, _ := strings.Cut(p, "=")
		if strings.EqualFold(strings.TrimSpace(key), "TZID") {
			tz, err := time.LoadLocation(strings.Trim(strings.TrimSpace(val), `"`))
			if err != nil {
				return nil, fmt.Errorf("%w: bad EXDATE TZID %q", ErrMalformedRule, val)
			}
			floating = tz
		}
	}

	out := make([]model.LocalDate, 0, 1)
	for _, v := range strings.Split(values, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		var (
			t   time.Time
			err error
		)
		switch {
		case len(v) == len("20060102"):
			t, err = time.Parse("20060102", v)
			if err == nil {
				out = append(out, model.DateOf(t))
				continue
			}
		case strings.HasSuffix(strings.ToUpper(v), "Z"):
			t, err = time.Parse(untilLayout, strings.ToUpper(v))
		default:
			t, err = time.ParseInLocation("20060102T150405", v, floating)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bad EXDATE value %q", ErrMalformedRule, v)
		}
		out = append(out, model.DateOf(t.In(loc)))
	}
	return out, nil
}

func normalizeDates(in []model.LocalDate) []model.LocalDate {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Before(in[j]) })
	out := in[:1]
	for _, d := range in[1:] {
		if d != out[len(out)-1] {
			out = append(out, d)
		}
	}
	return out
}
