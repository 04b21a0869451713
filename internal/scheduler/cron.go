package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lsh-sh/lsh/internal/joberr"
)

// searchHorizon bounds how far ahead NextCronRun will look before
// giving up: 32 days.
const searchHorizon = 32 * 24 * time.Hour

// fieldRange describes the valid bounds for one of the five cron
// fields, used both to validate and to iterate candidate values.
type fieldRange struct {
	min, max int
}

var (
	minuteRange  = fieldRange{0, 59}
	hourRange    = fieldRange{0, 23}
	domRange     = fieldRange{1, 31}
	monthRange   = fieldRange{1, 12}
	weekdayRange = fieldRange{0, 6}
)

// predicate reports whether a single field value satisfies a parsed
// cron field.
type predicate func(v int) bool

// CronSchedule is a parsed five-field cron expression: minute hour
// day-of-month month day-of-week. Building one validates every field
// at parse time, not at fire time.
type CronSchedule struct {
	raw      string
	minute   predicate
	hour     predicate
	dom      predicate
	month    predicate
	weekday  predicate
	domStar  bool
	wdayStar bool
}

// ParseCron parses a standard five-field cron expression. Supported
// field forms: `*`, integer, step `*/N`, range `A-B`, range-with-step
// `A-B/N`, and comma-separated lists of any of the above.
func ParseCron(expr string) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, joberr.InvalidSpec(fmt.Sprintf("cron expression %q must have 5 fields, got %d", expr, len(fields)))
	}

	minute, err := parseField(fields[0], minuteRange)
	if err != nil {
		return nil, joberr.InvalidSpec(fmt.Sprintf("cron minute field: %v", err))
	}
	hour, err := parseField(fields[1], hourRange)
	if err != nil {
		return nil, joberr.InvalidSpec(fmt.Sprintf("cron hour field: %v", err))
	}
	dom, err := parseField(fields[2], domRange)
	if err != nil {
		return nil, joberr.InvalidSpec(fmt.Sprintf("cron day-of-month field: %v", err))
	}
	month, err := parseField(fields[3], monthRange)
	if err != nil {
		return nil, joberr.InvalidSpec(fmt.Sprintf("cron month field: %v", err))
	}
	weekday, err := parseField(fields[4], weekdayRange)
	if err != nil {
		return nil, joberr.InvalidSpec(fmt.Sprintf("cron weekday field: %v", err))
	}

	return &CronSchedule{
		raw:      expr,
		minute:   minute,
		hour:     hour,
		dom:      dom,
		month:    month,
		weekday:  weekday,
		domStar:  strings.TrimSpace(fields[2]) == "*",
		wdayStar: strings.TrimSpace(fields[4]) == "*",
	}, nil
}

func (c *CronSchedule) String() string { return c.raw }

// matches applies the POSIX cron rule that when both day-of-month and
// day-of-weekday are restricted (neither is "*"), a minute matches if
// EITHER matches, not both.
func (c *CronSchedule) matches(t time.Time) bool {
	if !c.minute(t.Minute()) || !c.hour(t.Hour()) || !c.month(int(t.Month())) {
		return false
	}
	domMatch := c.dom(t.Day())
	wdayMatch := c.weekday(int(t.Weekday()))
	if c.domStar || c.wdayStar {
		return domMatch && wdayMatch
	}
	return domMatch || wdayMatch
}

// NextRun returns the earliest minute boundary >= from matching the
// expression, or false if none is found within the search horizon.
func (c *CronSchedule) NextRun(from time.Time) (time.Time, bool) {
	t := from.Truncate(time.Minute)
	if t.Before(from) {
		t = t.Add(time.Minute)
	}
	deadline := from.Add(searchHorizon)
	for !t.After(deadline) {
		if c.matches(t) {
			return t, true
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, false
}

// parseField builds a predicate for one comma-separated cron field.
func parseField(field string, r fieldRange) (predicate, error) {
	parts := strings.Split(field, ",")
	preds := make([]predicate, 0, len(parts))
	for _, part := range parts {
		p, err := parseFieldPart(part, r)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return func(v int) bool {
		for _, p := range preds {
			if p(v) {
				return true
			}
		}
		return false
	}, nil
}

func parseFieldPart(part string, r fieldRange) (predicate, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return nil, fmt.Errorf("empty field component")
	}

	// step form: BASE/N, where BASE is "*" or "A-B"
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		base, stepStr := part[:idx], part[idx+1:]
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step in %q", part)
		}
		lo, hi := r.min, r.max
		if base != "*" {
			var err error
			lo, hi, err = parseRange(base, r)
			if err != nil {
				return nil, err
			}
		}
		return func(v int) bool {
			return v >= lo && v <= hi && (v-lo)%step == 0
		}, nil
	}

	if part == "*" {
		return func(v int) bool { return true }, nil
	}

	if strings.ContainsRune(part, '-') {
		lo, hi, err := parseRange(part, r)
		if err != nil {
			return nil, err
		}
		return func(v int) bool { return v >= lo && v <= hi }, nil
	}

	n, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid field value %q", part)
	}
	if err := validateBounds(n, r); err != nil {
		return nil, err
	}
	return func(v int) bool { return v == n }, nil
}

func parseRange(part string, r fieldRange) (int, int, error) {
	bounds := strings.SplitN(part, "-", 2)
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("invalid range %q", part)
	}
	lo, err := strconv.Atoi(bounds[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q", part)
	}
	hi, err := strconv.Atoi(bounds[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q", part)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("range start after end in %q", part)
	}
	if err := validateBounds(lo, r); err != nil {
		return 0, 0, err
	}
	if err := validateBounds(hi, r); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func validateBounds(n int, r fieldRange) error {
	if n < r.min || n > r.max {
		return fmt.Errorf("value %d out of range [%d, %d]", n, r.min, r.max)
	}
	return nil
}
