package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RepeatType is the cadence of a recurring task.
type RepeatType string

const (
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
	RepeatCustom  RepeatType = "custom"
)

// RepeatPattern describes how a task repeats. It is stored and displayed
// as-is; nothing expands it into concrete occurrences.
type RepeatPattern struct {
	Type       RepeatType     `json:"type" validate:"required,oneof=daily weekly monthly yearly custom"`
	Interval   int            `json:"interval" validate:"min=1"`
	EndDate    *time.Time     `json:"endDate,omitempty"`
	DaysOfWeek []time.Weekday `json:"daysOfWeek,omitempty" validate:"dive,min=0,max=6"`
}

var errRepeatInterval = errors.New("repeat interval must be at least 1")

// ParseRepeatType accepts the cadence names, case-insensitively.
func ParseRepeatType(raw string) (RepeatType, error) {
	t := RepeatType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly, RepeatCustom:
		return t, nil
	}
	return "", fmt.Errorf("unknown repeat type %q", raw)
}

func (r RepeatPattern) Validate() error {
	if _, err := ParseRepeatType(string(r.Type)); err != nil {
		return err
	}
	if r.Interval < 1 {
		return errRepeatInterval
	}
	for _, d := range r.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d)
		}
	}
	return nil
}

func (r RepeatPattern) Clone() RepeatPattern {
	out := r
	if r.EndDate != nil {
		e := *r.EndDate
		out.EndDate = &e
	}
	if r.DaysOfWeek != nil {
		out.DaysOfWeek = append([]time.Weekday(nil), r.DaysOfWeek...)
	}
	return out
}

var repeatUnits = map[RepeatType]string{
	RepeatDaily:   "day",
	RepeatWeekly:  "week",
	RepeatMonthly: "month",
	RepeatYearly:  "year",
}

// String renders the pattern for display, e.g. "Every 2 weeks on Mon, Thu until Mar 1, 2026".
func (r RepeatPattern) String() string {
	var sb strings.Builder
	unit, ok := repeatUnits[r.Type]
	switch {
	case !ok:
		sb.WriteString("Custom")
		if r.Interval > 1 {
			fmt.Fprintf(&sb, " (every %d)", r.Interval)
		}
	case r.Interval > 1:
		fmt.Fprintf(&sb, "Every %d %ss", r.Interval, unit)
	default:
		sb.WriteString("Every " + unit)
	}

	if len(r.DaysOfWeek) > 0 {
		days := append([]time.Weekday(nil), r.DaysOfWeek...)
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, d.String()[:3])
		}
		sb.WriteString(" on " + strings.Join(names, ", "))
	}

	if r.EndDate != nil {
		sb.WriteString(" until " + r.EndDate.Format("Jan 2, 2006"))
	}
	return sb.String()
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekdays reads a comma-separated list of day names. Only the first
// three letters count, so "monday" and "Mon" are the same.
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if len(part) > 3 {
			part = part[:3]
		}
		d, ok := weekdayNames[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

// ParseRepeat reads "<type> [interval] [days]", e.g. "weekly 2 mon,thu".
// Empty input, "no" and "none" mean the task does not repeat.
func ParseRepeat(text string) (*RepeatPattern, error) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 || fields[0] == "no" || fields[0] == "none" {
		return nil, nil
	}
	typ, err := ParseRepeatType(fields[0])
	if err != nil {
		return nil, err
	}
	pattern := &RepeatPattern{Type: typ, Interval: 1}
	rest := fields[1:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			pattern.Interval = n
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		days, err := ParseWeekdays(strings.Join(rest, ","))
		if err != nil {
			return nil, err
		}
		pattern.DaysOfWeek = days
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	return pattern, nil
}
