package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"taskbook/internal/model"
)

// UpcomingDays is how far ahead the upcoming view looks, inclusive.
const UpcomingDays = 7

// civilDay identifies a calendar day in some location, independent of DST.
type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time, loc *time.Location) civilDay {
	y, m, d := t.In(loc).Date()
	return civilDay{y, m, d}
}

// ordinal counts days since the epoch so civil days can be compared and subtracted.
func (c civilDay) ordinal() int64 {
	return time.Date(c.year, c.month, c.day, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Today returns the tasks due on now's calendar day in now's location.
func Today(tasks []model.Task, now time.Time) []model.Task {
	return OnDay(tasks, now)
}

// Upcoming returns tasks due after today and no later than UpcomingDays days from today.
func Upcoming(tasks []model.Task, now time.Time) []model.Task {
	loc := now.Location()
	today := dayOf(now, loc).ordinal()
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		diff := dayOf(*t.DueDate, loc).ordinal() - today
		if diff > 0 && diff <= UpcomingDays {
			out = append(out, t)
		}
	}
	return out
}

// OnDay returns the tasks whose due date falls on day's calendar day, in day's location.
func OnDay(tasks []model.Task, day time.Time) []model.Task {
	loc := day.Location()
	want := dayOf(day, loc)
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.DueDate != nil && dayOf(*t.DueDate, loc) == want {
			out = append(out, t)
		}
	}
	return out
}

// DayCounts maps each day of month's calendar month to the number of tasks due that day.
// Days without tasks are absent.
func DayCounts(tasks []model.Task, month time.Time) map[int]int {
	loc := month.Location()
	y, m, _ := month.In(loc).Date()
	counts := make(map[int]int)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		d := dayOf(*t.DueDate, loc)
		if d.year == y && d.month == m {
			counts[d.day]++
		}
	}
	return counts
}

// CompletionRatio is completed/total, 0 for an empty collection.
func CompletionRatio(tasks []model.Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	r := float64(done) / float64(len(tasks))
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// CountByCategory counts tasks per scalar category id. Uncategorized tasks are keyed by "".
func CountByCategory(tasks []model.Task) map[string]int {
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[t.Category]++
	}
	return counts
}

// SortKey selects the ordering applied by Query.
type SortKey string

const (
	SortNone     SortKey = ""
	SortDue      SortKey = "due"
	SortPriority SortKey = "priority"
	SortAlpha    SortKey = "alpha"
	SortCreated  SortKey = "created"
)

// ParseSortKey accepts the canonical names plus a few long forms.
func ParseSortKey(raw string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return SortNone, nil
	case "due", "duedate", "due_date", "date":
		return SortDue, nil
	case "priority", "prio":
		return SortPriority, nil
	case "alpha", "alphabetical", "title", "name":
		return SortAlpha, nil
	case "created", "createdat", "created_at", "newest":
		return SortCreated, nil
	}
	return SortNone, fmt.Errorf("unknown sort key %q (want due, priority, alpha or created)", raw)
}

// Query filters by search text and completion state, then sorts by one key.
type Query struct {
	Search    string
	Completed *bool // nil shows everything
	Sort      SortKey
	Locale    language.Tag
}

// Apply returns a new slice; tasks is not modified.
func (q Query) Apply(tasks []model.Task) []model.Task {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if needle != "" && !matches(t, needle) {
			continue
		}
		if q.Completed != nil && t.Completed != *q.Completed {
			continue
		}
		out = append(out, t)
	}
	SortTasks(out, q.Sort, q.Locale)
	return out
}

func matches(t model.Task, needle string) bool {
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// SortTasks sorts in place. The sort is stable, so ties keep input order.
func SortTasks(tasks []model.Task, key SortKey, locale language.Tag) {
	switch key {
	case SortDue:
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueDate, tasks[j].DueDate
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			}
			return a.Before(*b)
		})
	case SortPriority:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
		})
	case SortAlpha:
		// Collators keep scratch buffers, so each sort gets its own.
		col := collate.New(locale, collate.IgnoreCase)
		sort.SliceStable(tasks, func(i, j int) bool {
			return col.CompareString(tasks[i].Title, tasks[j].Title) < 0
		})
	case SortCreated:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		})
	}
}
