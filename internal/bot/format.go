package bot

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"taskbook/internal/model"
	"taskbook/internal/service"
)

const (
	iconDefault    = "🟢"
	iconDone       = "✅"
	iconDue        = "⏳"
	iconOverdue    = "⚠️"
	iconRecurring  = "♻️"
	noCategory     = "No category"
	missingCat     = "Deleted category"
	shortIDLen     = 8
)

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// parseCategoryArgs reads "<name words> <#color> [icon]".
func parseCategoryArgs(args string) (model.CategoryInput, error) {
	fields := strings.Fields(args)
	for i, f := range fields {
		if strings.HasPrefix(f, "#") {
			if i == 0 {
				break
			}
			return model.CategoryInput{
				Name:  strings.Join(fields[:i], " "),
				Color: f,
				Icon:  strings.Join(fields[i+1:], " "),
			}, nil
		}
	}
	return model.CategoryInput{}, errors.New("expected: <name> <#color> [icon]")
}

func formatDue(due time.Time, now time.Time, completed bool) (string, string) {
	d := due.In(now.Location())
	label := d.Format(service.DateLayout)
	if d.Hour() != 0 || d.Minute() != 0 {
		label = d.Format(service.DateTimeLayout)
	}
	switch {
	case completed:
		return iconDone, label
	case now.After(d):
		return iconOverdue, label + " — <b>overdue</b>"
	case d.Sub(now) <= 48*time.Hour:
		return iconDue, label
	}
	return iconDefault, label
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	var dueLine string
	if task.DueDate != nil {
		icon, dueLine = formatDue(*task.DueDate, now, task.Completed)
	} else if task.Completed {
		icon = iconDone
	}
	if task.Symbol != "" {
		icon = escape(task.Symbol)
	}

	title := escape(normalizeTitle(task.Title))
	if task.Completed {
		title = "<s>" + title + "</s>"
	}
	b.WriteString(fmt.Sprintf("%s <code>%s</code> %s", icon, shortID(task.ID), title))
	if label := task.Priority.Label(); label != "" {
		b.WriteString(fmt.Sprintf(" · %s", label))
	}
	b.WriteByte('\n')
	if dueLine != "" {
		b.WriteString(fmt.Sprintf("   ⏰ Due: %s\n", dueLine))
	}
	if task.Repeat != nil {
		b.WriteString(fmt.Sprintf("   %s %s\n", iconRecurring, escape(task.Repeat.String())))
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	return b.String()
}

type taskGroup struct {
	Name  string
	Tasks []model.Task
}

// groupByCategory buckets tasks by their category name. Uncategorized tasks go
// last, tasks whose category no longer exists just before them.
func groupByCategory(tasks []model.Task, cats []model.Category, locale language.Tag) []taskGroup {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = strings.TrimSpace(c.Name)
	}

	const (
		rankNamed = iota
		rankMissing
		rankNone
	)
	type bucket struct {
		group taskGroup
		rank  int
	}
	buckets := make(map[string]*bucket)
	var order []string
	for _, t := range tasks {
		key, name, rank := t.Category, "", rankNamed
		switch n, ok := names[t.Category]; {
		case t.Category == "":
			name, rank = noCategory, rankNone
		case !ok:
			key, name, rank = "\x00missing", missingCat, rankMissing
		default:
			name = n
		}
		bk, ok := buckets[key]
		if !ok {
			bk = &bucket{group: taskGroup{Name: name}, rank: rank}
			buckets[key] = bk
			order = append(order, key)
		}
		bk.group.Tasks = append(bk.group.Tasks, t)
	}

	col := collate.New(locale, collate.IgnoreCase)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := buckets[order[i]], buckets[order[j]]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return col.CompareString(a.group.Name, b.group.Name) < 0
	})

	out := make([]taskGroup, 0, len(order))
	for _, key := range order {
		out = append(out, buckets[key].group)
	}
	return out
}

func categoryLine(c model.Category, count int) string {
	return fmt.Sprintf("• %s <b>%s</b> <code>%s</code> (%s) — %d task(s)\n",
		escape(c.IconOrDefault()), escape(c.Name), shortID(c.ID), escape(c.Color), count)
}
