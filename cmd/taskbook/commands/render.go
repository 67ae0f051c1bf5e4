package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"taskbook/internal/model"
	"taskbook/internal/service"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func categoryLabel(id string, names map[string]string) string {
	if id == "" {
		return "-"
	}
	if name, ok := names[id]; ok {
		return name
	}
	return "(deleted)"
}

func dueLabel(due *time.Time, loc *time.Location) string {
	if due == nil {
		return "-"
	}
	d := due.In(loc)
	if d.Hour() == 0 && d.Minute() == 0 {
		return d.Format(service.DateLayout)
	}
	return d.Format(service.DateTimeLayout)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeTasks(w io.Writer, tasks []model.Task, cats []model.Category, loc *time.Location) error {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDONE\tDUE\tPRIORITY\tCATEGORY\tTITLE\tREPEAT")
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		priority := t.Priority.Label()
		if priority == "" {
			priority = "-"
		}
		repeat := "-"
		if t.Repeat != nil {
			repeat = t.Repeat.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(t.ID), done, dueLabel(t.DueDate, loc), priority, categoryLabel(t.Category, names), t.Title, repeat)
	}
	return tw.Flush()
}

func writeCategories(w io.Writer, cats []model.Category, counts map[string]int) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tICON\tTASKS")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", shortID(c.ID), c.Name, c.Color, c.IconOrDefault(), counts[c.ID])
	}
	return tw.Flush()
}

func writeTask(w io.Writer, t model.Task, loc *time.Location) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "id:\t%s\n", t.ID)
	fmt.Fprintf(tw, "title:\t%s\n", t.Title)
	fmt.Fprintf(tw, "completed:\t%t\n", t.Completed)
	fmt.Fprintf(tw, "due:\t%s\n", dueLabel(t.DueDate, loc))
	if t.Priority != model.PriorityNone {
		fmt.Fprintf(tw, "priority:\t%s\n", t.Priority.Label())
	}
	if t.Category != "" {
		fmt.Fprintf(tw, "category:\t%s\n", t.Category)
	}
	if t.Repeat != nil {
		fmt.Fprintf(tw, "repeat:\t%s\n", t.Repeat.String())
	}
	if t.Description != "" {
		fmt.Fprintf(tw, "description:\t%s\n", t.Description)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
