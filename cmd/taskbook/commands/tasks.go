package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"taskbook/internal/model"
	"taskbook/internal/service"
)

const (
	viewAll      = "all"
	viewToday    = "today"
	viewUpcoming = "upcoming"
)

type listOptions struct {
	view      string
	day       string
	search    string
	completed *bool
	sort      string
	locale    language.Tag
}

// selectTasks narrows tasks to one view and then applies search, completion
// filter and sort. A day overrides the view.
func selectTasks(tasks []model.Task, opts listOptions, now time.Time) ([]model.Task, error) {
	switch {
	case opts.day != "":
		day, err := service.ParseDate(opts.day, now)
		if err != nil {
			return nil, fmt.Errorf("--day: %w", err)
		}
		tasks = service.OnDay(tasks, day)
	case opts.view == viewToday:
		tasks = service.Today(tasks, now)
	case opts.view == viewUpcoming:
		tasks = service.Upcoming(tasks, now)
	case opts.view == "" || opts.view == viewAll:
	default:
		return nil, fmt.Errorf("unknown view %q (want %s, %s or %s)", opts.view, viewAll, viewToday, viewUpcoming)
	}

	key, err := service.ParseSortKey(opts.sort)
	if err != nil {
		return nil, err
	}
	q := service.Query{Search: opts.search, Completed: opts.completed, Sort: key, Locale: opts.locale}
	return q.Apply(tasks), nil
}

// NewTasksCommand lists tasks.
func NewTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			opts := listOptions{locale: a.cfg.App.LanguageTag()}
			opts.view, _ = flags.GetString("view")
			opts.day, _ = flags.GetString("day")
			opts.search, _ = flags.GetString("search")
			opts.sort, _ = flags.GetString("sort")
			if flags.Changed("completed") {
				v, _ := flags.GetBool("completed")
				opts.completed = &v
			}

			tasks, err := selectTasks(a.store.Tasks(), opts, a.now())
			if err != nil {
				return err
			}
			if asJSON, _ := flags.GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			return writeTasks(cmd.OutOrStdout(), tasks, a.store.Categories(), a.loc)
		}),
	}

	cmd.Flags().String("view", viewAll, "Which tasks to show (all, today, upcoming)")
	cmd.Flags().String("day", "", "Only tasks due on this day (YYYY-MM-DD, today, tomorrow)")
	cmd.Flags().String("search", "", "Case-insensitive text to look for in title and description")
	cmd.Flags().Bool("completed", false, "Only completed tasks (--completed=false for open ones)")
	cmd.Flags().String("sort", "due", "Sort order (due, priority, alpha, created)")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

func addTaskFlags(cmd *cobra.Command) {
	cmd.Flags().String("description", "", "Longer description")
	cmd.Flags().String("due", "", "Due date (YYYY-MM-DD, YYYY-MM-DD HH:MM, today, tomorrow)")
	cmd.Flags().String("reminder", "", "Reminder time, same formats as --due")
	cmd.Flags().String("priority", "", "Priority (low, medium, high, none)")
	cmd.Flags().String("repeat", "", `Repeat pattern, e.g. "daily" or "weekly 2 mon,thu"`)
	cmd.Flags().String("notes", "", "Free-form notes")
	cmd.Flags().String("symbol", "", "Display symbol")
}

// NewAddCommand creates a task.
func NewAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			in, err := taskInputFromFlags(cmd, strings.Join(args, " "), a.now())
			if err != nil {
				return err
			}
			if raw, _ := cmd.Flags().GetString("category"); raw != "" {
				id, err := a.resolveCategory(raw)
				if err != nil {
					return err
				}
				in.Category = id
			}

			task, err := a.store.AddTask(ctx, in)
			if err != nil {
				return err
			}
			return writeTask(cmd.OutOrStdout(), *task, a.loc)
		}),
	}
	addTaskFlags(cmd)
	cmd.Flags().String("category", "", "Category id, id prefix or name")
	return cmd
}

func taskInputFromFlags(cmd *cobra.Command, title string, now time.Time) (model.TaskInput, error) {
	flags := cmd.Flags()
	in := model.TaskInput{Title: title}
	in.Description, _ = flags.GetString("description")
	in.Notes, _ = flags.GetString("notes")
	in.Symbol, _ = flags.GetString("symbol")

	var err error
	if in.DueDate, err = dateFlag(cmd, "due", now); err != nil {
		return in, err
	}
	if in.ReminderTime, err = dateFlag(cmd, "reminder", now); err != nil {
		return in, err
	}
	if raw, _ := flags.GetString("priority"); raw != "" {
		if in.Priority, err = model.ParsePriority(raw); err != nil {
			return in, err
		}
	}
	if raw, _ := flags.GetString("repeat"); raw != "" {
		if in.Repeat, err = model.ParseRepeat(raw); err != nil {
			return in, fmt.Errorf("--repeat: %w", err)
		}
	}
	return in, nil
}

func dateFlag(cmd *cobra.Command, name string, now time.Time) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	t, err := service.ParseDate(raw, now)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

var clearableFields = map[string]model.TaskField{
	"due":         model.FieldDueDate,
	"reminder":    model.FieldReminderTime,
	"priority":    model.FieldPriority,
	"repeat":      model.FieldRepeat,
	"notes":       model.FieldNotes,
	"description": model.FieldDescription,
	"symbol":      model.FieldSymbol,
}

// taskPatchFromFlags builds a patch from the flags that were actually set.
// "--priority none" and "--repeat none" clear the field.
func taskPatchFromFlags(cmd *cobra.Command, now time.Time) (model.TaskPatch, error) {
	flags := cmd.Flags()
	var patch model.TaskPatch

	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	patch.Title = str("title")
	patch.Description = str("description")
	patch.Notes = str("notes")
	patch.Symbol = str("symbol")

	var err error
	if patch.DueDate, err = dateFlag(cmd, "due", now); err != nil {
		return patch, err
	}
	if patch.ReminderTime, err = dateFlag(cmd, "reminder", now); err != nil {
		return patch, err
	}
	if raw := str("priority"); raw != nil {
		p, err := model.ParsePriority(*raw)
		if err != nil {
			return patch, err
		}
		if p == model.PriorityNone {
			patch.Clear = append(patch.Clear, model.FieldPriority)
		} else {
			patch.Priority = &p
		}
	}
	if raw := str("repeat"); raw != nil {
		r, err := model.ParseRepeat(*raw)
		if err != nil {
			return patch, fmt.Errorf("--repeat: %w", err)
		}
		if r == nil {
			patch.Clear = append(patch.Clear, model.FieldRepeat)
		} else {
			patch.Repeat = r
		}
	}

	names, _ := flags.GetStringSlice("clear")
	for _, name := range names {
		f, ok := clearableFields[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return patch, fmt.Errorf("--clear: unknown field %q", name)
		}
		patch.Clear = append(patch.Clear, f)
	}
	return patch, nil
}

// NewEditCommand changes task fields. Category changes go through assign.
func NewEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <task>",
		Short: "Edit a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := a.resolveTask(args[0])
			if err != nil {
				return err
			}
			patch, err := taskPatchFromFlags(cmd, a.now())
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change")
			}
			task, err := a.store.UpdateTask(ctx, id, patch)
			if err != nil {
				return err
			}
			return writeTask(cmd.OutOrStdout(), *task, a.loc)
		}),
	}
	cmd.Flags().String("title", "", "New title")
	addTaskFlags(cmd)
	cmd.Flags().StringSlice("clear", nil, "Fields to reset (due, reminder, priority, repeat, notes, description, symbol)")
	return cmd
}

func newCompletionCommand(use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := a.resolveTask(args[0])
			if err != nil {
				return err
			}
			task, err := a.store.ToggleCompletion(ctx, id, completed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: completed=%t\n", shortID(task.ID), task.Title, task.Completed)
			return nil
		}),
	}
}

func NewDoneCommand() *cobra.Command {
	return newCompletionCommand("done", "Mark a task as completed", true)
}

func NewReopenCommand() *cobra.Command {
	return newCompletionCommand("reopen", "Mark a task as not completed", false)
}

func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <task>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := a.resolveTask(args[0])
			if err != nil {
				return err
			}
			ok, err := a.store.DeleteTask(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %s was already gone", shortID(id))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", shortID(id))
			return nil
		}),
	}
}

// NewStatsCommand prints completion and view counts.
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completion statistics",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			tasks := a.store.Tasks()
			now := a.now()
			done := 0
			for _, t := range tasks {
				if t.Completed {
					done++
				}
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "tasks:\t%d\n", len(tasks))
			fmt.Fprintf(tw, "completed:\t%d (%.0f%%)\n", done, service.CompletionRatio(tasks)*100)
			fmt.Fprintf(tw, "due today:\t%d\n", len(service.Today(tasks, now)))
			fmt.Fprintf(tw, "upcoming (%dd):\t%d\n", service.UpcomingDays, len(service.Upcoming(tasks, now)))
			fmt.Fprintf(tw, "categories:\t%d\n", len(a.store.Categories()))
			return tw.Flush()
		}),
	}
}
