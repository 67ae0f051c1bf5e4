package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/collate"

	"taskbook/internal/model"
	"taskbook/internal/service"
)

func NewCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories with task counts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			cats := a.store.Categories()
			col := collate.New(a.cfg.App.LanguageTag(), collate.IgnoreCase)
			sortByName(cats, col)
			return writeCategories(cmd.OutOrStdout(), cats, service.CountByCategory(a.store.Tasks()))
		}),
	}
}

func sortByName(cats []model.Category, col *collate.Collator) {
	sort.SliceStable(cats, func(i, j int) bool {
		return col.CompareString(cats[i].Name, cats[j].Name) < 0
	})
}

// NewCategoryCommand groups the category management subcommands.
func NewCategoryCommand() *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			color, _ := cmd.Flags().GetString("color")
			icon, _ := cmd.Flags().GetString("icon")
			cat, err := a.store.AddCategory(ctx, model.CategoryInput{
				Name:  strings.Join(args, " "),
				Color: color,
				Icon:  icon,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", cat.ID, cat.Name)
			return nil
		}),
	}
	addCmd.Flags().String("color", "", "Color, e.g. #3366ff (required)")
	addCmd.Flags().String("icon", "", "Icon name or emoji")
	_ = addCmd.MarkFlagRequired("color")

	editCmd := &cobra.Command{
		Use:   "edit <category>",
		Short: "Rename or recolor a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := a.resolveCategory(args[0])
			if err != nil {
				return err
			}
			patch := categoryPatchFromFlags(cmd)
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change")
			}
			cat, err := a.store.UpdateCategory(ctx, id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s %s (%s, %s)\n", shortID(cat.ID), cat.Name, cat.Color, cat.IconOrDefault())
			return nil
		}),
	}
	editCmd.Flags().String("name", "", "New name")
	editCmd.Flags().String("color", "", "New color")
	editCmd.Flags().String("icon", "", "New icon")
	editCmd.Flags().Bool("clear-icon", false, "Reset the icon to the default")

	deleteCmd := &cobra.Command{
		Use:   "delete <category>",
		Short: "Delete a category. Its tasks keep a reference to the removed id",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := a.resolveCategory(args[0])
			if err != nil {
				return err
			}
			dangling := service.CountByCategory(a.store.Tasks())[id]
			ok, err := a.store.DeleteCategory(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("category %s was already gone", shortID(id))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", shortID(id))
			if dangling > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d task(s) still reference the deleted category\n", dangling)
			}
			return nil
		}),
	}

	tasksCmd := &cobra.Command{
		Use:   "tasks <category>",
		Short: "List the tasks linked to a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := a.resolveCategory(args[0])
			if err != nil {
				return err
			}
			tasks, err := a.store.TasksByCategory(ctx, id)
			if err != nil {
				return err
			}
			return writeTasks(cmd.OutOrStdout(), tasks, a.store.Categories(), a.loc)
		}),
	}

	categoryCmd.AddCommand(addCmd, editCmd, deleteCmd, tasksCmd)
	return categoryCmd
}

func categoryPatchFromFlags(cmd *cobra.Command) model.CategoryPatch {
	flags := cmd.Flags()
	var patch model.CategoryPatch
	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	patch.Name = str("name")
	patch.Color = str("color")
	patch.Icon = str("icon")
	patch.ClearIcon, _ = flags.GetBool("clear-icon")
	return patch
}

func NewAssignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <task> <category>",
		Short: "Move a task into a category",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			taskID, err := a.resolveTask(args[0])
			if err != nil {
				return err
			}
			catID, err := a.resolveCategory(args[1])
			if err != nil {
				return err
			}
			if err := a.store.AssignTaskToCategory(ctx, taskID, catID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to %s\n", shortID(taskID), shortID(catID))
			return nil
		}),
	}
}

func NewUnassignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <task>",
		Short: "Remove a task from its category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			taskID, err := a.resolveTask(args[0])
			if err != nil {
				return err
			}
			if err := a.store.UnassignTask(ctx, taskID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unassigned %s\n", shortID(taskID))
			return nil
		}),
	}
}
