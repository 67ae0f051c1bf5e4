package commands

import "github.com/spf13/cobra"

// NewRootCommand wires every subcommand under "taskbook".
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskbook",
		Short:         "Tasks and categories from the terminal or Telegram",
		Long:          "taskbook keeps tasks and categories in Neo4j or SQLite and serves them through this CLI and a Telegram bot.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		NewBotCommand(),
		NewTasksCommand(),
		NewAddCommand(),
		NewEditCommand(),
		NewDoneCommand(),
		NewReopenCommand(),
		NewDeleteCommand(),
		NewStatsCommand(),
		NewCategoriesCommand(),
		NewCategoryCommand(),
		NewAssignCommand(),
		NewUnassignCommand(),
	)
	return rootCmd
}
