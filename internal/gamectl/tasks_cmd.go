package gamectl

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	tasksPage     int
	tasksPageSize int
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task"},
	Short:   "Inspect deployment tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployment tasks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		tasks, err := client.Tasks(cmd.Context(), tasksPage, tasksPageSize)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), tasks); handled {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
			return nil
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "ID\tType\tStatus\tUser\tCreated\tUpdated\n")
		for _, task := range tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				task.ID,
				task.Type,
				task.Status,
				orDash(task.Username),
				relativeTimestamp(task.CreatedAt),
				relativeTimestamp(valueOr(task.UpdatedAt, "")),
			)
		}
		flushTable(tw)
		return nil
	},
}

var tasksOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Summarize deployment outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		overview, err := client.TaskOverview(cmd.Context())
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), overview); handled {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "Field\tValue\n")
		fmt.Fprintf(tw, "Succeeded\t%d\n", overview.SuccessCount)
		fmt.Fprintf(tw, "Unsuccessful\t%d\n", overview.UnsuccessCount)
		if latest := overview.Latest; latest != nil {
			fmt.Fprintf(tw, "Latest\t%s (%s by %s, %s)\n", latest.ID, latest.Status, orDash(latest.Username), relativeTimestamp(latest.CreatedAt))
		}
		flushTable(tw)
		return nil
	},
}

func init() {
	tasksListCmd.Flags().IntVar(&tasksPage, "page", 1, "Page number, starting at 1")
	tasksListCmd.Flags().IntVar(&tasksPageSize, "page-size", 10, "Tasks per page")
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksOverviewCmd)
}
