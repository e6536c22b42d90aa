package gamectl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyCategory  string
	historyLimit     int
	historyOlderThan time.Duration
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect the stored stream position",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last processed event id",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, ctx, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.Cursor()
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), map[string]string{"context": ctx.Name, "lastEventId": id}); handled {
			return err
		}
		if id == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No stream position stored.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var cursorClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stream position so the next watch starts fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.ClearCursor(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Stream position cleared.")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show events recorded by watch",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		entries, err := st.ListHistory(historyCategory, historyLimit)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), entries); handled {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded.")
			return nil
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "ID\tWhen\tCategory\tEvent\tDetail\n")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, relativeTime(e.CreatedAt), e.Category, e.Event, orDash(e.Detail))
		}
		flushTable(tw)
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		st, _, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.PruneHistory(time.Now().Add(-historyOlderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyCategory, "category", "", "Only show one category (notification, connection, status)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to show")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age of entries to delete")

	cursorCmd.AddCommand(cursorShowCmd)
	cursorCmd.AddCommand(cursorClearCmd)
	historyCmd.AddCommand(historyPruneCmd)
}
