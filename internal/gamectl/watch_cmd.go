package gamectl

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/oremus-labs/ol-game-console/internal/logutil"
)

var (
	watchNoReplay   bool
	watchMaxRetries uint64
	watchDiff       bool
	watchVerbose    bool
	watchPath       string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live event stream",
	Long: `watch opens the console's live event stream, prints deployment output,
notifications and status changes, and records them in the local history.
The last processed event is stored so a later watch resumes where this one
stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, err := mustClient()
		if err != nil {
			return err
		}
		st, _, err := openState()
		if err != nil {
			return err
		}
		defer st.Close()

		var logOut io.Writer = io.Discard
		if watchVerbose {
			logOut = cmd.ErrOrStderr()
		}
		return runWatch(cmd.Context(), watchOptions{
			Client:     client,
			Token:      ctx.Token,
			StreamPath: watchPath,
			Cursor:     st,
			History:    st,
			Out:        cmd.OutOrStdout(),
			Logger:     logutil.New(logOut),
			Replay:     !watchNoReplay,
			MaxRetries: watchMaxRetries,
			ShowDiff:   watchDiff,
		})
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoReplay, "no-replay", false, "Do not print deployment output received before the hook attached")
	watchCmd.Flags().Uint64Var(&watchMaxRetries, "max-retries", 0, "Give up after this many failed reconnects (0 retries forever)")
	watchCmd.Flags().BoolVar(&watchDiff, "diff", false, "Print a field diff for every status change")
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Write stream logs to stderr")
	watchCmd.Flags().StringVar(&watchPath, "stream-path", "/stream", "Path of the event stream on the console server")
}
