package gamectl

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show instance, deployment and game server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, err := mustClient()
		if err != nil {
			return err
		}
		tracker := status.New(status.Options{
			Fetcher: client,
			Logger:  logutil.New(io.Discard),
		}, status.Snapshot{})
		if err := tracker.Refresh(cmd.Context()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		snap := tracker.Snapshot()
		if handled, err := writeOutput(cmd.OutOrStdout(), snap); handled {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap, ctx.Server)
		return nil
	},
}

func printSnapshot(w io.Writer, snap status.Snapshot, server string) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Field\tValue\n")
	fmt.Fprintf(tw, "Console\t%s\n", server)
	if snap.Instance != nil {
		state := "active"
		if !snap.Instance.Active() {
			state = "deleted " + relativeTimestamp(valueOr(snap.Instance.DeletedAt, ""))
		}
		fmt.Fprintf(tw, "Instance\t%s (%s)\n", snap.Instance.InstanceID, state)
		fmt.Fprintf(tw, "Instance Type\t%s\n", snap.Instance.InstanceType)
		fmt.Fprintf(tw, "Instance IP\t%s\n", valueOr(snap.Instance.IP, "-"))
		fmt.Fprintf(tw, "Deployed\t%t\n", snap.Instance.Deployed)
	} else {
		fmt.Fprintf(tw, "Instance\t-\n")
	}
	fmt.Fprintf(tw, "Instance Status\t%s\n", orDash(string(snap.InstanceStatus)))
	fmt.Fprintf(tw, "Deployment\t%s\n", orDash(string(snap.DeploymentStatus)))
	fmt.Fprintf(tw, "Server Running\t%t\n", snap.ServerRunning())
	if snap.Server != nil && snap.Server.Data != nil {
		fmt.Fprintf(tw, "Version\t%s\n", snap.Server.Data.Version.Name.Clean)
		fmt.Fprintf(tw, "MOTD\t%s\n", snap.Server.Data.MOTD.Clean)
		fmt.Fprintf(tw, "Players\t%d/%d\n", snap.OnlineCount, snap.Server.Data.Players.Max)
	} else {
		fmt.Fprintf(tw, "Players\t%d\n", snap.OnlineCount)
	}
	if len(snap.OnlinePlayers) > 0 {
		fmt.Fprintf(tw, "Online\t%s\n", strings.Join(snap.OnlinePlayers, ", "))
	}
	flushTable(tw)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
