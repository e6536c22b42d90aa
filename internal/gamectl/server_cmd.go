package gamectl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oremus-labs/ol-game-console/internal/consoleapi"
)

var queryTypes = map[string]consoleapi.QueryType{
	"screenfetch": consoleapi.QueryScreenfetch,
	"sizes":       consoleapi.QueryServerSizes,
	"properties":  consoleapi.QueryServerProperties,
	"players":     consoleapi.QueryCachedPlayers,
	"ops":         consoleapi.QueryOperators,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Inspect and control the game server",
}

var serverInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show game server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		info, err := client.ServerInfo(cmd.Context())
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), info); handled {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "Field\tValue\n")
		fmt.Fprintf(tw, "Running\t%t\n", info.Running)
		if info.Running && info.Data != nil {
			fmt.Fprintf(tw, "Version\t%s\n", info.Data.Version.Name.Clean)
			fmt.Fprintf(tw, "Protocol\t%d\n", info.Data.Version.Protocol)
			fmt.Fprintf(tw, "MOTD\t%s\n", info.Data.MOTD.Clean)
			fmt.Fprintf(tw, "Players\t%d/%d\n", info.OnlineCount(), info.Data.Players.Max)
		}
		flushTable(tw)
		return nil
	},
}

var serverPlayersCmd = &cobra.Command{
	Use:   "players",
	Short: "List online players",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		info, err := client.ServerInfo(cmd.Context())
		if err != nil {
			return err
		}
		players := info.OnlinePlayers
		if players == nil {
			players = []string{}
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), players); handled {
			return err
		}
		if !info.Running {
			fmt.Fprintln(cmd.OutOrStdout(), "Server is not running.")
			return nil
		}
		if len(players) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No players online.")
			return nil
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "#\tPlayer\n")
		for i, name := range players {
			fmt.Fprintf(tw, "%d\t%s\n", i+1, name)
		}
		flushTable(tw)
		return nil
	},
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		if err := client.StartServer(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Server start requested.")
		return nil
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		if err := client.StopServer(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Server stop requested.")
		return nil
	},
}

var serverQueryCmd = &cobra.Command{
	Use:   "query <" + strings.Join(queryTypeNames(), "|") + ">",
	Short: "Run a read-only diagnostic query on the instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryType, ok := queryTypes[args[0]]
		if !ok {
			return fmt.Errorf("unknown query %q (expected one of %s)", args[0], strings.Join(queryTypeNames(), ", "))
		}
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		out, err := client.Query(cmd.Context(), queryType)
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), map[string]string{"query": string(queryType), "output": out}); handled {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
		return nil
	},
}

func queryTypeNames() []string {
	names := make([]string, 0, len(queryTypes))
	for name := range queryTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	serverCmd.AddCommand(serverInfoCmd)
	serverCmd.AddCommand(serverPlayersCmd)
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverQueryCmd)
}
