package gamectl

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configSetContextCmd = &cobra.Command{
	Use:   "set-context <name>",
	Short: "Create or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		statePath, _ := cmd.Flags().GetString("state")
		makeCurrent, _ := cmd.Flags().GetBool("current")

		if server == "" {
			return fmt.Errorf("--server is required")
		}
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		setContext(cfg, Context{
			Name:      name,
			Server:    server,
			Token:     token,
			StatePath: statePath,
		}, makeCurrent)
		if err := SaveConfig(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q updated.\n", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if err := ensureContextExists(cfg, args[0]); err != nil {
			return err
		}
		cfg.CurrentContext = args[0]
		if err := SaveConfig(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Print the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No context configured.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the configuration with tokens redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		redacted := Config{CurrentContext: cfg.CurrentContext, Contexts: map[string]Context{}}
		for name, ctx := range cfg.Contexts {
			if ctx.Token != "" {
				ctx.Token = "REDACTED"
			}
			redacted.Contexts[name] = ctx
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), redacted); handled {
			return err
		}

		names := make([]string, 0, len(redacted.Contexts))
		for name := range redacted.Contexts {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", cfgFile)
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "Current\tName\tServer\tLogged In\n")
		for _, name := range names {
			ctx := redacted.Contexts[name]
			current := ""
			if redacted.CurrentContext == name {
				current = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", current, name, ctx.Server, ctx.Token != "")
		}
		flushTable(tw)
		return nil
	},
}

func init() {
	configSetContextCmd.Flags().String("server", "", "Console server URL")
	configSetContextCmd.Flags().String("token", "", "API token")
	configSetContextCmd.Flags().String("state", "", "Path of the local state database")
	configSetContextCmd.Flags().Bool("current", true, "Set as current context")
	configCmd.AddCommand(configSetContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configViewCmd)
}
