package gamectl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oremus-labs/ol-game-console/internal/consoleapi"
	"github.com/oremus-labs/ol-game-console/internal/store"
)

var (
	cfgFile       string
	contextName   string
	overrideURL   string
	overrideToken string
	outputFormat  string
	debugHTTP     bool

	appConfig *Config
)

// Execute runs the CLI until ctx is cancelled or the command returns.
func Execute(ctx context.Context) error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		exitWithError(rootCmd, err)
		return err
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "gamectl",
	Short: "Operate the game server console",
	Long: `gamectl manages the cloud instance and game server behind the console
backend and follows its live event stream.
Most commands require a configured context (see 'gamectl config set-context').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Config commands load/save the file manually.
		if strings.HasPrefix(cmd.CommandPath(), "gamectl config") {
			return nil
		}
		if appConfig == nil {
			var err error
			appConfig, err = LoadConfig(cfgFile)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(), "Path to the gamectl config file")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "Context name to use (overrides current)")
	rootCmd.PersistentFlags().StringVar(&overrideURL, "server", "", "Override console server URL")
	rootCmd.PersistentFlags().StringVar(&overrideToken, "token", "", "Override API token")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")
	rootCmd.PersistentFlags().BoolVar(&debugHTTP, "debug", false, "Log HTTP requests and responses")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(instanceCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cursorCmd)
	rootCmd.AddCommand(historyCmd)
}

// resolvedContext merges config state with flag overrides.
func resolvedContext() (*Context, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	ctxName := contextName
	if ctxName == "" {
		ctxName = appConfig.CurrentContext
	}
	ctx, ok := appConfig.Contexts[ctxName]
	if !ok {
		if overrideURL == "" {
			return nil, fmt.Errorf("context %q not found; use 'gamectl config set-context'", ctxName)
		}
		ctx = Context{Name: ctxName}
	}
	if overrideURL != "" {
		ctx.Server = overrideURL
	}
	if overrideToken != "" {
		ctx.Token = overrideToken
	}
	if ctx.StatePath == "" {
		ctx.StatePath = defaultStatePath(cfgFile, ctx.Name)
	}
	if ctx.Server == "" {
		return nil, fmt.Errorf("context %q is missing a server URL", ctxName)
	}
	return &ctx, nil
}

func mustClient() (*consoleapi.Client, *Context, error) {
	ctx, err := resolvedContext()
	if err != nil {
		return nil, nil, err
	}
	client, err := consoleapi.New(consoleapi.Config{
		BaseURL:    ctx.Server,
		Token:      ctx.Token,
		Timeout:    15 * time.Second,
		RetryCount: 2,
		Debug:      debugHTTP,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, ctx, nil
}

// openState opens the local sqlite database of the resolved context.
func openState() (*store.Store, *Context, error) {
	ctx, err := resolvedContext()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx.StatePath, "sqlite")
	if err != nil {
		return nil, nil, err
	}
	return st, ctx, nil
}

func exitWithError(cmd *cobra.Command, err error) {
	cmd.SilenceUsage = true
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	if consoleapi.IsUnauthorized(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Your token was rejected; run 'gamectl login' to get a new one.")
	}
}
