package gamectl

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginUsername  string
	loginPassword  string
	loginKeepAlive bool

	registerUsername string
	registerPassword string
)

// promptCredentials reads whichever of username and password is empty from
// the command's input.
func promptCredentials(cmd *cobra.Command, username, password *string) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	if *username == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Username: ")
		line, _ := reader.ReadString('\n')
		*username = strings.TrimSpace(line)
	}
	if *password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		line, _ := reader.ReadString('\n')
		*password = strings.TrimSpace(line)
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("username and password are required")
	}
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the token in the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, err := mustClient()
		if err != nil {
			return err
		}
		if err := promptCredentials(cmd, &loginUsername, &loginPassword); err != nil {
			return err
		}

		token, err := client.Login(cmd.Context(), loginUsername, loginPassword, loginKeepAlive)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		stored := appConfig.Contexts[ctx.Name]
		stored.Name = ctx.Name
		stored.Server = ctx.Server
		stored.Token = token
		setContext(appConfig, stored, false)
		if err := SaveConfig(appConfig, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s.\n", ctx.Server, loginUsername)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the console backend",
	Long: `Create an account on the console backend. New accounts have no role
until an administrator grants one; run 'gamectl login' afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, err := mustClient()
		if err != nil {
			return err
		}
		if err := promptCredentials(cmd, &registerUsername, &registerPassword); err != nil {
			return err
		}
		if err := client.Register(cmd.Context(), registerUsername, registerPassword); err != nil {
			return fmt.Errorf("register failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s on %s.\n", registerUsername, ctx.Server)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user behind the current token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		user, err := client.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), user); handled {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "Field\tValue\n")
		fmt.Fprintf(tw, "ID\t%d\n", user.ID)
		fmt.Fprintf(tw, "Username\t%s\n", user.Username)
		fmt.Fprintf(tw, "Role\t%s\n", user.Role)
		fmt.Fprintf(tw, "Created\t%s\n", relativeTimestamp(user.CreatedAt))
		flushTable(tw)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account name")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginKeepAlive, "keep-alive", true, "Request a long-lived token")
	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "Account name")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Account password (prompted when empty)")
}
