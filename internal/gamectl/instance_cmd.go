package gamectl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oremus-labs/ol-game-console/internal/consoleapi"
)

var (
	createZone     string
	createType     string
	createVSwitch  string
	deleteForce    bool
	deleteAssumeOK bool
)

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"instances", "inst"},
	Short:   "Manage the cloud instance hosting the game server",
}

var instanceGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active or most recent instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		inst, err := client.ActiveOrLatestInstance(cmd.Context())
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), inst); handled {
			return err
		}
		if inst == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No instance has been created.")
			return nil
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "Field\tValue\n")
		fmt.Fprintf(tw, "ID\t%s\n", inst.InstanceID)
		fmt.Fprintf(tw, "Type\t%s\n", inst.InstanceType)
		fmt.Fprintf(tw, "Region\t%s\n", orDash(inst.RegionID))
		fmt.Fprintf(tw, "Zone\t%s\n", orDash(inst.ZoneID))
		fmt.Fprintf(tw, "VSwitch\t%s\n", orDash(inst.VSwitchID))
		fmt.Fprintf(tw, "IP\t%s\n", valueOr(inst.IP, "-"))
		fmt.Fprintf(tw, "Deployed\t%t\n", inst.Deployed)
		fmt.Fprintf(tw, "Created\t%s\n", relativeTimestamp(inst.CreatedAt))
		fmt.Fprintf(tw, "Deleted\t%s\n", relativeTimestamp(valueOr(inst.DeletedAt, "")))
		flushTable(tw)
		return nil
	},
}

var instanceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the provider status of the active instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		st, err := client.InstanceStatus(cmd.Context())
		if err != nil {
			return err
		}
		if handled, err := writeOutput(cmd.OutOrStdout(), map[string]string{"status": string(st)}); handled {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), orDash(string(st)))
		return nil
	},
}

var instanceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		if createZone == "" || createType == "" || createVSwitch == "" {
			return fmt.Errorf("--zone, --type and --vswitch are required")
		}
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		req := consoleapi.CreateInstanceRequest{
			ZoneID:       createZone,
			InstanceType: createType,
			VSwitchID:    createVSwitch,
		}
		if err := client.CreateInstance(cmd.Context(), req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Instance of type %s requested in %s.\n", createType, createZone)
		return nil
	},
}

var instanceDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the game server onto the active instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		if err := client.DeployInstance(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deployment started. Follow it with 'gamectl watch'.")
		return nil
	},
}

var instanceCreateAndDeployCmd = &cobra.Command{
	Use:   "create-and-deploy",
	Short: "Create an instance and deploy the game server in one task",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		if err := client.CreateAndDeploy(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Create and deploy started. Follow it with 'gamectl watch'.")
		return nil
	},
}

var instanceDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Release the active instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		if !deleteAssumeOK {
			prompt := "Delete the active instance? [y/N]: "
			if deleteForce {
				prompt = "Stop and delete the active instance? [y/N]: "
			}
			ok, err := confirmPrompt(prompt, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}
		if err := client.DeleteInstance(cmd.Context(), deleteForce); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Instance deletion requested.")
		return nil
	},
}

func init() {
	instanceCreateCmd.Flags().StringVar(&createZone, "zone", "", "Availability zone ID")
	instanceCreateCmd.Flags().StringVar(&createType, "type", "", "Instance type")
	instanceCreateCmd.Flags().StringVar(&createVSwitch, "vswitch", "", "VSwitch ID")
	instanceDeleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Stop the instance first if it is running")
	instanceDeleteCmd.Flags().BoolVarP(&deleteAssumeOK, "yes", "y", false, "Do not ask for confirmation")

	instanceCmd.AddCommand(instanceGetCmd)
	instanceCmd.AddCommand(instanceStatusCmd)
	instanceCmd.AddCommand(instanceCreateCmd)
	instanceCmd.AddCommand(instanceDeployCmd)
	instanceCmd.AddCommand(instanceCreateAndDeployCmd)
	instanceCmd.AddCommand(instanceDeleteCmd)
}
