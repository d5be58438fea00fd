package cmd

import (
	"fmt"

	"github.com/medpipe/pump-history-cli/internal/application"
	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newDevicesCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage the device registry",
	}

	cmd.AddCommand(
		newDevicesRegisterCmd(app),
		newDevicesListCmd(app),
		newDevicesRemoveCmd(app),
	)

	return cmd
}

func newDevicesRegisterCmd(app *app) *cobra.Command {
	var alias, family, timezone string

	cmd := &cobra.Command{
		Use:   "register <device-id>",
		Short: "Register a device with its family and home timezone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := app.registry.RegisterDevice(cmd.Context(), application.RegisterDeviceCommand{
				ID:       domain.DeviceID(args[0]),
				Alias:    alias,
				Family:   family,
				Timezone: timezone,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", device.ID, device.Family)
			return err
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Human-readable device alias")
	cmd.Flags().StringVar(&family, "family", "insulet", "Device family")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone the device clock follows")

	return cmd
}

func newDevicesRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <device-id>",
		Short: "Remove a device from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.registry.RemoveDevice(cmd.Context(), domain.DeviceID(args[0])); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return err
		},
	}
}

func newDevicesListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := app.registry.ListDevices(cmd.Context())
			if err != nil {
				return err
			}

			for _, device := range devices {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					device.ID, device.Alias, device.Family, device.Timezone)
			}

			return nil
		},
	}
}
