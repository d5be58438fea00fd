package cmd

import (
	"encoding/json"
	"fmt"

	reportadapter "github.com/medpipe/pump-history-cli/internal/adapters/render/report"
	sourcejson "github.com/medpipe/pump-history-cli/internal/adapters/source/jsonfile"
	"github.com/medpipe/pump-history-cli/internal/application"
	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newOffsetsCmd(app *app) *cobra.Command {
	var (
		deviceID string
		zone     string
		check    bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "offsets <records.json>",
		Short: "Inspect timezone offsets bootstrapped from clock edits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := sourcejson.NewSource(args[0])
			if err != nil {
				return fmt.Errorf("open records source: %w", err)
			}

			report, err := app.offsets.Inspect(cmd.Context(), source, application.OffsetOptions{
				DeviceID: domain.DeviceID(deviceID),
				Zone:     zone,
				Check:    check,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			rendered, err := app.offsetsRenderer(report, reportadapter.RenderOptions{Verbose: verbose})
			if err != nil {
				return fmt.Errorf("render offsets: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Only inspect records from this device ID")
	cmd.Flags().StringVar(&zone, "zone", "", "IANA timezone overriding the device registry")
	cmd.Flags().BoolVar(&check, "check", false, "Cross-check index lookups against wall-time lookups")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}
