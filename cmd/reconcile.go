package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	reportadapter "github.com/medpipe/pump-history-cli/internal/adapters/render/report"
	settingschain "github.com/medpipe/pump-history-cli/internal/adapters/settings/chain"
	sinkjson "github.com/medpipe/pump-history-cli/internal/adapters/sink/jsonfile"
	sourcejson "github.com/medpipe/pump-history-cli/internal/adapters/source/jsonfile"
	"github.com/medpipe/pump-history-cli/internal/application"
	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
	"github.com/spf13/cobra"
)

type reconcileFlags struct {
	input        string
	deviceID     string
	family       string
	zone         string
	settingsPath string
	outPath      string
	applyOffsets bool
	dryRun       bool
	asJSON       bool
}

func newReconcileCmd(app *app) *cobra.Command {
	var flags reconcileFlags

	cmd := &cobra.Command{
		Use:   "reconcile <records.json>",
		Short: "Reconcile a device upload into a treatment history session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.input = args[0]
			return runReconcile(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.deviceID, "device", "", "Only reconcile records from this device ID")
	cmd.Flags().StringVar(&flags.family, "family", "", "Device family overriding the device registry")
	cmd.Flags().StringVar(&flags.zone, "zone", "", "IANA timezone overriding the device registry")
	cmd.Flags().StringVar(&flags.settingsPath, "settings", "", "Declared settings TOML taking precedence over the registry")
	cmd.Flags().StringVar(&flags.outPath, "out", "", "Session output path (default: <records>.session.json)")
	cmd.Flags().BoolVar(&flags.applyOffsets, "apply-offsets", false, "Rewrite record times from bootstrapped timezone offsets")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Reconcile without writing the session file")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Render JSON output")

	return cmd
}

func runReconcile(cmd *cobra.Command, app *app, flags reconcileFlags) error {
	source, err := sourcejson.NewSource(flags.input)
	if err != nil {
		return fmt.Errorf("open records source: %w", err)
	}

	outPath := flags.outPath
	if outPath == "" {
		outPath = defaultSessionPath(flags.input)
	}
	sink, err := sinkjson.NewSink(outPath)
	if err != nil {
		return fmt.Errorf("open session sink: %w", err)
	}

	settingsSource, err := settingsSourceFor(app, flags.settingsPath)
	if err != nil {
		return fmt.Errorf("wire settings source: %w", err)
	}

	service := application.NewReconcileService(app.devices, settingsSource, sink, app.clock, app.log)
	opts := application.ReconcileOptions{
		DeviceID:     domain.DeviceID(flags.deviceID),
		Family:       flags.family,
		Zone:         flags.zone,
		ApplyOffsets: flags.applyOffsets,
		DryRun:       flags.dryRun,
	}

	var report application.SessionReport
	work := func(ctx context.Context) error {
		var workErr error
		report, workErr = service.Reconcile(ctx, source, opts)
		return workErr
	}

	if flags.asJSON {
		if err := work(cmd.Context()); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report.Session)
	}

	if err := runTaskSpinner(cmd.Context(), cmd.ErrOrStderr(), "Reconciling records...", work); err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	rendered, err := app.sessionRenderer(report, reportadapter.RenderOptions{Verbose: verbose})
	if err != nil {
		return fmt.Errorf("render session: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func defaultSessionPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".session.json"
}

func settingsSourceFor(app *app, declaredPath string) (ports.SettingsSource, error) {
	if declaredPath == "" {
		return settingschain.NewRepositorySource(app.settings), nil
	}

	return settingschain.NewDeclaredFirstWithRepoFallback(declaredPath, app.settings)
}
