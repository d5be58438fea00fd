package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	settingstoml "github.com/medpipe/pump-history-cli/internal/adapters/settings/tomlfile"
	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newSettingsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the stored pump settings",
	}

	cmd.AddCommand(
		newSettingsImportCmd(app),
		newSettingsShowCmd(app),
	)

	return cmd
}

func newSettingsImportCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <settings.toml>",
		Short: "Import declared settings into the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			declared, err := settingstoml.NewSource(args[0])
			if err != nil {
				return err
			}

			settings, err := declared.Resolve(cmd.Context())
			if err != nil {
				return fmt.Errorf("load declared settings: %w", err)
			}

			imported, err := app.registry.ImportSettings(cmd.Context(), settings)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d schedules (active: %s)\n",
				len(imported.Schedules), imported.ActiveSchedule)
			return err
		},
	}
}

func newSettingsShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := app.registry.ShowSettings(cmd.Context())
			if err != nil {
				if errors.Is(err, domain.ErrNoSettings) {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "no settings stored")
					return err
				}
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(settings)
			}

			units := settings.Units
			if units == "" {
				units = "U/hr"
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "active: %s\n", settings.ActiveSchedule)
			names := make([]string, 0, len(settings.Schedules))
			for name := range settings.Schedules {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", name)
				for _, entry := range settings.Schedules[name] {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s  %.2f %s\n",
						formatDayOffset(entry.StartMS), entry.Rate, units)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func formatDayOffset(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
