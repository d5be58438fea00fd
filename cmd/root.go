package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "ph",
		Short:         "Pump history CLI (ph): reconcile device uploads into treatment history",
		Long:          "ph (pump history CLI) turns raw insulin pump uploads into canonical treatment history: basal segments get durations and schedule checks, doses absorb termination notices, and device-local timestamps resolve to UTC.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging and detailed report output")
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if verbose {
			app.logLevel.Set(slog.LevelDebug)
		}
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newReconcileCmd(app),
		newOffsetsCmd(app),
		newDevicesCmd(app),
		newSettingsCmd(app),
	)

	return rootCmd
}
