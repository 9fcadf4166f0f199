// Package cmd assembles the scdlpicker command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/FMassin/scdlpicker/cmd/relocate"
	"github.com/FMassin/scdlpicker/cmd/repick"
	"github.com/FMassin/scdlpicker/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scdlpicker",
		Short: "Deep-learning repicking and online relocation of seismic events",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		relocate.Command(settings),
		repick.Command(settings),
	)

	return rootCmd
}

// setupFlags binds the global flags directly to the settings loaded from
// the config file, so flags override file and environment values.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	flags := rootCmd.PersistentFlags()

	flags.BoolVar(&settings.Debug, "debug", settings.Debug,
		"enable debug logging")
	flags.StringVarP(&settings.WorkingDir, "working-dir", "d", settings.WorkingDir,
		"working directory where intermediate files are placed and exchanged")
	flags.StringVar(&settings.Device, "device", settings.Device,
		"'cpu' or 'gpu'; with access to a cuda device change this to 'gpu'")
	flags.StringVar(&settings.Author, "author", settings.Author,
		"author of created objects")
	flags.StringVar(&settings.AgencyID, "agency", settings.AgencyID,
		"agency of created objects")
	flags.BoolVar(&settings.DryRun, "test", settings.DryRun,
		"test mode - don't send results")
}
