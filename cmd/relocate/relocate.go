// Package relocate implements the online relocator subcommand.
package relocate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FMassin/scdlpicker/internal/catalog"
	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/logging"
	"github.com/FMassin/scdlpicker/internal/relocator"
)

// Command returns the relocate subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relocate",
		Short: "Relocate events based on deep-learning picks",
		Long: "Watches the catalog for new events, waits until enough picks " +
			"have been collected, relocates using only whitelisted picks and " +
			"publishes results that improve on the previously published solution.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&settings.Relocation.Events, "event", "E",
		settings.Relocation.Events, "process the specified events and exit")
	flags.StringSliceVar(&settings.Relocation.PickAuthors, "pick-authors",
		settings.Relocation.PickAuthors, "whitelist of pick authors")
	flags.Float64Var(&settings.Relocation.MinDelay, "min-delay",
		settings.Relocation.MinDelay,
		"minimum delay (in seconds) after origin time before a relocation is attempted")
	flags.Float64Var(&settings.Relocation.MaxResidual, "max-residual",
		settings.Relocation.MaxResidual,
		"limit the individual pick residual to the specified value (in seconds)")
	flags.Float64Var(&settings.Relocation.MaxRMS, "max-rms",
		settings.Relocation.MaxRMS,
		"limit the pick residual RMS to the specified value (in seconds)")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := serviceLogger(settings, "relocate")

	cat := catalog.New(catalogPath(settings))
	if err := cat.Open(); err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	// The inventory is loaded once at startup; failure here aborts before
	// the processing loop.
	inv, err := cat.Inventory(ctx)
	if err != nil {
		return fmt.Errorf("loading inventory: %w", err)
	}
	log.Info("inventory loaded", "stations", inv.StationCount())

	solver := &relocator.ExternalSolver{Command: settings.Relocation.SolverCommand}

	var depth relocator.DepthEstimator
	if len(settings.Relocation.DepthCommand) > 0 {
		depth = &relocator.ExternalDepthEstimator{Command: settings.Relocation.DepthCommand}
	} else {
		log.Info("no depth command configured, depth phase disabled")
	}

	scheduler := relocator.NewScheduler(settings, cat, solver, depth, inv, log)
	return scheduler.Run(ctx)
}

func catalogPath(settings *conf.Settings) string {
	path := settings.Database.SQLite.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(settings.WorkingDir, path)
	}
	return path
}

func serviceLogger(settings *conf.Settings, service string) *slog.Logger {
	if settings.Log.Enabled {
		path := filepath.Join(settings.WorkingDir, settings.Log.Path, service+".log")
		if logger, _, err := logging.NewFileLogger(path, service, &settings.Log); err == nil {
			return logger
		}
	}
	return logging.ForService(service)
}
