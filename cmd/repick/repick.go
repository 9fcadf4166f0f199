// Package repick implements the repicker subcommand.
package repick

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FMassin/scdlpicker/internal/conf"
	"github.com/FMassin/scdlpicker/internal/logging"
	"github.com/FMassin/scdlpicker/internal/repicker"
)

// Command returns the repick subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repick",
		Short: "Refine queued picks with a deep-learning onset model",
		Long: "Polls the spool directory for pick payload links, runs the " +
			"configured onset model over the picks' waveform windows and " +
			"writes refined picks to the outgoing mailbox.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&settings.Repicker.Model, "model", settings.Repicker.Model,
		fmt.Sprintf("onset model to use, one of %v", repicker.Models()))
	flags.StringVar(&settings.Repicker.Dataset, "dataset", settings.Repicker.Dataset,
		"dataset the model weights were trained on")
	flags.IntVar(&settings.Repicker.BatchSize, "batch-size", settings.Repicker.BatchSize,
		"maximum number of picks per inference batch")
	flags.Float64Var(&settings.Repicker.MinConfidence, "min-confidence",
		settings.Repicker.MinConfidence,
		"confidence threshold below which a derived pick is skipped")
	flags.BoolVar(&settings.Repicker.PreferRecent, "prefer-recent",
		settings.Repicker.PreferRecent,
		"process the most recent spool entries first, one per wake")
	flags.BoolVar(&settings.Repicker.Exit, "exit", settings.Repicker.Exit,
		"exit after the spool has been drained")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := serviceLogger(settings, "repick")

	repicker.SetRunnerCommand(settings.Repicker.RunnerCommand)

	// Model and device are resolved exactly once; an unknown model name is
	// an unrecoverable misconfiguration.
	model, err := repicker.NewAnnotator(
		settings.Repicker.Model, settings.Repicker.Dataset, settings.Device)
	if err != nil {
		return err
	}
	log.Info("model initialized",
		"model", model.Name(), "device", settings.Device,
		"input_window", model.InputWindow())

	return repicker.New(settings, model, log).Run(ctx)
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
