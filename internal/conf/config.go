// Package conf holds the runtime configuration of both pipelines. Settings
// are read from config.yaml via viper, with environment variables and
// command line flags layered on top.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/FMassin/scdlpicker/internal/errors"
)

// FixedDepthRegion forces relocations inside a lat/lon box to a fixed
// depth. Used for regions of predominantly induced seismicity.
type FixedDepthRegion struct {
	Name   string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
	Depth  float64 // km
}

// Contains reports whether the given epicenter falls inside the box.
func (r *FixedDepthRegion) Contains(lat, lon float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lon >= r.MinLon && lon <= r.MaxLon
}

// RelocationSettings configures the online relocator.
type RelocationSettings struct {
	PickAuthors       []string // whitelist of pick authors used for relocation
	MinDelay          float64  // seconds to wait after origin time before attempting
	MaxResidual       float64  // per-pick residual cap in seconds
	MaxRMS            float64  // residual RMS cap in seconds
	MaxDelta          float64  // maximum epicentral distance in degrees
	MinDepth          float64  // depth floor in km
	DefaultDepth      float64  // regional default depth in km
	FixedDepthRegions []FixedDepthRegion
	Events            []string // process the listed events and exit
	SolverCommand     []string // external relocation solver command
	DepthCommand      []string // external depth-phase analyzer; empty disables the depth phase
}

// RepickerSettings configures the spool-driven repicker.
type RepickerSettings struct {
	Model         string   // onset model name, resolved via the model registry
	Dataset       string   // pretrained weight set identifier
	BatchSize     int      // upper bound of picks per inference batch
	MinConfidence float64  // confidence floor for derived picks
	PreferRecent  bool     // process newest spool entries first, one per wake
	Exit          bool     // exit once the spool has been drained
	RunnerCommand []string // external annotation runner command
}

// DatabaseSettings selects the catalog backend.
type DatabaseSettings struct {
	SQLite struct {
		Enabled bool
		Path    string
	}
}

// LogSettings control the per-service rotating file logs.
type LogSettings struct {
	Enabled    bool
	Path       string // directory for service log files
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Settings is the root configuration shared by all subcommands.
type Settings struct {
	Debug      bool
	WorkingDir string // exchange directory: spool/, events/, outgoing/
	Device     string // "cpu" or "gpu"
	Author     string // author stamped on created objects
	AgencyID   string // agency stamped on created objects
	DryRun     bool   // evaluate and log, but publish nothing

	Relocation RelocationSettings
	Repicker   RepickerSettings
	Database   DatabaseSettings
	Log        LogSettings
}

// SpoolDir returns the directory watched for incoming work links.
func (s *Settings) SpoolDir() string { return filepath.Join(s.WorkingDir, "spool") }

// EventRootDir returns the per-event payload tree.
func (s *Settings) EventRootDir() string { return filepath.Join(s.WorkingDir, "events") }

// OutgoingDir returns the directory where result links are deposited.
func (s *Settings) OutgoingDir() string { return filepath.Join(s.WorkingDir, "outgoing") }

// Load reads configuration from the first config.yaml found in the search
// path, then applies environment overrides. Returns settings populated
// with defaults when no config file exists.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range configPaths() {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("SCDLPICKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New(fmt.Errorf("reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		// No config file is fine, defaults plus flags cover everything.
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("unmarshaling config: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate rejects configurations that cannot possibly work. Anything
// caught here aborts before the processing loops start.
func (s *Settings) Validate() error {
	switch strings.ToLower(s.Device) {
	case "cpu", "gpu":
		s.Device = strings.ToLower(s.Device)
	default:
		return validationError(fmt.Errorf("unknown device %q, expected cpu or gpu", s.Device))
	}
	if s.Repicker.BatchSize < 1 {
		return validationError(fmt.Errorf("batch size must be positive, got %d", s.Repicker.BatchSize))
	}
	if s.Repicker.MinConfidence < 0 || s.Repicker.MinConfidence > 1 {
		return validationError(fmt.Errorf("min confidence %g outside [0, 1]", s.Repicker.MinConfidence))
	}
	if s.Relocation.MinDelay < 0 {
		return validationError(fmt.Errorf("min delay must not be negative, got %g", s.Relocation.MinDelay))
	}
	if s.WorkingDir == "" {
		return validationError(fmt.Errorf("working directory must not be empty"))
	}
	s.WorkingDir = expandHome(s.WorkingDir)
	return nil
}

func validationError(err error) error {
	return errors.New(err).
		Component("conf").
		Category(errors.CategoryValidation).
		Build()
}

func configPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scdlpicker"))
	}
	paths = append(paths, "/etc/scdlpicker")
	return paths
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
