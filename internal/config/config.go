// Package config loads the annotator's TOML configuration, applying
// repository defaults for anything the file leaves unset.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Editing configures the interaction machine.
type Editing struct {
	UndoDepth       int     `toml:"undo_depth"`
	NudgeStep       float64 `toml:"nudge_step"`
	NudgeStepLarge  float64 `toml:"nudge_step_large"`
	PasteOffset     float64 `toml:"paste_offset"`
	HandleTolerance float64 `toml:"handle_tolerance"`
	SnapToGrid      bool    `toml:"snap_to_grid"`
	GridSize        float64 `toml:"grid_size"`
}

// Quality configures the scoring pipeline.
type Quality struct {
	StalenessSeconds float64 `toml:"staleness_seconds"`
	Workers          int     `toml:"workers"`
	OCREnabled       bool    `toml:"ocr_enabled"`
	PatchDir         string  `toml:"patch_dir"`
}

// Persistence configures durable snapshots.
type Persistence struct {
	DatabasePath  string `toml:"database_path"`
	TemplateDir   string `toml:"template_dir"`
	PercentExport bool   `toml:"percent_export"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Editing     Editing     `toml:"editing"`
	Quality     Quality     `toml:"quality"`
	Persistence Persistence `toml:"persistence"`
	Logging     Logging     `toml:"logging"`
}

const (
	defaultUndoDepth        = 20
	defaultNudgeStep        = 1
	defaultNudgeStepLarge   = 10
	defaultPasteOffset      = 24
	defaultHandleTolerance  = 8
	defaultGridSize         = 10
	defaultStalenessSeconds = 2
	defaultQualityWorkers   = 2
	defaultDatabasePath     = "annotator.db"
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Editing: Editing{
			UndoDepth:       defaultUndoDepth,
			NudgeStep:       defaultNudgeStep,
			NudgeStepLarge:  defaultNudgeStepLarge,
			PasteOffset:     defaultPasteOffset,
			HandleTolerance: defaultHandleTolerance,
			GridSize:        defaultGridSize,
		},
		Quality: Quality{
			StalenessSeconds: defaultStalenessSeconds,
			Workers:          defaultQualityWorkers,
			OCREnabled:       true,
		},
		Persistence: Persistence{
			DatabasePath:  defaultDatabasePath,
			PercentExport: true,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// fall through to defaults
		case err != nil:
			return Config{}, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Editing.UndoDepth <= 0 {
		return errors.New("editing.undo_depth must be positive")
	}
	if c.Editing.NudgeStep <= 0 || c.Editing.NudgeStepLarge <= 0 {
		return errors.New("editing nudge steps must be positive")
	}
	if c.Editing.NudgeStepLarge < c.Editing.NudgeStep {
		return errors.New("editing.nudge_step_large must be at least editing.nudge_step")
	}
	if c.Editing.PasteOffset < 0 {
		return errors.New("editing.paste_offset must not be negative")
	}
	if c.Editing.HandleTolerance <= 0 {
		return errors.New("editing.handle_tolerance must be positive")
	}
	if c.Editing.SnapToGrid && c.Editing.GridSize <= 0 {
		return errors.New("editing.grid_size must be positive when snap is on")
	}
	if c.Quality.StalenessSeconds <= 0 {
		return errors.New("quality.staleness_seconds must be positive")
	}
	if c.Quality.Workers <= 0 {
		return errors.New("quality.workers must be positive")
	}
	if c.Persistence.DatabasePath == "" {
		return errors.New("persistence.database_path must be set")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
