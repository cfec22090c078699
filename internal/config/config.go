package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// DefaultMaxMessageBytes bounds one websocket request
const DefaultMaxMessageBytes = 1 << 20

type Grid struct {
	Rows        int     `yaml:"rows"`
	Columns     int     `yaml:"columns"`
	ColumnWidth float64 `yaml:"column_width"`
	RowHeight   float64 `yaml:"row_height"`

	// MaxRows and MaxColumns bound loaded snapshots and row/column inserts
	MaxRows    int `yaml:"max_rows"`
	MaxColumns int `yaml:"max_columns"`
}

type Server struct {
	Addr            string `yaml:"addr"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`
	// SnapshotPath, when set, is loaded at start and written on shutdown
	SnapshotPath string `yaml:"snapshot_path,omitempty"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Grid   Grid   `yaml:"grid"`
	Server Server `yaml:"server"`
	Log    Log    `yaml:"log"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Grid: Grid{
			Rows:        spreadsheet.DefaultRowCount,
			Columns:     spreadsheet.DefaultColumnCount,
			ColumnWidth: spreadsheet.DefaultColumnWidth,
			RowHeight:   spreadsheet.DefaultRowHeight,
			MaxRows:     spreadsheet.DefaultMaxRowCount,
			MaxColumns:  spreadsheet.DefaultMaxColumnCount,
		},
		Server: Server{
			Addr:            ":8080",
			MaxMessageBytes: DefaultMaxMessageBytes,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a YAML config over the defaults. an empty path falls back to
// GRIDCALC_CONFIG; with neither, the defaults are used. GRIDCALC_ADDR and
// GRIDCALC_LOG_LEVEL override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GRIDCALC_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if v := os.Getenv("GRIDCALC_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GRIDCALC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine or server cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Grid.Rows <= 0 {
		errs = append(errs, fmt.Errorf("grid.rows must be positive, got %d", c.Grid.Rows))
	}
	if c.Grid.Columns <= 0 {
		errs = append(errs, fmt.Errorf("grid.columns must be positive, got %d", c.Grid.Columns))
	}
	if c.Grid.MaxRows < c.Grid.Rows {
		errs = append(errs, fmt.Errorf("grid.max_rows must be at least grid.rows (%d), got %d", c.Grid.Rows, c.Grid.MaxRows))
	}
	if c.Grid.MaxColumns < c.Grid.Columns {
		errs = append(errs, fmt.Errorf("grid.max_columns must be at least grid.columns (%d), got %d", c.Grid.Columns, c.Grid.MaxColumns))
	}
	if c.Grid.ColumnWidth <= 0 {
		errs = append(errs, fmt.Errorf("grid.column_width must be positive, got %v", c.Grid.ColumnWidth))
	}
	if c.Grid.RowHeight <= 0 {
		errs = append(errs, fmt.Errorf("grid.row_height must be positive, got %v", c.Grid.RowHeight))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_message_bytes must be positive, got %d", c.Server.MaxMessageBytes))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SpreadsheetOptions returns the engine options for the configured grid
func (c Config) SpreadsheetOptions() []spreadsheet.Option {
	return []spreadsheet.Option{
		spreadsheet.WithDimensions(c.Grid.Rows, c.Grid.Columns),
		spreadsheet.WithMaxDimensions(c.Grid.MaxRows, c.Grid.MaxColumns),
		spreadsheet.WithDefaultSizes(c.Grid.ColumnWidth, c.Grid.RowHeight),
	}
}

// SlogLevel maps the configured level name to a slog level
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the text logger on stderr used by the server and CLI
func (c Config) NewLogger() *slog.Logger {
	level, err := c.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
