// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// Config holds all configuration values for the API server and the rebuild
// command. Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string `env:"PORT" envDefault:"8080"`

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// LogLevel controls the minimum log level: debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to the React dev server.
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Export configures the spreadsheet mirror.
	Export ExportConfig

	// MaxBodyBytes caps request bodies; larger requests get 413.
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	// MigrateOnStart applies pending goose migrations before serving.
	MigrateOnStart bool `env:"MIGRATE_ON_START" envDefault:"true"`
}

// ExportConfig is where and how the mirror is written.
type ExportConfig struct {
	// Path is made absolute by Load, relative to the working directory.
	Path string `env:"EXPORT_PATH" envDefault:"Visitors_Log.xlsx"`

	// Format is "xlsx" or "csv".
	Format string `env:"EXPORT_FORMAT" envDefault:"xlsx"`

	// Relocate enables the search for a moved artifact on every rebuild.
	Relocate bool `env:"EXPORT_RELOCATE" envDefault:"false"`

	// SearchDirs are tried in order when Relocate is set.
	SearchDirs []string `env:"EXPORT_SEARCH_DIRS" envSeparator:","`
}

// ExportFormat returns Format as a domain.ExportFormat.
func (c ExportConfig) ExportFormat() domain.ExportFormat {
	return domain.ExportFormat(c.Format)
}

// Load reads configuration from environment variables and returns a Config.
// Every missing required variable is named in the returned error.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	switch cfg.Export.ExportFormat() {
	case domain.FormatXLSX, domain.FormatCSV:
	default:
		return Config{}, fmt.Errorf("config.Load: EXPORT_FORMAT must be %q or %q, got %q",
			domain.FormatXLSX, domain.FormatCSV, cfg.Export.Format)
	}

	abs, err := filepath.Abs(cfg.Export.Path)
	if err != nil {
		return Config{}, fmt.Errorf("config.Load: EXPORT_PATH: %w", err)
	}
	cfg.Export.Path = abs

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("config.Load: MAX_BODY_BYTES must be positive, got %d", cfg.MaxBodyBytes)
	}

	return cfg, nil
}

// LoadDotEnv copies variables from the named .env files (default ".env")
// into the environment without overriding variables already set. The files
// are optional: a load failure is logged at debug level and otherwise
// ignored. Call it before Load.
func LoadDotEnv(log *slog.Logger, filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		log.Debug("no .env file loaded", "error", err)
	}
}
