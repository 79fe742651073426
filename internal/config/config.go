// =============================================================================
// Grade Summary - Configuration Module
// =============================================================================
//
// This module is responsible for loading and validating the application
// configuration used by both the CLI and the HTTP server.
//
// CONFIGURATION SOURCES (applied in order):
//   1. YAML file (config.yaml by default, optional unless given explicitly)
//   2. Environment variables with the GRADESUM_ prefix, e.g.
//      GRADESUM_SERVER_LISTEN_ADDR=:9090
//      GRADESUM_INGEST_MAX_CONCURRENCY=4
//   3. Built-in defaults for anything still unset
//
// The result is validated before it is returned.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "GRADESUM"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Ingest  IngestConfig  `yaml:"ingest" envconfig:"INGEST"`
	Session SessionConfig `yaml:"session" envconfig:"SESSION"`
	Export  ExportConfig  `yaml:"export" envconfig:"EXPORT"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	// Default: ":8080"
	ListenAddr string `yaml:"listen_addr" envconfig:"LISTEN_ADDR" validate:"required"`

	// ReadTimeout bounds reading a whole request, uploads included.
	// Default: 60s
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`

	// WriteTimeout bounds writing a response.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`

	// MaxUploadBytes caps the size of one multipart upload request.
	// Default: 64 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Case is ignored and
	// "warning" is read as warn.
	// Default: "info"
	Level string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`

	// Format is either json or text.
	// Default: "text"
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// IngestConfig contains settings for reading uploaded files.
type IngestConfig struct {
	// MaxConcurrency is the number of files normalized in parallel.
	// Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"gte=1,lte=64"`

	// CSV contains settings for CSV uploads.
	CSV CSVSettings `yaml:"csv" envconfig:"CSV"`
}

// CSVSettings contains settings for parsing CSV uploads.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), ";" (semicolon), "\t" (tab), "|" (pipe)
	// Default: ","
	Delimiter string `yaml:"delimiter" envconfig:"DELIMITER" validate:"csvdelim"`
}

// Comma resolves Delimiter to the field separator rune. Named aliases are
// accepted for characters that are awkward to write in YAML or env vars.
// It returns utf8.RuneError when Delimiter is not a single character.
func (c CSVSettings) Comma() rune {
	switch c.Delimiter {
	case "":
		return ','
	case "\\t", "tab", "TAB":
		return '\t'
	case "pipe", "PIPE":
		return '|'
	case "semicolon", "SEMICOLON":
		return ';'
	}
	r, size := utf8.DecodeRuneInString(c.Delimiter)
	if size != len(c.Delimiter) {
		return utf8.RuneError
	}
	return r
}

// SessionConfig contains settings for interactive sessions.
type SessionConfig struct {
	// TTL is how long an idle session is kept.
	// Default: 2h
	TTL time.Duration `yaml:"ttl" envconfig:"TTL" validate:"gt=0"`

	// CleanupInterval is how often expired sessions are purged.
	// Default: 10m
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"CLEANUP_INTERVAL" validate:"gt=0"`
}

// ExportConfig contains settings for writing summary exports from the CLI.
type ExportConfig struct {
	// OutputDir is where the summarize command writes its XLSX files.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load loads the configuration from a YAML file and the environment.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. May be empty.
//   - mustExist: When false, a missing file is treated as an empty file.
//
// RETURNS:
//   - A pointer to the validated Config struct.
//   - An error if the file cannot be read or parsed, an environment
//     variable has an invalid value, or validation fails.
func Load(configPath string, mustExist bool) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist) && !mustExist:
			// Defaults only.
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Logging.Level = normalizeLevel(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 60 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Ingest.MaxConcurrency == 0 {
		cfg.Ingest.MaxConcurrency = 4
	}
	if cfg.Ingest.CSV.Delimiter == "" {
		cfg.Ingest.CSV.Delimiter = ","
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 2 * time.Hour
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = 10 * time.Minute
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "./output"
	}
}

// normalizeLevel lowercases a log level and folds "warning" into "warn".
func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}

// validCSVDelimiter reports whether a delimiter resolves to a rune that
// encoding/csv accepts as a field separator.
func validCSVDelimiter(fl validator.FieldLevel) bool {
	settings := CSVSettings{Delimiter: fl.Field().String()}
	r := settings.Comma()
	return r != 0 && r != '"' && r != '\r' && r != '\n' &&
		utf8.ValidRune(r) && r != utf8.RuneError
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("csvdelim", validCSVDelimiter); err != nil {
		return fmt.Errorf("failed to register validator: %w", err)
	}
	return v.Struct(cfg)
}
