package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chartindex/index"
	"chartindex/table"
)

// Source kinds.
const (
	SourceCSV      = "csv"
	SourceParquet  = "parquet"
	SourcePostgres = "postgres"
)

type Config struct {
	DataDir        string   `mapstructure:"DATA_DIR"`
	Source         string   `mapstructure:"SOURCE"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	PGSchema       string   `mapstructure:"PG_SCHEMA"`
	MaxPatients    int      `mapstructure:"MAX_PATIENTS"`
	ChunkSize      int      `mapstructure:"CHUNK_SIZE"`
	Parallel       bool     `mapstructure:"PARALLEL"`
	SubjectsFile   string   `mapstructure:"SUBJECTS_FILE"`
	AdmissionsFile string   `mapstructure:"ADMISSIONS_FILE"`
	AdmissionTypes []string `mapstructure:"ADMISSION_TYPES"`
	Diagnosis      string   `mapstructure:"DIAGNOSIS"`
	AdmittedFrom   string   `mapstructure:"ADMITTED_FROM"`
	AdmittedTo     string   `mapstructure:"ADMITTED_TO"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`
	LogFormat      string   `mapstructure:"LOG_FORMAT"`
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"data-dir":       "DATA_DIR",
	"source":         "SOURCE",
	"database-url":   "DATABASE_URL",
	"pg-schema":      "PG_SCHEMA",
	"max-patients":   "MAX_PATIENTS",
	"chunk-size":     "CHUNK_SIZE",
	"parallel":       "PARALLEL",
	"subjects":       "SUBJECTS_FILE",
	"admissions":     "ADMISSIONS_FILE",
	"admission-type": "ADMISSION_TYPES",
	"diagnosis":      "DIAGNOSIS",
	"admitted-from":  "ADMITTED_FROM",
	"admitted-to":    "ADMITTED_TO",
	"log-level":      "LOG_LEVEL",
	"log-format":     "LOG_FORMAT",
}

// Load reads configuration from the environment, an optional .env file and
// flags. Flags set on the command line take precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("DATA_DIR", "physionet.org/files/mimiciv/3.1")
	v.SetDefault("SOURCE", SourceCSV)
	v.SetDefault("PG_SCHEMA", "mimiciv_hosp")
	v.SetDefault("MAX_PATIENTS", 0)
	v.SetDefault("CHUNK_SIZE", table.DefaultChunkSize)
	v.SetDefault("PARALLEL", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range flagKeys {
		v.BindEnv(key)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AdmissionTypes = splitList(cfg.AdmissionTypes)
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks that the configuration can open a source.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceCSV, SourceParquet:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for SOURCE=%s", c.Source)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for SOURCE=postgres")
		}
	default:
		return fmt.Errorf("SOURCE must be \"csv\", \"parquet\", or \"postgres\", got %q", c.Source)
	}
	if c.MaxPatients < 0 {
		return fmt.Errorf("MAX_PATIENTS must not be negative, got %d", c.MaxPatients)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("CHUNK_SIZE must not be negative, got %d", c.ChunkSize)
	}
	for key, val := range map[string]string{"ADMITTED_FROM": c.AdmittedFrom, "ADMITTED_TO": c.AdmittedTo} {
		if val == "" {
			continue
		}
		if _, ok := table.ParseTime(val); !ok {
			return fmt.Errorf("%s is not a valid date: %q", key, val)
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger returns a JSON logger, or a console logger when LOG_FORMAT is
// "console", writing to w.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// OpenSource opens the configured table source. The returned close function
// is never nil.
func (c *Config) OpenSource(ctx context.Context) (table.Source, func(), error) {
	switch c.Source {
	case SourcePostgres:
		src, err := table.NewPostgresSource(ctx, c.DatabaseURL, c.PGSchema)
		if err != nil {
			return nil, func() {}, err
		}
		return src, src.Close, nil
	case SourceParquet:
		return table.NewParquetSource(c.DataDir), func() {}, nil
	}
	return table.NewCSVSource(c.DataDir), func() {}, nil
}

// IndexOptions translates the filters into index.Options, reading the
// allow-list files.
func (c *Config) IndexOptions(logger *zerolog.Logger) (index.Options, error) {
	opts := index.Options{
		MaxPatients:      c.MaxPatients,
		AdmissionTypes:   c.AdmissionTypes,
		DiagnosisPattern: c.Diagnosis,
		ChunkSize:        c.ChunkSize,
		Parallel:         c.Parallel,
		Logger:           logger,
	}
	if c.SubjectsFile != "" {
		ids, err := table.LoadIDList(c.SubjectsFile)
		if err != nil {
			return opts, fmt.Errorf("subjects: %w", err)
		}
		opts.SubjectIDs = ids
	}
	if c.AdmissionsFile != "" {
		ids, err := table.LoadIDList(c.AdmissionsFile)
		if err != nil {
			return opts, fmt.Errorf("admissions: %w", err)
		}
		opts.AdmissionIDs = ids
	}
	if c.AdmittedFrom != "" {
		opts.AdmittedFrom, _ = table.ParseTime(c.AdmittedFrom)
	}
	if c.AdmittedTo != "" {
		opts.AdmittedTo, _ = table.ParseTime(c.AdmittedTo)
	}
	return opts, nil
}
