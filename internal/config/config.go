// Package config loads pairrank settings and sets up logging.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/raphaelgruber/pairrank/internal/models"
)

// ConfigPathEnvVar names the environment variable pointing at a YAML config file.
const ConfigPathEnvVar = "PAIRRANK_CONFIG"

// EnvPrefix is stripped from environment variables before mapping them to keys.
const EnvPrefix = "PAIRRANK_"

// DefaultConfigPaths are searched when PAIRRANK_CONFIG is not set.
var DefaultConfigPaths = []string{"pairrank.yaml", "pairrank.yml"}

// LLM providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Oracle kinds.
const (
	OracleAuto    = "auto"
	OracleTUI     = "tui"
	OracleConsole = "console"
	OracleLLM     = "llm"
)

// Config holds all configuration values.
type Config struct {
	Catalog CatalogConfig `koanf:"catalog"`
	Solver  SolverConfig  `koanf:"solver"`
	Session SessionConfig `koanf:"session"`
	LLM     LLMConfig     `koanf:"llm"`
	Output  OutputConfig  `koanf:"output"`
	Logging LoggingConfig `koanf:"logging"`
}

// CatalogConfig selects the items to rank.
type CatalogConfig struct {
	Path     string `koanf:"path" validate:"required"`
	Position string `koanf:"position" validate:"omitempty,position"`
	MaxItems int    `koanf:"max_items" validate:"min=0"`
}

// SolverConfig tunes the score relaxation.
type SolverConfig struct {
	ConvergenceThreshold float64 `koanf:"convergence_threshold" validate:"gt=0"`
	StepRate             float64 `koanf:"step_rate" validate:"gt=0,lte=1"`
	MaxSweeps            int     `koanf:"max_sweeps" validate:"min=0"`
	Loss                 string  `koanf:"loss" validate:"oneof=signed squared"`
}

// SessionConfig controls how comparisons are collected.
type SessionConfig struct {
	Seed       uint64 `koanf:"seed"`
	MaxRetries int    `koanf:"max_retries" validate:"min=0"`
	Oracle     string `koanf:"oracle" validate:"oneof=auto tui console llm"`
}

// LLMConfig configures the model-backed oracle.
type LLMConfig struct {
	Provider        string `koanf:"provider" validate:"oneof=ollama openai anthropic bedrock"`
	Model           string `koanf:"model"`
	OllamaHost      string `koanf:"ollama_host"`
	OpenAIAPIKey    string `koanf:"openai_api_key"`
	AnthropicAPIKey string `koanf:"anthropic_api_key"`
	AWSRegion       string `koanf:"aws_region"`
}

// OutputConfig controls where results go.
type OutputConfig struct {
	Format          string `koanf:"format" validate:"oneof=table json yaml csv"`
	Path            string `koanf:"path"`
	ComparisonsPath string `koanf:"comparisons_path"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	File  string `koanf:"file"`
	Level string `koanf:"level" validate:"oneof=DEBUG INFO WARN WARNING ERROR debug info warn warning error"`
}

// LevelValue returns the configured slog level.
func (l LoggingConfig) LevelValue() slog.Level {
	return parseLogLevel(l.Level)
}

func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path: "players.json",
		},
		Solver: SolverConfig{
			ConvergenceThreshold: 0.001,
			StepRate:             0.001,
			Loss:                 "signed",
		},
		Session: SessionConfig{
			Oracle: OracleAuto,
		},
		LLM: LLMConfig{
			Provider:   ProviderOllama,
			Model:      "llama3.2",
			OllamaHost: "http://localhost:11434",
			AWSRegion:  "us-east-1",
		},
		Output: OutputConfig{
			Format: "table",
		},
		Logging: LoggingConfig{
			File:  "/tmp/pairrank.log",
			Level: "INFO",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in increasing priority.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("position", func(fl validator.FieldLevel) bool {
		_, err := models.ParsePosition(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// legacyEnv maps unprefixed variable names kept for older setups.
var legacyEnv = map[string]string{
	"paths_player":          "catalog.path",
	"position":              "catalog.position",
	"n":                     "catalog.max_items",
	"convergence_threshold": "solver.convergence_threshold",
	"step_rate":             "solver.step_rate",
}

// sections are the top-level config keys; PAIRRANK_<SECTION>_<KEY> maps to
// section.key.
var sections = []string{"catalog", "solver", "session", "llm", "output", "logging"}

// envTransformFunc maps environment variable names to config keys. Unknown
// variables map to "" and are ignored.
//
// Examples:
//   - PAIRRANK_SOLVER_STEP_RATE -> solver.step_rate
//   - PAIRRANK_CATALOG_MAX_ITEMS -> catalog.max_items
//   - STEP_RATE -> solver.step_rate
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)

	if mapped, ok := legacyEnv[lower]; ok {
		return mapped
	}

	rest, ok := strings.CutPrefix(lower, strings.ToLower(EnvPrefix))
	if !ok || rest == "config" {
		return ""
	}
	for _, section := range sections {
		if field, ok := strings.CutPrefix(rest, section+"_"); ok && field != "" {
			return section + "." + field
		}
	}
	return ""
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
