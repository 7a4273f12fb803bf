// Package config loads the application configuration, layering defaults,
// a YAML file, KIOKU_-prefixed environment variables, and command-line
// flags (highest precedence), then validating the result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/kioku-app/kioku/internal/fsrs"
)

// Config is the full application configuration.
type Config struct {
	ListenAddr string `koanf:"listen_addr" validate:"required"`
	DBPath     string `koanf:"db_path" validate:"required"`

	Content   ContentConfig   `koanf:"content"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Audio     AudioConfig     `koanf:"audio"`
	Learner   LearnerConfig   `koanf:"learner"`
}

// ContentConfig locates the word-content directory and its optional
// upstream git repository.
type ContentConfig struct {
	Dir     string `koanf:"dir" validate:"required"`
	RepoURL string `koanf:"repo_url"`
}

// OpenAIConfig holds the LLM collaborator settings.
type OpenAIConfig struct {
	APIKey          string `koanf:"api_key" validate:"required"`
	BaseURL         string `koanf:"base_url"`
	Model           string `koanf:"model"`
	TranscribeModel string `koanf:"transcribe_model"`
	TimeoutSeconds  int    `koanf:"timeout_seconds" validate:"gte=0"`
	MaxRetries      int    `koanf:"max_retries" validate:"gte=0"`
}

// SchedulerConfig holds the FSRS settings. Steps are duration strings
// like "1m" or "10m"; an absent weights list selects the defaults.
type SchedulerConfig struct {
	DesiredRetention float64   `koanf:"desired_retention" validate:"gt=0,lte=1"`
	EnableFuzzing    bool      `koanf:"enable_fuzzing"`
	LearningSteps    []string  `koanf:"learning_steps" validate:"dive,required"`
	RelearningSteps  []string  `koanf:"relearning_steps" validate:"dive,required"`
	MaximumInterval  int       `koanf:"maximum_interval" validate:"gte=0"`
	Weights          []float64 `koanf:"weights" validate:"omitempty,len=21"`
}

// AudioConfig holds the transcription settings.
type AudioConfig struct {
	MaxSizeKB int    `koanf:"max_size_kb" validate:"gte=0"`
	Language  string `koanf:"language"`
}

// LearnerConfig is the default learner profile applied when the caller
// supplies none (single-user deployments).
type LearnerConfig struct {
	Level           string   `koanf:"level"`
	TargetLanguages []string `koanf:"target_languages"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		DBPath:     "kioku.db",
		Content: ContentConfig{
			Dir: "resources/words",
		},
		OpenAI: OpenAIConfig{
			TimeoutSeconds: 120,
			MaxRetries:     3,
		},
		Scheduler: SchedulerConfig{
			DesiredRetention: 0.9,
			LearningSteps:    []string{"1m", "10m"},
			RelearningSteps:  []string{"10m"},
			MaximumInterval:  36500,
		},
		Audio: AudioConfig{
			MaxSizeKB: 1000,
			Language:  "ja",
		},
		Learner: LearnerConfig{
			Level:           "N4",
			TargetLanguages: []string{"English"},
		},
	}
}

// Load builds the configuration from an optional YAML file at path,
// KIOKU_-prefixed environment variables, and the given flag set.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	// KIOKU_OPENAI__API_KEY -> openai.api_key. A double underscore
	// separates nesting levels so single underscores survive in key names.
	err := k.Load(env.Provider("KIOKU_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "KIOKU_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("config: load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// SchedulerSettings converts the scheduler section into an fsrs config,
// parsing the step duration strings.
func (c Config) SchedulerSettings() (fsrs.SchedulerConfig, error) {
	learning, err := parseSteps(c.Scheduler.LearningSteps)
	if err != nil {
		return fsrs.SchedulerConfig{}, fmt.Errorf("config: learning_steps: %w", err)
	}
	relearning, err := parseSteps(c.Scheduler.RelearningSteps)
	if err != nil {
		return fsrs.SchedulerConfig{}, fmt.Errorf("config: relearning_steps: %w", err)
	}

	out := fsrs.SchedulerConfig{
		DesiredRetention: c.Scheduler.DesiredRetention,
		EnableFuzzing:    c.Scheduler.EnableFuzzing,
		LearningSteps:    learning,
		RelearningSteps:  relearning,
		MaximumInterval:  c.Scheduler.MaximumInterval,
	}
	if len(c.Scheduler.Weights) == len(out.Weights) {
		copy(out.Weights[:], c.Scheduler.Weights)
	}
	return out, nil
}

func parseSteps(steps []string) ([]time.Duration, error) {
	if steps == nil {
		return nil, nil
	}
	out := make([]time.Duration, len(steps))
	for i, s := range steps {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", s, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("step %q must be positive", s)
		}
		out[i] = d
	}
	return out, nil
}
