// Package config loads job-hunter settings from defaults, a YAML file, .env,
// the environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spigell/job-hunter/internal/ai"
	"github.com/spigell/job-hunter/internal/dispatch"
	"github.com/spigell/job-hunter/internal/finder"
	"github.com/spigell/job-hunter/internal/jobs"
	"github.com/spigell/job-hunter/internal/journal"
	"github.com/spigell/job-hunter/internal/schedule"
	"github.com/spigell/job-hunter/internal/search"
	"github.com/spigell/job-hunter/internal/secrets"
	"github.com/spigell/job-hunter/internal/server"
)

const (
	// Name is the default config file name without extension.
	Name      = "job-hunter"
	EnvPrefix = "JOB_HUNTER"
)

var ErrMissingAPIKey = errors.New("gemini api key is missing")

type Config struct {
	Debug    bool           `mapstructure:"debug" json:"debug"`
	JSON     bool           `mapstructure:"json" json:"json"`
	Telegram TelegramConfig `mapstructure:"telegram" json:"telegram"`
	AI       AIConfig       `mapstructure:"ai" json:"ai"`
	Search   SearchConfig   `mapstructure:"search" json:"search"`
	Extract  ExtractConfig  `mapstructure:"extract" json:"extract"`
	Schedule ScheduleConfig `mapstructure:"schedule" json:"schedule"`
	Cycle    CycleConfig    `mapstructure:"cycle" json:"cycle"`
	Report   ReportConfig   `mapstructure:"report" json:"report"`
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Dispatch DispatchConfig `mapstructure:"dispatch" json:"dispatch"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token" json:"token"`
	ChatID string `mapstructure:"chat-id" json:"chat_id"`
}

type AIConfig struct {
	Profile         string       `mapstructure:"profile" json:"profile"`
	RejectionMarker string       `mapstructure:"rejection-marker" json:"rejection_marker"`
	Gemini          GeminiConfig `mapstructure:"gemini" json:"gemini"`
}

type GeminiConfig struct {
	APIKey       string        `mapstructure:"api-key" json:"api_key"`
	APIKeyFile   string        `mapstructure:"api-key-file" json:"api_key_file"`
	Model        string        `mapstructure:"model" json:"model"`
	MaxAttempts  int           `mapstructure:"max-attempts" json:"max_attempts"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxLogLength int           `mapstructure:"max-log-length" json:"max_log_length"`
}

type SearchConfig struct {
	Queries         []string `mapstructure:"queries" json:"queries"`
	ResultsPerQuery int      `mapstructure:"results-per-query" json:"results_per_query"`
	UserAgent       string   `mapstructure:"user-agent" json:"user_agent"`
}

type ExtractConfig struct {
	MaxChars int           `mapstructure:"max-chars" json:"max_chars"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
}

type ScheduleConfig struct {
	Timezone    string        `mapstructure:"timezone" json:"timezone"`
	Times       []string      `mapstructure:"times" json:"times"`
	SettleDelay time.Duration `mapstructure:"settle-delay" json:"settle_delay"`
}

type CycleConfig struct {
	EvaluationDelay time.Duration `mapstructure:"evaluation-delay" json:"evaluation_delay"`
}

type ReportConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" json:"port"`
}

type DispatchConfig struct {
	QueueSize int `mapstructure:"queue-size" json:"queue_size"`
}

// SetDefaults registers every key so that environment overrides are picked
// up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat-id", "")

	v.SetDefault("ai.profile", ai.DefaultProfile)
	v.SetDefault("ai.rejection-marker", ai.DefaultRejectionMarker)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("ai.gemini.max-attempts", 1)
	v.SetDefault("ai.gemini.timeout", 60*time.Second)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("search.queries", finder.DefaultQueries)
	v.SetDefault("search.results-per-query", 3)
	v.SetDefault("search.user-agent", search.UserAgent)

	v.SetDefault("extract.max-chars", jobs.MaxTextRunes)
	v.SetDefault("extract.timeout", 10*time.Second)

	v.SetDefault("schedule.timezone", schedule.DefaultTimezone)
	v.SetDefault("schedule.times", schedule.DefaultTimes)
	v.SetDefault("schedule.settle-delay", 5*time.Second)

	v.SetDefault("cycle.evaluation-delay", 2*time.Second)
	v.SetDefault("report.path", journal.DefaultPath)
	v.SetDefault("server.port", server.DefaultPort)
	v.SetDefault("dispatch.queue-size", dispatch.DefaultQueueSize)
}

// legacyEnv maps keys to the plain variable names used by existing deployments.
var legacyEnv = map[string]string{
	"telegram.token":         "TELEGRAM_TOKEN",
	"telegram.chat-id":       "TELEGRAM_CHAT_ID",
	"ai.gemini.api-key":      "GEMINI_API_KEY",
	"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	"schedule.timezone":      "TZ_NAME",
	"server.port":            "PORT",
}

// BindEnv enables JOB_HUNTER_* variables for every key plus the legacy names.
// A prefixed variable wins over its legacy twin.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", legacy, err)
		}
	}

	return nil
}

// ReadFile reads path, or job-hunter.yaml from the working directory when path
// is empty. Only an explicitly given file has to exist.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return nil
	}

	return fmt.Errorf("reading config file: %w", err)
}

// LoadDotenv exports variables from a .env file without overriding the
// environment. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))

	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Search.Queries = compact(cfg.Search.Queries)
	cfg.Schedule.Times = compact(cfg.Schedule.Times)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Search.Queries) == 0 {
		errs = append(errs, errors.New("search.queries must not be empty"))
	}
	if c.Search.ResultsPerQuery <= 0 {
		errs = append(errs, fmt.Errorf("search.results-per-query must be positive, got %d", c.Search.ResultsPerQuery))
	}
	if c.Extract.MaxChars <= 0 || c.Extract.MaxChars > jobs.MaxTextRunes {
		errs = append(errs, fmt.Errorf("extract.max-chars must be between 1 and %d, got %d", jobs.MaxTextRunes, c.Extract.MaxChars))
	}
	if strings.TrimSpace(c.AI.RejectionMarker) == "" {
		errs = append(errs, errors.New("ai.rejection-marker must not be empty"))
	}
	if c.AI.Gemini.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("ai.gemini.max-attempts must be at least 1, got %d", c.AI.Gemini.MaxAttempts))
	}
	if c.Cycle.EvaluationDelay < 0 {
		errs = append(errs, errors.New("cycle.evaluation-delay must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port))
	}
	if c.Dispatch.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.queue-size must be positive, got %d", c.Dispatch.QueueSize))
	}
	if strings.TrimSpace(c.Report.Path) == "" {
		errs = append(errs, errors.New("report.path must not be empty"))
	}
	if _, err := c.BuildSchedule(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// BuildSchedule parses the schedule section.
func (c *Config) BuildSchedule() (*schedule.Schedule, error) {
	return schedule.New(c.Schedule.Timezone, c.Schedule.Times)
}

// GeminiAPIKey resolves the key from ai.gemini.api-key-file or ai.gemini.api-key.
func (c *Config) GeminiAPIKey() (string, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: c.AI.Gemini.APIKey,
		File:  c.AI.Gemini.APIKeyFile,
	})
	if errors.Is(err, secrets.ErrNotConfigured) {
		return "", fmt.Errorf("%w: set GEMINI_API_KEY or GEMINI_API_KEY_FILE", ErrMissingAPIKey)
	}
	return key, err
}

// Redacted returns a copy that is safe to log.
func (c *Config) Redacted() Config {
	r := *c
	r.Telegram.Token = secrets.Mask(r.Telegram.Token)
	r.AI.Gemini.APIKey = secrets.Mask(r.AI.Gemini.APIKey)
	return r
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
