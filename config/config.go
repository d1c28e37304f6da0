package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	DefaultModel     = "llama3.2"
	DefaultAPIKey    = "llama"
	DefaultAddr      = ":7860"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
)

// ContentFormat selects how page bodies are turned into corpus text.
type ContentFormat = string

const (
	FormatText     ContentFormat = "text"
	FormatMarkdown ContentFormat = "markdown"
)

// Config holds everything needed to run the brochure pipeline and its front ends.
type Config struct {
	// BaseURL of the OpenAI-compatible endpoint (OLLAMA_API).
	BaseURL string
	APIKey  string
	Model   string

	UserAgent     string
	FetchTimeout  time.Duration
	ContentFormat ContentFormat

	Addr     string
	LogLevel string

	SlackAppToken string
	SlackBotToken string
	// SlackUpdateInterval is the minimum delay between two edits of a streamed Slack message.
	SlackUpdateInterval time.Duration
}

// Load reads the environment after applying an optional .env file. Values from .env
// override variables that are already set.
func Load() (*Config, error) {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Overload()

	timeout, err := durationEnv("BROCHURE_FETCH_TIMEOUT", DefaultTimeout)
	if err != nil {
		return nil, err
	}

	interval, err := durationEnv("BROCHURE_SLACK_UPDATE_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:             os.Getenv("OLLAMA_API"),
		APIKey:              envOrDefault("BROCHURE_API_KEY", DefaultAPIKey),
		Model:               envOrDefault("BROCHURE_MODEL", DefaultModel),
		UserAgent:           envOrDefault("BROCHURE_USER_AGENT", DefaultUserAgent),
		FetchTimeout:        timeout,
		ContentFormat:       envOrDefault("BROCHURE_CONTENT_FORMAT", FormatText),
		Addr:                envOrDefault("BROCHURE_ADDR", DefaultAddr),
		LogLevel:            envOrDefault("BROCHURE_LOG_LEVEL", "info"),
		SlackAppToken:       os.Getenv("SLACK_APP_TOKEN"),
		SlackBotToken:       os.Getenv("SLACK_BOT_TOKEN"),
		SlackUpdateInterval: interval,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that can't be recovered from at call time. The base URL
// is deliberately not checked here.
func (c *Config) Validate() error {
	switch c.ContentFormat {
	case FormatText, FormatMarkdown:
	default:
		return errors.Errorf("unsupported content format: %s", c.ContentFormat)
	}

	if c.Model == "" {
		return errors.New("model must not be empty")
	}

	if c.FetchTimeout < 0 {
		return errors.New("fetch timeout must not be negative")
	}

	return nil
}

// SlackEnabled reports whether both Slack tokens are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackAppToken != "" && c.SlackBotToken != ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration for %s", key)
	}

	return d, nil
}
