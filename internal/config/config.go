package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/aescanero/dago-node-triage/internal/retry"
)

// Config holds all configuration for the triage worker
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"triage-1"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"triage.inbox"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"triage-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"triage.outcomes"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`

	// Session store configuration
	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"redis"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"0s"`

	// Retry configuration for classify and search
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`

	// Classifier configuration
	Classifier   string        `env:"CLASSIFIER" envDefault:"keyword"`
	LLMProvider  string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	LLMAPIKey    string        `env:"LLM_API_KEY"`
	LLMModel     string        `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	LLMMaxTokens int           `env:"LLM_MAX_TOKENS" envDefault:"512"`
	LLMTimeout   time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	// Knowledge base; empty uses the built-in articles
	KBFile string `env:"KB_FILE"`

	// Sender configuration
	Sender             string `env:"SENDER" envDefault:"stdout"`
	SenderAddress      string `env:"SENDER_ADDRESS" envDefault:"support@example.com"`
	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	// Gmail inbox polling; disabled when no credentials file is set
	GmailCredentialsFile string        `env:"GMAIL_CREDENTIALS_FILE"`
	GmailTokenFile       string        `env:"GMAIL_TOKEN_FILE" envDefault:"./data/gmail-token.json"`
	GmailQuery           string        `env:"GMAIL_QUERY" envDefault:"is:unread in:inbox"`
	GmailPollInterval    time.Duration `env:"GMAIL_POLL_INTERVAL" envDefault:"1m"`

	// Review MCP endpoint
	ReviewAddr string `env:"REVIEW_ADDR" envDefault:":8083"`

	// Tracing configuration
	TraceEnabled bool   `env:"TRACE_ENABLED" envDefault:"false"`
	TraceFile    string `env:"TRACE_FILE"`

	// Health check configuration
	HealthPort int `env:"HEALTH_PORT" envDefault:"8082"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.StreamKey == "" {
		return fmt.Errorf("STREAM_KEY is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResultStream == "" {
		return fmt.Errorf("RESULT_STREAM is required")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of: memory, redis")
	}

	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must be non-negative")
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}

	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must be non-negative")
	}

	switch c.Classifier {
	case "keyword":
	case "llm":
		// LLM settings only matter when the LLM classifier is selected
		if c.LLMProvider == "" {
			return fmt.Errorf("LLM_PROVIDER is required")
		}
		if c.LLMModel == "" {
			return fmt.Errorf("LLM_MODEL is required")
		}
		if c.LLMMaxTokens <= 0 {
			return fmt.Errorf("LLM_MAX_TOKENS must be positive")
		}
		if c.LLMTimeout <= 0 {
			return fmt.Errorf("LLM_TIMEOUT must be positive")
		}
	default:
		return fmt.Errorf("CLASSIFIER must be one of: keyword, llm")
	}

	switch c.Sender {
	case "stdout":
	case "ses":
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required")
		}
		if c.SenderAddress == "" {
			return fmt.Errorf("SENDER_ADDRESS is required")
		}
	default:
		return fmt.Errorf("SENDER must be one of: stdout, ses")
	}

	if c.GmailCredentialsFile != "" && c.GmailPollInterval <= 0 {
		return fmt.Errorf("GMAIL_POLL_INTERVAL must be positive")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// RetryPolicy returns the retry policy for classify and search
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
	}
}

// GmailEnabled reports whether the Gmail inbox poller should run
func (c *Config) GmailEnabled() bool {
	return c.GmailCredentialsFile != ""
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisAddr=%s, RedisDB=%d, StreamKey=%s, ConsumerGroup=%s, "+
			"SessionBackend=%s, Classifier=%s, LLMProvider=%s, LLMModel=%s, Sender=%s, "+
			"Gmail=%v, ReviewAddr=%s, TraceEnabled=%v, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.RedisAddr,
		c.RedisDB,
		c.StreamKey,
		c.ConsumerGroup,
		c.SessionBackend,
		c.Classifier,
		c.LLMProvider,
		c.LLMModel,
		c.Sender,
		c.GmailEnabled(),
		c.ReviewAddr,
		c.TraceEnabled,
		c.HealthPort,
		c.LogLevel,
	)
}
