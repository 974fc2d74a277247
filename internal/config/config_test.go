package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "triage-1", cfg.WorkerID)
	assert.Equal(t, "triage.inbox", cfg.StreamKey)
	assert.Equal(t, "redis", cfg.SessionBackend)
	assert.Equal(t, "keyword", cfg.Classifier)
	assert.Equal(t, "stdout", cfg.Sender)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.False(t, cfg.GmailEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("SESSION_TTL", "72h")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("SENDER", "ses")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "very-secret")
	t.Setenv("LLM_API_KEY", "sk-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Equal(t, 72*time.Hour, cfg.SessionTTL)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.BaseDelay)

	s := cfg.String()
	assert.NotContains(t, s, "very-secret")
	assert.NotContains(t, s, "sk-secret")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MAX_ATTEMPTS", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing worker id", mutate: func(c *Config) { c.WorkerID = "" }, wantErr: "WORKER_ID"},
		{name: "bad backend", mutate: func(c *Config) { c.SessionBackend = "etcd" }, wantErr: "SESSION_BACKEND"},
		{name: "negative ttl", mutate: func(c *Config) { c.SessionTTL = -time.Second }, wantErr: "SESSION_TTL"},
		{name: "zero attempts", mutate: func(c *Config) { c.MaxAttempts = 0 }, wantErr: "MAX_ATTEMPTS"},
		{name: "bad classifier", mutate: func(c *Config) { c.Classifier = "regex" }, wantErr: "CLASSIFIER"},
		{
			name: "llm without model",
			mutate: func(c *Config) {
				c.Classifier = "llm"
				c.LLMModel = ""
			},
			wantErr: "LLM_MODEL",
		},
		{
			name: "llm model ignored for keyword",
			mutate: func(c *Config) {
				c.LLMModel = ""
			},
		},
		{name: "bad sender", mutate: func(c *Config) { c.Sender = "smtp" }, wantErr: "SENDER"},
		{
			name: "ses without address",
			mutate: func(c *Config) {
				c.Sender = "ses"
				c.SenderAddress = ""
			},
			wantErr: "SENDER_ADDRESS",
		},
		{
			name: "gmail without interval",
			mutate: func(c *Config) {
				c.GmailCredentialsFile = "credentials.json"
				c.GmailPollInterval = 0
			},
			wantErr: "GMAIL_POLL_INTERVAL",
		},
		{name: "bad port", mutate: func(c *Config) { c.HealthPort = 70000 }, wantErr: "HEALTH_PORT"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}
