package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"database_dsn": "from-json",
		"log_level":    "warn",
		"s3_region":    "eu-west-1",
	})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-c", path, "--log-level", "debug", "--session-ttl", "2h", "--smtp-addr", "mail:25"}))

	cfg, err := f.load(lookupFrom(map[string]string{
		"HOWYOUBEEN_DATABASE_DSN": "from-env",
		"ANTHROPIC_API_KEY":       "sk-test",
		"HOWYOUBEEN_LOG_LEVEL":    "error",
		"NEWSLETTER_PASSWORD":     "app-password",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.DatabaseDSN, "env beats json")
	assert.Equal(t, "debug", cfg.LogLevel, "flag beats env")
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "secretKey", cfg.SecretKey, "unset flag does not override")
	assert.Equal(t, "mail:25", cfg.SMTPAddr)
	assert.Equal(t, "app-password", cfg.SMTPPassword)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"github_token": "ghp"})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := f.load(lookupFrom(map[string]string{"HOWYOUBEEN_CONFIG": path}))
	require.NoError(t, err)
	assert.Equal(t, "ghp", cfg.GitHubToken)
}

func TestLoad_Invalid(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--default-visibility", "nobody"}))

	_, err := f.load(lookupFrom(nil))
	assert.ErrorContains(t, err, "invalid configuration")
}
