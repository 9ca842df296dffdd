package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	t.Run("overlays set fields only", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{
			"database_dsn":       "postgres://db",
			"llm_timeout":        "5s",
			"session_ttl":        int64(time.Hour),
			"default_visibility": "public",
			"s3_bucket":          "docs",
			"smtp_addr":          "smtp.example.com:587",
		})

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, path))

		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
		assert.Equal(t, time.Hour, cfg.SessionTTL)
		assert.Equal(t, "public", cfg.DefaultVisibility)
		assert.Equal(t, "docs", cfg.S3Bucket)
		assert.Equal(t, "smtp.example.com:587", cfg.SMTPAddr)
		assert.Equal(t, "HowYouBeen <noreply@howyoubeen.com>", cfg.NewsletterFrom)
		assert.Equal(t, "secretKey", cfg.SecretKey, "unset fields keep defaults")
		assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		assert.Error(t, parseJson(&Config{}, bad))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, parseJson(&Config{}, filepath.Join(t.TempDir(), "none.json")))
	})
}
