package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/howyoubeen/internal/timex"
)

// JsonConfig is the on-disk shape of a configuration file. Durations use
// timex.Duration so both "30s" and integer nanoseconds are accepted.
// Zero values leave the lower layer untouched.
type JsonConfig struct {
	DatabaseDSN           string         `json:"database_dsn"`
	LogLevel              string         `json:"log_level"`
	LogFormat             string         `json:"log_format"`
	SecretKey             string         `json:"secret_key"`
	LLMAPIKey             string         `json:"llm_api_key"`
	LLMBaseURL            string         `json:"llm_base_url"`
	LLMModel              string         `json:"llm_model"`
	NewsletterModel       string         `json:"newsletter_model"`
	LLMTimeout            timex.Duration `json:"llm_timeout"`
	ExtractionTemperature float64        `json:"extraction_temperature"`
	ExtractionMaxTokens   int            `json:"extraction_max_tokens"`
	GitHubBaseURL         string         `json:"github_base_url"`
	GitHubToken           string         `json:"github_token"`
	FirecrawlBaseURL      string         `json:"firecrawl_base_url"`
	FirecrawlAPIKey       string         `json:"firecrawl_api_key"`
	HTTPTimeout           timex.Duration `json:"http_timeout"`
	SessionTTL            timex.Duration `json:"session_ttl"`
	ShareTokenTTL         timex.Duration `json:"share_token_ttl"`
	DefaultVisibility     string         `json:"default_visibility"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	SMTPAddr              string         `json:"smtp_addr"`
	SMTPUser              string         `json:"smtp_user"`
	SMTPPassword          string         `json:"smtp_password"`
	NewsletterFrom        string         `json:"newsletter_from"`
}

// parseJson overlays values from the JSON file at path onto config.
func parseJson(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LLMAPIKey, c.LLMAPIKey)
	setString(&config.LLMBaseURL, c.LLMBaseURL)
	setString(&config.LLMModel, c.LLMModel)
	setString(&config.NewsletterModel, c.NewsletterModel)
	if c.LLMTimeout.Duration > 0 {
		config.LLMTimeout = c.LLMTimeout.Duration
	}
	if c.ExtractionTemperature > 0 {
		config.ExtractionTemperature = c.ExtractionTemperature
	}
	if c.ExtractionMaxTokens > 0 {
		config.ExtractionMaxTokens = c.ExtractionMaxTokens
	}
	setString(&config.GitHubBaseURL, c.GitHubBaseURL)
	setString(&config.GitHubToken, c.GitHubToken)
	setString(&config.FirecrawlBaseURL, c.FirecrawlBaseURL)
	setString(&config.FirecrawlAPIKey, c.FirecrawlAPIKey)
	if c.HTTPTimeout.Duration > 0 {
		config.HTTPTimeout = c.HTTPTimeout.Duration
	}
	if c.SessionTTL.Duration > 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.ShareTokenTTL.Duration > 0 {
		config.ShareTokenTTL = c.ShareTokenTTL.Duration
	}
	setString(&config.DefaultVisibility, c.DefaultVisibility)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SMTPAddr, c.SMTPAddr)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.NewsletterFrom, c.NewsletterFrom)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
