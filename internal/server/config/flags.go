package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// Flags binds configuration flags to a FlagSet. Only flags the user
// explicitly set override the lower layers.
type Flags struct {
	fs         *pflag.FlagSet
	configPath string
	values     Config
}

// RegisterFlags declares the configuration flags on fs, typically the
// persistent flags of the root command.
//
//	-c, --config string          JSON configuration file
//	-d, --database-dsn string    PostgreSQL DSN
//	-s, --secret-key string      sealing and signing secret
//	    --log-level, --log-format
//	    --llm-api-key, --llm-base-url, --llm-model, --newsletter-model, --llm-timeout
//	    --github-base-url, --github-token, --firecrawl-base-url, --firecrawl-api-key
//	    --http-timeout, --session-ttl, --share-token-ttl, --default-visibility
//	    --s3-user, --s3-password, --s3-bucket, --s3-region, --s3-endpoint
//	    --smtp-addr, --smtp-user, --smtp-password, --newsletter-from
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	f.values.LoadDefaults()
	v := &f.values

	fs.StringVarP(&f.configPath, "config", "c", "", "JSON configuration file")
	fs.StringVarP(&v.DatabaseDSN, "database-dsn", "d", v.DatabaseDSN, "database DSN")
	fs.StringVarP(&v.SecretKey, "secret-key", "s", v.SecretKey, "secret key")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&v.LogFormat, "log-format", v.LogFormat, "log format (text|json)")

	fs.StringVar(&v.LLMAPIKey, "llm-api-key", "", "Anthropic API key (empty disables the LLM)")
	fs.StringVar(&v.LLMBaseURL, "llm-base-url", v.LLMBaseURL, "Anthropic API base URL")
	fs.StringVar(&v.LLMModel, "llm-model", v.LLMModel, "model used for extraction")
	fs.StringVar(&v.NewsletterModel, "newsletter-model", v.NewsletterModel, "model used for newsletters")
	fs.DurationVar(&v.LLMTimeout, "llm-timeout", v.LLMTimeout, "per-call LLM timeout")

	fs.StringVar(&v.GitHubBaseURL, "github-base-url", v.GitHubBaseURL, "GitHub API base URL")
	fs.StringVar(&v.GitHubToken, "github-token", "", "GitHub token")
	fs.StringVar(&v.FirecrawlBaseURL, "firecrawl-base-url", v.FirecrawlBaseURL, "Firecrawl API base URL")
	fs.StringVar(&v.FirecrawlAPIKey, "firecrawl-api-key", "", "Firecrawl API key")
	fs.DurationVar(&v.HTTPTimeout, "http-timeout", v.HTTPTimeout, "collector HTTP timeout")

	fs.DurationVar(&v.SessionTTL, "session-ttl", v.SessionTTL, "onboarding session lifetime")
	fs.DurationVar(&v.ShareTokenTTL, "share-token-ttl", v.ShareTokenTTL, "share token lifetime")
	fs.StringVar(&v.DefaultVisibility, "default-visibility", v.DefaultVisibility, "tier used when no category is configured")

	fs.StringVar(&v.S3RootUser, "s3-user", v.S3RootUser, "S3 root user")
	fs.StringVar(&v.S3RootPassword, "s3-password", v.S3RootPassword, "S3 root password")
	fs.StringVar(&v.S3Bucket, "s3-bucket", v.S3Bucket, "S3 bucket")
	fs.StringVar(&v.S3Region, "s3-region", v.S3Region, "S3 region")
	fs.StringVar(&v.S3BaseEndpoint, "s3-endpoint", v.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&v.SMTPAddr, "smtp-addr", "", "SMTP host:port for newsletters (empty logs them)")
	fs.StringVar(&v.SMTPUser, "smtp-user", "", "SMTP user")
	fs.StringVar(&v.SMTPPassword, "smtp-password", "", "SMTP password")
	fs.StringVar(&v.NewsletterFrom, "newsletter-from", v.NewsletterFrom, "From header of newsletters")
	return f
}

// Load builds a Config: defaults, then the JSON file, then the
// environment, then explicitly set flags.
func (f *Flags) Load() (*Config, error) {
	return f.load(os.LookupEnv)
}

func (f *Flags) load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path := f.configPath
	if path == "" {
		path, _ = lookup("HOWYOUBEEN_CONFIG")
	}
	if path != "" {
		if err := parseJson(cfg, path); err != nil {
			return nil, err
		}
	}

	parseEnv(cfg, lookup)

	// Changed is recorded on the shared *Flag, so this also works for
	// persistent flags that cobra parsed through a merged FlagSet.
	f.fs.VisitAll(func(fl *pflag.Flag) {
		if fl.Changed {
			f.apply(cfg, fl.Name)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config, name string) {
	v := &f.values
	switch name {
	case "config":
	case "database-dsn":
		cfg.DatabaseDSN = v.DatabaseDSN
	case "secret-key":
		cfg.SecretKey = v.SecretKey
	case "log-level":
		cfg.LogLevel = v.LogLevel
	case "log-format":
		cfg.LogFormat = v.LogFormat
	case "llm-api-key":
		cfg.LLMAPIKey = v.LLMAPIKey
	case "llm-base-url":
		cfg.LLMBaseURL = v.LLMBaseURL
	case "llm-model":
		cfg.LLMModel = v.LLMModel
	case "newsletter-model":
		cfg.NewsletterModel = v.NewsletterModel
	case "llm-timeout":
		cfg.LLMTimeout = v.LLMTimeout
	case "github-base-url":
		cfg.GitHubBaseURL = v.GitHubBaseURL
	case "github-token":
		cfg.GitHubToken = v.GitHubToken
	case "firecrawl-base-url":
		cfg.FirecrawlBaseURL = v.FirecrawlBaseURL
	case "firecrawl-api-key":
		cfg.FirecrawlAPIKey = v.FirecrawlAPIKey
	case "http-timeout":
		cfg.HTTPTimeout = v.HTTPTimeout
	case "session-ttl":
		cfg.SessionTTL = v.SessionTTL
	case "share-token-ttl":
		cfg.ShareTokenTTL = v.ShareTokenTTL
	case "default-visibility":
		cfg.DefaultVisibility = v.DefaultVisibility
	case "s3-user":
		cfg.S3RootUser = v.S3RootUser
	case "s3-password":
		cfg.S3RootPassword = v.S3RootPassword
	case "s3-bucket":
		cfg.S3Bucket = v.S3Bucket
	case "s3-region":
		cfg.S3Region = v.S3Region
	case "s3-endpoint":
		cfg.S3BaseEndpoint = v.S3BaseEndpoint
	case "smtp-addr":
		cfg.SMTPAddr = v.SMTPAddr
	case "smtp-user":
		cfg.SMTPUser = v.SMTPUser
	case "smtp-password":
		cfg.SMTPPassword = v.SMTPPassword
	case "newsletter-from":
		cfg.NewsletterFrom = v.NewsletterFrom
	}
}
