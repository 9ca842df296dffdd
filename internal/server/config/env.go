package config

// envBindings maps environment variables onto string fields. Provider
// credentials keep their conventional names.
var envBindings = []struct {
	name  string
	field func(*Config) *string
}{
	{"HOWYOUBEEN_DATABASE_DSN", func(c *Config) *string { return &c.DatabaseDSN }},
	{"HOWYOUBEEN_LOG_LEVEL", func(c *Config) *string { return &c.LogLevel }},
	{"HOWYOUBEEN_LOG_FORMAT", func(c *Config) *string { return &c.LogFormat }},
	{"HOWYOUBEEN_SECRET_KEY", func(c *Config) *string { return &c.SecretKey }},
	{"HOWYOUBEEN_DEFAULT_VISIBILITY", func(c *Config) *string { return &c.DefaultVisibility }},
	{"HOWYOUBEEN_S3_BUCKET", func(c *Config) *string { return &c.S3Bucket }},
	{"HOWYOUBEEN_S3_ENDPOINT", func(c *Config) *string { return &c.S3BaseEndpoint }},
	{"HOWYOUBEEN_SMTP_ADDR", func(c *Config) *string { return &c.SMTPAddr }},
	{"NEWSLETTER_EMAIL", func(c *Config) *string { return &c.SMTPUser }},
	{"NEWSLETTER_PASSWORD", func(c *Config) *string { return &c.SMTPPassword }},
	{"ANTHROPIC_API_KEY", func(c *Config) *string { return &c.LLMAPIKey }},
	{"GITHUB_TOKEN", func(c *Config) *string { return &c.GitHubToken }},
	{"FIRECRAWL_API_KEY", func(c *Config) *string { return &c.FirecrawlAPIKey }},
}

// parseEnv overlays non-empty environment variables onto config.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	for _, b := range envBindings {
		if v, ok := lookup(b.name); ok && v != "" {
			*b.field(config) = v
		}
	}
}
