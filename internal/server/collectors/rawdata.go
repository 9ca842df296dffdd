package collectors

import "time"

// RawData is the tagged result of one collection. The concrete types are
// the only implementations.
type RawData interface {
	Platform() string
	Collected() time.Time
	rawData()
}

type GitHubProfile struct {
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	Bio         string    `json:"bio"`
	Location    string    `json:"location"`
	Blog        string    `json:"blog"`
	Company     string    `json:"company"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}

type GitHubRepository struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	Topics      []string  `json:"topics"`
	Fork        bool      `json:"fork"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
}

type GitHubActivity struct {
	CommitsLast30Days    int
	RecentCommitMessages []string
	// LanguagesUsed is bytes of code per language.
	LanguagesUsed map[string]int
}

type GitHubSummary struct {
	TotalRepositories int
	TotalStars        int
	PrimaryLanguages  []string
	ActivityLevel     string
}

type GitHubData struct {
	Username     string
	Profile      GitHubProfile
	Repositories []GitHubRepository
	Activity     GitHubActivity
	Summary      GitHubSummary
	CollectedAt  time.Time
}

func (*GitHubData) Platform() string       { return PlatformGitHub }
func (d *GitHubData) Collected() time.Time { return d.CollectedAt }
func (*GitHubData) rawData()               {}

type WebsitePage struct {
	URL     string
	Title   string
	Content string
}

type WebsiteData struct {
	URL         string
	Title       string
	Description string
	MainContent string
	Pages       []WebsitePage
	TotalPages  int
	CollectedAt time.Time
}

func (*WebsiteData) Platform() string       { return PlatformWebsite }
func (d *WebsiteData) Collected() time.Time { return d.CollectedAt }
func (*WebsiteData) rawData()               {}

// DocumentData is text pulled out of an uploaded document.
type DocumentData struct {
	Filename    string
	Description string
	Text        string
	CollectedAt time.Time
}

func (*DocumentData) Platform() string       { return PlatformDocument }
func (d *DocumentData) Collected() time.Time { return d.CollectedAt }
func (*DocumentData) rawData()               {}

// ActivityLevel buckets a 30-day commit count.
func ActivityLevel(commits int) string {
	switch {
	case commits > 10:
		return "high"
	case commits > 0:
		return "moderate"
	default:
		return "low"
	}
}
