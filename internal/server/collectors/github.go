package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/netx"
)

const (
	githubUserAgent       = "howyoubeen/1.0"
	githubLanguageRepos   = 10
	githubMaxMessages     = 10
	githubMessagesPerPush = 3
	githubPrimaryLangs    = 5
	githubMaxBody         = 5 << 20
)

// GitHubCollector reads a user's public profile, repositories, recent push
// activity and language mix from the GitHub REST API.
type GitHubCollector struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rateLimiter
	log     logging.Logger
	now     func() time.Time
}

func NewGitHubCollector(baseURL, token string, timeout time.Duration, log logging.Logger) *GitHubCollector {
	return &GitHubCollector{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		limiter: newRateLimiter(),
		log:     log,
		now:     time.Now,
	}
}

func (c *GitHubCollector) Platform() string { return PlatformGitHub }

type githubEvent struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Payload   struct {
		Size    int `json:"size"`
		Commits []struct {
			Message string `json:"message"`
		} `json:"commits"`
	} `json:"payload"`
}

// Fetch collects everything for username. Profile and repository failures
// abort; events and per-repo languages are best effort.
func (c *GitHubCollector) Fetch(ctx context.Context, username string, creds Credentials) (RawData, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, &CollectorError{Platform: PlatformGitHub, Op: "validate", Err: fmt.Errorf("%w: empty username", common.ErrInvalidInput)}
	}
	token := creds.Token
	if token == "" {
		token = c.token
	}
	user := url.PathEscape(username)

	var profile GitHubProfile
	if err := c.getJSON(ctx, "profile", "/users/"+user, nil, token, &profile); err != nil {
		return nil, err
	}

	var repos []GitHubRepository
	q := url.Values{"sort": {"updated"}, "direction": {"desc"}, "per_page": {"100"}}
	if err := c.getJSON(ctx, "repositories", "/users/"+user+"/repos", q, token, &repos); err != nil {
		return nil, err
	}
	sort.SliceStable(repos, func(i, j int) bool { return repos[i].UpdatedAt.After(repos[j].UpdatedAt) })

	now := c.now()
	activity := c.activity(ctx, user, token, now)
	activity.LanguagesUsed = c.languages(ctx, repos, token)

	stars := 0
	for _, r := range repos {
		stars += r.Stars
	}

	data := &GitHubData{
		Username:     username,
		Profile:      profile,
		Repositories: repos,
		Activity:     activity,
		Summary: GitHubSummary{
			TotalRepositories: len(repos),
			TotalStars:        stars,
			PrimaryLanguages:  TopLanguages(activity.LanguagesUsed, githubPrimaryLangs),
			ActivityLevel:     ActivityLevel(activity.CommitsLast30Days),
		},
		CollectedAt: now,
	}

	c.log.Info(ctx, "github data collected",
		"username", username,
		"repositories", len(repos),
		"commits_30d", activity.CommitsLast30Days,
		"languages", len(activity.LanguagesUsed))
	return data, nil
}

func (c *GitHubCollector) activity(ctx context.Context, user, token string, now time.Time) GitHubActivity {
	var events []githubEvent
	q := url.Values{"per_page": {"30"}}
	if err := c.getJSON(ctx, "events", "/users/"+user+"/events/public", q, token, &events); err != nil {
		c.log.Warn(ctx, "could not fetch github events", "username", user, "error", err)
		return GitHubActivity{}
	}

	since := now.AddDate(0, 0, -30)
	var a GitHubActivity
	for _, ev := range events {
		if ev.Type != "PushEvent" || !ev.CreatedAt.After(since) {
			continue
		}
		n := len(ev.Payload.Commits)
		if n == 0 {
			n = ev.Payload.Size
		}
		a.CommitsLast30Days += n

		for i, commit := range ev.Payload.Commits {
			if i >= githubMessagesPerPush || len(a.RecentCommitMessages) >= githubMaxMessages {
				break
			}
			a.RecentCommitMessages = append(a.RecentCommitMessages, commit.Message)
		}
	}
	return a
}

// languages sums bytes per language over the most recently updated
// non-fork repositories.
func (c *GitHubCollector) languages(ctx context.Context, repos []GitHubRepository, token string) map[string]int {
	out := make(map[string]int)
	checked := 0
	for _, r := range repos {
		if checked >= githubLanguageRepos {
			break
		}
		if r.Fork || r.FullName == "" {
			continue
		}
		checked++

		var langs map[string]int
		if err := c.getJSON(ctx, "languages", "/repos/"+r.FullName+"/languages", nil, token, &langs); err != nil {
			c.log.Warn(ctx, "could not fetch repository languages", "repository", r.FullName, "error", err)
			continue
		}
		for lang, n := range langs {
			out[lang] += n
		}
	}
	return out
}

func (c *GitHubCollector) getJSON(ctx context.Context, op, path string, q url.Values, token string, out any) error {
	if err := c.limiter.wait(ctx); err != nil {
		return &CollectorError{Platform: PlatformGitHub, Op: op, Err: err}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &CollectorError{Platform: PlatformGitHub, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", githubUserAgent)
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(ctx, PlatformGitHub, op, err)
	}
	defer resp.Body.Close()

	c.limiter.update(resp.Header)

	body, err := netx.ReadLimited(resp.Body, githubMaxBody)
	if err != nil {
		return transportError(ctx, PlatformGitHub, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(PlatformGitHub, op, resp.StatusCode, body, c.limiter.exhausted())
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &CollectorError{Platform: PlatformGitHub, Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// TopLanguages returns up to n languages ordered by bytes, ties by name.
func TopLanguages(langs map[string]int, n int) []string {
	names := make([]string, 0, len(langs))
	for l := range langs {
		names = append(names, l)
	}
	sort.Slice(names, func(i, j int) bool {
		if langs[names[i]] != langs[names[j]] {
			return langs[names[i]] > langs[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
