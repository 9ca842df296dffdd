package collectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/netx"
)

const (
	websiteMaxBody = 5 << 20

	crawlLimit    = 10
	crawlMaxDepth = 2
	crawlMaxPolls = 60
)

// crawlExcludePaths applies to both crawl modes. A trailing "*" matches
// the whole subtree.
var crawlExcludePaths = []string{"/admin/*", "/wp-admin/*", "/login", "/contact"}

// WebsiteCollector crawls a personal site, at most crawlLimit pages and
// crawlMaxDepth links away from the start page. With a Firecrawl key the
// crawl runs as a Firecrawl job, falling back to a single Firecrawl scrape
// when the job fails; otherwise pages are fetched directly and readable
// text is extracted locally.
type WebsiteCollector struct {
	client       *http.Client
	firecrawlURL string
	firecrawlKey string
	log          logging.Logger
	now          func() time.Time
	pollEvery    time.Duration
}

func NewWebsiteCollector(firecrawlURL, firecrawlKey string, timeout time.Duration, log logging.Logger) *WebsiteCollector {
	return &WebsiteCollector{
		client:       &http.Client{Timeout: timeout},
		firecrawlURL: strings.TrimRight(firecrawlURL, "/"),
		firecrawlKey: firecrawlKey,
		log:          log,
		now:          time.Now,
		pollEvery:    5 * time.Second,
	}
}

func (c *WebsiteCollector) Platform() string { return PlatformWebsite }

func (c *WebsiteCollector) Fetch(ctx context.Context, rawURL string, _ Credentials) (RawData, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, &CollectorError{Platform: PlatformWebsite, Op: "validate", Err: err}
	}

	var (
		pages []WebsitePage
		head  htmlPage
	)
	if c.firecrawlKey != "" {
		pages, head, err = c.firecrawl(ctx, target)
	} else {
		pages, head, err = c.crawlDirect(ctx, target)
	}
	if err != nil {
		return nil, err
	}

	data := &WebsiteData{
		URL:         target,
		Title:       head.title,
		Description: head.description,
		MainContent: pages[0].Content,
		Pages:       pages,
		TotalPages:  len(pages),
		CollectedAt: c.now(),
	}
	c.log.Info(ctx, "website scraped", "url", target, "pages", len(pages),
		"content_length", len(data.MainContent), "firecrawl", c.firecrawlKey != "")
	return data, nil
}

// crawlDirect walks same-host links breadth first. Only the start page
// must succeed; later pages that fail are skipped.
func (c *WebsiteCollector) crawlDirect(ctx context.Context, target string) ([]WebsitePage, htmlPage, error) {
	root, err := url.Parse(target)
	if err != nil {
		return nil, htmlPage{}, &CollectorError{Platform: PlatformWebsite, Op: "validate", Err: err}
	}

	first, err := c.scrapeDirect(ctx, target)
	if err != nil {
		return nil, htmlPage{}, err
	}
	pages := []WebsitePage{{URL: target, Title: first.title, Content: first.text}}

	type queued struct {
		url   string
		depth int
	}
	seen := map[string]bool{pageKey(root): true}
	var queue []queued
	enqueue := func(base *url.URL, hrefs []string, depth int) {
		for _, href := range hrefs {
			u, ok := crawlCandidate(root, base, href)
			if !ok || seen[pageKey(u)] {
				continue
			}
			seen[pageKey(u)] = true
			queue = append(queue, queued{url: u.String(), depth: depth})
		}
	}
	enqueue(root, first.links, 1)

	for len(queue) > 0 && len(pages) < crawlLimit {
		next := queue[0]
		queue = queue[1:]

		page, err := c.scrapeDirect(ctx, next.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, htmlPage{}, err
			}
			c.log.Debug(ctx, "skipping page", "url", next.url, "error", err)
			continue
		}
		pages = append(pages, WebsitePage{URL: next.url, Title: page.title, Content: page.text})

		if next.depth < crawlMaxDepth {
			base, _ := url.Parse(next.url)
			enqueue(base, page.links, next.depth+1)
		}
	}
	return pages, first, nil
}

// crawlCandidate resolves href against base and keeps it only when it
// stays on the root host and is not excluded.
func crawlCandidate(root, base *url.URL, href string) (*url.URL, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if (u.Scheme != "http" && u.Scheme != "https") || !strings.EqualFold(u.Host, root.Host) {
		return nil, false
	}
	if excludedPath(u.Path) {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

func excludedPath(p string) bool {
	clean := strings.TrimRight(p, "/")
	for _, pat := range crawlExcludePaths {
		if prefix, ok := strings.CutSuffix(pat, "*"); ok {
			if strings.HasPrefix(p, prefix) || clean == strings.TrimSuffix(prefix, "/") {
				return true
			}
		} else if clean == pat {
			return true
		}
	}
	return false
}

func pageKey(u *url.URL) string {
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		p = "/"
	}
	return strings.ToLower(u.Host) + p + "?" + u.RawQuery
}

func (c *WebsiteCollector) scrapeDirect(ctx context.Context, target string) (htmlPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return htmlPage{}, &CollectorError{Platform: PlatformWebsite, Op: "fetch", Err: err}
	}
	req.Header.Set("User-Agent", githubUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return htmlPage{}, transportError(ctx, PlatformWebsite, "fetch", err)
	}
	defer resp.Body.Close()

	body, err := netx.ReadLimited(resp.Body, websiteMaxBody)
	if err != nil {
		return htmlPage{}, transportError(ctx, PlatformWebsite, "fetch", err)
	}
	if resp.StatusCode != http.StatusOK {
		return htmlPage{}, statusError(PlatformWebsite, "fetch", resp.StatusCode, body, false)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return htmlPage{}, &CollectorError{Platform: PlatformWebsite, Op: "parse", Err: fmt.Errorf("%w: not an html page (%s)", common.ErrInvalidInput, ct)}
	}

	page, err := parseHTML(string(body))
	if err != nil {
		return htmlPage{}, &CollectorError{Platform: PlatformWebsite, Op: "parse", Err: err}
	}
	if page.text == "" {
		return htmlPage{}, &CollectorError{Platform: PlatformWebsite, Op: "parse", Err: fmt.Errorf("%w: no text content found", common.ErrInvalidInput)}
	}
	return page, nil
}

type firecrawlScrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	ExcludeTags     []string `json:"excludeTags"`
}

var defaultScrapeOptions = firecrawlScrapeOptions{
	Formats:         []string{"markdown"},
	OnlyMainContent: true,
	ExcludeTags:     []string{"script", "style", "nav", "footer", "header"},
}

type firecrawlRequest struct {
	URL string `json:"url"`
	firecrawlScrapeOptions
}

type firecrawlCrawlRequest struct {
	URL           string                 `json:"url"`
	MaxDepth      int                    `json:"maxDepth"`
	Limit         int                    `json:"limit"`
	ExcludePaths  []string               `json:"excludePaths"`
	ScrapeOptions firecrawlScrapeOptions `json:"scrapeOptions"`
}

type firecrawlDocument struct {
	Markdown string `json:"markdown"`
	Metadata struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		SourceURL   string `json:"sourceURL"`
	} `json:"metadata"`
}

type firecrawlResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Data    firecrawlDocument `json:"data"`
}

type firecrawlCrawlStarted struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	ID      string `json:"id"`
}

type firecrawlCrawlStatus struct {
	Status string              `json:"status"`
	Error  string              `json:"error"`
	Data   []firecrawlDocument `json:"data"`
}

var errCrawlEmpty = errors.New("crawl returned no pages")

// firecrawl runs a crawl job and falls back to a single scrape when the
// job cannot produce pages.
func (c *WebsiteCollector) firecrawl(ctx context.Context, target string) ([]WebsitePage, htmlPage, error) {
	pages, err := c.crawlFirecrawl(ctx, target)
	if err == nil {
		first := pages[0]
		head := htmlPage{title: first.Title, description: first.description}
		return toWebsitePages(pages), head, nil
	}
	if ctx.Err() != nil {
		return nil, htmlPage{}, transportError(ctx, PlatformWebsite, "crawl", ctx.Err())
	}
	c.log.Warn(ctx, "firecrawl crawl failed, falling back to single page scrape", "url", target, "error", err)

	page, err := c.scrapeFirecrawl(ctx, target)
	if err != nil {
		return nil, htmlPage{}, err
	}
	return []WebsitePage{{URL: target, Title: page.title, Content: page.text}}, page, nil
}

type crawledPage struct {
	WebsitePage
	description string
}

func toWebsitePages(in []crawledPage) []WebsitePage {
	out := make([]WebsitePage, len(in))
	for i, p := range in {
		out[i] = p.WebsitePage
	}
	return out
}

func (c *WebsiteCollector) crawlFirecrawl(ctx context.Context, target string) ([]crawledPage, error) {
	var started firecrawlCrawlStarted
	err := c.firecrawlCall(ctx, http.MethodPost, "/v1/crawl", "crawl", firecrawlCrawlRequest{
		URL:           target,
		MaxDepth:      crawlMaxDepth,
		Limit:         crawlLimit,
		ExcludePaths:  crawlExcludePaths,
		ScrapeOptions: defaultScrapeOptions,
	}, &started)
	if err != nil {
		return nil, err
	}
	if !started.Success || started.ID == "" {
		return nil, &CollectorError{Platform: PlatformWebsite, Op: "crawl", Err: fmt.Errorf("firecrawl: no crawl id: %s", started.Error)}
	}

	for attempt := 0; attempt < crawlMaxPolls; attempt++ {
		var st firecrawlCrawlStatus
		if err := c.firecrawlCall(ctx, http.MethodGet, "/v1/crawl/"+url.PathEscape(started.ID), "crawl", nil, &st); err != nil {
			return nil, err
		}
		switch st.Status {
		case "completed":
			return crawledPages(st.Data, target)
		case "failed", "cancelled":
			return nil, &CollectorError{Platform: PlatformWebsite, Op: "crawl", Err: fmt.Errorf("firecrawl crawl %s: %s", st.Status, st.Error)}
		}
		if err := sleepCtx(ctx, c.pollEvery); err != nil {
			return nil, transportError(ctx, PlatformWebsite, "crawl", err)
		}
	}
	return nil, &CollectorError{Platform: PlatformWebsite, Op: "crawl", Retryable: true,
		Err: fmt.Errorf("firecrawl crawl %s did not finish after %d polls", started.ID, crawlMaxPolls)}
}

func crawledPages(docs []firecrawlDocument, target string) ([]crawledPage, error) {
	var out []crawledPage
	for _, d := range docs {
		text := strings.TrimSpace(d.Markdown)
		if text == "" {
			continue
		}
		u := d.Metadata.SourceURL
		if u == "" {
			u = target
		}
		out = append(out, crawledPage{
			WebsitePage: WebsitePage{URL: u, Title: d.Metadata.Title, Content: text},
			description: d.Metadata.Description,
		})
		if len(out) == crawlLimit {
			break
		}
	}
	if len(out) == 0 {
		return nil, &CollectorError{Platform: PlatformWebsite, Op: "crawl", Err: errCrawlEmpty}
	}
	return out, nil
}

func (c *WebsiteCollector) scrapeFirecrawl(ctx context.Context, target string) (htmlPage, error) {
	var fr firecrawlResponse
	err := c.firecrawlCall(ctx, http.MethodPost, "/v1/scrape", "scrape",
		firecrawlRequest{URL: target, firecrawlScrapeOptions: defaultScrapeOptions}, &fr)
	if err != nil {
		return htmlPage{}, err
	}
	if !fr.Success {
		return htmlPage{}, &CollectorError{Platform: PlatformWebsite, Op: "scrape", Err: fmt.Errorf("firecrawl: %s", fr.Error)}
	}

	return htmlPage{
		title:       fr.Data.Metadata.Title,
		description: fr.Data.Metadata.Description,
		text:        strings.TrimSpace(fr.Data.Markdown),
	}, nil
}

// firecrawlCall sends an authenticated request and decodes a 200 response
// into out. A nil payload sends no body.
func (c *WebsiteCollector) firecrawlCall(ctx context.Context, method, path, op string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return &CollectorError{Platform: PlatformWebsite, Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.firecrawlURL+path, body)
	if err != nil {
		return &CollectorError{Platform: PlatformWebsite, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.firecrawlKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(ctx, PlatformWebsite, op, err)
	}
	defer resp.Body.Close()

	respBody, err := netx.ReadLimited(resp.Body, websiteMaxBody)
	if err != nil {
		return transportError(ctx, PlatformWebsite, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(PlatformWebsite, op, resp.StatusCode, respBody, false)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &CollectorError{Platform: PlatformWebsite, Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", common.ErrInvalidInput)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url: %v", common.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", common.ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url has no host", common.ErrInvalidInput)
	}
	return u.String(), nil
}
