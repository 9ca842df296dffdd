// Package server wires configuration, storage, collectors and the LLM
// into the onboarding, newsletter, subscription, chat and refresh services.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/chat"
	"github.com/dmitrijs2005/howyoubeen/internal/server/collectors"
	"github.com/dmitrijs2005/howyoubeen/internal/server/config"
	"github.com/dmitrijs2005/howyoubeen/internal/server/delivery"
	"github.com/dmitrijs2005/howyoubeen/internal/server/extraction"
	"github.com/dmitrijs2005/howyoubeen/internal/server/knowledge"
	"github.com/dmitrijs2005/howyoubeen/internal/server/llm"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/server/newsletter"
	"github.com/dmitrijs2005/howyoubeen/internal/server/onboarding"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/howyoubeen/internal/server/sharing"
	"github.com/dmitrijs2005/howyoubeen/internal/server/sources"
	"github.com/dmitrijs2005/howyoubeen/internal/server/storage"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	Config *config.Config
	Logger logging.Logger

	db    *sql.DB
	repos repomanager.RepositoryManager
	store knowledge.Store

	Onboarding  *onboarding.Orchestrator
	Newsletters *newsletter.Engine
	Delivery    *delivery.Service
	Chat        *chat.Service
	Sources     *sources.SourceService
	// Platforms lists the collectors that AddDataSource accepts.
	Platforms []string
}

// NewApp builds every service from cfg. Logs go to w.
func NewApp(ctx context.Context, cfg *config.Config, w io.Writer) (*App, error) {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, w)

	def, err := cfg.DefaultCategory()
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	store := knowledge.NewPostgresStore(db, rm)

	client := llm.WithTimeout(llm.NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, logger), cfg.LLMTimeout)
	if !llm.Enabled(client) {
		logger.Warn(ctx, "no LLM API key configured, using deterministic fallbacks")
	}

	engine, err := extraction.NewEngine(client, extraction.Options{
		Model:       cfg.LLMModel,
		Temperature: cfg.ExtractionTemperature,
		MaxTokens:   cfg.ExtractionMaxTokens,
		Default:     def,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("extraction init error: %w", err)
	}

	registry := collectors.NewRegistry(
		collectors.NewGitHubCollector(cfg.GitHubBaseURL, cfg.GitHubToken, cfg.HTTPTimeout, logger),
		collectors.NewWebsiteCollector(cfg.FirecrawlBaseURL, cfg.FirecrawlAPIKey, cfg.HTTPTimeout, logger),
	)

	var blobs storage.BlobStore
	if cfg.S3Bucket != "" {
		blobs = storage.NewS3Store(storage.S3Config{
			Region:   cfg.S3Region,
			User:     cfg.S3RootUser,
			Password: cfg.S3RootPassword,
			Endpoint: cfg.S3BaseEndpoint,
			Bucket:   cfg.S3Bucket,
		}, &http.Client{Timeout: cfg.HTTPTimeout})
	}

	var sender delivery.Sender = delivery.NewLogSender(logger)
	if cfg.SMTPAddr != "" {
		smtpSender, err := delivery.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPassword, cfg.NewsletterFrom)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("smtp init error: %w", err)
		}
		sender = smtpSender
	}

	secret := []byte(cfg.SecretKey)
	nlOpts := newsletter.DefaultOptions()
	nlOpts.Model = cfg.NewsletterModel
	newsletters := newsletter.NewEngine(store, client, nlOpts, logger)
	chatOpts := chat.DefaultOptions()
	chatOpts.Model = cfg.LLMModel

	return &App{
		Config: cfg,
		Logger: logger,
		db:     db,
		repos:  rm,
		store:  store,
		Onboarding: onboarding.NewOrchestrator(onboarding.Deps{
			Sessions:   rm.Sessions(db),
			Store:      store,
			Collectors: registry,
			Extractor:  engine,
			Blobs:      blobs,
			LLM:        client,
			Log:        logger,
		}, onboarding.Options{
			SessionTTL:   cfg.SessionTTL,
			Secret:       secret,
			Default:      def,
			SummaryModel: cfg.LLMModel,
		}),
		Newsletters: newsletters,
		Delivery:    delivery.NewService(rm.Subscriptions(db), store, newsletters, sender, secret, logger),
		Chat:        chat.NewService(store, client, chatOpts, logger),
		Sources:     sources.NewSourceService(store, registry, engine, secret, logger),
		Platforms:   registry.Platforms(),
	}, nil
}

func (a *App) Migrate(ctx context.Context) error {
	if err := a.repos.RunMigrations(ctx, a.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	a.Logger.Info(ctx, "migrations applied")
	return nil
}

func (a *App) Close() error {
	return a.db.Close()
}

// UserByUsername resolves the owner of a timeline.
func (a *App) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return a.store.GetUserByUsername(ctx, username)
}

// Timeline lists events of username between start and end as seen by
// tiers; nil tiers shows everything.
func (a *App) Timeline(ctx context.Context, username string, start, end time.Time, tiers []visibility.Tier) ([]*models.LifeEvent, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.store.GetLifeEventsByDateRange(ctx, u.ID, start, end, tiers)
}

// ShareToken signs a link that lets its holder read username's
// newsletters at tier.
func (a *App) ShareToken(ctx context.Context, username string, tier visibility.Tier) (string, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return sharing.IssueToken(u.ID, tier, []byte(a.Config.SecretKey), a.Config.ShareTokenTTL)
}

// SharedNewsletter renders cfg for the holder of token, restricted to the
// token's tier.
func (a *App) SharedNewsletter(ctx context.Context, token string, cfg newsletter.Config, now time.Time) (*newsletter.Result, error) {
	claims, err := sharing.ParseToken(token, []byte(a.Config.SecretKey))
	if err != nil {
		return nil, err
	}
	cfg.Visibility = []visibility.Category{claims.Category()}
	res := a.Newsletters.Generate(ctx, claims.UserID, cfg, now)
	if !res.Success {
		return res, errors.New(res.Error)
	}
	return res, nil
}

// AddLifeEvent records an event in username's timeline. The category must
// be valid and the end, when set, must not precede the start.
func (a *App) AddLifeEvent(ctx context.Context, username string, e *models.LifeEvent) error {
	e.Summary = strings.TrimSpace(e.Summary)
	if e.Summary == "" {
		return fmt.Errorf("%w: summary is required", common.ErrInvalidInput)
	}
	if e.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", common.ErrInvalidInput)
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", common.ErrInvalidInput)
	}
	if err := e.Visibility.Validate(); err != nil {
		return err
	}
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	e.UserID = u.ID
	if err := a.store.CreateLifeEvent(ctx, e); err != nil {
		return err
	}
	a.Logger.Info(ctx, "life event added", "user_id", u.ID, "event_id", e.ID, "visibility", e.Visibility.Key())
	return nil
}

// AddLifeFact records a fact about username.
func (a *App) AddLifeFact(ctx context.Context, username string, f *models.LifeFact) error {
	f.Summary = strings.TrimSpace(f.Summary)
	if f.Summary == "" {
		return fmt.Errorf("%w: summary is required", common.ErrInvalidInput)
	}
	if err := f.Visibility.Validate(); err != nil {
		return err
	}
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	f.UserID = u.ID
	f.Category = strings.TrimSpace(f.Category)
	if f.Date.IsZero() {
		f.Date = time.Now()
	}
	if err := a.store.CreateLifeFact(ctx, f); err != nil {
		return err
	}
	a.Logger.Info(ctx, "life fact added", "user_id", u.ID, "fact_id", f.ID, "visibility", f.Visibility.Key())
	return nil
}

// Facts lists username's facts, optionally of one category, as seen by
// tiers; nil tiers shows everything.
func (a *App) Facts(ctx context.Context, username, category string, tiers []visibility.Tier) ([]*models.LifeFact, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	facts, err := a.store.GetLifeFacts(ctx, u.ID, category)
	if err != nil {
		return nil, err
	}
	return knowledge.VisibleFacts(facts, tiers), nil
}

// Subscriptions lists the subscriptions to username's newsletters.
func (a *App) Subscriptions(ctx context.Context, username string) ([]*models.Subscription, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.Delivery.List(ctx, u.ID)
}

// Ask answers a question for the holder of token, from what the token's
// tier may see.
func (a *App) Ask(ctx context.Context, token, question string, history []chat.Turn, now time.Time) (*chat.Answer, error) {
	claims, err := sharing.ParseToken(token, []byte(a.Config.SecretKey))
	if err != nil {
		return nil, err
	}
	return a.Chat.Ask(ctx, claims.UserID, []visibility.Tier{claims.Tier}, question, history, now)
}

// AskAs answers a question about username for a viewer holding tiers;
// nil tiers is the owner.
func (a *App) AskAs(ctx context.Context, username string, tiers []visibility.Tier, question string, history []chat.Turn, now time.Time) (*chat.Answer, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.Chat.Ask(ctx, u.ID, tiers, question, history, now)
}
