// Package delivery manages newsletter subscriptions: friends subscribe
// with a share token, receive digests at their tier on a schedule, and
// unsubscribe with the code each delivery carries.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/dmitrijs2005/howyoubeen/internal/server/models"
	"github.com/dmitrijs2005/howyoubeen/internal/server/newsletter"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/howyoubeen/internal/server/sharing"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const previewRunes = 200

// Generator renders one newsletter; *newsletter.Engine satisfies it.
type Generator interface {
	Generate(ctx context.Context, userID string, cfg newsletter.Config, now time.Time) *newsletter.Result
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Service struct {
	repo   subscriptions.Repository
	users  UserReader
	gen    Generator
	sender Sender
	secret []byte
	log    logging.Logger
	newID  func() string
}

func NewService(repo subscriptions.Repository, users UserReader, gen Generator, sender Sender, secret []byte, log logging.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		gen:    gen,
		sender: sender,
		secret: secret,
		log:    log,
		newID:  func() string { return uuid.NewString() },
	}
}

// Subscribe registers email for the newsletter the share token grants.
// The returned subscription carries the code needed to unsubscribe.
func (s *Service) Subscribe(ctx context.Context, token, email, name, frequency string) (*models.Subscription, error) {
	claims, err := sharing.ParseToken(token, s.secret)
	if err != nil {
		return nil, err
	}
	cat, err := visibility.New(claims.Tier, "")
	if err != nil {
		return nil, err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: email: %w", common.ErrInvalidInput, err)
	}
	freq, err := newsletter.ParseFrequency(frequency)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("newsletter owner: %w", err)
	}

	sub := &models.Subscription{
		ID:              s.newID(),
		UserID:          owner.ID,
		SubscriberEmail: addr.Address,
		SubscriberName:  strings.TrimSpace(name),
		Tier:            cat.Tier,
		Frequency:       freq,
		Status:          models.SubscriptionActive,
		Code:            s.newID(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "newsletter subscription created",
		"user_id", owner.ID, "subscription_id", sub.ID, "tier", sub.Tier, "frequency", sub.Frequency)
	return sub, nil
}

// Unsubscribe stops deliveries for code. Repeating it is harmless.
func (s *Service) Unsubscribe(ctx context.Context, code string, now time.Time) (*models.Subscription, error) {
	sub, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.SubscriptionUnsubscribed {
		return sub, nil
	}
	if err := s.repo.SetStatus(ctx, code, models.SubscriptionUnsubscribed, now); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionUnsubscribed
	sub.UpdatedAt = now
	s.log.Info(ctx, "newsletter subscription cancelled", "subscription_id", sub.ID)
	return sub, nil
}

// List returns every subscription to userID's newsletters, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*models.Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}

type SendReport struct {
	Total  int
	Sent   int
	Failed int
	Errors []string
}

// SendDue delivers the newsletter to every active subscription of
// frequency. A failed delivery is logged and counted; it does not stop the
// run. Only a store failure or cancellation returns an error.
func (s *Service) SendDue(ctx context.Context, frequency string, now time.Time) (*SendReport, error) {
	freq, err := newsletter.ParseFrequency(frequency)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.ListDue(ctx, freq)
	if err != nil {
		return nil, err
	}

	rep := &SendReport{Total: len(subs)}
	owners := make(map[string]*models.User)
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.send(ctx, sub, owners, now); err != nil {
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", sub.SubscriberEmail, err))
			s.record(ctx, sub, models.DeliveryFailed, err.Error(), "")
			continue
		}
		rep.Sent++
	}
	s.log.Info(ctx, "newsletters sent", "frequency", freq, "total", rep.Total, "sent", rep.Sent, "failed", rep.Failed)
	return rep, nil
}

func (s *Service) send(ctx context.Context, sub *models.Subscription, owners map[string]*models.User, now time.Time) error {
	owner, ok := owners[sub.UserID]
	if !ok {
		u, err := s.users.GetUser(ctx, sub.UserID)
		if err != nil {
			return fmt.Errorf("load owner: %w", err)
		}
		owners[sub.UserID] = u
		owner = u
	}

	cfg := SubscriptionConfig(sub)
	res := s.gen.Generate(ctx, sub.UserID, cfg, now)
	if !res.Success {
		return errors.New(res.Error)
	}

	msg := Message{
		To:              sub.SubscriberEmail,
		ToName:          sub.SubscriberName,
		Subject:         fmt.Sprintf("%s from %s", cfg.Name, owner.DisplayName()),
		Body:            res.Content,
		UnsubscribeCode: sub.Code,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := s.repo.MarkSent(ctx, sub.ID, now); err != nil {
		s.log.Warn(ctx, "mark sent failed", "subscription_id", sub.ID, "error", err)
	}
	sub.LastSent = &now
	s.record(ctx, sub, models.DeliverySent, "", preview(res.Content))
	return nil
}

func (s *Service) record(ctx context.Context, sub *models.Subscription, status, errText, content string) {
	d := &models.Delivery{ID: s.newID(), SubscriptionID: sub.ID, Status: status, Error: errText, Preview: content}
	if err := s.repo.LogDelivery(ctx, d); err != nil {
		s.log.Warn(ctx, "delivery log failed", "subscription_id", sub.ID, "status", status, "error", err)
	}
}

// SubscriptionConfig is the newsletter a subscription receives: its
// frequency window over events visible to its tier.
func SubscriptionConfig(sub *models.Subscription) newsletter.Config {
	return newsletter.Config{
		Name:         cases.Title(language.English).String(sub.Frequency) + " update",
		Instructions: "Write a short, warm update for a friend covering what happened in this period.",
		Frequency:    sub.Frequency,
		Visibility:   []visibility.Category{{Tier: sub.Tier}},
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes])
}
