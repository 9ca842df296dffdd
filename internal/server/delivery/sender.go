package delivery

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/logging"
)

// Message is one rendered newsletter addressed to one subscriber.
type Message struct {
	To              string
	ToName          string
	Subject         string
	Body            string
	UnsubscribeCode string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender records messages in the log instead of mailing them. It is
// used when no SMTP server is configured.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.log.Info(ctx, "newsletter not mailed, no smtp server configured",
		"to", m.To, "subject", m.Subject, "preview", preview(m.Body))
	return nil
}

// sendMail is a seam for tests.
var sendMail = smtp.SendMail

// SMTPSender mails plain-text newsletters through an SMTP relay using
// STARTTLS and PLAIN auth when the server offers them.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from *mail.Address
}

func NewSMTPSender(addr, user, password, from string) (*SMTPSender, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp addr: %w", err)
	}
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("newsletter from: %w", err)
	}
	s := &SMTPSender{addr: addr, from: sender}
	if user != "" {
		s.auth = smtp.PlainAuth("", user, password, host)
	}
	return s, nil
}

// Send ignores ctx beyond an early cancellation check; net/smtp has no
// context support.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := &mail.Address{Name: m.ToName, Address: m.To}
	return sendMail(s.addr, s.auth, s.from.Address, []string{m.To}, compose(s.from, to, m, time.Now()))
}

func compose(from, to *mail.Address, m Message, at time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	body := m.Body + "\n\n---\nTo stop receiving these updates, unsubscribe with code " + m.UnsubscribeCode + "\n"
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}
