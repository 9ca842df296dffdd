package delivery

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/dmitrijs2005/howyoubeen/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSender_Send(t *testing.T) {
	var (
		gotAddr string
		gotAuth smtp.Auth
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	orig := sendMail
	defer func() { sendMail = orig }()
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	s, err := NewSMTPSender("smtp.example.com:587", "user", "pass", "HowYouBeen <noreply@howyoubeen.com>")
	require.NoError(t, err)

	err = s.Send(context.Background(), Message{
		To: "bob@example.com", ToName: "Bob", Subject: "Weekly update from Alice",
		Body: "# Hi\nMoved to Lisbon", UnsubscribeCode: "code-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@howyoubeen.com", gotFrom)
	assert.Equal(t, []string{"bob@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: \"Bob\" <bob@example.com>\r\n")
	assert.Contains(t, msg, "Subject: Weekly update from Alice\r\n")
	assert.Contains(t, msg, "\r\n\r\n# Hi\r\nMoved to Lisbon\r\n")
	assert.Contains(t, msg, "unsubscribe with code code-1")
}

func TestSMTPSender_Errors(t *testing.T) {
	_, err := NewSMTPSender("no-port", "", "", "a@b.c")
	assert.ErrorContains(t, err, "smtp addr")

	_, err = NewSMTPSender("mail:25", "", "", "not an address")
	assert.ErrorContains(t, err, "newsletter from")

	orig := sendMail
	defer func() { sendMail = orig }()
	sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }

	s, err := NewSMTPSender("mail:25", "", "", "a@b.c")
	require.NoError(t, err)
	assert.Nil(t, s.auth, "no user means no auth")
	assert.ErrorContains(t, s.Send(context.Background(), Message{To: "x@y.z"}), "421 busy")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "x@y.z"}), context.Canceled)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(logging.New("info", "text", &buf))

	require.NoError(t, s.Send(context.Background(), Message{To: "bob@example.com", Subject: "Hi", Body: "Moved to Lisbon"}))
	assert.Contains(t, buf.String(), "to=bob@example.com")
	assert.Contains(t, buf.String(), "Moved to Lisbon")
}
