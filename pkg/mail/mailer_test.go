package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	from     string
	rcpts    []string
	data     bytes.Buffer
	quit     bool
	closed   bool
	rejectTo string
}

type bufferCloser struct{ *bytes.Buffer }

func (bufferCloser) Close() error { return nil }

func (s *fakeSession) Mail(from string) error {
	s.from = from
	return nil
}

func (s *fakeSession) Rcpt(to string) error {
	if to == s.rejectTo {
		return errors.New("550 mailbox unavailable")
	}
	s.rcpts = append(s.rcpts, to)
	return nil
}

func (s *fakeSession) Data() (io.WriteCloser, error) { return bufferCloser{&s.data}, nil }

func (s *fakeSession) Quit() error {
	s.quit = true
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func newFakeMailer(t *testing.T, sess *fakeSession) *SMTPMailer {
	t.Helper()

	m, err := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"})
	require.NoError(t, err)
	m.connect = func(context.Context, SMTPSettings) (session, error) { return sess, nil }
	m.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return m
}

func TestNewSMTPMailerValidatesEnabledSettings(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 70000})
	require.ErrorContains(t, err, "invalid port")

	m, err := NewSMTPMailer(SMTPSettings{})
	require.NoError(t, err)
	require.Equal(t, defaultTimeout, m.settings.Timeout)
}

func TestSendDisabledReturnsSentinel(t *testing.T) {
	m, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: []string{"someone@example.com"}, Body: "hi"})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestEnvelopeNormalisesRecipients(t *testing.T) {
	env, err := Message{To: []string{"Alice <alice@example.com>", " ALICE@example.com ", "", "bob@example.com"}}.envelope("no-reply@example.com")
	require.NoError(t, err)
	require.Equal(t, "no-reply@example.com", env.from)
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, env.to)
}

func TestEnvelopeRejectsBadAddresses(t *testing.T) {
	_, err := Message{To: []string{" ", "\t"}}.envelope("no-reply@example.com")
	require.ErrorContains(t, err, "at least one recipient")

	_, err = Message{From: "invalid-from", To: []string{"user@example.com"}}.envelope("")
	require.ErrorContains(t, err, "invalid from address")

	_, err = Message{To: []string{"user@example.com", "bad-address"}}.envelope("no-reply@example.com")
	require.ErrorContains(t, err, "invalid recipient address")

	_, err = Message{To: []string{"user@example.com"}}.envelope("")
	require.ErrorContains(t, err, "sender address is required")
}

func TestRenderPlainTextEncodesSubject(t *testing.T) {
	msg := Message{Subject: "Invite\r\nBcc: victim@example.com", Body: "Hello there"}
	raw, err := msg.render(envelope{from: "from@example.com", to: []string{"to@example.com"}}, time.Now())
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Empty(t, parsed.Header.Get("Bcc"))
	require.Equal(t, "to@example.com", parsed.Header.Get("To"))
	require.True(t, strings.HasSuffix(parsed.Header.Get("Message-ID"), "@example.com>"))

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, msg.Subject, subject)

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	require.Equal(t, "Hello there", string(body))
}

func TestRenderMultipartAlternative(t *testing.T) {
	msg := Message{Subject: "Invitation", Body: "plain", HTML: "<p>html</p>"}
	raw, err := msg.render(envelope{from: "from@example.com", to: []string{"to@example.com"}}, time.Now())
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	var got []string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(part)
		require.NoError(t, err)
		got = append(got, part.Header.Get("Content-Type")+"|"+string(content))
	}
	require.Equal(t, []string{
		"text/plain; charset=UTF-8|plain",
		"text/html; charset=UTF-8|<p>html</p>",
	}, got)
}

func TestSendDeliversThroughSession(t *testing.T) {
	sess := &fakeSession{}
	m := newFakeMailer(t, sess)

	err := m.Send(context.Background(), Message{To: []string{"new@example.org"}, Subject: "Welcome", Body: "Hello"})
	require.NoError(t, err)
	require.Equal(t, "no-reply@example.com", sess.from)
	require.Equal(t, []string{"new@example.org"}, sess.rcpts)
	require.Contains(t, sess.data.String(), "Date: Fri, 01 Mar 2024 09:00:00 +0000")
	require.True(t, strings.HasSuffix(sess.data.String(), "Hello"))
	require.True(t, sess.quit)
	require.True(t, sess.closed)
}

func TestSendSurfacesRecipientRejection(t *testing.T) {
	sess := &fakeSession{rejectTo: "new@example.org"}
	m := newFakeMailer(t, sess)

	err := m.Send(context.Background(), Message{To: []string{"new@example.org"}})
	require.ErrorContains(t, err, "rcpt to new@example.org")
	require.False(t, sess.quit)
	require.True(t, sess.closed)
}

func TestSendHonoursCancelledContext(t *testing.T) {
	sess := &fakeSession{}
	m := newFakeMailer(t, sess)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Message{To: []string{"new@example.org"}})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, sess.from)
}
