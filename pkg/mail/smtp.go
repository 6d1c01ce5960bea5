package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// ErrSMTPDisabled is returned by Send when delivery is switched off in configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

const defaultTimeout = 10 * time.Second

// Mailer sends email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings is the runtime configuration of the SMTP relay.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// UseTLS dials with implicit TLS. Otherwise STARTTLS is used when offered.
	UseTLS  bool
	Timeout time.Duration
}

func (s SMTPSettings) address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// session is the subset of *smtp.Client used for a single delivery.
type session interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type connectFunc func(ctx context.Context, settings SMTPSettings) (session, error)

// SMTPMailer delivers messages through an SMTP relay, one connection per message.
type SMTPMailer struct {
	settings SMTPSettings
	connect  connectFunc
	now      func() time.Time
}

// NewSMTPMailer validates settings and returns a mailer for them. A disabled
// configuration is accepted and every Send reports ErrSMTPDisabled.
func NewSMTPMailer(settings SMTPSettings) (*SMTPMailer, error) {
	if settings.Enabled {
		if strings.TrimSpace(settings.Host) == "" {
			return nil, errors.New("smtp: host is required when enabled")
		}
		if settings.Port <= 0 || settings.Port > 65535 {
			return nil, fmt.Errorf("smtp: invalid port %d", settings.Port)
		}
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	return &SMTPMailer{settings: settings, connect: dialSMTP, now: time.Now}, nil
}

// Send delivers msg. The sender falls back to SMTPSettings.From.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.settings.Enabled {
		return ErrSMTPDisabled
	}

	env, err := msg.envelope(m.settings.From)
	if err != nil {
		return err
	}
	data, err := msg.render(env, m.now())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, err := m.connect(ctx, m.settings)
	if err != nil {
		return err
	}
	defer sess.Close()

	return transmit(sess, env, data)
}

func transmit(sess session, env envelope, data []byte) error {
	if err := sess.Mail(env.from); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range env.to {
		if err := sess.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := sess.Data()
	if err != nil {
		return fmt.Errorf("smtp: data command: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: close data writer: %w", err)
	}
	return sess.Quit()
}

func dialSMTP(ctx context.Context, settings SMTPSettings) (session, error) {
	deadline := time.Now().Add(settings.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := &net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", settings.address())
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", settings.address(), err)
	}
	_ = conn.SetDeadline(deadline)

	tlsConfig := &tls.Config{ServerName: settings.Host, MinVersion: tls.VersionTLS12}
	if settings.UseTLS {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("smtp: tls handshake: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, settings.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: greeting: %w", err)
	}

	if !settings.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp: start tls: %w", err)
			}
		}
	}

	if strings.TrimSpace(settings.Username) != "" {
		auth := smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp: auth: %w", err)
		}
	}

	return client, nil
}
