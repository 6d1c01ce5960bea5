package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is an outbound email. When HTML is set the message goes out as
// multipart/alternative with Body as the plain text part.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	HTML    string
}

// envelope holds the SMTP level addresses of a message.
type envelope struct {
	from string
	to   []string
}

func (m Message) envelope(defaultFrom string) (envelope, error) {
	from := strings.TrimSpace(m.From)
	if from == "" {
		from = strings.TrimSpace(defaultFrom)
	}
	if from == "" {
		return envelope{}, errors.New("smtp: sender address is required")
	}
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return envelope{}, fmt.Errorf("smtp: invalid from address: %w", err)
	}

	seen := make(map[string]struct{}, len(m.To))
	var to []string
	for _, raw := range m.To {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		rcpt, err := mail.ParseAddress(raw)
		if err != nil {
			return envelope{}, fmt.Errorf("smtp: invalid recipient address %q: %w", raw, err)
		}
		key := strings.ToLower(rcpt.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		to = append(to, rcpt.Address)
	}
	if len(to) == 0 {
		return envelope{}, errors.New("smtp: at least one recipient is required")
	}

	return envelope{from: sender.Address, to: to}, nil
}

// render produces the RFC 5322 form of the message. Header values are
// Q-encoded so control characters never reach the wire.
func (m Message) render(env envelope, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	header := []headerField{
		{"From", env.from},
		{"To", strings.Join(env.to, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", m.Subject)},
		{"Date", now.UTC().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(env.from))},
		{"MIME-Version", "1.0"},
	}

	if strings.TrimSpace(m.HTML) == "" {
		header = append(header,
			headerField{"Content-Type", "text/plain; charset=UTF-8"},
			headerField{"Content-Transfer-Encoding", "quoted-printable"},
		)
		writeHeader(&buf, header)
		if err := writeQuotedPrintable(&buf, m.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	parts := multipart.NewWriter(&body)
	header = append(header, headerField{"Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": parts.Boundary()})})
	writeHeader(&buf, header)

	for _, part := range []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", m.Body},
		{"text/html; charset=UTF-8", m.HTML},
	} {
		w, err := parts.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("smtp: create part: %w", err)
		}
		if err := writeQuotedPrintable(w, part.content); err != nil {
			return nil, err
		}
	}
	if err := parts.Close(); err != nil {
		return nil, fmt.Errorf("smtp: close multipart: %w", err)
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

type headerField struct {
	name  string
	value string
}

func writeHeader(buf *bytes.Buffer, header []headerField) {
	for _, field := range header {
		fmt.Fprintf(buf, "%s: %s\r\n", field.name, field.value)
	}
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, content string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(content)); err != nil {
		return fmt.Errorf("smtp: encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return fmt.Errorf("smtp: encode body: %w", err)
	}
	return nil
}

func domainOf(address string) string {
	if at := strings.LastIndexByte(address, '@'); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
