package app

import (
	"strings"

	"github.com/charlesng35/kiddies/pkg/mail"
)

// SMTPSettings converts the smtp section for pkg/mail. An empty sender falls
// back to the login when the login is an email address.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	smtp := c.SMTP
	from := strings.TrimSpace(smtp.From)
	if login := strings.TrimSpace(smtp.Username); from == "" && strings.Contains(login, "@") {
		from = login
	}
	return mail.SMTPSettings{
		Enabled:  smtp.Enabled,
		Host:     strings.TrimSpace(smtp.Host),
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     from,
		UseTLS:   smtp.UseTLS,
		Timeout:  smtp.Timeout,
	}
}
