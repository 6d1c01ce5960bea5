package services

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"time"

	"github.com/charlesng35/kiddies/pkg/mail"
)

const inviteSubject = "Invitation to Join Kiddies - Counting God's Army"

var inviteHTML = template.Must(template.New("invite").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #4a5568;">Welcome to Kiddies!</h2>
  <p>You have been invited to join the Kiddies census application.</p>
  <p>Click the button below to complete your registration:</p>
  <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #4299e1; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0;">Complete Registration</a>
  <p style="color: #718096; font-size: 14px;">Or copy and paste this link into your browser:<br><a href="{{.Link}}">{{.Link}}</a></p>
  <p style="color: #718096; font-size: 12px; margin-top: 30px;">This invitation will expire in {{.Expiry}}.</p>
</div>`))

type inviteMailData struct {
	Link   string
	Expiry string
}

func inviteMessage(email, link string, expiry time.Duration) (mail.Message, error) {
	data := inviteMailData{Link: link, Expiry: humanDuration(expiry)}

	var html bytes.Buffer
	if err := inviteHTML.Execute(&html, data); err != nil {
		return mail.Message{}, fmt.Errorf("invite service: render email: %w", err)
	}

	body := fmt.Sprintf("Welcome to Kiddies!\n\nYou have been invited to join the Kiddies census application.\nComplete your registration here:\n%s\n\nThis invitation will expire in %s.\n", link, data.Expiry)

	return mail.Message{
		To:      []string{email},
		Subject: inviteSubject,
		Body:    body,
		HTML:    html.String(),
	}, nil
}

func humanDuration(d time.Duration) string {
	days := d.Hours() / 24
	if days >= 1 && days == math.Trunc(days) {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", int(days))
	}
	hours := int(math.Ceil(d.Hours()))
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
