package models

import "time"

// InviteStatus is the derived state of an invite at a given instant.
type InviteStatus string

const (
	InviteStatusIssued  InviteStatus = "issued"
	InviteStatusExpired InviteStatus = "expired"
	InviteStatusUsed    InviteStatus = "used"
)

// Invite is a single-use, time-limited token allowing one account to be created for Email.
// Invites are never deleted; IsUsed flips to true exactly once.
type Invite struct {
	BaseModel

	Email     string    `gorm:"not null;index" json:"email"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	InvitedBy *string   `gorm:"type:uuid;index" json:"invitedBy,omitempty"`
	IsUsed    bool      `gorm:"not null;default:false;index" json:"isUsed"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
}

// IsExpired reports whether now is past the expiry instant.
func (i *Invite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Status derives the invite state at now. A used invite stays used after expiry.
func (i *Invite) Status(now time.Time) InviteStatus {
	switch {
	case i.IsUsed:
		return InviteStatusUsed
	case i.IsExpired(now):
		return InviteStatusExpired
	default:
		return InviteStatusIssued
	}
}
