package models

import (
	"strings"

	"gorm.io/gorm"
)

// Roles assignable to users.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a staff member able to record census data. Email and role never change after creation.
type User struct {
	BaseModel

	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password;not null" json:"-"`

	FirstName   string `gorm:"not null" json:"firstName"`
	LastName    string `gorm:"not null" json:"lastName"`
	PhoneNumber string `gorm:"not null" json:"phoneNumber"`
	Image       string `json:"image,omitempty"`

	Role     string `gorm:"size:16;not null;default:user;index" json:"role"`
	IsActive bool   `gorm:"not null;default:true" json:"isActive"`
}

// BeforeSave keeps stored email addresses in their canonical lowercase form.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormaliseEmail(u.Email)
	return nil
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormaliseEmail trims and lowercases an email address.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
