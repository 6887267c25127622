package models

import "time"

// AuthProvider identifies how a user signs in.
type AuthProvider string

const (
	AuthProviderEmail  AuthProvider = "email"
	AuthProviderGoogle AuthProvider = "google"
)

// User represents an identity owning categories and transactions.
type User struct {
	Base
	Email    string       `gorm:"uniqueIndex;not null" json:"email"`
	Password string       `gorm:"not null" json:"-"`
	Provider AuthProvider `gorm:"not null;default:email" json:"provider"`

	EmailConfirmedAt      *time.Time `json:"email_confirmed_at,omitempty"`
	ConfirmationTokenHash string     `gorm:"size:64;index" json:"-"`
	ConfirmationSentAt    *time.Time `json:"-"`
	RecoveryTokenHash     string     `gorm:"size:64;index" json:"-"`
	RecoverySentAt        *time.Time `json:"-"`
	RefreshTokenHash      string     `gorm:"size:64" json:"-"`
	LastSignInAt          *time.Time `json:"last_sign_in_at,omitempty"`

	Categories   []Category    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Transactions []Transaction `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Confirmed reports whether the user's email address has been verified.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}
