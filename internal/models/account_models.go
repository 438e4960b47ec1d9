package models

import "time"

// OTP purposes stored with a pending code.
const (
	OTPPurposeVerify = "verify"
	OTPPurposeReset  = "reset"
)

// Account is a registered identity.
type Account struct {
	ID             string     `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	FirstName      string     `json:"firstName" db:"first_name"`
	LastName       string     `json:"lastName" db:"last_name"`
	Phone          string     `json:"phone" db:"phone"`
	Address        string     `json:"address" db:"address"`
	Bio            string     `json:"bio" db:"bio"`
	ProfilePicture string     `json:"profilePicture" db:"profile_picture"`
	IsVerified     bool       `json:"isVerified" db:"is_verified"`
	IsAdmin        bool       `json:"isAdmin" db:"is_admin"`
	GoogleID       *string    `json:"-" db:"google_id"`
	OTPCode        string     `json:"-" db:"otp_code"`
	OTPPurpose     string     `json:"-" db:"otp_purpose"`
	OTPExpiresAt   *time.Time `json:"-" db:"otp_expires_at"`
	ResetVerified  bool       `json:"-" db:"reset_verified"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// AccountFilters narrows admin account listings.
type AccountFilters struct {
	Search   string
	Page     int
	PageSize int
}

// AccountStats aggregates account counts.
type AccountStats struct {
	Total      int `json:"total" db:"total"`
	Verified   int `json:"verified" db:"verified"`
	Admins     int `json:"admins" db:"admins"`
	Unverified int `json:"unverified" db:"unverified"`
}

// Profile visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityMembers = "members"
	VisibilityPrivate = "private"
)

// UserSettings are per-account preferences.
type UserSettings struct {
	UserID             string    `json:"userId" db:"user_id"`
	EmailNotifications bool      `json:"emailNotifications" db:"email_notifications"`
	PushNotifications  bool      `json:"pushNotifications" db:"push_notifications"`
	ProfileVisibility  string    `json:"profileVisibility" db:"profile_visibility"`
	DarkMode           bool      `json:"darkMode" db:"dark_mode"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultUserSettings returns the preferences applied when none are stored.
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{
		UserID:             userID,
		EmailNotifications: true,
		PushNotifications:  true,
		ProfileVisibility:  VisibilityPublic,
	}
}

// Recipient is the minimal account projection used by email fan-out.
type Recipient struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
}
