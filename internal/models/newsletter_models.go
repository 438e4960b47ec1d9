package models

import (
	"time"

	"github.com/lib/pq"
)

// Newsletter frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// IsValidFrequency checks a raw frequency value.
func IsValidFrequency(f string) bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// Subscriber is a newsletter subscription. Email is unique and stored lowercased.
type Subscriber struct {
	ID             string         `json:"id" db:"id"`
	Email          string         `json:"email" db:"email"`
	FirstName      string         `json:"firstName" db:"first_name"`
	LastName       string         `json:"lastName" db:"last_name"`
	Interests      pq.StringArray `json:"interests" db:"interests"`
	Frequency      string         `json:"frequency" db:"frequency"`
	IsActive       bool           `json:"isActive" db:"is_active"`
	SubscribedAt   time.Time      `json:"subscribedAt" db:"subscribed_at"`
	UnsubscribedAt *time.Time     `json:"unsubscribedAt,omitempty" db:"unsubscribed_at"`
}

// SubscriberStats aggregates subscription counts.
type SubscriberStats struct {
	Total       int            `json:"total"`
	Active      int            `json:"active"`
	Inactive    int            `json:"inactive"`
	ByFrequency map[string]int `json:"byFrequency"`
}
