package models

import (
	"time"

	"github.com/lib/pq"
)

// Notification types.
const (
	NotificationTypeSystem       = "system"
	NotificationTypeMembership   = "membership"
	NotificationTypeEvent        = "event"
	NotificationTypeAdmin        = "admin"
	NotificationTypeAnnouncement = "announcement"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// IsValidNotificationType checks a raw notification type.
func IsValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeSystem, NotificationTypeMembership, NotificationTypeEvent,
		NotificationTypeAdmin, NotificationTypeAnnouncement:
		return true
	}
	return false
}

// IsValidPriority checks a raw priority value.
func IsValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Notification is an in-app message, either broadcast or sent to explicit recipients.
// ReadBy and ViewedBy only ever grow.
type Notification struct {
	ID            string         `json:"id" db:"id"`
	Title         string         `json:"title" db:"title"`
	Message       string         `json:"message" db:"message"`
	Type          string         `json:"type" db:"type"`
	Priority      string         `json:"priority" db:"priority"`
	Link          string         `json:"link" db:"link"`
	Recipients    pq.StringArray `json:"recipients" db:"recipients"`
	IsForAllUsers bool           `json:"isForAllUsers" db:"is_for_all_users"`
	Image         string         `json:"-" db:"image"`
	ImageType     string         `json:"imageType,omitempty" db:"image_type"`
	ReadBy        pq.StringArray `json:"readBy" db:"read_by"`
	ViewedBy      pq.StringArray `json:"viewedBy" db:"viewed_by"`
	CreatedBy     *string        `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
}

// ImageURL renders the stored image as a data URI, or "" when there is none.
func (n *Notification) ImageURL() string {
	if n.Image == "" || n.ImageType == "" {
		return ""
	}
	return "data:" + n.ImageType + ";base64," + n.Image
}

// VisibleTo reports whether userID is targeted by the notification.
func (n *Notification) VisibleTo(userID string) bool {
	return n.IsForAllUsers || containsString(n.Recipients, userID)
}

// IsReadBy reports whether userID has read the notification.
func (n *Notification) IsReadBy(userID string) bool {
	return containsString(n.ReadBy, userID)
}

// IsViewedBy reports whether userID has seen the notification in a listing.
func (n *Notification) IsViewedBy(userID string) bool {
	return containsString(n.ViewedBy, userID)
}

// UserNotification is a notification as presented to one recipient.
type UserNotification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	Link      string    `json:"link,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminNotification is a notification with tracking totals for the admin surface.
type AdminNotification struct {
	Notification
	ImageURL  string `json:"imageUrl,omitempty"`
	ReadCount int    `json:"readCount"`
	ViewCount int    `json:"viewCount"`
}

// NotificationStats aggregates notification tracking data.
type NotificationStats struct {
	Total      int            `json:"total"`
	TotalReads int            `json:"totalReads"`
	TotalViews int            `json:"totalViews"`
	ByType     map[string]int `json:"byType"`
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
