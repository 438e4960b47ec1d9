package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const (
	emailFanOutLimit        = 8
	defaultNotificationPage = 20
)

var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z-+/]+);base64,(.+)$`)

// --- Notification DTOs ---

// RecipientsInput accepts "all", a single account id or a list of ids.
type RecipientsInput struct {
	All bool
	IDs []string
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RecipientsInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = RecipientsInput{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, "all") {
			*r = RecipientsInput{All: true}
		} else if s != "" {
			*r = RecipientsInput{IDs: []string{s}}
		} else {
			*r = RecipientsInput{}
		}
		return nil
	default:
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("recipients must be \"all\", an id or a list of ids: %w", err)
		}
		*r = RecipientsInput{IDs: ids}
		return nil
	}
}

// CreateNotificationRequest is an admin-authored notification.
type CreateNotificationRequest struct {
	Title         string          `json:"title" validate:"required,max=200"`
	Message       string          `json:"message" validate:"required,max=5000"`
	Type          string          `json:"type" validate:"omitempty,oneof=system membership event admin announcement"`
	Priority      string          `json:"priority" validate:"omitempty,oneof=low medium high"`
	Link          string          `json:"link" validate:"max=500"`
	Recipients    RecipientsInput `json:"recipients"`
	IsForAllUsers bool            `json:"isForAllUsers"`
	Image         string          `json:"image"`
	ImageType     string          `json:"imageType"`
}

// NotificationPage is one page of the admin listing.
type NotificationPage struct {
	Items []models.AdminNotification `json:"notifications"`
	Total int                        `json:"total"`
	Page  int                        `json:"page"`
	Limit int                        `json:"limit"`
	Pages int                        `json:"pages"`
}

// --- NotificationService Interface ---
type NotificationService interface {
	CreateNotification(ctx context.Context, admin Caller, req CreateNotificationRequest) (*models.Notification, error)
	ListForUser(ctx context.Context, userID string) ([]models.UserNotification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	AdminList(ctx context.Context, page, limit int) (*NotificationPage, error)
	Stats(ctx context.Context) (*models.NotificationStats, error)
	DeleteNotification(ctx context.Context, id string) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	accountRepo      repositories.AccountRepository
	settings         SettingsService
	mail             *MailService
	dispatcher       *Dispatcher
	metrics          *metrics.Registry
	now              func() time.Time
}

// NewNotificationService creates a new instance of NotificationService.
func NewNotificationService(
	nr repositories.NotificationRepository,
	ar repositories.AccountRepository,
	settings SettingsService,
	mail *MailService,
	dispatcher *Dispatcher,
	m *metrics.Registry,
) NotificationService {
	return &notificationService{
		notificationRepo: nr,
		accountRepo:      ar,
		settings:         settings,
		mail:             mail,
		dispatcher:       dispatcher,
		metrics:          m,
		now:              time.Now,
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, admin Caller, req CreateNotificationRequest) (*models.Notification, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	n := &models.Notification{
		ID:            newID(),
		Title:         strings.TrimSpace(req.Title),
		Message:       strings.TrimSpace(req.Message),
		Type:          req.Type,
		Priority:      req.Priority,
		Link:          strings.TrimSpace(req.Link),
		IsForAllUsers: req.IsForAllUsers || req.Recipients.All,
		CreatedBy:     admin.userRef(),
		CreatedAt:     s.now().UTC(),
	}
	if n.Type == "" {
		n.Type = models.NotificationTypeAnnouncement
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}

	if !n.IsForAllUsers {
		ids, err := s.resolveRecipients(ctx, req.Recipients.IDs)
		if err != nil {
			return nil, err
		}
		n.Recipients = ids
	}
	n.Image, n.ImageType = decodeImage(req.Image, req.ImageType)

	if err := s.notificationRepo.CreateNotification(ctx, nil, n); err != nil {
		return nil, internalError("creating notification", err)
	}
	if s.metrics != nil {
		s.metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()
	}
	utils.LogInfo("Notification created", map[string]interface{}{
		"notification_id": n.ID, "type": n.Type, "for_all": n.IsForAllUsers, "recipients": len(n.Recipients),
	})

	if (n.Type == models.NotificationTypeAnnouncement || n.Type == models.NotificationTypeEvent) &&
		s.mail != nil && s.dispatcher != nil {
		sent := *n
		s.dispatcher.Go("notification-email", func(ctx context.Context) error {
			return s.emailRecipients(ctx, &sent)
		})
	}
	return n, nil
}

// resolveRecipients deduplicates ids and checks each names an account.
func (s *notificationService) resolveRecipients(ctx context.Context, raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	verr := &ValidationError{}
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !isUUID(id) {
			verr.Add("recipients", fmt.Sprintf("%q is not a valid account id", id))
			continue
		}
		id = strings.ToLower(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, newValidationError("recipients", "at least one recipient is required unless the notification is for all users")
	}

	existing, err := s.accountRepo.ExistingAccountIDs(ctx, ids)
	if err != nil {
		return nil, internalError("checking recipients", err)
	}
	found := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		found[strings.ToLower(id)] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			verr.Add("recipients", fmt.Sprintf("account %s does not exist", id))
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return ids, nil
}

// decodeImage splits a data URI, or accepts a raw payload with a declared
// type. Anything malformed is dropped.
func decodeImage(image, imageType string) (string, string) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", ""
	}
	if strings.HasPrefix(image, "data:") {
		m := dataURIPattern.FindStringSubmatch(image)
		if m == nil {
			return "", ""
		}
		return m[2], m[1]
	}
	imageType = strings.TrimSpace(imageType)
	if imageType == "" {
		return "", ""
	}
	return image, imageType
}

// emailRecipients delivers the notification to every targeted account that
// accepts email. Individual failures are logged and do not stop the others.
func (s *notificationService) emailRecipients(ctx context.Context, n *models.Notification) error {
	var recipients []models.Recipient
	var err error
	if n.IsForAllUsers {
		recipients, err = s.accountRepo.ListEmailOptInRecipients(ctx)
	} else {
		recipients, err = s.optedInRecipients(ctx, n.Recipients)
	}
	if err != nil {
		return fmt.Errorf("resolving notification recipients: %w", err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(emailFanOutLimit)
	for _, r := range recipients {
		g.Go(func() error {
			if err := s.mail.SendNotification(gctx, r, n); err != nil {
				failed.Add(1)
				utils.LogError(err, "NotificationService: email delivery failed", map[string]interface{}{
					"notification_id": n.ID, "recipient": r.ID,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	if f := failed.Load(); f > 0 {
		return fmt.Errorf("%d of %d notification emails failed", f, len(recipients))
	}
	utils.LogInfo("Notification emails sent", map[string]interface{}{"notification_id": n.ID, "count": len(recipients)})
	return nil
}

func (s *notificationService) optedInRecipients(ctx context.Context, ids []string) ([]models.Recipient, error) {
	all, err := s.accountRepo.ListRecipients(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Recipient, 0, len(all))
	for _, r := range all {
		enabled := true
		if s.settings != nil {
			enabled, err = s.settings.EmailEnabled(ctx, r.ID)
			if err != nil {
				utils.LogWarn("NotificationService: email preference lookup failed, skipping recipient", map[string]interface{}{
					"recipient": r.ID, "error": err.Error(),
				})
				continue
			}
		}
		if enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListForUser returns the user's notifications and marks them viewed.
func (s *notificationService) ListForUser(ctx context.Context, userID string) ([]models.UserNotification, error) {
	list, err := s.notificationRepo.ListNotificationsForUser(ctx, userID)
	if err != nil {
		return nil, internalError("listing notifications", err)
	}

	unseen := make([]string, 0)
	out := make([]models.UserNotification, 0, len(list))
	for i := range list {
		n := &list[i]
		if !n.IsViewedBy(userID) {
			unseen = append(unseen, n.ID)
		}
		out = append(out, models.UserNotification{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Priority:  n.Priority,
			Link:      n.Link,
			ImageURL:  n.ImageURL(),
			Read:      n.IsReadBy(userID),
			CreatedAt: n.CreatedAt,
		})
	}
	if err := s.notificationRepo.MarkNotificationsViewed(ctx, nil, unseen, userID); err != nil {
		return nil, internalError("marking notifications viewed", err)
	}
	return out, nil
}

// MarkRead is idempotent. Notifications not addressed to the user read as missing.
func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	if !isUUID(id) {
		return ErrNotificationNotFound
	}
	n, err := s.notificationRepo.GetNotificationByID(ctx, id)
	if err != nil {
		return lookupError(err, ErrNotificationNotFound, "getting notification")
	}
	if !n.VisibleTo(userID) {
		return ErrNotificationNotFound
	}
	if _, err := s.notificationRepo.MarkNotificationRead(ctx, nil, id, userID); err != nil {
		return internalError("marking notification read", err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notificationRepo.MarkAllNotificationsRead(ctx, nil, userID)
	if err != nil {
		return 0, internalError("marking all notifications read", err)
	}
	return n, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.notificationRepo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, internalError("counting unread notifications", err)
	}
	return n, nil
}

func (s *notificationService) AdminList(ctx context.Context, page, limit int) (*NotificationPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultNotificationPage
	}
	if limit > 100 {
		limit = 100
	}
	list, total, err := s.notificationRepo.ListNotifications(ctx, page, limit)
	if err != nil {
		return nil, internalError("listing notifications", err)
	}
	items := make([]models.AdminNotification, 0, len(list))
	for _, n := range list {
		items = append(items, models.AdminNotification{
			Notification: n,
			ImageURL:     n.ImageURL(),
			ReadCount:    len(n.ReadBy),
			ViewCount:    len(n.ViewedBy),
		})
	}
	return &NotificationPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + limit - 1) / limit,
	}, nil
}

func (s *notificationService) Stats(ctx context.Context) (*models.NotificationStats, error) {
	stats, err := s.notificationRepo.NotificationStats(ctx)
	if err != nil {
		return nil, internalError("notification stats", err)
	}
	return stats, nil
}

func (s *notificationService) DeleteNotification(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotificationNotFound
	}
	if err := s.notificationRepo.DeleteNotification(ctx, nil, id); err != nil {
		return lookupError(err, ErrNotificationNotFound, "deleting notification")
	}
	return nil
}
