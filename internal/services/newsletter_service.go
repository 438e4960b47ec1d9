package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"
)

// --- Newsletter DTOs ---
type SubscribeRequest struct {
	Email     string   `json:"email" validate:"required,email"`
	FirstName string   `json:"firstName" validate:"max=100"`
	LastName  string   `json:"lastName" validate:"max=100"`
	Interests []string `json:"interests" validate:"max=20"`
	Frequency string   `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
}

type UnsubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type UpdateSubscriberRequest struct {
	FirstName *string   `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string   `json:"lastName" validate:"omitempty,max=100"`
	Interests *[]string `json:"interests"`
	Frequency *string   `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
	IsActive  *bool     `json:"isActive"`
}

// --- NewsletterService Interface ---
type NewsletterService interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (*models.Subscriber, error)
	Unsubscribe(ctx context.Context, req UnsubscribeRequest) (*models.Subscriber, error)
	GetSubscribers(ctx context.Context, active *bool) ([]models.Subscriber, error)
	GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, id string, req UpdateSubscriberRequest) (*models.Subscriber, error)
	DeleteSubscriber(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.SubscriberStats, error)
}

type newsletterService struct {
	subscriberRepo repositories.SubscriberRepository
	mail           *MailService
	dispatcher     *Dispatcher
	now            func() time.Time
}

// NewNewsletterService creates a new instance of NewsletterService.
func NewNewsletterService(sr repositories.SubscriberRepository, mail *MailService, dispatcher *Dispatcher) NewsletterService {
	return &newsletterService{subscriberRepo: sr, mail: mail, dispatcher: dispatcher, now: time.Now}
}

func cleanInterests(in []string) []string {
	out := make([]string, 0, len(in))
	for _, i := range in {
		if t := strings.TrimSpace(i); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Subscribe creates a subscription, or reactivates a lapsed one.
func (s *newsletterService) Subscribe(ctx context.Context, req SubscribeRequest) (*models.Subscriber, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	email := utils.NormalizeEmail(req.Email)
	frequency := req.Frequency
	if frequency == "" {
		frequency = models.FrequencyWeekly
	}
	now := s.now().UTC()

	existing, err := s.subscriberRepo.GetSubscriberByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsActive {
			return nil, ErrAlreadySubscribed
		}
		existing.IsActive = true
		existing.SubscribedAt = now
		existing.UnsubscribedAt = nil
		existing.Frequency = frequency
		if req.FirstName != "" {
			existing.FirstName = strings.TrimSpace(req.FirstName)
		}
		if req.LastName != "" {
			existing.LastName = strings.TrimSpace(req.LastName)
		}
		if len(req.Interests) > 0 {
			existing.Interests = cleanInterests(req.Interests)
		}
		if err := s.subscriberRepo.UpdateSubscriber(ctx, nil, existing); err != nil {
			return nil, internalError("reactivating subscriber", err)
		}
		s.sendWelcome(existing)
		return existing, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, internalError("getting subscriber", err)
	}

	sub := &models.Subscriber{
		ID:           newID(),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Interests:    cleanInterests(req.Interests),
		Frequency:    frequency,
		IsActive:     true,
		SubscribedAt: now,
	}
	if err := s.subscriberRepo.CreateSubscriber(ctx, nil, sub); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrAlreadySubscribed
		}
		return nil, internalError("creating subscriber", err)
	}
	utils.LogInfo("Newsletter subscription created", map[string]interface{}{"subscriber_id": sub.ID})
	s.sendWelcome(sub)
	return sub, nil
}

func (s *newsletterService) sendWelcome(sub *models.Subscriber) {
	if s.mail == nil || s.dispatcher == nil {
		return
	}
	welcome := *sub
	s.dispatcher.Go("newsletter-welcome-email", func(ctx context.Context) error {
		return s.mail.SendNewsletterWelcome(ctx, &welcome)
	})
}

// Unsubscribe deactivates the subscription without deleting it.
func (s *newsletterService) Unsubscribe(ctx context.Context, req UnsubscribeRequest) (*models.Subscriber, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	sub, err := s.subscriberRepo.GetSubscriberByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		return nil, lookupError(err, ErrSubscriberNotFound, "getting subscriber")
	}
	if !sub.IsActive {
		return sub, nil
	}
	now := s.now().UTC()
	sub.IsActive = false
	sub.UnsubscribedAt = &now
	if err := s.subscriberRepo.UpdateSubscriber(ctx, nil, sub); err != nil {
		return nil, lookupError(err, ErrSubscriberNotFound, "unsubscribing")
	}
	utils.LogInfo("Newsletter subscription cancelled", map[string]interface{}{"subscriber_id": sub.ID})
	return sub, nil
}

func (s *newsletterService) GetSubscribers(ctx context.Context, active *bool) ([]models.Subscriber, error) {
	list, err := s.subscriberRepo.GetSubscribers(ctx, active)
	if err != nil {
		return nil, internalError("listing subscribers", err)
	}
	return list, nil
}

func (s *newsletterService) GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error) {
	if !isUUID(id) {
		return nil, ErrSubscriberNotFound
	}
	sub, err := s.subscriberRepo.GetSubscriberByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, ErrSubscriberNotFound, "getting subscriber")
	}
	return sub, nil
}

func (s *newsletterService) UpdateSubscriber(ctx context.Context, id string, req UpdateSubscriberRequest) (*models.Subscriber, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	sub, err := s.GetSubscriber(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		sub.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		sub.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Interests != nil {
		sub.Interests = cleanInterests(*req.Interests)
	}
	if req.Frequency != nil {
		sub.Frequency = *req.Frequency
	}
	if req.IsActive != nil && *req.IsActive != sub.IsActive {
		sub.IsActive = *req.IsActive
		if sub.IsActive {
			sub.UnsubscribedAt = nil
		} else {
			now := s.now().UTC()
			sub.UnsubscribedAt = &now
		}
	}
	if err := s.subscriberRepo.UpdateSubscriber(ctx, nil, sub); err != nil {
		return nil, lookupError(err, ErrSubscriberNotFound, "updating subscriber")
	}
	return sub, nil
}

func (s *newsletterService) DeleteSubscriber(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrSubscriberNotFound
	}
	if err := s.subscriberRepo.DeleteSubscriber(ctx, nil, id); err != nil {
		return lookupError(err, ErrSubscriberNotFound, "deleting subscriber")
	}
	return nil
}

func (s *newsletterService) Stats(ctx context.Context) (*models.SubscriberStats, error) {
	stats, err := s.subscriberRepo.SubscriberStats(ctx)
	if err != nil {
		return nil, internalError("subscriber stats", err)
	}
	return stats, nil
}
