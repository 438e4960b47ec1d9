package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// SubscriberRepository defines the interface for newsletter subscription persistence.
type SubscriberRepository interface {
	CreateSubscriber(ctx context.Context, executor SQLExecutor, s *models.Subscriber) error
	GetSubscriberByID(ctx context.Context, id string) (*models.Subscriber, error)
	GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	GetSubscribers(ctx context.Context, active *bool) ([]models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, executor SQLExecutor, s *models.Subscriber) error
	DeleteSubscriber(ctx context.Context, executor SQLExecutor, id string) error
	SubscriberStats(ctx context.Context) (*models.SubscriberStats, error)
}

type subscriberRepository struct {
	db SQLExecutor
}

// NewSubscriberRepository creates a new instance of SubscriberRepository.
func NewSubscriberRepository(db SQLExecutor) SubscriberRepository {
	return &subscriberRepository{db: db}
}

const subscriberColumns = `id, email, first_name, last_name, interests, frequency, is_active, subscribed_at, unsubscribed_at`

func (r *subscriberRepository) CreateSubscriber(ctx context.Context, executor SQLExecutor, s *models.Subscriber) error {
	executor = orDB(executor, r.db)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = time.Now().UTC()
	}
	s.Interests = stringArray(s.Interests)

	query := `INSERT INTO newsletter_subscribers (` + subscriberColumns + `)
	          VALUES (:id, :email, :first_name, :last_name, :interests, :frequency, :is_active, :subscribed_at, :unsubscribed_at)`
	if _, err := executor.NamedExecContext(ctx, query, s); err != nil {
		return mapError(err, "creating subscriber")
	}
	return nil
}

func (r *subscriberRepository) GetSubscriberByID(ctx context.Context, id string) (*models.Subscriber, error) {
	s := &models.Subscriber{}
	if err := sqlx.GetContext(ctx, r.db, s, `SELECT `+subscriberColumns+` FROM newsletter_subscribers WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "getting subscriber")
	}
	return s, nil
}

func (r *subscriberRepository) GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	s := &models.Subscriber{}
	query := `SELECT ` + subscriberColumns + ` FROM newsletter_subscribers WHERE email = lower($1)`
	if err := sqlx.GetContext(ctx, r.db, s, query, strings.TrimSpace(email)); err != nil {
		return nil, mapError(err, "getting subscriber by email")
	}
	return s, nil
}

// GetSubscribers lists subscriptions newest first, optionally filtered by activity.
func (r *subscriberRepository) GetSubscribers(ctx context.Context, active *bool) ([]models.Subscriber, error) {
	var args argList
	query := `SELECT ` + subscriberColumns + ` FROM newsletter_subscribers`
	if active != nil {
		query += " WHERE is_active = " + args.add(*active)
	}
	query += " ORDER BY subscribed_at DESC"

	out := []models.Subscriber{}
	if err := sqlx.SelectContext(ctx, r.db, &out, query, args...); err != nil {
		return nil, mapError(err, "listing subscribers")
	}
	return out, nil
}

func (r *subscriberRepository) UpdateSubscriber(ctx context.Context, executor SQLExecutor, s *models.Subscriber) error {
	executor = orDB(executor, r.db)
	s.Interests = stringArray(s.Interests)
	query := `UPDATE newsletter_subscribers SET first_name = :first_name, last_name = :last_name, interests = :interests,
	              frequency = :frequency, is_active = :is_active, subscribed_at = :subscribed_at,
	              unsubscribed_at = :unsubscribed_at
	          WHERE id = :id`
	res, err := executor.NamedExecContext(ctx, query, s)
	if err != nil {
		return mapError(err, "updating subscriber")
	}
	return expectOneRow(res, ErrNotFound, "updating subscriber")
}

func (r *subscriberRepository) DeleteSubscriber(ctx context.Context, executor SQLExecutor, id string) error {
	executor = orDB(executor, r.db)
	res, err := executor.ExecContext(ctx, `DELETE FROM newsletter_subscribers WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting subscriber")
	}
	return expectOneRow(res, ErrNotFound, "deleting subscriber")
}

func (r *subscriberRepository) SubscriberStats(ctx context.Context) (*models.SubscriberStats, error) {
	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := sqlx.GetContext(ctx, r.db, &row,
		`SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active FROM newsletter_subscribers`); err != nil {
		return nil, mapError(err, "subscriber stats")
	}

	var byFrequency []models.TypeCount
	if err := sqlx.SelectContext(ctx, r.db, &byFrequency,
		`SELECT frequency AS key, COUNT(*) AS count FROM newsletter_subscribers WHERE is_active GROUP BY frequency`); err != nil {
		return nil, mapError(err, "subscriber stats by frequency")
	}

	stats := &models.SubscriberStats{
		Total:       row.Total,
		Active:      row.Active,
		Inactive:    row.Total - row.Active,
		ByFrequency: make(map[string]int, len(byFrequency)),
	}
	for _, tc := range byFrequency {
		stats.ByFrequency[tc.Key] = tc.Count
	}
	return stats, nil
}
