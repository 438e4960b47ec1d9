package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// BookingRepository defines the interface for membership application persistence.
type BookingRepository interface {
	CreateBooking(ctx context.Context, executor SQLExecutor, booking *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	GetBookings(ctx context.Context, filters models.BookingFilters) ([]models.Booking, error)
	GetLatestBookingForUser(ctx context.Context, userID string) (*models.Booking, error)
	GetLatestBookingByEmail(ctx context.Context, email string) (*models.Booking, error)
	HasPendingBooking(ctx context.Context, email string) (bool, error)
	// UpdateBookingDecision writes the decision fields only if the booking is
	// still in one of the allowed states, otherwise it returns ErrStaleState.
	UpdateBookingDecision(ctx context.Context, executor SQLExecutor, booking *models.Booking, allowedFrom ...models.BookingStatus) error
	BookingStats(ctx context.Context) (*models.BookingStats, error)
}

type bookingRepository struct {
	db SQLExecutor
}

// NewBookingRepository creates a new instance of BookingRepository.
func NewBookingRepository(db SQLExecutor) BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `id, title, first_name, last_name, email, mobile, current_position, institute, department,
	organisation, address, town, postcode, state, country, status, linkedin, orcid, research_gate, interests,
	experience, profile_photo, membership_type, membership_fee, payment_method, payment_status, transaction_id,
	payment_screenshot, payment_date, booking_status, admin_remarks, approved_by, approved_at, rejected_reason,
	user_id, created_at, updated_at`

// CreateBooking inserts a new application. A concurrent pending application for the
// same email surfaces as a DuplicateKeyError from the partial unique index.
func (r *bookingRepository) CreateBooking(ctx context.Context, executor SQLExecutor, booking *models.Booking) error {
	executor = orDB(executor, r.db)
	currentTime := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = currentTime
	}
	booking.UpdatedAt = booking.CreatedAt
	booking.Interests = stringArray(booking.Interests)

	query := `INSERT INTO bookings (` + bookingColumns + `)
	          VALUES (:id, :title, :first_name, :last_name, :email, :mobile, :current_position, :institute, :department,
	              :organisation, :address, :town, :postcode, :state, :country, :status, :linkedin, :orcid, :research_gate,
	              :interests, :experience, :profile_photo, :membership_type, :membership_fee, :payment_method,
	              :payment_status, :transaction_id, :payment_screenshot, :payment_date, :booking_status, :admin_remarks,
	              :approved_by, :approved_at, :rejected_reason, :user_id, :created_at, :updated_at)`
	if _, err := executor.NamedExecContext(ctx, query, booking); err != nil {
		return mapError(err, "creating booking")
	}
	return nil
}

// GetBookingByID retrieves a booking by its ID.
func (r *bookingRepository) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, booking, query, id); err != nil {
		return nil, mapError(err, "getting booking by ID")
	}
	return booking, nil
}

// GetBookings lists bookings newest first, optionally filtered by status.
func (r *bookingRepository) GetBookings(ctx context.Context, filters models.BookingFilters) ([]models.Booking, error) {
	var args argList
	var conditions []string
	if filters.Status != nil {
		conditions = append(conditions, "booking_status = "+args.add(string(*filters.Status)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	bookings := []models.Booking{}
	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, args...); err != nil {
		return nil, mapError(err, "listing bookings")
	}
	return bookings, nil
}

// GetLatestBookingForUser returns the newest booking owned by the account.
func (r *bookingRepository) GetLatestBookingForUser(ctx context.Context, userID string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, r.db, booking, query, userID); err != nil {
		return nil, mapError(err, "getting latest booking for user")
	}
	return booking, nil
}

// GetLatestBookingByEmail returns the newest booking submitted with the email.
func (r *bookingRepository) GetLatestBookingByEmail(ctx context.Context, email string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE lower(email) = lower($1) ORDER BY created_at DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, r.db, booking, query, strings.TrimSpace(email)); err != nil {
		return nil, mapError(err, "getting latest booking by email")
	}
	return booking, nil
}

// HasPendingBooking reports whether a pending booking exists for the email.
func (r *bookingRepository) HasPendingBooking(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE lower(email) = lower($1) AND booking_status = 'pending')`
	if err := sqlx.GetContext(ctx, r.db, &exists, query, strings.TrimSpace(email)); err != nil {
		return false, mapError(err, "checking pending booking")
	}
	return exists, nil
}

func (r *bookingRepository) UpdateBookingDecision(ctx context.Context, executor SQLExecutor, booking *models.Booking, allowedFrom ...models.BookingStatus) error {
	executor = orDB(executor, r.db)
	booking.UpdatedAt = time.Now().UTC()

	var args argList
	query := `UPDATE bookings SET booking_status = ` + args.add(string(booking.BookingStatus)) +
		`, admin_remarks = ` + args.add(booking.AdminRemarks) +
		`, approved_by = ` + args.add(booking.ApprovedBy) +
		`, approved_at = ` + args.add(booking.ApprovedAt) +
		`, rejected_reason = ` + args.add(booking.RejectedReason) +
		`, payment_status = ` + args.add(booking.PaymentStatus) +
		`, updated_at = ` + args.add(booking.UpdatedAt) +
		` WHERE id = ` + args.add(booking.ID)
	if len(allowedFrom) > 0 {
		states := make([]string, len(allowedFrom))
		for i, s := range allowedFrom {
			states[i] = string(s)
		}
		query += ` AND booking_status = ANY(` + args.add(stringArray(states)) + `)`
	}

	res, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "updating booking decision")
	}
	return expectOneRow(res, ErrStaleState, "updating booking decision")
}

// BookingStats counts bookings by review and payment state.
func (r *bookingRepository) BookingStats(ctx context.Context) (*models.BookingStats, error) {
	stats := &models.BookingStats{}
	query := `SELECT COUNT(*) AS total,
	              COUNT(*) FILTER (WHERE booking_status = 'pending') AS pending,
	              COUNT(*) FILTER (WHERE booking_status = 'approved') AS approved,
	              COUNT(*) FILTER (WHERE booking_status = 'rejected') AS rejected,
	              COUNT(*) FILTER (WHERE payment_status IN ('paid', 'completed')) AS paid
	          FROM bookings`
	if err := sqlx.GetContext(ctx, r.db, stats, query); err != nil {
		return nil, mapError(err, "booking stats")
	}
	return stats, nil
}
