package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// PaymentVerificationRepository defines the interface for payment proof persistence.
type PaymentVerificationRepository interface {
	CreateVerification(ctx context.Context, executor SQLExecutor, v *models.PaymentVerification) error
	GetVerificationByID(ctx context.Context, id string) (*models.PaymentVerification, error)
	GetVerifications(ctx context.Context, filters models.VerificationFilters) ([]models.PaymentVerification, error)
	GetLatestVerificationForMembership(ctx context.Context, membershipRef string) (*models.PaymentVerification, error)
	HasOpenVerification(ctx context.Context, membershipRef string) (bool, error)
	// UpdateVerificationDecision writes the decision fields only while the
	// verification is still pending, otherwise it returns ErrStaleState.
	UpdateVerificationDecision(ctx context.Context, executor SQLExecutor, v *models.PaymentVerification) error
}

type paymentVerificationRepository struct {
	db SQLExecutor
}

// NewPaymentVerificationRepository creates a new instance of PaymentVerificationRepository.
func NewPaymentVerificationRepository(db SQLExecutor) PaymentVerificationRepository {
	return &paymentVerificationRepository{db: db}
}

const verificationColumns = `id, membership_ref, user_id, email, first_name, last_name, membership_type, amount,
	payment_method, transaction_id, payment_screenshot, remarks, verification_status, verified_by, verified_at,
	admin_remarks, is_upgrade, previous_membership_type, submitted_at, updated_at`

// CreateVerification inserts a payment proof. A second open proof for the same
// membership surfaces as a DuplicateKeyError from the partial unique index.
func (r *paymentVerificationRepository) CreateVerification(ctx context.Context, executor SQLExecutor, v *models.PaymentVerification) error {
	executor = orDB(executor, r.db)
	currentTime := time.Now().UTC()
	if v.SubmittedAt.IsZero() {
		v.SubmittedAt = currentTime
	}
	v.UpdatedAt = v.SubmittedAt

	query := `INSERT INTO payment_verifications (` + verificationColumns + `)
	          VALUES (:id, :membership_ref, :user_id, :email, :first_name, :last_name, :membership_type, :amount,
	              :payment_method, :transaction_id, :payment_screenshot, :remarks, :verification_status, :verified_by,
	              :verified_at, :admin_remarks, :is_upgrade, :previous_membership_type, :submitted_at, :updated_at)`
	if _, err := executor.NamedExecContext(ctx, query, v); err != nil {
		return mapError(err, "creating payment verification")
	}
	return nil
}

// GetVerificationByID retrieves a payment proof by its ID.
func (r *paymentVerificationRepository) GetVerificationByID(ctx context.Context, id string) (*models.PaymentVerification, error) {
	v := &models.PaymentVerification{}
	if err := sqlx.GetContext(ctx, r.db, v, `SELECT `+verificationColumns+` FROM payment_verifications WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "getting payment verification")
	}
	return v, nil
}

// GetVerifications lists payment proofs newest first.
func (r *paymentVerificationRepository) GetVerifications(ctx context.Context, filters models.VerificationFilters) ([]models.PaymentVerification, error) {
	var args argList
	var conditions []string
	if filters.Status != nil {
		conditions = append(conditions, "verification_status = "+args.add(string(*filters.Status)))
	}
	if filters.IsUpgrade != nil {
		conditions = append(conditions, "is_upgrade = "+args.add(*filters.IsUpgrade))
	}

	query := `SELECT ` + verificationColumns + ` FROM payment_verifications`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY submitted_at DESC"

	out := []models.PaymentVerification{}
	if err := sqlx.SelectContext(ctx, r.db, &out, query, args...); err != nil {
		return nil, mapError(err, "listing payment verifications")
	}
	return out, nil
}

// GetLatestVerificationForMembership returns the newest proof for the membership.
func (r *paymentVerificationRepository) GetLatestVerificationForMembership(ctx context.Context, membershipRef string) (*models.PaymentVerification, error) {
	v := &models.PaymentVerification{}
	query := `SELECT ` + verificationColumns + ` FROM payment_verifications
	          WHERE membership_ref = $1 ORDER BY submitted_at DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, r.db, v, query, membershipRef); err != nil {
		return nil, mapError(err, "getting latest payment verification")
	}
	return v, nil
}

// HasOpenVerification reports whether a pending or approved proof exists for the membership.
func (r *paymentVerificationRepository) HasOpenVerification(ctx context.Context, membershipRef string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM payment_verifications
	          WHERE membership_ref = $1 AND verification_status IN ('pending', 'approved'))`
	if err := sqlx.GetContext(ctx, r.db, &exists, query, membershipRef); err != nil {
		return false, mapError(err, "checking open payment verification")
	}
	return exists, nil
}

func (r *paymentVerificationRepository) UpdateVerificationDecision(ctx context.Context, executor SQLExecutor, v *models.PaymentVerification) error {
	executor = orDB(executor, r.db)
	v.UpdatedAt = time.Now().UTC()
	query := `UPDATE payment_verifications
	          SET verification_status = $1, verified_by = $2, verified_at = $3, admin_remarks = $4, updated_at = $5
	          WHERE id = $6 AND verification_status = 'pending'`
	res, err := executor.ExecContext(ctx, query,
		string(v.VerificationStatus), v.VerifiedBy, v.VerifiedAt, v.AdminRemarks, v.UpdatedAt, v.ID)
	if err != nil {
		return mapError(err, "updating payment verification decision")
	}
	return expectOneRow(res, ErrStaleState, "updating payment verification decision")
}
