package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// MembershipRepository defines the interface for membership persistence.
type MembershipRepository interface {
	CreateMembership(ctx context.Context, executor SQLExecutor, membership *models.Membership) error
	GetMembershipByID(ctx context.Context, id string) (*models.Membership, error)
	GetMembershipForUpdate(ctx context.Context, executor SQLExecutor, id string) (*models.Membership, error)
	GetMembershipByMembershipID(ctx context.Context, membershipID string) (*models.Membership, error)
	GetLatestMembershipForUser(ctx context.Context, userID string) (*models.Membership, error)
	GetLatestMembershipByEmail(ctx context.Context, email string) (*models.Membership, error)
	HasActiveMembership(ctx context.Context, email string) (bool, error)
	MembershipIDExists(ctx context.Context, membershipID string) (bool, error)
	GetMemberships(ctx context.Context, filters models.MembershipFilters) ([]models.Membership, error)
	UpdateMembership(ctx context.Context, executor SQLExecutor, membership *models.Membership) error
	DeleteMembership(ctx context.Context, executor SQLExecutor, id string) error
	ExpireMemberships(ctx context.Context, executor SQLExecutor, now time.Time) (int64, error)
	MembershipStats(ctx context.Context) (*models.MembershipStats, error)
}

type membershipRepository struct {
	db SQLExecutor
}

// NewMembershipRepository creates a new instance of MembershipRepository.
func NewMembershipRepository(db SQLExecutor) MembershipRepository {
	return &membershipRepository{db: db}
}

const membershipColumns = `id, membership_id, title, first_name, last_name, email, mobile, current_position, institute,
	department, organisation, address, town, postcode, state, country, status, linkedin, orcid, research_gate,
	interests, experience, profile_photo, membership_type, membership_fee, payment_method, payment_status,
	transaction_id, payment_screenshot, issue_date, expiry_date, active, is_admin_approved, approved_by, approved_at,
	admin_remarks, payment_verification_id, booking_id, user_id, created_at, updated_at`

// CreateMembership inserts a membership. A clashing membership_id surfaces as a DuplicateKeyError.
func (r *membershipRepository) CreateMembership(ctx context.Context, executor SQLExecutor, membership *models.Membership) error {
	executor = orDB(executor, r.db)
	currentTime := time.Now().UTC()
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = currentTime
	}
	membership.UpdatedAt = membership.CreatedAt
	membership.Interests = stringArray(membership.Interests)

	query := `INSERT INTO memberships (` + membershipColumns + `)
	          VALUES (:id, :membership_id, :title, :first_name, :last_name, :email, :mobile, :current_position, :institute,
	              :department, :organisation, :address, :town, :postcode, :state, :country, :status, :linkedin, :orcid,
	              :research_gate, :interests, :experience, :profile_photo, :membership_type, :membership_fee,
	              :payment_method, :payment_status, :transaction_id, :payment_screenshot, :issue_date, :expiry_date,
	              :active, :is_admin_approved, :approved_by, :approved_at, :admin_remarks, :payment_verification_id,
	              :booking_id, :user_id, :created_at, :updated_at)`
	if _, err := executor.NamedExecContext(ctx, query, membership); err != nil {
		return mapError(err, "creating membership")
	}
	return nil
}

func getMembership(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) (*models.Membership, error) {
	membership := &models.Membership{}
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE ` + where
	if err := sqlx.GetContext(ctx, q, membership, query, args...); err != nil {
		return nil, mapError(err, "getting membership")
	}
	return membership, nil
}

// GetMembershipByID retrieves a membership by its record ID.
func (r *membershipRepository) GetMembershipByID(ctx context.Context, id string) (*models.Membership, error) {
	return getMembership(ctx, r.db, "id = $1", id)
}

// GetMembershipForUpdate reads and locks the row inside a transaction.
func (r *membershipRepository) GetMembershipForUpdate(ctx context.Context, executor SQLExecutor, id string) (*models.Membership, error) {
	executor = orDB(executor, r.db)
	return getMembership(ctx, executor, "id = $1 FOR UPDATE", id)
}

// GetMembershipByMembershipID retrieves a membership by its SOCCOS identifier.
func (r *membershipRepository) GetMembershipByMembershipID(ctx context.Context, membershipID string) (*models.Membership, error) {
	return getMembership(ctx, r.db, "membership_id = $1", strings.TrimSpace(membershipID))
}

func (r *membershipRepository) GetLatestMembershipForUser(ctx context.Context, userID string) (*models.Membership, error) {
	return getMembership(ctx, r.db, "user_id = $1 ORDER BY created_at DESC LIMIT 1", userID)
}

func (r *membershipRepository) GetLatestMembershipByEmail(ctx context.Context, email string) (*models.Membership, error) {
	return getMembership(ctx, r.db, "lower(email) = lower($1) ORDER BY created_at DESC LIMIT 1", strings.TrimSpace(email))
}

// HasActiveMembership reports whether an active membership exists for the email.
func (r *membershipRepository) HasActiveMembership(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM memberships WHERE lower(email) = lower($1) AND active)`
	if err := sqlx.GetContext(ctx, r.db, &exists, query, strings.TrimSpace(email)); err != nil {
		return false, mapError(err, "checking active membership")
	}
	return exists, nil
}

// MembershipIDExists reports whether the human-facing identifier is taken.
func (r *membershipRepository) MembershipIDExists(ctx context.Context, membershipID string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS (SELECT 1 FROM memberships WHERE membership_id = $1)`, membershipID); err != nil {
		return false, mapError(err, "checking membership id")
	}
	return exists, nil
}

// GetMemberships lists memberships newest first.
func (r *membershipRepository) GetMemberships(ctx context.Context, filters models.MembershipFilters) ([]models.Membership, error) {
	var args argList
	var conditions []string
	if filters.Active != nil {
		conditions = append(conditions, "active = "+args.add(*filters.Active))
	}
	if filters.Approved != nil {
		conditions = append(conditions, "is_admin_approved = "+args.add(*filters.Approved))
	}
	if filters.MembershipType != nil {
		conditions = append(conditions, "membership_type = "+args.add(*filters.MembershipType))
	}

	query := `SELECT ` + membershipColumns + ` FROM memberships`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	memberships := []models.Membership{}
	if err := sqlx.SelectContext(ctx, r.db, &memberships, query, args...); err != nil {
		return nil, mapError(err, "listing memberships")
	}
	return memberships, nil
}

// UpdateMembership persists the mutable lifecycle and snapshot columns.
func (r *membershipRepository) UpdateMembership(ctx context.Context, executor SQLExecutor, membership *models.Membership) error {
	executor = orDB(executor, r.db)
	membership.UpdatedAt = time.Now().UTC()
	membership.Interests = stringArray(membership.Interests)
	query := `UPDATE memberships SET title = :title, first_name = :first_name, last_name = :last_name, mobile = :mobile,
	              current_position = :current_position, institute = :institute, department = :department,
	              organisation = :organisation, address = :address, town = :town, postcode = :postcode, state = :state,
	              country = :country, status = :status, linkedin = :linkedin, orcid = :orcid, research_gate = :research_gate,
	              interests = :interests, experience = :experience, profile_photo = :profile_photo,
	              membership_type = :membership_type, membership_fee = :membership_fee, payment_method = :payment_method,
	              payment_status = :payment_status, transaction_id = :transaction_id,
	              payment_screenshot = :payment_screenshot, issue_date = :issue_date, expiry_date = :expiry_date,
	              active = :active, is_admin_approved = :is_admin_approved, approved_by = :approved_by,
	              approved_at = :approved_at, admin_remarks = :admin_remarks,
	              payment_verification_id = :payment_verification_id, user_id = :user_id, updated_at = :updated_at
	          WHERE id = :id`
	res, err := executor.NamedExecContext(ctx, query, membership)
	if err != nil {
		return mapError(err, "updating membership")
	}
	return expectOneRow(res, ErrNotFound, "updating membership")
}

// DeleteMembership hard-deletes a membership and, by cascade, its verifications.
func (r *membershipRepository) DeleteMembership(ctx context.Context, executor SQLExecutor, id string) error {
	executor = orDB(executor, r.db)
	res, err := executor.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting membership")
	}
	return expectOneRow(res, ErrNotFound, "deleting membership")
}

// ExpireMemberships deactivates active memberships whose expiry date has passed.
func (r *membershipRepository) ExpireMemberships(ctx context.Context, executor SQLExecutor, now time.Time) (int64, error) {
	executor = orDB(executor, r.db)
	res, err := executor.ExecContext(ctx,
		`UPDATE memberships SET active = FALSE, updated_at = $1 WHERE active AND expiry_date IS NOT NULL AND expiry_date < $1`, now)
	if err != nil {
		return 0, mapError(err, "expiring memberships")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "expiring memberships")
	}
	return n, nil
}

// MembershipStats aggregates memberships by state and type.
func (r *membershipRepository) MembershipStats(ctx context.Context) (*models.MembershipStats, error) {
	var row struct {
		Total    int `db:"total"`
		Active   int `db:"active"`
		Approved int `db:"approved"`
		Pending  int `db:"pending"`
	}
	query := `SELECT COUNT(*) AS total,
	              COUNT(*) FILTER (WHERE active) AS active,
	              COUNT(*) FILTER (WHERE is_admin_approved) AS approved,
	              COUNT(*) FILTER (WHERE NOT is_admin_approved) AS pending
	          FROM memberships`
	if err := sqlx.GetContext(ctx, r.db, &row, query); err != nil {
		return nil, mapError(err, "membership stats")
	}

	var byType []models.TypeCount
	if err := sqlx.SelectContext(ctx, r.db, &byType, `SELECT membership_type AS key, COUNT(*) AS count FROM memberships GROUP BY membership_type`); err != nil {
		return nil, mapError(err, "membership stats by type")
	}

	stats := &models.MembershipStats{
		Total:    row.Total,
		Active:   row.Active,
		Approved: row.Approved,
		Pending:  row.Pending,
		ByType:   make(map[string]int, len(byType)),
	}
	for _, tc := range byType {
		stats.ByType[tc.Key] = tc.Count
	}
	return stats, nil
}
