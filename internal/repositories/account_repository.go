package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// AccountRepository defines the interface for identity-related database operations.
type AccountRepository interface {
	CreateAccount(ctx context.Context, executor SQLExecutor, account *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByGoogleID(ctx context.Context, googleID string) (*models.Account, error)
	UpdateAccount(ctx context.Context, executor SQLExecutor, account *models.Account) error
	DeleteAccount(ctx context.Context, executor SQLExecutor, id string) error
	ListAccounts(ctx context.Context, filters models.AccountFilters) ([]models.Account, int, error)
	ExistingAccountIDs(ctx context.Context, ids []string) ([]string, error)
	ListRecipients(ctx context.Context, ids []string) ([]models.Recipient, error)
	ListEmailOptInRecipients(ctx context.Context) ([]models.Recipient, error)
	AccountStats(ctx context.Context) (*models.AccountStats, error)
}

type accountRepository struct {
	db SQLExecutor
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db SQLExecutor) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, email, password_hash, first_name, last_name, phone, address, bio, profile_picture,
	is_verified, is_admin, google_id, otp_code, otp_purpose, otp_expires_at, reset_verified, created_at, updated_at`

// CreateAccount inserts a new account. The email is stored lowercased.
func (r *accountRepository) CreateAccount(ctx context.Context, executor SQLExecutor, account *models.Account) error {
	executor = orDB(executor, r.db)
	currentTime := time.Now().UTC()
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.CreatedAt = currentTime
	account.UpdatedAt = currentTime

	query := `INSERT INTO accounts (id, email, password_hash, first_name, last_name, phone, address, bio, profile_picture,
	              is_verified, is_admin, google_id, otp_code, otp_purpose, otp_expires_at, reset_verified, created_at, updated_at)
	          VALUES (:id, :email, :password_hash, :first_name, :last_name, :phone, :address, :bio, :profile_picture,
	              :is_verified, :is_admin, :google_id, :otp_code, :otp_purpose, :otp_expires_at, :reset_verified, :created_at, :updated_at)`
	if _, err := executor.NamedExecContext(ctx, query, account); err != nil {
		return mapError(err, "creating account")
	}
	return nil
}

func (r *accountRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Account, error) {
	account := &models.Account{}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where
	if err := sqlx.GetContext(ctx, r.db, account, query, arg); err != nil {
		return nil, mapError(err, "getting account")
	}
	return account, nil
}

// GetAccountByID retrieves an account by its ID.
func (r *accountRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetAccountByEmail retrieves an account by email, case-insensitively.
func (r *accountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, "email = lower($1)", strings.TrimSpace(email))
}

// GetAccountByGoogleID retrieves an account by its linked Google subject.
func (r *accountRepository) GetAccountByGoogleID(ctx context.Context, googleID string) (*models.Account, error) {
	return r.getOne(ctx, "google_id = $1", googleID)
}

// UpdateAccount persists every mutable column of the account.
func (r *accountRepository) UpdateAccount(ctx context.Context, executor SQLExecutor, account *models.Account) error {
	executor = orDB(executor, r.db)
	account.UpdatedAt = time.Now().UTC()
	query := `UPDATE accounts SET password_hash = :password_hash, first_name = :first_name, last_name = :last_name,
	              phone = :phone, address = :address, bio = :bio, profile_picture = :profile_picture,
	              is_verified = :is_verified, is_admin = :is_admin, google_id = :google_id, otp_code = :otp_code,
	              otp_purpose = :otp_purpose, otp_expires_at = :otp_expires_at, reset_verified = :reset_verified,
	              updated_at = :updated_at
	          WHERE id = :id`
	res, err := executor.NamedExecContext(ctx, query, account)
	if err != nil {
		return mapError(err, "updating account")
	}
	return expectOneRow(res, ErrNotFound, "updating account")
}

// DeleteAccount hard-deletes an account. Settings cascade, memberships and bookings are detached.
func (r *accountRepository) DeleteAccount(ctx context.Context, executor SQLExecutor, id string) error {
	executor = orDB(executor, r.db)
	res, err := executor.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting account")
	}
	return expectOneRow(res, ErrNotFound, "deleting account")
}

// ListAccounts returns a page of accounts and the total match count.
func (r *accountRepository) ListAccounts(ctx context.Context, filters models.AccountFilters) ([]models.Account, int, error) {
	where := "TRUE"
	args := []interface{}{}
	if s := strings.TrimSpace(filters.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		where = "(email LIKE $1 OR lower(first_name) LIKE $1 OR lower(last_name) LIKE $1)"
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM accounts WHERE `+where, args...); err != nil {
		return nil, 0, mapError(err, "counting accounts")
	}

	page, size := pageBounds(filters.Page, filters.PageSize)
	args = append(args, size, (page-1)*size)
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where +
		` ORDER BY created_at DESC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	accounts := []models.Account{}
	if err := sqlx.SelectContext(ctx, r.db, &accounts, query, args...); err != nil {
		return nil, 0, mapError(err, "listing accounts")
	}
	return accounts, total, nil
}

// ExistingAccountIDs returns the subset of ids that belong to an account.
func (r *accountRepository) ExistingAccountIDs(ctx context.Context, ids []string) ([]string, error) {
	found := []string{}
	if len(ids) == 0 {
		return found, nil
	}
	if err := sqlx.SelectContext(ctx, r.db, &found, `SELECT id::text FROM accounts WHERE id::text = ANY($1)`, stringArray(ids)); err != nil {
		return nil, mapError(err, "checking account ids")
	}
	return found, nil
}

// ListRecipients returns id, email and first name for the given accounts.
func (r *accountRepository) ListRecipients(ctx context.Context, ids []string) ([]models.Recipient, error) {
	out := []models.Recipient{}
	if len(ids) == 0 {
		return out, nil
	}
	if err := sqlx.SelectContext(ctx, r.db, &out, `SELECT id::text AS id, email, first_name FROM accounts WHERE id::text = ANY($1)`, stringArray(ids)); err != nil {
		return nil, mapError(err, "listing recipients")
	}
	return out, nil
}

// ListEmailOptInRecipients returns every account whose email notifications are on.
// Accounts without a settings row default to on.
func (r *accountRepository) ListEmailOptInRecipients(ctx context.Context) ([]models.Recipient, error) {
	out := []models.Recipient{}
	query := `SELECT a.id::text AS id, a.email, a.first_name
	          FROM accounts a LEFT JOIN user_settings s ON s.user_id = a.id
	          WHERE COALESCE(s.email_notifications, TRUE)`
	if err := sqlx.SelectContext(ctx, r.db, &out, query); err != nil {
		return nil, mapError(err, "listing opted-in recipients")
	}
	return out, nil
}

// AccountStats counts accounts by verification and role.
func (r *accountRepository) AccountStats(ctx context.Context) (*models.AccountStats, error) {
	stats := &models.AccountStats{}
	query := `SELECT COUNT(*) AS total,
	              COUNT(*) FILTER (WHERE is_verified) AS verified,
	              COUNT(*) FILTER (WHERE is_admin) AS admins,
	              COUNT(*) FILTER (WHERE NOT is_verified) AS unverified
	          FROM accounts`
	if err := sqlx.GetContext(ctx, r.db, stats, query); err != nil {
		return nil, mapError(err, "account stats")
	}
	return stats, nil
}
