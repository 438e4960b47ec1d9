package services

import (
	"context"
	"strings"

	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// --- Admin DTOs ---
type UpdateUserRequest struct {
	FirstName  *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	IsAdmin    *bool   `json:"isAdmin"`
	IsVerified *bool   `json:"isVerified"`
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users    []models.Account `json:"users"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// DashboardStats aggregates every admin counter.
type DashboardStats struct {
	Users         *models.AccountStats      `json:"users"`
	Memberships   *models.MembershipStats   `json:"memberships"`
	Bookings      *models.BookingStats      `json:"bookings"`
	Notifications *models.NotificationStats `json:"notifications"`
	Newsletter    *models.SubscriberStats   `json:"newsletter"`
}

// --- AdminService Interface ---
type AdminService interface {
	ListUsers(ctx context.Context, filters models.AccountFilters) (*UserPage, error)
	GetUser(ctx context.Context, id string) (*models.Account, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*models.Account, error)
	DeleteUser(ctx context.Context, id string) error
	PromoteAdmin(ctx context.Context, email string) (*models.Account, error)
	UserStats(ctx context.Context) (*models.AccountStats, error)
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

type adminService struct {
	accountRepo       repositories.AccountRepository
	membershipRepo    repositories.MembershipRepository
	bookingRepo       repositories.BookingRepository
	notificationRepo  repositories.NotificationRepository
	subscriberRepo    repositories.SubscriberRepository
	primaryAdminEmail string
}

// NewAdminService creates a new instance of AdminService.
func NewAdminService(
	ar repositories.AccountRepository,
	mr repositories.MembershipRepository,
	br repositories.BookingRepository,
	nr repositories.NotificationRepository,
	sr repositories.SubscriberRepository,
	primaryAdminEmail string,
) AdminService {
	if primaryAdminEmail == "" {
		primaryAdminEmail = DefaultPrimaryAdminEmail
	}
	return &adminService{
		accountRepo:       ar,
		membershipRepo:    mr,
		bookingRepo:       br,
		notificationRepo:  nr,
		subscriberRepo:    sr,
		primaryAdminEmail: utils.NormalizeEmail(primaryAdminEmail),
	}
}

func (s *adminService) ListUsers(ctx context.Context, filters models.AccountFilters) (*UserPage, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 20
	}
	users, total, err := s.accountRepo.ListAccounts(ctx, filters)
	if err != nil {
		return nil, internalError("listing users", err)
	}
	return &UserPage{Users: users, Total: total, Page: filters.Page, PageSize: filters.PageSize}, nil
}

func (s *adminService) GetUser(ctx context.Context, id string) (*models.Account, error) {
	if !isUUID(id) {
		return nil, ErrAccountNotFound
	}
	account, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "getting user")
	}
	return account, nil
}

func (s *adminService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*models.Account, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	account, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IsAdmin != nil && !*req.IsAdmin && account.Email == s.primaryAdminEmail {
		return nil, ErrPrimaryAdminProtected
	}
	if req.FirstName != nil {
		account.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		account.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.IsAdmin != nil {
		account.IsAdmin = *req.IsAdmin
	}
	if req.IsVerified != nil {
		account.IsVerified = *req.IsVerified
	}
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "updating user")
	}
	return account, nil
}

// DeleteUser removes the account and its settings. Memberships and bookings
// are kept, detached from the account.
func (s *adminService) DeleteUser(ctx context.Context, id string) error {
	account, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if account.Email == s.primaryAdminEmail {
		return ErrPrimaryAdminProtected
	}
	if err := s.accountRepo.DeleteAccount(ctx, nil, id); err != nil {
		return lookupError(err, ErrAccountNotFound, "deleting user")
	}
	utils.LogInfo("Account deleted", map[string]interface{}{"user_id": id})
	return nil
}

func (s *adminService) PromoteAdmin(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accountRepo.GetAccountByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "getting user by email")
	}
	if account.IsAdmin {
		return account, nil
	}
	account.IsAdmin = true
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "promoting user")
	}
	utils.LogInfo("Account promoted to admin", map[string]interface{}{"user_id": account.ID})
	return account, nil
}

func (s *adminService) UserStats(ctx context.Context) (*models.AccountStats, error) {
	stats, err := s.accountRepo.AccountStats(ctx)
	if err != nil {
		return nil, internalError("user stats", err)
	}
	return stats, nil
}

// DashboardStats runs every aggregate concurrently.
func (s *adminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	out := &DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { out.Users, err = s.accountRepo.AccountStats(gctx); return })
	g.Go(func() (err error) { out.Memberships, err = s.membershipRepo.MembershipStats(gctx); return })
	g.Go(func() (err error) { out.Bookings, err = s.bookingRepo.BookingStats(gctx); return })
	g.Go(func() (err error) { out.Notifications, err = s.notificationRepo.NotificationStats(gctx); return })
	g.Go(func() (err error) { out.Newsletter, err = s.subscriberRepo.SubscriberStats(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, internalError("dashboard stats", err)
	}
	return out, nil
}
