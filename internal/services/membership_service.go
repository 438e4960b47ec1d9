package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"
)

// --- Membership DTOs ---

// RegisterMembershipRequest is the direct registration form. The record it
// creates stays inactive until an admin approves a payment for it.
type RegisterMembershipRequest struct {
	ApplicantInput
	MembershipType    string `json:"membershipType" validate:"required"`
	PaymentMethod     string `json:"paymentMethod" validate:"omitempty,oneof=qr-code bank-transfer upi"`
	TransactionID     string `json:"transactionId" validate:"max=100"`
	PaymentScreenshot string `json:"paymentScreenshot"`
}

// UpdateMembershipRequest holds admin edits. Nil fields are left unchanged.
type UpdateMembershipRequest struct {
	MembershipType  *string    `json:"membershipType"`
	Active          *bool      `json:"active"`
	IsAdminApproved *bool      `json:"isAdminApproved"`
	PaymentStatus   *string    `json:"paymentStatus" validate:"omitempty,oneof=pending paid verified completed rejected"`
	AdminRemarks    *string    `json:"adminRemarks" validate:"omitempty,max=1000"`
	IssueDate       *time.Time `json:"issueDate"`
	ExpiryDate      *time.Time `json:"expiryDate"`
}

// MembershipListFilters are the raw admin list query parameters.
type MembershipListFilters struct {
	Active         *bool
	Approved       *bool
	MembershipType string
}

// MembershipValidity is the public answer to "is this a real member".
type MembershipValidity struct {
	Valid        bool       `json:"valid"`
	Active       bool       `json:"active"`
	MembershipID string     `json:"membershipId,omitempty"`
	ExpiryDate   *time.Time `json:"expiryDate,omitempty"`
}

// ApprovalStatus summarises the caller's membership state.
type ApprovalStatus struct {
	HasMembership   bool   `json:"hasMembership"`
	IsAdminApproved bool   `json:"isAdminApproved"`
	Active          bool   `json:"active"`
	PaymentStatus   string `json:"paymentStatus,omitempty"`
	MembershipID    string `json:"membershipId,omitempty"`
}

// FeeSchedule is the public fee listing.
type FeeSchedule struct {
	Currency string         `json:"currency"`
	Fees     map[string]int `json:"fees"`
	Bank     BankDetails    `json:"bankDetails"`
}

// BankDetails are the society's transfer coordinates, shown next to fees.
type BankDetails struct {
	AccountName   string `json:"accountName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	BankName      string `json:"bankName,omitempty"`
	UPIID         string `json:"upiId,omitempty"`
}

// TierFee is the fee of one tier.
type TierFee struct {
	MembershipType string `json:"membershipType"`
	Fee            int    `json:"fee"`
	Currency       string `json:"currency"`
}

// MembershipTypes is the public tier catalogue.
type MembershipTypes struct {
	MembershipTypes []MembershipTier  `json:"membershipTypes"`
	Aliases         map[string]string `json:"aliases"`
	Currency        string            `json:"currency"`
}

// --- MembershipService Interface ---
type MembershipService interface {
	Register(ctx context.Context, caller Caller, req RegisterMembershipRequest) (*models.Membership, error)
	Current(ctx context.Context, caller Caller) (*models.Membership, error)
	ByEmail(ctx context.Context, email string) (*models.Membership, error)
	Lookup(ctx context.Context, ref string) (*models.Membership, error)
	Validate(ctx context.Context, ref string) (*MembershipValidity, error)
	ApprovalStatus(ctx context.Context, caller Caller) (*ApprovalStatus, error)

	List(ctx context.Context, filters MembershipListFilters) ([]models.Membership, error)
	Get(ctx context.Context, id string) (*models.Membership, error)
	Update(ctx context.Context, id string, admin Caller, req UpdateMembershipRequest) (*models.Membership, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.MembershipStats, error)
	ExpireMemberships(ctx context.Context) (int64, error)

	Fees() FeeSchedule
	Types() MembershipTypes
	FeeFor(membershipType string) (*TierFee, error)
}

type membershipService struct {
	membershipRepo repositories.MembershipRepository
	fees           *FeeTable
	ids            *MembershipIDGenerator
	storage        ObjectStorage
	bank           BankDetails
	metrics        *metrics.Registry
	now            func() time.Time
}

// NewMembershipService creates a new instance of MembershipService.
func NewMembershipService(
	mr repositories.MembershipRepository,
	fees *FeeTable,
	ids *MembershipIDGenerator,
	storage ObjectStorage,
	bank BankDetails,
	m *metrics.Registry,
) MembershipService {
	return &membershipService{
		membershipRepo: mr,
		fees:           fees,
		ids:            ids,
		storage:        storage,
		bank:           bank,
		metrics:        m,
		now:            time.Now,
	}
}

// findMembership resolves a record id or a SOCCOS identifier.
func findMembership(ctx context.Context, repo repositories.MembershipRepository, ref string) (*models.Membership, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrMembershipNotFound
	}
	var (
		m   *models.Membership
		err error
	)
	if isUUID(ref) {
		m, err = repo.GetMembershipByID(ctx, ref)
	} else {
		m, err = repo.GetMembershipByMembershipID(ctx, strings.ToUpper(ref))
	}
	if err != nil {
		return nil, lookupError(err, ErrMembershipNotFound, "getting membership")
	}
	return m, nil
}

func (s *membershipService) Register(ctx context.Context, caller Caller, req RegisterMembershipRequest) (*models.Membership, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	membershipType, ok := s.fees.Normalize(req.MembershipType)
	if !ok {
		return nil, newValidationError("membershipType", "must be one of: "+strings.Join(s.fees.Types(), ", "))
	}
	applicant := req.ApplicantInput.toModel()

	active, err := s.membershipRepo.HasActiveMembership(ctx, applicant.Email)
	if err != nil {
		return nil, internalError("checking active membership", err)
	}
	if active {
		return nil, ErrActiveMembershipExists
	}

	screenshot, err := resolveImage(ctx, s.storage, s.metrics, req.PaymentScreenshot, FolderPaymentScreenshots)
	if err != nil {
		utils.LogWarn("MembershipService: payment screenshot upload failed, saving without it", map[string]interface{}{
			"email": applicant.Email, "error": err.Error(),
		})
		screenshot = ""
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.PaymentMethodBankTransfer
	}
	fee, _ := s.fees.Fee(membershipType)
	membership := &models.Membership{
		ID:                newID(),
		Applicant:         applicant,
		MembershipType:    membershipType,
		MembershipFee:     fee,
		PaymentMethod:     method,
		PaymentStatus:     models.PaymentStatusPending,
		TransactionID:     strings.TrimSpace(req.TransactionID),
		PaymentScreenshot: screenshot,
		UserID:            caller.userRef(),
		CreatedAt:         s.now().UTC(),
	}

	for attempt := 1; ; attempt++ {
		membership.MembershipID, err = s.ids.Unique(ctx, s.membershipRepo.MembershipIDExists)
		if err != nil {
			return nil, err
		}
		err = s.membershipRepo.CreateMembership(ctx, nil, membership)
		if errors.Is(err, repositories.ErrDuplicateKey) && attempt < membershipIDAttempts {
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrMembershipIDExhausted
		}
		return nil, internalError("creating membership", err)
	}
	utils.LogInfo("Membership registered", map[string]interface{}{
		"membership_id": membership.MembershipID, "membership_type": membership.MembershipType,
	})
	return membership, nil
}

// Current returns the caller's newest membership by account, else by email.
func (s *membershipService) Current(ctx context.Context, caller Caller) (*models.Membership, error) {
	if caller.UserID != "" {
		m, err := s.membershipRepo.GetLatestMembershipForUser(ctx, caller.UserID)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, internalError("getting membership for user", err)
		}
	}
	if caller.Email == "" {
		return nil, ErrMembershipNotFound
	}
	return s.ByEmail(ctx, caller.Email)
}

func (s *membershipService) ByEmail(ctx context.Context, email string) (*models.Membership, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, newValidationError("email", "is required")
	}
	m, err := s.membershipRepo.GetLatestMembershipByEmail(ctx, email)
	if err != nil {
		return nil, lookupError(err, ErrMembershipNotFound, "getting membership by email")
	}
	return m, nil
}

// Lookup is the public membership card lookup. Records that are not yet
// approved or no longer active read as missing.
func (s *membershipService) Lookup(ctx context.Context, ref string) (*models.Membership, error) {
	m, err := findMembership(ctx, s.membershipRepo, ref)
	if err != nil {
		return nil, err
	}
	if !m.Viewable() {
		return nil, ErrMembershipNotFound
	}
	return m, nil
}

func (s *membershipService) Validate(ctx context.Context, ref string) (*MembershipValidity, error) {
	m, err := findMembership(ctx, s.membershipRepo, ref)
	if errors.Is(err, ErrNotFound) {
		return &MembershipValidity{}, nil
	}
	if err != nil {
		return nil, err
	}
	active := m.Viewable()
	if active && m.ExpiryDate != nil && m.ExpiryDate.Before(s.now()) {
		active = false
	}
	return &MembershipValidity{
		Valid:        m.IsAdminApproved,
		Active:       active,
		MembershipID: m.MembershipID,
		ExpiryDate:   m.ExpiryDate,
	}, nil
}

func (s *membershipService) ApprovalStatus(ctx context.Context, caller Caller) (*ApprovalStatus, error) {
	m, err := s.Current(ctx, caller)
	if errors.Is(err, ErrNotFound) {
		return &ApprovalStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ApprovalStatus{
		HasMembership:   true,
		IsAdminApproved: m.IsAdminApproved,
		Active:          m.Active,
		PaymentStatus:   m.PaymentStatus,
		MembershipID:    m.MembershipID,
	}, nil
}

func (s *membershipService) List(ctx context.Context, filters MembershipListFilters) ([]models.Membership, error) {
	query := models.MembershipFilters{Active: filters.Active, Approved: filters.Approved}
	if raw := strings.TrimSpace(filters.MembershipType); raw != "" {
		t, ok := s.fees.Normalize(raw)
		if !ok {
			return nil, newValidationError("membershipType", "must be one of: "+strings.Join(s.fees.Types(), ", "))
		}
		query.MembershipType = &t
	}
	list, err := s.membershipRepo.GetMemberships(ctx, query)
	if err != nil {
		return nil, internalError("listing memberships", err)
	}
	return list, nil
}

func (s *membershipService) Get(ctx context.Context, id string) (*models.Membership, error) {
	if !isUUID(id) {
		return nil, ErrMembershipNotFound
	}
	m, err := s.membershipRepo.GetMembershipByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, ErrMembershipNotFound, "getting membership")
	}
	return m, nil
}

func (s *membershipService) Update(ctx context.Context, id string, admin Caller, req UpdateMembershipRequest) (*models.Membership, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.MembershipType != nil {
		t, ok := s.fees.Normalize(*req.MembershipType)
		if !ok {
			return nil, newValidationError("membershipType", "must be one of: "+strings.Join(s.fees.Types(), ", "))
		}
		m.MembershipType = t
		m.MembershipFee, _ = s.fees.Fee(t)
	}
	if req.PaymentStatus != nil {
		m.PaymentStatus = *req.PaymentStatus
	}
	if req.AdminRemarks != nil {
		m.AdminRemarks = strings.TrimSpace(*req.AdminRemarks)
	}
	if req.IssueDate != nil {
		issue := req.IssueDate.UTC()
		m.IssueDate = &issue
	}
	if req.ExpiryDate != nil {
		expiry := req.ExpiryDate.UTC()
		m.ExpiryDate = &expiry
	}
	if m.IssueDate != nil && m.ExpiryDate != nil && !m.ExpiryDate.After(*m.IssueDate) {
		return nil, newValidationError("expiryDate", "must be after issueDate")
	}
	if req.IsAdminApproved != nil {
		m.IsAdminApproved = *req.IsAdminApproved
		if m.IsAdminApproved {
			now := s.now().UTC()
			m.ApprovedBy = admin.actor()
			m.ApprovedAt = &now
		}
	}
	if req.Active != nil {
		m.Active = *req.Active
		if m.Active && m.IssueDate == nil {
			now := s.now().UTC()
			expiry := now.Add(membershipValidity)
			m.IssueDate, m.ExpiryDate = &now, &expiry
		}
	}

	if err := s.membershipRepo.UpdateMembership(ctx, nil, m); err != nil {
		return nil, lookupError(err, ErrMembershipNotFound, "updating membership")
	}
	return m, nil
}

// Delete removes the membership record only. The owning account is kept.
func (s *membershipService) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrMembershipNotFound
	}
	if err := s.membershipRepo.DeleteMembership(ctx, nil, id); err != nil {
		return lookupError(err, ErrMembershipNotFound, "deleting membership")
	}
	utils.LogInfo("Membership deleted", map[string]interface{}{"id": id})
	return nil
}

func (s *membershipService) Stats(ctx context.Context) (*models.MembershipStats, error) {
	stats, err := s.membershipRepo.MembershipStats(ctx)
	if err != nil {
		return nil, internalError("membership stats", err)
	}
	return stats, nil
}

// ExpireMemberships deactivates every membership past its expiry date.
func (s *membershipService) ExpireMemberships(ctx context.Context) (int64, error) {
	n, err := s.membershipRepo.ExpireMemberships(ctx, nil, s.now().UTC())
	if err != nil {
		return 0, internalError("expiring memberships", err)
	}
	if s.metrics != nil {
		s.metrics.MembershipsExpired.Add(float64(n))
	}
	if n > 0 {
		utils.LogInfo("Expired memberships deactivated", map[string]interface{}{"count": n})
	}
	return n, nil
}

func (s *membershipService) Fees() FeeSchedule {
	return FeeSchedule{Currency: s.fees.Currency(), Fees: s.fees.All(), Bank: s.bank}
}

func (s *membershipService) Types() MembershipTypes {
	aliases := make(map[string]string, len(membershipAliases))
	for k, v := range membershipAliases {
		if _, ok := s.fees.Fee(v); ok {
			aliases[k] = v
		}
	}
	return MembershipTypes{MembershipTypes: s.fees.Tiers(), Aliases: aliases, Currency: s.fees.Currency()}
}

func (s *membershipService) FeeFor(membershipType string) (*TierFee, error) {
	t, ok := s.fees.Normalize(membershipType)
	if !ok {
		return nil, newValidationError("membershipType", "must be one of: "+strings.Join(s.fees.Types(), ", "))
	}
	fee, _ := s.fees.Fee(t)
	return &TierFee{MembershipType: t, Fee: fee, Currency: s.fees.Currency()}, nil
}
