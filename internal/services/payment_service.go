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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// --- Payment DTOs ---

// SubmitVerificationRequest is a payment proof for an existing membership.
// MembershipID accepts either the record id or the SOCCOS identifier.
type SubmitVerificationRequest struct {
	MembershipID      string `json:"membershipId" validate:"required"`
	PaymentMethod     string `json:"paymentMethod" validate:"omitempty,oneof=qr-code bank-transfer upi"`
	TransactionID     string `json:"transactionId" validate:"max=100"`
	Remarks           string `json:"remarks" validate:"max=1000"`
	PaymentScreenshot string `json:"paymentScreenshot"`
}

// SubmitUpgradeRequest is a payment proof for moving a membership to another tier.
type SubmitUpgradeRequest struct {
	SubmitVerificationRequest
	NewMembershipType string `json:"newMembershipType" validate:"required"`
}

// VerificationListFilters are the raw admin list query parameters.
type VerificationListFilters struct {
	Status    string
	IsUpgrade *bool
}

// --- PaymentService Interface ---
type PaymentService interface {
	SubmitVerification(ctx context.Context, caller Caller, req SubmitVerificationRequest) (*models.PaymentVerification, error)
	SubmitUpgradeVerification(ctx context.Context, caller Caller, req SubmitUpgradeRequest) (*models.PaymentVerification, error)
	GetVerifications(ctx context.Context, filters VerificationListFilters) ([]models.PaymentVerification, error)
	GetVerificationByID(ctx context.Context, id string) (*models.PaymentVerification, error)
	ApproveVerification(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.PaymentVerification, error)
	RejectVerification(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.PaymentVerification, error)
	StatusByMembership(ctx context.Context, membershipRef string) (*models.VerificationSummary, error)
}

type paymentService struct {
	verificationRepo repositories.PaymentVerificationRepository
	membershipRepo   repositories.MembershipRepository
	txManager        repositories.TxManager
	fees             *FeeTable
	storage          ObjectStorage
	mail             *MailService
	dispatcher       *Dispatcher
	metrics          *metrics.Registry
	now              func() time.Time
}

// NewPaymentService creates a new instance of PaymentService.
func NewPaymentService(
	vr repositories.PaymentVerificationRepository,
	mr repositories.MembershipRepository,
	tx repositories.TxManager,
	fees *FeeTable,
	storage ObjectStorage,
	mail *MailService,
	dispatcher *Dispatcher,
	m *metrics.Registry,
) PaymentService {
	return &paymentService{
		verificationRepo: vr,
		membershipRepo:   mr,
		txManager:        tx,
		fees:             fees,
		storage:          storage,
		mail:             mail,
		dispatcher:       dispatcher,
		metrics:          m,
		now:              time.Now,
	}
}

func (s *paymentService) SubmitVerification(ctx context.Context, caller Caller, req SubmitVerificationRequest) (*models.PaymentVerification, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	membership, err := s.ownedMembership(ctx, caller, req.MembershipID)
	if err != nil {
		return nil, err
	}
	v := newVerification(membership, caller, req)
	v.Amount = membership.MembershipFee
	return s.submit(ctx, membership, v, req.PaymentScreenshot)
}

func (s *paymentService) SubmitUpgradeVerification(ctx context.Context, caller Caller, req SubmitUpgradeRequest) (*models.PaymentVerification, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	newType, ok := s.fees.Normalize(req.NewMembershipType)
	if !ok {
		return nil, newValidationError("newMembershipType", "must be one of: "+strings.Join(s.fees.Types(), ", "))
	}
	membership, err := s.ownedMembership(ctx, caller, req.MembershipID)
	if err != nil {
		return nil, err
	}
	if membership.MembershipType == newType {
		return nil, ErrSameMembershipType
	}

	v := newVerification(membership, caller, req.SubmitVerificationRequest)
	v.MembershipType = newType
	v.Amount, _ = s.fees.Fee(newType)
	v.IsUpgrade = true
	v.PreviousMembershipType = membership.MembershipType
	return s.submit(ctx, membership, v, req.PaymentScreenshot)
}

func newVerification(m *models.Membership, caller Caller, req SubmitVerificationRequest) *models.PaymentVerification {
	method := req.PaymentMethod
	if method == "" {
		method = models.PaymentMethodBankTransfer
	}
	userID := m.UserID
	if userID == nil {
		userID = caller.userRef()
	}
	return &models.PaymentVerification{
		ID:                 newID(),
		MembershipRef:      m.ID,
		UserID:             userID,
		Email:              m.Email,
		FirstName:          m.FirstName,
		LastName:           m.LastName,
		MembershipType:     m.MembershipType,
		PaymentMethod:      method,
		TransactionID:      strings.TrimSpace(req.TransactionID),
		Remarks:            strings.TrimSpace(req.Remarks),
		VerificationStatus: models.VerificationPending,
	}
}

// ownedMembership loads the membership and checks the caller may act on it.
func (s *paymentService) ownedMembership(ctx context.Context, caller Caller, ref string) (*models.Membership, error) {
	membership, err := findMembership(ctx, s.membershipRepo, ref)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin {
		return membership, nil
	}
	if caller.UserID != "" && membership.UserID != nil && *membership.UserID == caller.UserID {
		return membership, nil
	}
	if caller.Email != "" && strings.EqualFold(caller.Email, membership.Email) {
		return membership, nil
	}
	return nil, ErrNotMembershipOwner
}

func (s *paymentService) submit(ctx context.Context, membership *models.Membership, v *models.PaymentVerification, screenshot string) (*models.PaymentVerification, error) {
	open, err := s.verificationRepo.HasOpenVerification(ctx, membership.ID)
	if err != nil {
		return nil, internalError("checking open verification", err)
	}
	if open {
		return nil, ErrVerificationExists
	}

	v.PaymentScreenshot, err = resolveImage(ctx, s.storage, s.metrics, screenshot, FolderPaymentVerifications)
	if err != nil {
		return nil, err
	}
	v.SubmittedAt = s.now().UTC()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.verificationRepo.CreateVerification(ctx, exec, v); err != nil {
			return err
		}
		locked, err := s.membershipRepo.GetMembershipForUpdate(ctx, exec, membership.ID)
		if err != nil {
			return err
		}
		locked.PaymentStatus = models.PaymentStatusVerified
		locked.PaymentVerificationID = &v.ID
		return s.membershipRepo.UpdateMembership(ctx, exec, locked)
	})
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrDuplicateKey):
		return nil, ErrVerificationExists
	case errors.Is(err, repositories.ErrNotFound):
		return nil, ErrMembershipNotFound
	default:
		return nil, internalError("submitting payment verification", err)
	}

	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues("submitted").Inc()
	}
	utils.LogInfo("Payment verification submitted", map[string]interface{}{
		"verification_id": v.ID, "membership_ref": v.MembershipRef, "is_upgrade": v.IsUpgrade,
	})
	return v, nil
}

func (s *paymentService) GetVerifications(ctx context.Context, filters VerificationListFilters) ([]models.PaymentVerification, error) {
	query := models.VerificationFilters{IsUpgrade: filters.IsUpgrade}
	if status := strings.TrimSpace(filters.Status); status != "" {
		if !models.IsValidVerificationStatus(status) {
			return nil, newValidationError("status", "must be one of: pending approved rejected")
		}
		st := models.VerificationStatus(status)
		query.Status = &st
	}
	list, err := s.verificationRepo.GetVerifications(ctx, query)
	if err != nil {
		return nil, internalError("listing payment verifications", err)
	}
	return list, nil
}

func (s *paymentService) GetVerificationByID(ctx context.Context, id string) (*models.PaymentVerification, error) {
	if !isUUID(id) {
		return nil, ErrVerificationNotFound
	}
	v, err := s.verificationRepo.GetVerificationByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, ErrVerificationNotFound, "getting payment verification")
	}
	return v, nil
}

// ApproveVerification accepts the proof and activates the linked membership,
// applying the new tier for upgrades.
func (s *paymentService) ApproveVerification(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.PaymentVerification, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.ApproveVerification", trace.WithAttributes(attribute.String("verification.id", id)))
	defer span.End()

	v, err := s.GetVerificationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.VerificationStatus != models.VerificationPending {
		return nil, ErrVerificationDecided
	}

	now := s.now().UTC()
	v.VerificationStatus = models.VerificationApproved
	v.VerifiedBy = admin.actor()
	v.VerifiedAt = &now
	v.AdminRemarks = req.Note()

	var membership *models.Membership
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.verificationRepo.UpdateVerificationDecision(ctx, exec, v); err != nil {
			return err
		}
		m, err := s.membershipRepo.GetMembershipForUpdate(ctx, exec, v.MembershipRef)
		if err != nil {
			return err
		}
		applyPaymentApproval(m, v, admin, now)
		if err := s.membershipRepo.UpdateMembership(ctx, exec, m); err != nil {
			return err
		}
		membership = m
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, decisionError(err, "approving payment verification")
	}

	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues("approved").Inc()
	}
	utils.LogInfo("Payment verification approved", map[string]interface{}{
		"verification_id": v.ID, "membership_id": membership.MembershipID,
	})
	if s.mail != nil && s.dispatcher != nil {
		m, approved := *membership, *v
		s.dispatcher.Go("payment-approved-email", func(ctx context.Context) error {
			return s.mail.SendPaymentApproved(ctx, &m, &approved)
		})
	}
	return v, nil
}

func applyPaymentApproval(m *models.Membership, v *models.PaymentVerification, admin Caller, now time.Time) {
	if v.IsUpgrade {
		m.MembershipType = v.MembershipType
		m.MembershipFee = v.Amount
	}
	m.PaymentStatus = models.PaymentStatusCompleted
	if m.IssueDate == nil {
		expiry := now.Add(membershipValidity)
		m.IssueDate = &now
		m.ExpiryDate = &expiry
	}
	m.Active = true
	m.IsAdminApproved = true
	m.ApprovedBy = admin.actor()
	m.ApprovedAt = &now
	m.PaymentVerificationID = &v.ID
	if v.AdminRemarks != "" {
		m.AdminRemarks = v.AdminRemarks
	}
}

// RejectVerification refuses the proof. The membership keeps its other state
// but loses the verification link.
func (s *paymentService) RejectVerification(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.PaymentVerification, error) {
	remarks := req.RejectionReason()
	if remarks == "" {
		return nil, newValidationError("adminRemarks", "is required")
	}

	v, err := s.GetVerificationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.VerificationStatus != models.VerificationPending {
		return nil, ErrVerificationDecided
	}

	now := s.now().UTC()
	v.VerificationStatus = models.VerificationRejected
	v.VerifiedBy = admin.actor()
	v.VerifiedAt = &now
	v.AdminRemarks = remarks

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.verificationRepo.UpdateVerificationDecision(ctx, exec, v); err != nil {
			return err
		}
		m, err := s.membershipRepo.GetMembershipForUpdate(ctx, exec, v.MembershipRef)
		if err != nil {
			return err
		}
		m.PaymentStatus = models.PaymentStatusRejected
		m.PaymentVerificationID = nil
		return s.membershipRepo.UpdateMembership(ctx, exec, m)
	})
	if err != nil {
		return nil, decisionError(err, "rejecting payment verification")
	}

	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues("rejected").Inc()
	}
	utils.LogInfo("Payment verification rejected", map[string]interface{}{"verification_id": v.ID})
	return v, nil
}

// StatusByMembership summarises the newest proof. A missing membership reads
// the same as one without proofs.
func (s *paymentService) StatusByMembership(ctx context.Context, membershipRef string) (*models.VerificationSummary, error) {
	ref := strings.TrimSpace(membershipRef)
	if !isUUID(ref) {
		m, err := s.membershipRepo.GetMembershipByMembershipID(ctx, ref)
		if errors.Is(err, repositories.ErrNotFound) {
			return &models.VerificationSummary{}, nil
		}
		if err != nil {
			return nil, internalError("resolving membership", err)
		}
		ref = m.ID
	}

	v, err := s.verificationRepo.GetLatestVerificationForMembership(ctx, ref)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.VerificationSummary{}, nil
	}
	if err != nil {
		return nil, internalError("getting verification status", err)
	}
	submitted := v.SubmittedAt
	return &models.VerificationSummary{
		HasVerification: true,
		ID:              v.ID,
		Status:          v.VerificationStatus,
		Amount:          v.Amount,
		PaymentMethod:   v.PaymentMethod,
		SubmittedAt:     &submitted,
		VerifiedAt:      v.VerifiedAt,
		AdminRemarks:    v.AdminRemarks,
		IsUpgrade:       v.IsUpgrade,
	}, nil
}

func decisionError(err error, action string) error {
	switch {
	case errors.Is(err, repositories.ErrStaleState):
		return ErrVerificationDecided
	case errors.Is(err, repositories.ErrNotFound):
		return ErrMembershipNotFound
	default:
		return internalError(action, err)
	}
}
