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

// --- Booking DTOs ---

// ApplicantInput is the personal and professional data collected by every application form.
type ApplicantInput struct {
	Title           string   `json:"title" validate:"max=20"`
	FirstName       string   `json:"firstName" validate:"required,max=100"`
	LastName        string   `json:"lastName" validate:"required,max=100"`
	Email           string   `json:"email" validate:"required,email"`
	Mobile          string   `json:"mobile" validate:"max=30"`
	CurrentPosition string   `json:"currentPosition"`
	Institute       string   `json:"institute"`
	Department      string   `json:"department"`
	Organisation    string   `json:"organisation" validate:"required"`
	Address         string   `json:"address"`
	Town            string   `json:"town" validate:"required"`
	Postcode        string   `json:"postcode"`
	State           string   `json:"state"`
	Country         string   `json:"country" validate:"required"`
	Status          string   `json:"status" validate:"required"`
	LinkedIn        string   `json:"linkedin"`
	Orcid           string   `json:"orcid"`
	ResearchGate    string   `json:"researchGate"`
	Interests       []string `json:"interests"`
	Experience      string   `json:"experience"`
	ProfilePhoto    string   `json:"profilePhoto"`
}

func (in ApplicantInput) toModel() models.Applicant {
	interests := make([]string, 0, len(in.Interests))
	for _, i := range in.Interests {
		if t := strings.TrimSpace(i); t != "" {
			interests = append(interests, t)
		}
	}
	return models.Applicant{
		Title:           strings.TrimSpace(in.Title),
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Email:           utils.NormalizeEmail(in.Email),
		Mobile:          strings.TrimSpace(in.Mobile),
		CurrentPosition: strings.TrimSpace(in.CurrentPosition),
		Institute:       strings.TrimSpace(in.Institute),
		Department:      strings.TrimSpace(in.Department),
		Organisation:    strings.TrimSpace(in.Organisation),
		Address:         strings.TrimSpace(in.Address),
		Town:            strings.TrimSpace(in.Town),
		Postcode:        strings.TrimSpace(in.Postcode),
		State:           strings.TrimSpace(in.State),
		Country:         strings.TrimSpace(in.Country),
		Status:          strings.TrimSpace(in.Status),
		LinkedIn:        strings.TrimSpace(in.LinkedIn),
		Orcid:           strings.TrimSpace(in.Orcid),
		ResearchGate:    strings.TrimSpace(in.ResearchGate),
		Interests:       interests,
		Experience:      strings.TrimSpace(in.Experience),
		ProfilePhoto:    strings.TrimSpace(in.ProfilePhoto),
	}
}

// SubmitBookingRequest is a membership application.
type SubmitBookingRequest struct {
	ApplicantInput
	MembershipType    string   `json:"membershipType" validate:"required"`
	MembershipFee     FeeInput `json:"membershipFee"`
	PaymentMethod     string   `json:"paymentMethod" validate:"required,oneof=qr-code bank-transfer"`
	PaymentStatus     string   `json:"paymentStatus" validate:"required,oneof=pending paid"`
	TransactionID     string   `json:"transactionId" validate:"max=100"`
	PaymentScreenshot string   `json:"paymentScreenshot"`
}

// DecisionRequest carries an admin's decision note. A rejection needs a reason.
// remarks and reason are accepted as short forms of adminRemarks and
// rejectedReason.
type DecisionRequest struct {
	AdminRemarks   string `json:"adminRemarks"`
	RejectedReason string `json:"rejectedReason"`
	Remarks        string `json:"remarks"`
	Reason         string `json:"reason"`
}

// Note is the admin's remark.
func (r DecisionRequest) Note() string {
	return firstNonBlank(r.AdminRemarks, r.Remarks)
}

// RejectionReason falls back to the remark when no reason was given.
func (r DecisionRequest) RejectionReason() string {
	return firstNonBlank(r.RejectedReason, r.Reason, r.AdminRemarks, r.Remarks)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// --- BookingService Interface ---
type BookingService interface {
	SubmitBooking(ctx context.Context, caller Caller, req SubmitBookingRequest) (*models.Booking, error)
	GetBookings(ctx context.Context, status string) ([]models.Booking, error)
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	GetStatusForCaller(ctx context.Context, caller Caller, email string) (*models.Booking, error)
	ApproveBooking(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.Membership, error)
	RejectBooking(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.Booking, error)
	GetBookingStats(ctx context.Context) (*models.BookingStats, error)
}

// --- bookingService Implementation ---
type bookingService struct {
	bookingRepo    repositories.BookingRepository
	membershipRepo repositories.MembershipRepository
	txManager      repositories.TxManager
	fees           *FeeTable
	ids            *MembershipIDGenerator
	storage        ObjectStorage
	mail           *MailService
	dispatcher     *Dispatcher
	metrics        *metrics.Registry
	now            func() time.Time
}

// NewBookingService creates a new instance of BookingService.
func NewBookingService(
	br repositories.BookingRepository,
	mr repositories.MembershipRepository,
	tx repositories.TxManager,
	fees *FeeTable,
	ids *MembershipIDGenerator,
	storage ObjectStorage,
	mail *MailService,
	dispatcher *Dispatcher,
	m *metrics.Registry,
) BookingService {
	return &bookingService{
		bookingRepo:    br,
		membershipRepo: mr,
		txManager:      tx,
		fees:           fees,
		ids:            ids,
		storage:        storage,
		mail:           mail,
		dispatcher:     dispatcher,
		metrics:        m,
		now:            time.Now,
	}
}

func (s *bookingService) SubmitBooking(ctx context.Context, caller Caller, req SubmitBookingRequest) (*models.Booking, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	membershipType, ok := s.fees.Normalize(req.MembershipType)
	if !ok {
		return nil, newValidationError("membershipType", "must be one of: "+strings.Join(s.fees.Types(), ", "))
	}

	applicant := req.ApplicantInput.toModel()

	pending, err := s.bookingRepo.HasPendingBooking(ctx, applicant.Email)
	if err != nil {
		return nil, internalError("checking pending booking", err)
	}
	if pending {
		return nil, ErrPendingBookingExists
	}
	active, err := s.membershipRepo.HasActiveMembership(ctx, applicant.Email)
	if err != nil {
		return nil, internalError("checking active membership", err)
	}
	if active {
		return nil, ErrActiveMembershipExists
	}

	// A failed screenshot upload does not block the application.
	screenshot, err := resolveImage(ctx, s.storage, s.metrics, req.PaymentScreenshot, FolderPaymentScreenshots)
	if err != nil {
		utils.LogWarn("BookingService: payment screenshot upload failed, saving without it", map[string]interface{}{
			"email": applicant.Email, "error": err.Error(),
		})
		screenshot = ""
	}

	now := s.now().UTC()
	booking := &models.Booking{
		ID:                newID(),
		Applicant:         applicant,
		MembershipType:    membershipType,
		MembershipFee:     s.fees.ResolveFee(req.MembershipFee, membershipType),
		PaymentMethod:     req.PaymentMethod,
		PaymentStatus:     req.PaymentStatus,
		TransactionID:     strings.TrimSpace(req.TransactionID),
		PaymentScreenshot: screenshot,
		BookingStatus:     models.BookingStatusPending,
		UserID:            caller.userRef(),
		CreatedAt:         now,
	}
	if booking.PaymentStatus == models.PaymentStatusPaid {
		booking.PaymentDate = &now
	}

	if err := s.bookingRepo.CreateBooking(ctx, nil, booking); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrPendingBookingExists
		}
		return nil, internalError("creating booking", err)
	}
	if s.metrics != nil {
		s.metrics.BookingsSubmittedTotal.Inc()
	}
	utils.LogInfo("Membership application submitted", map[string]interface{}{
		"booking_id": booking.ID, "membership_type": booking.MembershipType,
	})
	return booking, nil
}

func (s *bookingService) GetBookings(ctx context.Context, status string) ([]models.Booking, error) {
	var filters models.BookingFilters
	if status = strings.TrimSpace(status); status != "" {
		if !models.IsValidBookingStatus(status) {
			return nil, newValidationError("status", "must be one of: pending approved rejected")
		}
		st := models.BookingStatus(status)
		filters.Status = &st
	}
	bookings, err := s.bookingRepo.GetBookings(ctx, filters)
	if err != nil {
		return nil, internalError("listing bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	if !isUUID(id) {
		return nil, ErrBookingNotFound
	}
	booking, err := s.bookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, ErrBookingNotFound, "getting booking")
	}
	return booking, nil
}

// GetStatusForCaller resolves the newest booking by explicit email, then by
// account reference, then by the caller's token email.
func (s *bookingService) GetStatusForCaller(ctx context.Context, caller Caller, email string) (*models.Booking, error) {
	if email = utils.NormalizeEmail(email); email != "" {
		booking, err := s.bookingRepo.GetLatestBookingByEmail(ctx, email)
		if err != nil {
			return nil, lookupError(err, ErrBookingNotFound, "getting booking by email")
		}
		return booking, nil
	}
	if !caller.Authenticated() {
		return nil, newValidationError("email", "is required")
	}
	if caller.UserID != "" {
		booking, err := s.bookingRepo.GetLatestBookingForUser(ctx, caller.UserID)
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, internalError("getting booking for user", err)
		}
	}
	if caller.Email == "" {
		return nil, ErrBookingNotFound
	}
	booking, err := s.bookingRepo.GetLatestBookingByEmail(ctx, caller.Email)
	if err != nil {
		return nil, lookupError(err, ErrBookingNotFound, "getting booking by email")
	}
	return booking, nil
}

// ApproveBooking issues a membership from a pending booking. The booking is
// claimed and the membership inserted in one transaction.
func (s *bookingService) ApproveBooking(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.Membership, error) {
	ctx, span := tracer.Start(ctx, "BookingService.ApproveBooking", trace.WithAttributes(attribute.String("booking.id", id)))
	defer span.End()

	membership, err := s.approve(ctx, id, admin, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("membership.id", membership.MembershipID))

	if s.metrics != nil {
		s.metrics.BookingDecisionsTotal.WithLabelValues(string(models.BookingStatusApproved)).Inc()
	}
	utils.LogInfo("Booking approved", map[string]interface{}{
		"booking_id": id, "membership_id": membership.MembershipID,
	})

	if s.mail != nil && s.dispatcher != nil {
		issued := *membership
		s.dispatcher.Go("membership-approved-email", func(ctx context.Context) error {
			return s.mail.SendMembershipApproved(ctx, &issued)
		})
	}
	return membership, nil
}

func (s *bookingService) approve(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.Membership, error) {
	booking, err := s.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := decidedBookingError(booking.BookingStatus); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiry := now.Add(membershipValidity)
	remarks := req.Note()

	decided := *booking
	decided.BookingStatus = models.BookingStatusApproved
	decided.AdminRemarks = remarks
	decided.ApprovedBy = admin.actor()
	decided.ApprovedAt = &now

	membership := &models.Membership{
		ID:                newID(),
		Applicant:         booking.Applicant,
		MembershipType:    booking.MembershipType,
		MembershipFee:     booking.MembershipFee,
		PaymentMethod:     booking.PaymentMethod,
		PaymentStatus:     models.PaymentStatusCompleted,
		TransactionID:     booking.TransactionID,
		PaymentScreenshot: booking.PaymentScreenshot,
		IssueDate:         &now,
		ExpiryDate:        &expiry,
		Active:            true,
		IsAdminApproved:   true,
		ApprovedBy:        admin.actor(),
		ApprovedAt:        &now,
		AdminRemarks:      remarks,
		BookingID:         &booking.ID,
		UserID:            booking.UserID,
		CreatedAt:         now,
	}

	for attempt := 1; ; attempt++ {
		membership.MembershipID, err = s.ids.Unique(ctx, s.membershipRepo.MembershipIDExists)
		if err != nil {
			return nil, err
		}
		err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			if err := s.bookingRepo.UpdateBookingDecision(ctx, exec, &decided, models.BookingStatusPending); err != nil {
				return err
			}
			return s.membershipRepo.CreateMembership(ctx, exec, membership)
		})
		if errors.Is(err, repositories.ErrDuplicateKey) && attempt < membershipIDAttempts {
			continue
		}
		break
	}

	switch {
	case err == nil:
		return membership, nil
	case errors.Is(err, repositories.ErrStaleState):
		return nil, s.staleBookingError(ctx, id)
	case errors.Is(err, repositories.ErrDuplicateKey):
		return nil, ErrMembershipIDExhausted
	default:
		return nil, internalError("approving booking", err)
	}
}

func (s *bookingService) RejectBooking(ctx context.Context, id string, admin Caller, req DecisionRequest) (*models.Booking, error) {
	reason := req.RejectionReason()
	if reason == "" {
		return nil, newValidationError("rejectedReason", "is required")
	}

	booking, err := s.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := decidedBookingError(booking.BookingStatus); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	decided := *booking
	decided.BookingStatus = models.BookingStatusRejected
	decided.RejectedReason = reason
	decided.AdminRemarks = req.Note()
	decided.ApprovedBy = admin.actor()
	decided.ApprovedAt = &now

	if err := s.bookingRepo.UpdateBookingDecision(ctx, nil, &decided, models.BookingStatusPending); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, s.staleBookingError(ctx, id)
		}
		return nil, internalError("rejecting booking", err)
	}
	if s.metrics != nil {
		s.metrics.BookingDecisionsTotal.WithLabelValues(string(models.BookingStatusRejected)).Inc()
	}
	utils.LogInfo("Booking rejected", map[string]interface{}{"booking_id": id})
	return &decided, nil
}

func (s *bookingService) GetBookingStats(ctx context.Context) (*models.BookingStats, error) {
	stats, err := s.bookingRepo.BookingStats(ctx)
	if err != nil {
		return nil, internalError("booking stats", err)
	}
	return stats, nil
}

// staleBookingError explains why a conditional decision update matched nothing.
func (s *bookingService) staleBookingError(ctx context.Context, id string) error {
	current, err := s.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	if err := decidedBookingError(current.BookingStatus); err != nil {
		return err
	}
	return internalError("deciding booking", repositories.ErrStaleState)
}

func decidedBookingError(status models.BookingStatus) error {
	switch status {
	case models.BookingStatusApproved:
		return ErrBookingAlreadyApproved
	case models.BookingStatusRejected:
		return ErrBookingAlreadyRejected
	}
	return nil
}
