package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string             `json:"code"`
		Message string             `json:"message"`
		Details string             `json:"details"`
		Fields  []utils.FieldError `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// as attaches a caller the way the auth middleware would.
func as(caller services.Caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller.UserID != "" {
			c.Set(middleware.ContextUserID, caller.UserID)
		}
		if caller.Email != "" {
			c.Set(middleware.ContextEmail, caller.Email)
		}
		c.Set(middleware.ContextIsAdmin, caller.IsAdmin)
		c.Next()
	}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", &services.ValidationError{Fields: []services.FieldError{{Field: "email", Message: "is required"}, {Field: "town", Message: "is required"}}},
			http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed: email, town"},
		{"not verified", services.ErrAccountNotVerified, http.StatusForbidden, utils.ErrCodeVerifyOTP, ""},
		{"not found", services.ErrBookingNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Booking not found"},
		{"conflict", services.ErrPendingBookingExists, http.StatusConflict, utils.ErrCodeConflict,
			"A pending membership application already exists for this email"},
		{"unauthorized", services.ErrInvalidCredentials, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid email or password"},
		{"forbidden", services.ErrPrimaryAdminProtected, http.StatusForbidden, utils.ErrCodeForbidden, ""},
		{"upload", fmt.Errorf("%w: cdn offline", services.ErrUpload), http.StatusBadGateway, utils.ErrCodeUploadFailed, "Failed to upload image"},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, utils.ErrCodeInternalServerError, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { respondError(c, tc.err, "test") })

			w := do(r, http.MethodGet, "/", "")
			assert.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, env.Message)
			}
			if tc.status >= 500 {
				assert.Empty(t, env.Error.Details, "internal detail must not leak")
			}
		})
	}
}

func TestRespondErrorFields(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		respondError(c, &services.ValidationError{Fields: []services.FieldError{{Field: "membershipType", Message: "unknown"}}}, "test")
	})

	env := decode(t, do(r, http.MethodGet, "/", ""))
	require.Len(t, env.Error.Fields, 1)
	assert.Equal(t, "membershipType", env.Error.Fields[0].Field)
}

func TestRespondErrorDetailsInDevelopment(t *testing.T) {
	utils.SetDevelopmentMode(true)
	t.Cleanup(func() { utils.SetDevelopmentMode(false) })

	r := gin.New()
	r.GET("/", func(c *gin.Context) { respondError(c, errors.New("db exploded"), "test") })

	env := decode(t, do(r, http.MethodGet, "/", ""))
	assert.Contains(t, env.Error.Details, "db exploded")
}

type stubBookings struct {
	services.BookingService
	gotCaller services.Caller
	gotEmail  string
	gotStatus string
	decision  services.DecisionRequest
	err       error
}

func (s *stubBookings) SubmitBooking(_ context.Context, caller services.Caller, req services.SubmitBookingRequest) (*models.Booking, error) {
	s.gotCaller = caller
	if s.err != nil {
		return nil, s.err
	}
	b := &models.Booking{ID: "b-1", BookingStatus: models.BookingStatusPending}
	b.Email = req.Email
	return b, nil
}

func (s *stubBookings) GetStatusForCaller(_ context.Context, caller services.Caller, email string) (*models.Booking, error) {
	s.gotCaller, s.gotEmail = caller, email
	return &models.Booking{ID: "b-1"}, nil
}

func (s *stubBookings) GetBookings(_ context.Context, status string) ([]models.Booking, error) {
	s.gotStatus = status
	return nil, s.err
}

func (s *stubBookings) ApproveBooking(_ context.Context, id string, _ services.Caller, req services.DecisionRequest) (*models.Membership, error) {
	s.decision = req
	return &models.Membership{ID: "m-1", MembershipID: "SOCCOS-2501-0001"}, nil
}

func (s *stubBookings) RejectBooking(_ context.Context, id string, _ services.Caller, req services.DecisionRequest) (*models.Booking, error) {
	s.decision = req
	return &models.Booking{ID: id, BookingStatus: models.BookingStatusRejected, RejectedReason: req.RejectionReason()}, nil
}

func TestBookingDecisionBodies(t *testing.T) {
	stub := &stubBookings{}
	h := NewBookingHandler(stub)
	r := gin.New()
	admin := as(services.Caller{UserID: "a-1", Email: "admin@example.com", IsAdmin: true})
	r.PUT("/:id/approve", admin, h.ApproveBooking)
	r.PUT("/:id/reject", admin, h.RejectBooking)

	w := do(r, http.MethodPut, "/b-1/approve", `{"adminRemarks":"welcome aboard"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "welcome aboard", stub.decision.Note())

	w = do(r, http.MethodPut, "/b-1/reject", `{"rejectedReason":"incomplete documents","adminRemarks":"resubmit with ID"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "incomplete documents", stub.decision.RejectionReason())
	assert.Equal(t, "resubmit with ID", stub.decision.Note())
	assert.Contains(t, string(decode(t, w).Data), `"incomplete documents"`)

	w = do(r, http.MethodPut, "/b-1/reject", `{"reason":"duplicate"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "duplicate", stub.decision.RejectionReason())
}

type stubPayments struct {
	services.PaymentService
	decision services.DecisionRequest
}

func (s *stubPayments) ApproveVerification(_ context.Context, id string, _ services.Caller, req services.DecisionRequest) (*models.PaymentVerification, error) {
	s.decision = req
	return &models.PaymentVerification{ID: id, AdminRemarks: req.Note()}, nil
}

func (s *stubPayments) RejectVerification(_ context.Context, id string, _ services.Caller, req services.DecisionRequest) (*models.PaymentVerification, error) {
	s.decision = req
	return &models.PaymentVerification{ID: id, AdminRemarks: req.RejectionReason()}, nil
}

func TestPaymentDecisionBodies(t *testing.T) {
	stub := &stubPayments{}
	h := NewPaymentHandler(stub)
	r := gin.New()
	r.PUT("/:id/approve", h.ApproveVerification)
	r.PUT("/:id/reject", h.RejectVerification)

	w := do(r, http.MethodPut, "/v-1/approve", `{"adminRemarks":"amount matches"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "amount matches", stub.decision.Note())

	w = do(r, http.MethodPut, "/v-1/reject", `{"adminRemarks":"blurry screenshot"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "blurry screenshot", stub.decision.RejectionReason())
}

func TestSubmitBooking(t *testing.T) {
	stub := &stubBookings{}
	h := NewBookingHandler(stub)
	r := gin.New()
	r.POST("/submit", as(services.Caller{UserID: "u-1", Email: "ada@example.com"}), h.SubmitBooking)

	w := do(r, http.MethodPost, "/submit", `{"email":"ada@example.com","membershipFee":"₹500"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"b-1"`)
	assert.Equal(t, "u-1", stub.gotCaller.UserID)
}

func TestSubmitBookingRejectsMalformedJSON(t *testing.T) {
	h := NewBookingHandler(&stubBookings{})
	r := gin.New()
	r.POST("/submit", h.SubmitBooking)

	w := do(r, http.MethodPost, "/submit", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.ErrCodeBadRequest, decode(t, w).Error.Code)
}

func TestSubmitBookingConflict(t *testing.T) {
	h := NewBookingHandler(&stubBookings{err: services.ErrActiveMembershipExists})
	r := gin.New()
	r.POST("/submit", h.SubmitBooking)

	w := do(r, http.MethodPost, "/submit", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBookingStatusByEmailParam(t *testing.T) {
	stub := &stubBookings{}
	h := NewBookingHandler(stub)
	r := gin.New()
	r.GET("/status/:email", h.GetBookingStatus)

	w := do(r, http.MethodGet, "/status/ada@example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@example.com", stub.gotEmail)
	assert.False(t, stub.gotCaller.Authenticated())
}

func TestGetBookingsReturnsEmptyList(t *testing.T) {
	stub := &stubBookings{}
	h := NewBookingHandler(stub)
	r := gin.New()
	r.GET("/all", h.GetBookings)

	w := do(r, http.MethodGet, "/all?status=pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bookings":[],"count":0}`, string(decode(t, w).Data))
	assert.Equal(t, "pending", stub.gotStatus)
}

type stubMemberships struct {
	services.MembershipService
	gotCaller  services.Caller
	gotFilters services.MembershipListFilters
}

func (s *stubMemberships) ByEmail(_ context.Context, email string) (*models.Membership, error) {
	m := &models.Membership{ID: "m-1"}
	m.Email = email
	return m, nil
}

func (s *stubMemberships) ApprovalStatus(_ context.Context, caller services.Caller) (*services.ApprovalStatus, error) {
	s.gotCaller = caller
	return &services.ApprovalStatus{}, nil
}

func (s *stubMemberships) List(_ context.Context, f services.MembershipListFilters) ([]models.Membership, error) {
	s.gotFilters = f
	return nil, nil
}

func (s *stubMemberships) FeeFor(t string) (*services.TierFee, error) {
	if t == "vip" {
		return nil, &services.ValidationError{Fields: []services.FieldError{{Field: "membershipType", Message: "unknown membership type"}}}
	}
	return &services.TierFee{MembershipType: services.MembershipAcademic, Fee: 500, Currency: "INR"}, nil
}

func TestMembershipByEmailOwnership(t *testing.T) {
	h := NewMembershipHandler(&stubMemberships{})

	member := gin.New()
	member.GET("/email/:email", as(services.Caller{UserID: "u-1", Email: "ada@example.com"}), h.ByEmail)
	assert.Equal(t, http.StatusForbidden, do(member, http.MethodGet, "/email/bob@example.com", "").Code)
	assert.Equal(t, http.StatusOK, do(member, http.MethodGet, "/email/ADA@example.com", "").Code)

	admin := gin.New()
	admin.GET("/email/:email", as(services.Caller{UserID: "u-2", IsAdmin: true}), h.ByEmail)
	assert.Equal(t, http.StatusOK, do(admin, http.MethodGet, "/email/bob@example.com", "").Code)
}

func TestApprovalStatusAnonymous(t *testing.T) {
	stub := &stubMemberships{}
	h := NewMembershipHandler(stub)
	r := gin.New()
	r.GET("/approval-status", h.ApprovalStatus)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/approval-status", "").Code)

	w := do(r, http.MethodGet, "/approval-status?email=Ada@Example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@example.com", stub.gotCaller.Email)
}

func TestListMembershipsQueryFilters(t *testing.T) {
	stub := &stubMemberships{}
	h := NewMembershipHandler(stub)
	r := gin.New()
	r.GET("/memberships", h.List)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/memberships?active=maybe", "").Code)

	w := do(r, http.MethodGet, "/memberships?active=true&type=corporate", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, stub.gotFilters.Active)
	assert.True(t, *stub.gotFilters.Active)
	assert.Nil(t, stub.gotFilters.Approved)
	assert.Equal(t, "corporate", stub.gotFilters.MembershipType)
}

func TestFeeFor(t *testing.T) {
	h := NewMembershipHandler(&stubMemberships{})
	r := gin.New()
	r.GET("/fees/:type", h.FeeFor)

	w := do(r, http.MethodGet, "/fees/professional", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"membershipType":"academic","fee":500,"currency":"INR"}`, string(decode(t, w).Data))

	w = do(r, http.MethodGet, "/fees/vip", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubNotifications struct {
	services.NotificationService
	created    services.CreateNotificationRequest
	page, size int
}

func (s *stubNotifications) CreateNotification(_ context.Context, _ services.Caller, req services.CreateNotificationRequest) (*models.Notification, error) {
	s.created = req
	return &models.Notification{ID: "n-1", Type: req.Type}, nil
}

func (s *stubNotifications) AdminList(_ context.Context, page, limit int) (*services.NotificationPage, error) {
	s.page, s.size = page, limit
	return &services.NotificationPage{Page: page, Limit: limit}, nil
}

func TestSendAnnouncementForcesType(t *testing.T) {
	stub := &stubNotifications{}
	h := NewNotificationHandler(stub)
	r := gin.New()
	r.POST("/announcements", as(services.Caller{UserID: "admin", IsAdmin: true}), h.SendAnnouncement)

	w := do(r, http.MethodPost, "/announcements", `{"title":"Hi","message":"Hello","type":"event","recipients":"all"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.NotificationTypeAnnouncement, stub.created.Type)
	assert.True(t, stub.created.Recipients.All)
}

func TestAdminNotificationPagination(t *testing.T) {
	stub := &stubNotifications{}
	h := NewNotificationHandler(stub)
	r := gin.New()
	r.GET("/all", h.GetAllNotifications)

	do(r, http.MethodGet, "/all", "")
	assert.Equal(t, 1, stub.page)
	assert.Equal(t, defaultPageSize, stub.size)

	do(r, http.MethodGet, "/all?page=3&limit=5", "")
	assert.Equal(t, 3, stub.page)
	assert.Equal(t, 5, stub.size)

	do(r, http.MethodGet, "/all?page=-2&limit=abc", "")
	assert.Equal(t, 1, stub.page)
	assert.Equal(t, defaultPageSize, stub.size)
}

type stubNewsletter struct {
	services.NewsletterService
	unsubscribed string
}

func (s *stubNewsletter) Unsubscribe(_ context.Context, req services.UnsubscribeRequest) (*models.Subscriber, error) {
	if req.Email == "stranger@example.com" {
		return nil, services.ErrSubscriberNotFound
	}
	s.unsubscribed = req.Email
	return &models.Subscriber{Email: req.Email}, nil
}

func TestUnsubscribe(t *testing.T) {
	stub := &stubNewsletter{}
	h := NewNewsletterHandler(stub)
	r := gin.New()
	r.GET("/unsubscribe", h.Unsubscribe)
	r.POST("/unsubscribe", h.Unsubscribe)

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/unsubscribe?email=reader%40example.com", "").Code)
	assert.Equal(t, "reader@example.com", stub.unsubscribed)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/unsubscribe", `{"email":"other@example.com"}`).Code)
	assert.Equal(t, "other@example.com", stub.unsubscribed)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/unsubscribe", `{"email":"stranger@example.com"}`).Code)
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/ok", NewHealthHandler(failingPinger{}).Health)
	r.GET("/down", NewHealthHandler(failingPinger{err: errors.New("refused")}).Health)

	w := do(r, http.MethodGet, "/ok", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)

	w = do(r, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, decode(t, w).Success)
}
