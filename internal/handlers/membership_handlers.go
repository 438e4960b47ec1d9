package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// MembershipHandler serves membership records, the public membership card
// lookup and the fee schedule.
type MembershipHandler struct {
	membershipService services.MembershipService
}

func NewMembershipHandler(ms services.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipService: ms}
}

// Register creates an unapproved membership directly (legacy flow).
func (h *MembershipHandler) Register(c *gin.Context) {
	var req services.RegisterMembershipRequest
	if !bindJSON(c, &req, "RegisterMembership") {
		return
	}

	m, err := h.membershipService.Register(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "RegisterMembership")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Membership registered. It will be activated once payment is verified.", m)
}

func (h *MembershipHandler) Current(c *gin.Context) {
	m, err := h.membershipService.Current(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		respondError(c, err, "CurrentMembership")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership retrieved", m)
}

// ByEmail returns the latest membership for an email. Members may only read their own.
func (h *MembershipHandler) ByEmail(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	email := utils.NormalizeEmail(c.Param("email"))
	if !caller.IsAdmin && email != utils.NormalizeEmail(caller.Email) {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			"You can only view your own membership", ""))
		return
	}

	m, err := h.membershipService.ByEmail(c.Request.Context(), email)
	if err != nil {
		respondError(c, err, "MembershipByEmail")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership retrieved", m)
}

// Lookup is the public membership card endpoint.
func (h *MembershipHandler) Lookup(c *gin.Context) {
	m, err := h.membershipService.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "LookupMembership")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership retrieved", m)
}

func (h *MembershipHandler) Validate(c *gin.Context) {
	v, err := h.membershipService.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "ValidateMembership")
		return
	}
	msg := "Membership is not valid"
	if v.Valid && v.Active {
		msg = "Membership is valid and active"
	} else if v.Valid {
		msg = "Membership exists but is not active"
	}
	utils.RespondSuccess(c, http.StatusOK, msg, v)
}

// ApprovalStatus reports the caller's membership state. Anonymous callers may pass ?email=.
func (h *MembershipHandler) ApprovalStatus(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	if !caller.Authenticated() {
		caller.Email = utils.NormalizeEmail(c.Query("email"))
		if caller.Email == "" {
			utils.RespondValidationFailed(c, utils.FieldError{Field: "email", Message: "is required"})
			return
		}
	}

	status, err := h.membershipService.ApprovalStatus(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "ApprovalStatus")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Approval status retrieved", status)
}

// Fees returns the full fee table with bank details.
func (h *MembershipHandler) Fees(c *gin.Context) {
	utils.RespondSuccess(c, http.StatusOK, "Membership fees retrieved", h.membershipService.Fees())
}

// Types lists the tiers with their descriptions, benefits and fees.
func (h *MembershipHandler) Types(c *gin.Context) {
	utils.RespondSuccess(c, http.StatusOK, "Membership types retrieved", h.membershipService.Types())
}

func (h *MembershipHandler) FeeFor(c *gin.Context) {
	fee, err := h.membershipService.FeeFor(c.Param("type"))
	if err != nil {
		respondError(c, err, "FeeFor")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership fee retrieved", fee)
}

// --- Admin ---

func (h *MembershipHandler) List(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	approved, ok := queryBool(c, "approved")
	if !ok {
		return
	}

	list, err := h.membershipService.List(c.Request.Context(), services.MembershipListFilters{
		Active: active, Approved: approved, MembershipType: c.Query("type"),
	})
	if err != nil {
		respondError(c, err, "ListMemberships")
		return
	}
	if list == nil {
		list = []models.Membership{}
	}
	utils.RespondSuccess(c, http.StatusOK, "Memberships retrieved", gin.H{"memberships": list, "count": len(list)})
}

func (h *MembershipHandler) Get(c *gin.Context) {
	m, err := h.membershipService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "GetMembership")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership retrieved", m)
}

func (h *MembershipHandler) Update(c *gin.Context) {
	var req services.UpdateMembershipRequest
	if !bindJSON(c, &req, "UpdateMembership") {
		return
	}

	m, err := h.membershipService.Update(c.Request.Context(), c.Param("id"), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "UpdateMembership")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership updated successfully", m)
}

func (h *MembershipHandler) Delete(c *gin.Context) {
	if err := h.membershipService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "DeleteMembership")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership deleted successfully", nil)
}

func (h *MembershipHandler) Stats(c *gin.Context) {
	stats, err := h.membershipService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "MembershipStats")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Membership statistics retrieved", stats)
}
