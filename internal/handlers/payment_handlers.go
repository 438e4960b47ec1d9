package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// PaymentHandler serves payment verification submissions and their review.
type PaymentHandler struct {
	paymentService services.PaymentService
}

func NewPaymentHandler(ps services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// SubmitVerification records proof of payment for a membership.
func (h *PaymentHandler) SubmitVerification(c *gin.Context) {
	var req services.SubmitVerificationRequest
	if !bindJSON(c, &req, "SubmitVerification") {
		return
	}

	v, err := h.paymentService.SubmitVerification(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "SubmitVerification")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Payment verification submitted. An administrator will review it shortly.", v)
}

// SubmitUpgrade records proof of payment for a tier change.
func (h *PaymentHandler) SubmitUpgrade(c *gin.Context) {
	var req services.SubmitUpgradeRequest
	if !bindJSON(c, &req, "SubmitUpgrade") {
		return
	}

	v, err := h.paymentService.SubmitUpgradeVerification(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "SubmitUpgrade")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Upgrade payment submitted. An administrator will review it shortly.", v)
}

func (h *PaymentHandler) StatusByMembership(c *gin.Context) {
	summary, err := h.paymentService.StatusByMembership(c.Request.Context(), c.Param("membershipId"))
	if err != nil {
		respondError(c, err, "VerificationStatus")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Verification status retrieved", summary)
}

// GetVerifications lists verifications, filtered by ?status= and ?isUpgrade=.
func (h *PaymentHandler) GetVerifications(c *gin.Context) {
	isUpgrade, ok := queryBool(c, "isUpgrade")
	if !ok {
		return
	}

	list, err := h.paymentService.GetVerifications(c.Request.Context(), services.VerificationListFilters{
		Status: c.Query("status"), IsUpgrade: isUpgrade,
	})
	if err != nil {
		respondError(c, err, "GetVerifications")
		return
	}
	if list == nil {
		list = []models.PaymentVerification{}
	}
	utils.RespondSuccess(c, http.StatusOK, "Payment verifications retrieved", gin.H{"verifications": list, "count": len(list)})
}

func (h *PaymentHandler) GetVerificationByID(c *gin.Context) {
	v, err := h.paymentService.GetVerificationByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "GetVerificationByID")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Payment verification retrieved", v)
}

// ApproveVerification activates the linked membership.
func (h *PaymentHandler) ApproveVerification(c *gin.Context) {
	var req services.DecisionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "ApproveVerification") {
		return
	}

	v, err := h.paymentService.ApproveVerification(c.Request.Context(), c.Param("id"), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "ApproveVerification")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Payment verified and membership activated", v)
}

func (h *PaymentHandler) RejectVerification(c *gin.Context) {
	var req services.DecisionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "RejectVerification") {
		return
	}

	v, err := h.paymentService.RejectVerification(c.Request.Context(), c.Param("id"), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "RejectVerification")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Payment verification rejected", v)
}
