package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// BookingHandler holds the membership application service.
type BookingHandler struct {
	bookingService services.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bs services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bs}
}

// SubmitBooking files a membership application for review.
func (h *BookingHandler) SubmitBooking(c *gin.Context) {
	var req services.SubmitBookingRequest
	if !bindJSON(c, &req, "SubmitBooking") {
		return
	}

	booking, err := h.bookingService.SubmitBooking(c.Request.Context(), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "SubmitBooking")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Membership application submitted successfully. It will be reviewed by an administrator.", booking)
}

// GetBookingStatus returns the latest application of the caller, or of the
// email in the path.
func (h *BookingHandler) GetBookingStatus(c *gin.Context) {
	booking, err := h.bookingService.GetStatusForCaller(c.Request.Context(), middleware.CallerFrom(c), c.Param("email"))
	if err != nil {
		respondError(c, err, "GetBookingStatus")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Booking status retrieved", booking)
}

// GetBookings lists applications, optionally filtered by ?status=.
func (h *BookingHandler) GetBookings(c *gin.Context) {
	bookings, err := h.bookingService.GetBookings(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err, "GetBookings")
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	utils.RespondSuccess(c, http.StatusOK, "Bookings retrieved", gin.H{"bookings": bookings, "count": len(bookings)})
}

// GetBookingByID handles fetching a single booking by ID.
func (h *BookingHandler) GetBookingByID(c *gin.Context) {
	booking, err := h.bookingService.GetBookingByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "GetBookingByID")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Booking retrieved", booking)
}

// ApproveBooking issues the membership for a pending application.
func (h *BookingHandler) ApproveBooking(c *gin.Context) {
	var req services.DecisionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "ApproveBooking") {
		return
	}

	membership, err := h.bookingService.ApproveBooking(c.Request.Context(), c.Param("id"), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "ApproveBooking")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Booking approved and membership issued", gin.H{"membership": membership})
}

func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var req services.DecisionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "RejectBooking") {
		return
	}

	booking, err := h.bookingService.RejectBooking(c.Request.Context(), c.Param("id"), middleware.CallerFrom(c), req)
	if err != nil {
		respondError(c, err, "RejectBooking")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Booking rejected", booking)
}

func (h *BookingHandler) GetBookingStats(c *gin.Context) {
	stats, err := h.bookingService.GetBookingStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "GetBookingStats")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Booking statistics retrieved", stats)
}
