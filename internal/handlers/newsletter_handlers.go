package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type NewsletterHandler struct {
	newsletterService services.NewsletterService
}

func NewNewsletterHandler(ns services.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{newsletterService: ns}
}

func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	var req services.SubscribeRequest
	if !bindJSON(c, &req, "Subscribe") {
		return
	}

	sub, err := h.newsletterService.Subscribe(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Subscribe")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Successfully subscribed to the newsletter", sub)
}

// Unsubscribe accepts the address in the body or as ?email= (the link in every newsletter).
func (h *NewsletterHandler) Unsubscribe(c *gin.Context) {
	req := services.UnsubscribeRequest{Email: c.Query("email")}
	if req.Email == "" && !bindJSON(c, &req, "Unsubscribe") {
		return
	}

	if _, err := h.newsletterService.Unsubscribe(c.Request.Context(), req); err != nil {
		respondError(c, err, "Unsubscribe")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Successfully unsubscribed from the newsletter", nil)
}

// --- Admin ---

func (h *NewsletterHandler) GetSubscribers(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}

	list, err := h.newsletterService.GetSubscribers(c.Request.Context(), active)
	if err != nil {
		respondError(c, err, "GetSubscribers")
		return
	}
	if list == nil {
		list = []models.Subscriber{}
	}
	utils.RespondSuccess(c, http.StatusOK, "Subscribers retrieved", gin.H{"subscribers": list, "count": len(list)})
}

func (h *NewsletterHandler) GetSubscriber(c *gin.Context) {
	sub, err := h.newsletterService.GetSubscriber(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "GetSubscriber")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Subscriber retrieved", sub)
}

func (h *NewsletterHandler) UpdateSubscriber(c *gin.Context) {
	var req services.UpdateSubscriberRequest
	if !bindJSON(c, &req, "UpdateSubscriber") {
		return
	}

	sub, err := h.newsletterService.UpdateSubscriber(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "UpdateSubscriber")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Subscriber updated successfully", sub)
}

func (h *NewsletterHandler) DeleteSubscriber(c *gin.Context) {
	if err := h.newsletterService.DeleteSubscriber(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "DeleteSubscriber")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Subscriber deleted successfully", nil)
}

func (h *NewsletterHandler) Stats(c *gin.Context) {
	stats, err := h.newsletterService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "NewsletterStats")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Newsletter statistics retrieved", stats)
}
