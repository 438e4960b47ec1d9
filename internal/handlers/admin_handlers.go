package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandler holds the account administration service.
type AdminHandler struct {
	adminService services.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(as services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: as}
}

// GetUsers handles fetching accounts with pagination and search.
func (h *AdminHandler) GetUsers(c *gin.Context) {
	filters := models.AccountFilters{
		Search:   c.Query("search"),
		Page:     utils.PositiveIntOr(c.Query("page"), 1),
		PageSize: utils.PositiveIntOr(c.DefaultQuery("page_size", c.Query("limit")), defaultPageSize),
	}

	page, err := h.adminService.ListUsers(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err, "GetUsers")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Users retrieved", page)
}

func (h *AdminHandler) GetUserByID(c *gin.Context) {
	account, err := h.adminService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "GetUserByID")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "User retrieved", account)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req services.UpdateUserRequest
	if !bindJSON(c, &req, "UpdateUser") {
		return
	}

	account, err := h.adminService.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "UpdateUser")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "User updated successfully", account)
}

// DeleteUser removes an account; its memberships and applications are kept, detached.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.adminService.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "DeleteUser")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "User deleted successfully", nil)
}

func (h *AdminHandler) UserStats(c *gin.Context) {
	stats, err := h.adminService.UserStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "UserStats")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "User statistics retrieved", stats)
}

// Dashboard aggregates the statistics of every component.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.adminService.DashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Dashboard")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Dashboard statistics retrieved", stats)
}
