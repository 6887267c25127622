package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"solconta/internal/services"
)

// DashboardHandler serves the dashboard figures.
type DashboardHandler struct {
	dashboardService services.DashboardServicer
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboardService services.DashboardServicer) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard returns the balance, month-over-month changes, top expense
// categories and the seven-day trend.
// @Summary     Get dashboard
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} metrics.Dashboard
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	dashboard, err := h.dashboardService.GetDashboard(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": dashboard})
}
