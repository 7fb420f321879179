package api

import (
	"net/http"

	"github.com/malwarebo/invoicer/services"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func CreateDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

func (h *DashboardHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.dashboardService.Metrics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}
