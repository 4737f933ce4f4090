package analytics_api

import (
	"fmt"
	"net/http"

	"ms-reservation/internal/analytics"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	TrainID int64
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, trainID int64, logger *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		TrainID: trainID,
		Logger:  logger,
	}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/occupancy", h.GetOccupancy)
}

func (h *Handler) GetOccupancy(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.GetOccupancy(r.Context(), h.TrainID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("GetOccupancy: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", report))
}
