package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-reservation/internal/models"
	"ms-reservation/internal/utils"

	"github.com/go-chi/chi/v5"
)

// HandleTicketEvents streams the events of one PNR, so a RAC or WAITING
// passenger sees their promotion as it commits.
func (h *Handler) HandleTicketEvents(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")
	ticket, err := h.Service.GetByPNR(r.Context(), pnr)
	if err != nil {
		h.writeServiceError(w, "HandleTicketEvents", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	ctx := r.Context()
	eventChan := h.Events.SubscribeToPNR(ctx, pnr)

	setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"pnr\":%q,\"tier\":%q}\n\n", ticket.PNR, ticket.Tier)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to ticket events for PNR: %s", pnr))

	h.stream(w, r, flusher, eventChan)
}

// HandleTrainEvents streams every ticket event of the train.
func (h *Handler) HandleTrainEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	eventChan := h.Events.SubscribeAll(r.Context())

	setupSSEHeaders(w)
	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()
	h.Logger.Info("SSE", "Client connected to train events")

	h.stream(w, r, flusher, eventChan)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, flusher http.Flusher, eventChan <-chan models.TicketEvent) {
	ctx := r.Context()
	for {
		select {
		case ev, ok := <-eventChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize ticket event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", "Client disconnected from ticket events")
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	// streams outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
