package booking_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-reservation/internal/auth"
	"ms-reservation/internal/booking"
	qr "ms-reservation/internal/booking/qr_generator"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/sse"
	"ms-reservation/internal/utils"

	"github.com/go-chi/chi/v5"
)

const ScannerRole = "SCANNER"

type BookingService interface {
	Book(ctx context.Context, req *models.BookingRequest) (*models.Ticket, error)
	Cancel(ctx context.Context, ticketID string) (*models.CancelResponse, error)
	ListBooked(ctx context.Context, status string) ([]*models.Ticket, error)
	GetByPNR(ctx context.Context, pnr string) (*models.Ticket, error)
	Availability(ctx context.Context) (*models.Availability, error)
}

type Handler struct {
	Service     BookingService
	QRGenerator *qr.QRGenerator
	Logger      *logger.Logger
	// Events enables the SSE routes when set.
	Events *sse.TicketEventEmitter
}

func NewHandler(service BookingService, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{
		Service:     service,
		QRGenerator: qrGen,
		Logger:      log,
	}
}

// Guards are optional middlewares for the routes that change or reveal
// more than public data. A nil guard leaves the route open.
type Guards struct {
	Cancel      func(http.Handler) http.Handler
	Scanner     func(http.Handler) http.Handler
	Idempotency func(http.Handler) http.Handler
}

func with(r chi.Router, mw func(http.Handler) http.Handler) chi.Router {
	if mw == nil {
		return r
	}
	return r.With(mw)
}

// Routes mounts the ticket endpoints. Static paths are registered before
// /{pnr} so chi prefers them.
func (h *Handler) Routes(g Guards) chi.Router {
	r := chi.NewRouter()
	with(r, g.Idempotency).Post("/book", h.BookTicket)
	with(r, g.Cancel).Post("/cancel/{ticketId}", h.CancelTicket)
	with(r, g.Scanner).Post("/verify-qr", h.VerifyQR)
	r.Get("/booked", h.GetBookedTickets)
	r.Get("/available", h.GetAvailableTickets)
	r.Get("/{pnr}", h.GetTicketByPNR)
	r.Get("/{pnr}/qr", h.GetTicketQR)
	if h.Events != nil {
		r.Get("/events", h.HandleTrainEvents)
		r.Get("/{pnr}/events", h.HandleTicketEvents)
	}
	return r
}

func (h *Handler) BookTicket(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("BookTicket: failed to decode request body: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	ticket, err := h.Service.Book(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, "BookTicket", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Ticket booked successfully", ticket))
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	h.Logger.Info("API", fmt.Sprintf("CancelTicket: ticketId=%s by=%s", ticketID, caller(r)))

	resp, err := h.Service.Cancel(r.Context(), ticketID)
	if err != nil {
		h.writeServiceError(w, "CancelTicket", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(resp.Message, nil))
}

func (h *Handler) GetBookedTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Service.ListBooked(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, "GetBookedTickets", err)
		return
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", tickets))
}

func (h *Handler) GetAvailableTickets(w http.ResponseWriter, r *http.Request) {
	availability, err := h.Service.Availability(r.Context())
	if err != nil {
		h.writeServiceError(w, "GetAvailableTickets", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", availability))
}

func (h *Handler) GetTicketByPNR(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Service.GetByPNR(r.Context(), chi.URLParam(r, "pnr"))
	if err != nil {
		h.writeServiceError(w, "GetTicketByPNR", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", ticket))
}

func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Service.GetByPNR(r.Context(), chi.URLParam(r, "pnr"))
	if err != nil {
		h.writeServiceError(w, "GetTicketQR", err)
		return
	}

	png, err := h.QRGenerator.GenerateEncryptedQR(ticket)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicketQR: failed to generate QR for %s: %v", ticket.PNR, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to generate QR code", nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ticket.PNR+".png"))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// VerifyQR checks a scanned QR token against the live ticket. A ticket that
// was cancelled since the QR was issued is reported as not found.
// Expected POST request body: {"encrypted_qr": "base64_encrypted_string"}
func (h *Handler) VerifyQR(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if requestBody.EncryptedQR == "" {
		utils.WriteError(w, http.StatusBadRequest, "encrypted_qr is required", nil)
		return
	}

	payload, err := h.QRGenerator.Decrypt(requestBody.EncryptedQR)
	if err != nil {
		h.Logger.LogSecurity("QR", fmt.Sprintf("VerifyQR: undecodable token: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid QR code", nil)
		return
	}

	ticket, err := h.Service.GetByPNR(r.Context(), payload.PNR)
	if err != nil {
		h.writeServiceError(w, "VerifyQR", err)
		return
	}
	if ticket.ID != payload.TicketID {
		h.Logger.LogSecurity("QR", fmt.Sprintf("VerifyQR: ticket id mismatch for PNR %s", payload.PNR))
		utils.WriteError(w, http.StatusBadRequest, "Invalid QR code", nil)
		return
	}

	h.Logger.LogBooking("VERIFY", ticket.PNR, fmt.Sprintf("scanned by %s", caller(r)))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket is valid", map[string]interface{}{
		"ticket":    ticket,
		"issued_at": payload.IssuedAt,
	}))
}

// caller names the authenticated user, or "anonymous" when auth is off.
func caller(r *http.Request) string {
	if id := auth.UserID(r.Context()); id != "" {
		return id
	}
	return "anonymous"
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.WriteError(w, http.StatusBadRequest, "Validation failed", verr.Fields)
	case errors.Is(err, booking.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, "Validation failed", nil)
	case errors.Is(err, booking.ErrRejected):
		utils.WriteError(w, http.StatusBadRequest, "No tickets available", nil)
	case errors.Is(err, booking.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "Ticket not found", nil)
	case errors.Is(err, booking.ErrTransientConflict):
		h.Logger.Warn("API", fmt.Sprintf("%s: gave up after retries: %v", op, err))
		w.Header().Set("Retry-After", "1")
		utils.WriteError(w, http.StatusServiceUnavailable, "Booking system is busy, please retry", nil)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
