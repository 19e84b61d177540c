package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pawbook/internal/database"
	"pawbook/internal/metrics"
	"pawbook/internal/models"
	"pawbook/internal/schedule"
	"pawbook/internal/service"
)

type createBookingRequest struct {
	ProviderID     string `json:"provider_id"`
	ServiceID      string `json:"service_id"`
	PetID          string `json:"pet_id"`
	PetCategory    string `json:"pet_category"`
	PetSize        string `json:"pet_size"`
	Start          string `json:"start"`
	IdempotencyKey string `json:"idempotency_key"`
	Notes          string `json:"notes"`
}

type transitionRequest struct {
	Version int64 `json:"version"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("bookings_create")

	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(body.Start))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected RFC3339")
		return
	}

	// The Idempotency-Key header wins over the body field.
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(body.IdempotencyKey)
	}

	booking, replayed, err := s.bookings.CreateBooking(r.Context(), models.BookingRequest{
		ProviderID:     body.ProviderID,
		ServiceID:      body.ServiceID,
		PetID:          body.PetID,
		PetCategory:    body.PetCategory,
		PetSize:        body.PetSize,
		Start:          start,
		IdempotencyKey: key,
		Notes:          body.Notes,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, bookingResponse(booking, replayed))
}

// handleBooking routes /api/v1/bookings/{id} and the transition
// endpoints below it.
func (s *HTTPServer) handleBooking(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	id := strings.TrimSpace(parts[0])
	if id == "" {
		writeError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getBooking(w, r, id)
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.transitionBooking(w, r, id, parts[1])
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getBooking(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("bookings_get")

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse(booking, false))
}

func (s *HTTPServer) transitionBooking(w http.ResponseWriter, r *http.Request, id, action string) {
	metrics.IncHTTP("bookings_" + action)

	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Version <= 0 {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}

	var err error
	switch action {
	case "cancel":
		err = s.bookings.CancelBooking(r.Context(), id, body.Version)
	case "complete":
		err = s.bookings.CompleteBooking(r.Context(), id, body.Version)
	case "no-show":
		err = s.bookings.MarkNoShow(r.Context(), id, body.Version)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse(booking, false))
}

func bookingResponse(b *models.Booking, replayed bool) map[string]any {
	resp := map[string]any{
		"id":          b.ID,
		"provider_id": b.ProviderID,
		"service_id":  b.ServiceID,
		"pet_id":      b.PetID,
		"start":       b.Interval.Start.UTC().Format(time.RFC3339),
		"end":         b.Interval.End.UTC().Format(time.RFC3339),
		"status":      b.Status,
		"price_cents": b.PriceCents,
		"version":     b.Version,
	}
	if b.Notes != "" {
		resp["notes"] = b.Notes
	}
	if replayed {
		resp["replayed"] = true
	}
	return resp
}

// statusForError maps the engine's error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, schedule.ErrInvalidRule),
		errors.Is(err, schedule.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrIneligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrSlotConflict),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
