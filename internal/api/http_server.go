package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pawbook/internal/config"
	"pawbook/internal/domain"
	"pawbook/internal/metrics"
	"pawbook/internal/models"
)

const dateLayout = "2006-01-02"

// HTTPServer exposes the scheduling engine over HTTP: slot listings,
// booking commits and lifecycle transitions, and the service catalog.
type HTTPServer struct {
	cfg      config.APIConfig
	slots    domain.SlotService
	bookings domain.BookingService
	catalog  domain.Store
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, slots domain.SlotService, bookings domain.BookingService, catalog domain.Store, logger *zerolog.Logger) *HTTPServer {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:      cfg,
		slots:    slots,
		bookings: bookings,
		catalog:  catalog,
		auth:     NewHTTPAuth(cfg),
		logger:   log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/slots", srv.handleSlots)
	mux.HandleFunc("/api/v1/services", srv.handleServices)
	mux.HandleFunc("/api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBooking)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the configured root handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("services")

	writeJSON(w, http.StatusOK, map[string]any{"services": s.catalog.ListServices()})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("slots")

	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider"))
	serviceID := strings.TrimSpace(q.Get("service"))
	if providerID == "" || serviceID == "" {
		writeError(w, http.StatusBadRequest, "provider and service are required")
		return
	}

	from, err := parseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}

	step := 0
	if raw := strings.TrimSpace(q.Get("step")); raw != "" {
		step, err = strconv.Atoi(raw)
		if err != nil || step <= 0 {
			writeError(w, http.StatusBadRequest, "invalid step; expected positive minutes")
			return
		}
	}

	loc := time.UTC
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown tz")
			return
		}
	}

	query := models.SlotQuery{
		ProviderID:  providerID,
		ServiceID:   serviceID,
		From:        from,
		To:          to,
		StepMinutes: step,
		PetCategory: strings.TrimSpace(q.Get("pet_category")),
		PetSize:     strings.TrimSpace(q.Get("pet_size")),
	}
	slots, err := s.slots.ListSlots(r.Context(), query)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"dates": slotsByDate(slots, from, to, loc)})
}

// slotsByDate groups start instants by calendar date in the caller's
// location. Every date in [from, to) is present; an empty list means
// closed or fully booked.
func slotsByDate(slots []models.Slot, from, to time.Time, loc *time.Location) map[string][]string {
	out := make(map[string][]string)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		out[d.Format(dateLayout)] = []string{}
	}
	for _, slot := range slots {
		local := slot.Start.In(loc)
		key := local.Format(dateLayout)
		out[key] = append(out[key], local.Format(time.RFC3339))
	}
	return out
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// loggingMiddleware tags every request with an id and logs its outcome.
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("x-request-id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("x-request-id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
