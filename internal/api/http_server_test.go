package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawbook/internal/config"
	"pawbook/internal/database"
	"pawbook/internal/events"
	"pawbook/internal/models"
	"pawbook/internal/repository"
	"pawbook/internal/service"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	logger := zerolog.Nop()

	store, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rules := make([]models.AvailabilityRule, 0, 5)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		rules = append(rules, models.AvailabilityRule{
			ProviderID: "prov-1",
			Kind:       models.RuleKindRecurring,
			Timezone:   "Europe/Berlin",
			Weekday:    wd,
			Start:      models.LocalClock(9 * 60),
			End:        models.LocalClock(17 * 60),
		})
	}
	require.NoError(t, store.SeedCatalog(context.Background(),
		[]models.Provider{{ID: "prov-1", Name: "Happy Paws Grooming", Timezone: "Europe/Berlin", IsActive: true}},
		[]models.Service{{
			ID: "svc-groom", ProviderID: "prov-1", Name: "Full Groom",
			DurationMinutes: 60, PriceCents: 4500, PetCategories: []string{"dog"},
		}},
		nil, rules))

	cache := repository.NewMemorySlotCache()
	engine := config.EngineConfig{StepMinutes: 30, MaxRangeDays: 31, SlotCacheTTLSeconds: 60}
	slots := service.NewSlotService(store, cache, engine, &logger)
	bookings := service.NewBookingService(store, cache, events.NewEventBus(), nil, &logger)

	cfg := config.APIConfig{
		Port: 8080,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: testAPIKey, Name: "tests"},
				{Key: "read-only", Name: "viewer", Permissions: []string{"read"}},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}

	return NewHTTPServer(cfg, slots, bookings, store, &logger)
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createRequestBody(key string) map[string]any {
	return map[string]any{
		"provider_id":     "prov-1",
		"service_id":      "svc-groom",
		"pet_id":          "pet-1",
		"pet_category":    "dog",
		"start":           "2026-09-07T08:00:00Z", // 10:00 Berlin
		"idempotency_key": key,
	}
}

func TestSlotsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet,
		"/api/v1/slots?provider=prov-1&service=svc-groom&from=2026-09-07&to=2026-09-08", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	dates := decodeBody(t, rec)["dates"].(map[string]any)
	require.Len(t, dates, 1)

	starts := dates["2026-09-07"].([]any)
	assert.Len(t, starts, 15)
	assert.Equal(t, "2026-09-07T07:00:00Z", starts[0])
}

func TestSlotsEndpointTimezone(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet,
		"/api/v1/slots?provider=prov-1&service=svc-groom&from=2026-09-07&to=2026-09-08&tz=Europe/Berlin", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	dates := decodeBody(t, rec)["dates"].(map[string]any)
	starts := dates["2026-09-07"].([]any)
	assert.Equal(t, "2026-09-07T09:00:00+02:00", starts[0])
}

func TestSlotsEndpointClosedDatesStayListed(t *testing.T) {
	srv := newTestServer(t)

	// Saturday and Sunday have no rules; both dates still appear, empty.
	rec := doRequest(t, srv, http.MethodGet,
		"/api/v1/slots?provider=prov-1&service=svc-groom&from=2026-09-05&to=2026-09-07", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	dates := decodeBody(t, rec)["dates"].(map[string]any)
	require.Len(t, dates, 2)
	assert.Empty(t, dates["2026-09-05"])
	assert.Empty(t, dates["2026-09-06"])
}

func TestSlotsEndpointIneligibleCategory(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet,
		"/api/v1/slots?provider=prov-1&service=svc-groom&from=2026-09-07&to=2026-09-08&pet_category=cat", nil, testAPIKey)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSlotsEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := map[string]string{
		"missing provider": "/api/v1/slots?service=svc-groom&from=2026-09-07&to=2026-09-08",
		"bad from":         "/api/v1/slots?provider=prov-1&service=svc-groom&from=nope&to=2026-09-08",
		"bad step":         "/api/v1/slots?provider=prov-1&service=svc-groom&from=2026-09-07&to=2026-09-08&step=-5",
		"bad tz":           "/api/v1/slots?provider=prov-1&service=svc-groom&from=2026-09-07&to=2026-09-08&tz=Mars/Olympus",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, path, nil, testAPIKey)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := doRequest(t, srv, http.MethodGet,
		"/api/v1/slots?provider=prov-ghost&service=svc-groom&from=2026-09-07&to=2026-09-08", nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", createRequestBody("key-http-1"), testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "confirmed", body["status"])
	assert.Equal(t, "2026-09-07T08:00:00Z", body["start"])
	assert.NotEmpty(t, body["id"])

	// Same key replays with 200.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/bookings", createRequestBody("key-http-1"), testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decodeBody(t, rec)
	assert.Equal(t, body["id"], replay["id"])
	assert.Equal(t, true, replay["replayed"])
}

func TestCreateBookingConflictEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", createRequestBody("key-one"), testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code)

	overlap := createRequestBody("key-two")
	overlap["start"] = "2026-09-07T08:30:00Z"
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/bookings", overlap, testAPIKey)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateBookingIneligibleEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := createRequestBody("key-cat")
	body["pet_category"] = "cat"
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", body, testAPIKey)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	outside := createRequestBody("key-night")
	outside["start"] = "2026-09-07T22:00:00Z"
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/bookings", outside, testAPIKey)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", createRequestBody("key-life"), testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id := created["id"].(string)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/bookings/"+id, nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost,
		fmt.Sprintf("/api/v1/bookings/%s/cancel", id),
		map[string]any{"version": 1}, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBody(t, rec)["status"])

	// Transition out of cancelled conflicts.
	rec = doRequest(t, srv, http.MethodPost,
		fmt.Sprintf("/api/v1/bookings/%s/complete", id),
		map[string]any{"version": 2}, testAPIKey)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBookingStaleVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", createRequestBody("key-ver"), testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["id"].(string)

	rec = doRequest(t, srv, http.MethodPost,
		fmt.Sprintf("/api/v1/bookings/%s/cancel", id),
		map[string]any{"version": 42}, testAPIKey)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetBookingNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/bookings/missing", nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServicesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/services", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	services := decodeBody(t, rec)["services"].([]any)
	assert.Len(t, services, 1)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// No API key needed.
	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
