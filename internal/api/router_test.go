package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinicdesk/internal/api"
	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/auth"
	"github.com/clinicdesk/clinicdesk/internal/featureflags"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// testAuthService creates an auth service for testing.
func testAuthService() *auth.Service {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.clinicdesk.nl",
		Audience:   "clinicdesk-api",
	})

	return auth.NewService(auth.ServiceConfig{
		JWTService: jwtService,
	})
}

// generateTestToken generates a valid test token for a therapist.
func generateTestToken(t *testing.T) string {
	t.Helper()
	token, _, err := testAuthService().IssueToken("usr_testuser123")
	require.NoError(t, err)
	return token
}

func newTestRouter() http.Handler {
	logger := zerolog.New(io.Discard)

	flagService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     logger,
		CacheTTL:   1 * time.Minute,
	})

	scheduleService := schedule.NewService(schedule.ServiceConfig{
		Repository: schedule.NewInMemoryRepository(),
		Flags:      flagService,
		Logger:     logger,
	})

	return api.NewRouter(api.RouterConfig{
		Version:            "test",
		BuildTime:          "2024-01-01T00:00:00Z",
		Logger:             logger,
		AuthService:        testAuthService(),
		FeatureFlagService: flagService,
		ScheduleService:    scheduleService,
	})
}

// addAuthHeader adds a valid Bearer token to the request.
func addAuthHeader(t *testing.T, req *http.Request) {
	t.Helper()
	token := generateTestToken(t)
	req.Header.Set("Authorization", "Bearer "+token)
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, health.Time)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, status.Status)
}

func TestRouter_SlotsRequireAuth(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/me/slots", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_CreateAndListSlots(t *testing.T) {
	router := newTestRouter()

	input := models.SlotCreateRequest{
		Date:      "2025-09-01",
		StartTime: "09:00",
		EndTime:   "17:00",
		Title:     "Open hours",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/me/slots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))

	var created models.SlotList
	err := json.Unmarshal(w.Body.Bytes(), &created)
	require.NoError(t, err)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "2025-09-01", created.Items[0].Date)
	assert.NotEmpty(t, created.Items[0].ID)

	// List slots
	req = httptest.NewRequest(http.MethodGet, "/v1/me/slots", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var list models.SlotList
	err = json.Unmarshal(w.Body.Bytes(), &list)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestRouter_CreateRecurringSlot(t *testing.T) {
	router := newTestRouter()

	input := models.SlotCreateRequest{
		Date:      "2025-09-01",
		StartTime: "09:00",
		EndTime:   "12:00",
		Recurrence: &models.RecurrenceRule{
			Pattern:       "weekly",
			DurationBound: "1_month",
		},
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/me/slots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.SlotList
	err := json.Unmarshal(w.Body.Bytes(), &created)
	require.NoError(t, err)
	// Mondays from 2025-09-01 through 2025-10-01
	assert.Len(t, created.Items, 5)
}

func TestRouter_CreateSlot_ValidationError(t *testing.T) {
	router := newTestRouter()

	input := models.SlotCreateRequest{
		Date:      "not-a-date",
		StartTime: "09:00",
		EndTime:   "08:00",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/me/slots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
	assert.NotEmpty(t, problem.Errors)
}

func TestRouter_CreateSlot_Conflict(t *testing.T) {
	router := newTestRouter()

	create := func(startTime, endTime string) *httptest.ResponseRecorder {
		input := models.SlotCreateRequest{
			Date:      "2025-09-02",
			StartTime: startTime,
			EndTime:   endTime,
		}
		body, _ := json.Marshal(input)
		req := httptest.NewRequest(http.MethodPost, "/v1/me/slots", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		addAuthHeader(t, req)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, create("09:00", "12:00").Code)

	w := create("11:00", "13:00")
	assert.Equal(t, http.StatusConflict, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	assert.Equal(t, models.ProblemTypeConflict, problem.Type)

	// Touching ranges never conflict
	assert.Equal(t, http.StatusCreated, create("12:00", "14:00").Code)
}

func TestRouter_UpdateAndDeleteSlot(t *testing.T) {
	router := newTestRouter()

	input := models.SlotCreateRequest{Date: "2025-09-03", StartTime: "09:00", EndTime: "12:00"}
	body, _ := json.Marshal(input)
	req := httptest.NewRequest(http.MethodPost, "/v1/me/slots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.SlotList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	slotID := created.Items[0].ID

	// Update title
	update, _ := json.Marshal(map[string]string{"title": "Morning block"})
	req = httptest.NewRequest(http.MethodPut, "/v1/me/slots/"+slotID, bytes.NewReader(update))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var updated models.Slot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Morning block", updated.Title)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/v1/me/slots/"+slotID, http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Gone now
	req = httptest.NewRequest(http.MethodGet, "/v1/me/slots/"+slotID, http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_PreviewRecurrence(t *testing.T) {
	router := newTestRouter()

	input := models.RecurrencePreviewRequest{
		AnchorDate:    "2025-09-01",
		Pattern:       "daily",
		DurationBound: "until_date",
		EndDate:       "2025-09-03",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/slots:preview", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var preview models.RecurrencePreview
	err := json.Unmarshal(w.Body.Bytes(), &preview)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.Count)
	assert.Equal(t, []string{"2025-09-01", "2025-09-02", "2025-09-03"}, preview.Occurrences)
}

func TestRouter_CheckConflicts(t *testing.T) {
	router := newTestRouter()

	input := models.ConflictCheckRequest{
		Date:      "2025-09-01",
		StartTime: "10:00",
		EndTime:   "11:00",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/conflicts:check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result models.ConflictCheckResult
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.False(t, result.HasConflicts)
	assert.Equal(t, "local", result.Source)
}

func TestRouter_CalendarEvents(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/me/calendar/events?from=2025-09-01&to=2025-09-07", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// Missing window is a validation error
	req = httptest.NewRequest(http.MethodGet, "/v1/me/calendar/events", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Occupancy(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/me/analysis/occupancy?weekStart=2025-09-01", http.NoBody)
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var week map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &week)
	require.NoError(t, err)
	assert.Contains(t, week, "averageOccupancyPercent")
}

func TestRouter_CreateAppointment(t *testing.T) {
	router := newTestRouter()

	input := models.AppointmentCreateRequest{
		ClientName: "J. de Vries",
		Date:       "2025-09-04",
		StartTime:  "10:00",
		EndTime:    "11:00",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/me/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))

	var appointment models.Appointment
	err := json.Unmarshal(w.Body.Bytes(), &appointment)
	require.NoError(t, err)
	assert.NotEmpty(t, appointment.ID)
	assert.Equal(t, "upcoming", appointment.Status)
}

func TestRouter_AbsenceLifecycle(t *testing.T) {
	router := newTestRouter()

	input := models.AbsenceCreateRequest{
		StartDate: "2025-09-08",
		EndDate:   "2025-09-10",
		AllDay:    true,
		Reason:    "Vacation",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/me/absences", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var absence models.Absence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &absence))
	assert.NotEmpty(t, absence.ID)

	// List
	req = httptest.NewRequest(http.MethodGet, "/v1/me/absences", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var list models.AbsenceList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/v1/me/absences/"+absence.ID, http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
