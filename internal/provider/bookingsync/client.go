// Package bookingsync provides a client for the external booking-sync
// provider: the authoritative conflict checker and the push side of external
// calendar sync.
package bookingsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/provider/resilience"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

const (
	// DefaultBaseURL is the base URL for the booking-sync API.
	DefaultBaseURL = "https://sync.clinicdesk.nl/api"

	// ProviderName identifies this provider.
	ProviderName = "bookingsync"
)

// ClientConfig holds configuration for the booking-sync client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey authenticates requests to the provider.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 5s). Kept short: every
	// failure here falls back to the local conflict engine, so a slow
	// provider must not stall authoring.
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a booking-sync API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

// NewClient creates a new booking-sync client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// API request/response types (booking-sync wire format).

type conflictCheckRequest struct {
	TherapistID string `json:"therapist_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location,omitempty"`
	ExcludeID   string `json:"exclude_id,omitempty"`
}

type conflictCheckResponse struct {
	Conflicts []conflictData `json:"conflicts"`
}

type conflictData struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Date      string `json:"date,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location,omitempty"`
	Title     string `json:"title,omitempty"`
}

// SyncEvent is one calendar entry pushed to the external provider.
type SyncEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Date      string `json:"date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Title     string `json:"title,omitempty"`
	Location  string `json:"location,omitempty"`
}

// SyncResult reports what the provider accepted.
type SyncResult struct {
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	SyncID   string `json:"sync_id"`
}

// CheckConflicts asks the provider whether the candidate clashes with
// bookings it knows about (including ones made through other channels).
// The provider contract uses the same half-open overlap semantics as the
// local engine, so a remote answer and a local fallback answer never
// disagree for the same inputs.
func (c *Client) CheckConflicts(ctx context.Context, therapistID string, candidate schedule.Candidate) ([]schedule.Booking, error) {
	payload := conflictCheckRequest{
		TherapistID: therapistID,
		Date:        candidate.Date,
		StartTime:   candidate.StartTime,
		EndTime:     candidate.EndTime,
		Location:    candidate.Location,
		ExcludeID:   candidate.ExcludeID,
	}

	var result conflictCheckResponse
	if err := c.post(ctx, "/v1/conflicts/check", payload, &result); err != nil {
		return nil, err
	}

	bookings := make([]schedule.Booking, 0, len(result.Conflicts))
	for _, conflict := range result.Conflicts {
		bookings = append(bookings, schedule.Booking{
			ID:        conflict.ID,
			Kind:      schedule.BookingKind(conflict.Kind),
			Date:      conflict.Date,
			StartDate: conflict.StartDate,
			EndDate:   conflict.EndDate,
			StartTime: conflict.StartTime,
			EndTime:   conflict.EndTime,
			Location:  conflict.Location,
			Title:     conflict.Title,
		})
	}
	return bookings, nil
}

// PushEvents uploads calendar entries to the external provider. Sync
// orchestration (what to push, when, retry bookkeeping) lives with the
// caller; this is the wire interface only.
func (c *Client) PushEvents(ctx context.Context, therapistID string, events []SyncEvent) (*SyncResult, error) {
	payload := struct {
		TherapistID string      `json:"therapist_id"`
		Events      []SyncEvent `json:"events"`
	}{
		TherapistID: therapistID,
		Events:      events,
	}

	var result SyncResult
	if err := c.post(ctx, "/v1/calendar/events", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post executes a JSON POST against the provider.
func (c *Client) post(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Ensure Client satisfies the service's checker contract.
var _ schedule.RemoteConflictChecker = (*Client)(nil)
