// Package backend is the HTTP client for the drought-monitoring backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/go-playground/validator/v10"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 << 10

// Timeouts bounds each call kind. A call that exceeds its bound fails with
// context.DeadlineExceeded.
type Timeouts struct {
	Request time.Duration
	Insight time.Duration
	Chat    time.Duration
}

// Client calls the backend's /api endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeouts   Timeouts
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend client rooted at baseURL (without the /api prefix).
func NewClient(baseURL string, timeouts Timeouts, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL + "/api",
		httpClient: &http.Client{},
		timeouts:   timeouts,
		validate:   validator.New(),
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchVillages returns the full village status list. Records that fail
// validation are dropped; the rest are returned in backend order.
func (c *Client) FetchVillages(ctx context.Context) ([]domain.Village, error) {
	var raw []domain.Village
	if err := c.getJSON(ctx, "/villages/status", nil, "villages_status", c.timeouts.Request, &raw); err != nil {
		return nil, err
	}

	villages := make([]domain.Village, 0, len(raw))
	for _, v := range raw {
		if err := c.validate.Struct(v); err != nil {
			c.logger.Warn("dropping invalid village record", "id", v.ID, "error", err)
			c.metrics.InvalidRecords.WithLabelValues("villages").Inc()
			continue
		}
		villages = append(villages, v)
	}
	return villages, nil
}

// FetchAllocation returns the tanker allocation plan.
func (c *Client) FetchAllocation(ctx context.Context) (domain.AllocationPlan, error) {
	var plan domain.AllocationPlan
	if err := c.getJSON(ctx, "/tankers/allocation", nil, "tankers_allocation", c.timeouts.Request, &plan); err != nil {
		return domain.AllocationPlan{}, err
	}

	entries := make([]domain.AllocationEntry, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		if err := c.validate.Struct(a); err != nil {
			c.logger.Warn("dropping invalid allocation entry", "village_id", a.VillageID, "error", err)
			c.metrics.InvalidRecords.WithLabelValues("allocation").Inc()
			continue
		}
		entries = append(entries, a)
	}
	plan.Allocations = entries
	return plan, nil
}

// FetchInsight asks the backend for a village advisory in lang. Generation
// may take several seconds.
func (c *Client) FetchInsight(ctx context.Context, villageID string, lang domain.Language) (string, error) {
	var resp struct {
		Insight string `json:"insight"`
	}
	params := url.Values{"lang": {string(lang)}}
	path := "/villages/" + url.PathEscape(villageID) + "/insight"
	if err := c.getJSON(ctx, path, params, "village_insight", c.timeouts.Insight, &resp); err != nil {
		return "", err
	}
	return resp.Insight, nil
}

// FetchForecast returns the multi-day forecast for a village.
func (c *Client) FetchForecast(ctx context.Context, villageID string) ([]domain.DayForecast, error) {
	var resp struct {
		Forecast []domain.DayForecast `json:"forecast"`
	}
	path := "/villages/" + url.PathEscape(villageID) + "/forecast"
	if err := c.getJSON(ctx, path, nil, "village_forecast", c.timeouts.Request, &resp); err != nil {
		return nil, err
	}
	if resp.Forecast == nil {
		return []domain.DayForecast{}, nil
	}
	return resp.Forecast, nil
}

// Chat sends a conversation window and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	body, err := json.Marshal(map[string]any{"messages": messages})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/chat", body, "chat", c.timeouts.Chat, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, endpoint string, timeout time.Duration, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, endpoint, timeout, out)
}

func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, endpoint string, timeout time.Duration, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
