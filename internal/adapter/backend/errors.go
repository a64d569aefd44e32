package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Fallback messages shown when a failure carries no backend detail.
const (
	MsgVillagesUnavailable   = "Failed to fetch village data. Is the backend running?"
	MsgAllocationUnavailable = "Failed to fetch tanker allocation plan."
	MsgInsightUnavailable    = "Failed to generate insight. Please try again."
	MsgForecastUnavailable   = "Failed to load forecast data from OpenWeather API."
	MsgChatUnavailable       = "⚠️ **System Error**: Lost connection to the AI Insight Engine. Please try again shortly."
	MsgTimedOut              = "The request timed out. Please try again."
)

// APIError is a non-2xx backend response. Detail is the backend's
// human-readable message, surfaced to users verbatim.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// UserMessage turns any client error into the text shown to the user.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return MsgTimedOut
	}
	return fallback
}

// parseAPIError extracts detail from a FastAPI-style error body. The detail
// may be a string or a list of validation errors. A body without a JSON
// detail yields an empty Detail so callers fall back to their own message.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return &APIError{Status: status}
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		return &APIError{Status: status, Detail: detail}
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return &APIError{Status: status, Detail: strings.Join(msgs, "; ")}
	}
	return &APIError{Status: status, Detail: string(payload.Detail)}
}
