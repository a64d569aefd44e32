package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/chat"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
)

const maxBodyBytes = 1 << 16

func (s *Server) findVillage(id string) (domain.Village, bool) {
	for _, v := range s.deps.Store.Villages().Villages {
		if v.ID == id {
			return v, true
		}
	}
	return domain.Village{}, false
}

func (s *Server) handleInsightState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Insight.State())
}

type openInsightRequest struct {
	VillageID string `json:"village_id"`
	Language  string `json:"language"`
}

// handleInsightOpen selects a village, changes the language, or both. The
// advisory resolves in the background; poll GET /api/insight for the result.
func (s *Server) handleInsightOpen(w http.ResponseWriter, r *http.Request) {
	var req openInsightRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lang := s.deps.Insight.State().Language
	if req.Language != "" {
		var err error
		if lang, err = domain.ParseLanguage(req.Language); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if req.VillageID == "" {
		if req.Language == "" {
			writeError(w, http.StatusBadRequest, "village_id or language is required")
			return
		}
		s.deps.Insight.SetLanguage(lang)
	} else {
		v, ok := s.findVillage(req.VillageID)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown village")
			return
		}
		s.deps.Insight.Open(v, lang)
	}
	writeJSON(w, http.StatusAccepted, s.deps.Insight.State())
}

func (s *Server) handleInsightClose(w http.ResponseWriter, _ *http.Request) {
	s.deps.Insight.Close()
	writeJSON(w, http.StatusOK, s.deps.Insight.State())
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.findVillage(id); !ok {
		writeError(w, http.StatusNotFound, "unknown village")
		return
	}

	days, err := s.deps.Forecasts.FetchForecast(r.Context(), id)
	if err != nil {
		s.logger.Warn("forecast fetch failed", "village_id", id, "error", err)
		writeError(w, http.StatusBadGateway, backend.UserMessage(err, backend.MsgForecastUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"village_id": id, "forecast": days})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": s.deps.Chat.History()})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msgs, err := s.deps.Chat.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
	}
}
