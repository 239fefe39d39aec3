package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MimeLyc/polyglot-cms/internal/content"
	"github.com/MimeLyc/polyglot-cms/internal/service"
	"github.com/MimeLyc/polyglot-cms/internal/translate"
)

func (s *Server) handleContents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.repo.ListContentItems(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req service.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		result, err := s.orchestrator.CreateWithTranslations(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type contentDetailResponse struct {
	Item         content.ContentItem   `json:"item"`
	Translations []content.Translation `json:"translations"`
}

func (s *Server) handleContentByID(w http.ResponseWriter, r *http.Request) {
	// /api/contents/{id}
	itemID := strings.TrimPrefix(r.URL.Path, "/api/contents/")
	itemID = strings.TrimSuffix(itemID, "/")
	if decoded, err := url.PathUnescape(itemID); err == nil {
		itemID = decoded
	}
	if itemID == "" || strings.Contains(itemID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, ok, err := s.repo.GetContentItem(r.Context(), itemID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "content item not found")
			return
		}
		translations, err := s.repo.ListTranslations(r.Context(), itemID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, contentDetailResponse{Item: item, Translations: translations})
	case http.MethodPut:
		var req service.UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		req.ItemID = itemID
		result, err := s.orchestrator.UpdateWithTranslations(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusNotImplemented, "task queue is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dispatched, err := s.orchestrator.Backfill(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"dispatched": dispatched,
	})
}

// writeServiceError maps orchestrator errors onto HTTP statuses: missing
// item to 404, missing source to 400, an exhausted translation backend to
// 502, anything else to 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var backendErr *translate.BackendError
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, content.ErrNoSource), errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &backendErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
