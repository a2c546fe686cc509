package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/opsline/runbookd/internal/indexer"
	"github.com/opsline/runbookd/internal/models"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	response, err := s.engine.Answer(r.Context(), &req)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

// webhookEvent is the notification posted by the wiki when a page changes.
type webhookEvent struct {
	Event string `json:"event"`
	Page  struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"page"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Info("webhook received",
		zap.String("event", event.Event),
		zap.String("page_id", event.Page.ID))

	switch event.Event {
	case "page_removed":
		if event.Page.ID == "" {
			s.respondError(w, http.StatusBadRequest, "page id is required")
			return
		}
		if err := s.pipeline.DeleteDocument(r.Context(), event.Page.ID); err != nil {
			s.logger.Error("webhook deletion failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "removed", "page_id": event.Page.ID})
	case "page_created", "page_updated":
		if s.reindex == nil {
			s.respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		// The export is regenerated out of band, so a page change means a
		// full reload. Detached from the request context: the reindex
		// outlives this HTTP exchange.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := s.reindex(ctx); err != nil {
				if errors.Is(err, indexer.ErrIndexingInProgress) {
					s.logger.Info("webhook reindex skipped, another run is active")
					return
				}
				s.logger.Error("webhook reindex failed", zap.Error(err))
			}
		}()
		s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "reindex_started"})
	default:
		s.respondError(w, http.StatusBadRequest, "unknown event: "+event.Event)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reason": err.Error()})
		return
	}
	if !stats.IndexAvailable {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reason": "vector index unavailable"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
