// Package api exposes the JSON surface other Surveypulse services call:
// response-recorded events, delivery history for the settings UI, and test
// deliveries. It is an internal service API, not a public one.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/surveypulse/courier/internal/logger"
	"github.com/surveypulse/courier/internal/signing"
	"github.com/surveypulse/courier/internal/webhooks"
	"github.com/surveypulse/courier/internal/worker"
)

const defaultDeliveriesLimit = 20

// Server wires the webhook service and worker into HTTP handlers.
type Server struct {
	service *webhooks.Service
	worker  *worker.Worker
}

// NewServer creates the admin API server.
func NewServer(service *webhooks.Service, w *worker.Worker) *Server {
	return &Server{service: service, worker: w}
}

// Handler builds the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events/response-recorded", s.handleResponseRecorded)
		r.Post("/events/response-comment", s.handleResponseComment)

		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Get("/deliveries", s.handleDeliveries)
			r.Post("/test-delivery", s.handleTestDelivery)
		})

		r.Post("/secrets", s.handleGenerateSecret)

		r.Get("/worker/status", s.handleWorkerStatus)
		r.Post("/worker/process", s.handleWorkerProcess)
	})

	return otelhttp.NewHandler(r, "courier-api")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type responseRecordedRequest struct {
	BusinessID string  `json:"business_id"`
	SurveyID   string  `json:"survey_id"`
	SubjectID  string  `json:"subject_id"`
	Score      int     `json:"score"`
	Comment    *string `json:"comment"`
}

func (s *Server) handleResponseRecorded(w http.ResponseWriter, r *http.Request) {
	var req responseRecordedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BusinessID == "" || req.SurveyID == "" || req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "business_id, survey_id and subject_id are required")
		return
	}
	if req.Score < 0 || req.Score > 10 {
		writeError(w, http.StatusBadRequest, "score must be between 0 and 10")
		return
	}

	jobID, err := s.service.EnqueueResponse(r.Context(), req.BusinessID, webhooks.ResponseEvent{
		SurveyID:  req.SurveyID,
		SubjectID: req.SubjectID,
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		logger.NewLogger("api").Error("enqueue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue webhook")
		return
	}

	if jobID == "" {
		// Tenant has webhooks disabled; the event is accepted and dropped.
		writeJSON(w, http.StatusAccepted, map[string]any{"enqueued": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"enqueued": true, "job_id": jobID})
}

type responseCommentRequest struct {
	BusinessID string `json:"business_id"`
	SurveyID   string `json:"survey_id"`
	SubjectID  string `json:"subject_id"`
	Comment    string `json:"comment"`
}

func (s *Server) handleResponseComment(w http.ResponseWriter, r *http.Request) {
	var req responseCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BusinessID == "" || req.SurveyID == "" || req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "business_id, survey_id and subject_id are required")
		return
	}

	updated, err := s.service.UpdateComment(r.Context(), req.BusinessID, req.SurveyID, req.SubjectID, req.Comment)
	if err != nil {
		logger.NewLogger("api").Error("comment update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")

	limit := defaultDeliveriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	jobs, err := s.service.RecentDeliveries(r.Context(), businessID, limit)
	if err != nil {
		logger.NewLogger("api").Error("deliveries lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load deliveries")
		return
	}
	if jobs == nil {
		jobs = []*webhooks.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": jobs})
}

func (s *Server) handleTestDelivery(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")

	result, err := s.service.SendTestDelivery(r.Context(), businessID)
	if errors.Is(err, webhooks.ErrNotConfigured) {
		writeError(w, http.StatusBadRequest, "business has no webhook configuration")
		return
	}
	if err != nil {
		logger.NewLogger("api").Error("test delivery failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send test delivery")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       result.Success,
		"status_code":   result.StatusCode,
		"response_body": result.Body,
	})
}

// handleGenerateSecret mints a signing secret for the settings UI, used when
// a tenant enables webhooks without bringing their own secret.
func (s *Server) handleGenerateSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := signing.GenerateSecret()
	if err != nil {
		logger.NewLogger("api").Error("secret generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"secret": secret})
}

func (s *Server) handleWorkerStatus(w http.ResponseWriter, r *http.Request) {
	st := s.worker.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":      st.Running,
		"cycle_active": st.CycleActive,
	})
}

func (s *Server) handleWorkerProcess(w http.ResponseWriter, r *http.Request) {
	// No-op if a cycle is already running. Runs detached from the request
	// so a client disconnect cannot cancel in-flight deliveries.
	go s.worker.ProcessNow(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.NewLogger("api").Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
