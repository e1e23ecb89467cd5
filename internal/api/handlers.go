// Package api provides the onboarding interview endpoint handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/intakeloop/intakeloop/internal/models"
)

// customerHeader identifies the customer; credential handling is an external
// concern, the gateway in front of this service sets the header.
const customerHeader = "X-Customer-ID"

// defaultCustomerID keeps single-tenant development setups working without a
// gateway.
const defaultCustomerID = "default"

func customerID(r *http.Request) string {
	if id := r.Header.Get(customerHeader); id != "" {
		return id
	}
	return defaultCustomerID
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// sessionHandler handles GET /onboarding/session
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	slog.Debug("sessionHandler invoked", "customerID", customerID(r))

	view, err := s.controller.CurrentSession(r.Context(), customerID(r))
	if err != nil {
		slog.Error("sessionHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}

// submitHandler handles POST /onboarding/submit
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("submitHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("submitHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, validationErr, err := s.controller.Submit(r.Context(), customerID(r), req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSessionNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("No active interview session"))
		case errors.Is(err, models.ErrQuestionNotFound), errors.Is(err, models.ErrQuestionInactive):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Question not found"))
		case errors.Is(err, models.ErrVersionConflict):
			writeJSONResponse(w, http.StatusConflict, models.Error("Session was modified concurrently, retry"))
		default:
			slog.Error("submitHandler failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process answer"))
		}
		return
	}
	if validationErr != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.APIResponse{
			Status:  string(models.APIStatusError),
			Message: validationErr.Error,
			Result:  validationErr,
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// abandonHandler handles POST /onboarding/abandon
func (s *Server) abandonHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	if err := s.controller.Abandon(r.Context(), customerID(r)); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("No active interview session"))
			return
		}
		slog.Error("abandonHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to abandon session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"ok": true}))
}

// resetHandler handles POST /onboarding/reset
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	sessionID, err := s.controller.Reset(r.Context(), customerID(r))
	if err != nil {
		slog.Error("resetHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"session_id": sessionID}))
}

// progressHandler handles GET /onboarding/progress
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	progress, err := s.controller.Progress(r.Context(), customerID(r))
	if err != nil {
		slog.Error("progressHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute progress"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(progress))
}

// transcriptHandler handles GET /onboarding/transcript
func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	session, err := s.st.GetActiveSession(customerID(r))
	if err != nil {
		slog.Error("transcriptHandler session lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load transcript"))
		return
	}
	if session == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No active interview session"))
		return
	}

	limit := parseIntParam(r, "limit", s.transcriptWindow)
	offset := parseIntParam(r, "offset", 0)
	messages, err := s.st.ListMessages(session.ID, limit, offset)
	if err != nil {
		slog.Error("transcriptHandler failed", "error", err, "sessionID", session.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load transcript"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(messages))
}

func parseIntParam(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
