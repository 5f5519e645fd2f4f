package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

const readyCheckTimeout = 2 * time.Second

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"unsupported file type"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the configured backing stores
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unavailable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := s.checks[name].Ping(ctx)
		cancel()
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Report endpoints

// handleUploadURL godoc
// @Summary      Create upload URL
// @Description  Issues a short-lived write grant for uploading a report directly to blob storage
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.UploadURLRequest  true  "File name and content type"
// @Success      200      {object}  domain.UploadURLResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request or unsupported file type"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Router       /reports/upload-url [post]
func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req domain.UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.reportService.UploadURL(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleAnalyze godoc
// @Summary      Analyze report
// @Description  Extracts an uploaded report and interprets it on the caller's conversation thread
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.AnalyzeRequest  true  "Uploaded blob"
// @Success      200      {object}  domain.AnalyzeResponse
// @Failure      400      {object}  ErrorResponse  "Invalid blob URL or unsupported file type"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      502      {object}  ErrorResponse  "Extraction or agent run failed"
// @Router       /reports/analyze [post]
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.reportService.Analyze(r.Context(), authCtx.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Chat endpoints

// handleChat godoc
// @Summary      Chat
// @Description  Sends a follow-up message on the caller's thread and returns the agent's reply
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.ChatRequest  true  "User message"
// @Success      200      {object}  domain.ChatReply
// @Failure      400      {object}  ErrorResponse  "Empty message"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      502      {object}  ErrorResponse  "Agent run failed"
// @Router       /chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.chatService.Chat(r.Context(), authCtx.UserID, req.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// handleMessages godoc
// @Summary      List messages
// @Description  Returns the caller's conversation history, oldest first
// @Tags         Chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.MessagesResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /messages [get]
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	msgs, err := s.chatService.Messages(r.Context(), authCtx.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := domain.MessagesResponse{Messages: make([]domain.MessageItem, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, domain.MessageItem{Role: m.Role.Title(), Text: m.Text})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Helper functions

// statusForError maps a service error to a status code and client message
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusBadRequest, domain.ErrUnsupportedMedia.Error()
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidURL):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrExtraction), errors.Is(err, domain.ErrAgentRun):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError, "service is not configured"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
