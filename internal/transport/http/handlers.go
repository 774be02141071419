package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"examguard/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmissionResponse wraps a stored submission
type SubmissionResponse struct {
	Submission *domain.Submission `json:"submission"`
}

// SubmissionListResponse is the admin listing, newest first
type SubmissionListResponse struct {
	Submissions []*domain.Submission `json:"submissions"`
}

// LoginRequest is the admin login body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminSessionResponse describes the caller's admin session
type AdminSessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// QuestionsResponse lists questions without their answers
type QuestionsResponse struct {
	Questions []domain.QuestionView `json:"questions"`
	Total     int                   `json:"total"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveSessions     int `json:"activeSessions"`
	InProgressSessions int `json:"inProgressSessions"`
	AdminSessions      int `json:"adminSessions"`
}

// handleSubmitExam handles POST /api/exams
func (s *Server) handleSubmitExam(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBytes))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body")
		return
	}

	in, err := domain.DecodeSubmissionInput(body)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	sub, err := s.store.Append(r.Context(), in)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.logger.Info("submission stored",
		"submissionId", sub.ID,
		"studentName", sub.StudentName,
		"score", sub.Score,
		"warningCount", sub.WarningCount,
	)

	s.sendJSON(w, http.StatusCreated, &SubmissionResponse{Submission: sub})
}

// handleListExams handles GET /api/exams
func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	submissions, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list submissions", "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch submissions")
		return
	}

	s.sendSuccess(w, &SubmissionListResponse{Submissions: submissions})
}

// handleAdminLogin handles POST /api/admin/login
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSubmissionBytes)).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if err := s.creds.Check(req.Username, req.Password); err != nil {
		s.logger.Warn("admin login rejected", "username", req.Username)
		s.sendError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}

	sess := s.admins.Create(req.Username)

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Admin.CookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sess.MaxAge(),
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	s.sendSuccess(w, &AdminSessionResponse{Authenticated: true})
}

// handleAdminLogout handles POST /api/admin/logout
func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.config.Admin.CookieName); err == nil {
		s.admins.Revoke(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Admin.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	s.sendSuccess(w, &AdminSessionResponse{Authenticated: false})
}

// handleAdminSession handles GET /api/admin/session
func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &AdminSessionResponse{Authenticated: true})
}

// handleQuestions handles GET /api/questions
func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.hub.Questions()
	s.sendSuccess(w, &QuestionsResponse{
		Questions: questions.Views(),
		Total:     questions.Len(),
	})
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveSessions:     s.hub.GetSessionCount(),
		InProgressSessions: s.hub.GetInProgressCount(),
		AdminSessions:      s.admins.Count(),
	})
}

// sendDomainError maps domain errors to HTTP errors
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStudentNameRequired):
		s.sendError(w, http.StatusBadRequest, "STUDENT_NAME_REQUIRED", err.Error())
	case errors.Is(err, domain.ErrInvalidSubmission):
		s.sendError(w, http.StatusBadRequest, "INVALID_SUBMISSION", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.sendJSON(w, http.StatusOK, data)
}

// sendJSON sends a successful JSON response with the given status
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
