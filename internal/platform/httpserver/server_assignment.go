package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	assignmenterrors "chorus/contexts/moderation-core/assignment-service/domain/errors"
	assignmenthttp "chorus/contexts/moderation-core/assignment-service/transport/http"
)

func (s *Server) handleLease(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeAssignmentError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	locale := requestLocale(r)
	if locale == "" {
		writeAssignmentError(w, http.StatusBadRequest, "missing_locale", "X-User-Locale header is required")
		return
	}

	var req assignmenthttp.LeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAssignmentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.assignment.Handler.LeaseHandler(r.Context(), userID, locale, req)
	if err != nil {
		writeAssignmentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeAssignmentError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req assignmenthttp.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAssignmentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.assignment.Handler.ReleaseHandler(r.Context(), userID, req); err != nil {
		writeAssignmentDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeAssignmentDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assignmenterrors.ErrAssignmentNotFound):
		writeAssignmentError(w, http.StatusNotFound, "assignment_not_found", err.Error())
	case errors.Is(err, assignmenterrors.ErrUnknownWorkType):
		writeAssignmentError(w, http.StatusBadRequest, "unknown_work_type", err.Error())
	case errors.Is(err, assignmenterrors.ErrInvalidLeaseInput):
		writeAssignmentError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, assignmenterrors.ErrConflict):
		writeAssignmentError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeAssignmentError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeAssignmentError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, assignmenthttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
