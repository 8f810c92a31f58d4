package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	consensuserrors "chorus/contexts/moderation-core/consensus-engine/domain/errors"
	consensushttp "chorus/contexts/moderation-core/consensus-engine/transport/http"
)

func (s *Server) handleListPendingItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if limitRaw := query.Get("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeConsensusError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.consensus.Handler.PendingItemsHandler(
		r.Context(),
		query.Get("kind"),
		query.Get("locale"),
		limit,
	)
	if err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleItemProgress(w http.ResponseWriter, r *http.Request) {
	resp, err := s.consensus.Handler.ItemProgressHandler(r.Context(), r.PathValue("item_id"))
	if err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordVote(w http.ResponseWriter, r *http.Request) {
	validatorID := requestUserID(r)
	if validatorID == "" {
		writeConsensusError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req consensushttp.RecordVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeConsensusError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.consensus.Handler.RecordVoteHandler(r.Context(), r.PathValue("item_id"), validatorID, req)
	if err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArchiveVotes(w http.ResponseWriter, r *http.Request) {
	operatorID := requestUserID(r)
	if operatorID == "" {
		writeConsensusError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	req := consensushttp.ArchiveVotesRequest{OperatorID: operatorID}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeConsensusError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
		if req.OperatorID == "" {
			req.OperatorID = operatorID
		}
	}

	if err := s.consensus.Handler.ArchiveVotesHandler(r.Context(), r.PathValue("item_id"), req); err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	resolverID := requestUserID(r)
	if resolverID == "" {
		writeConsensusError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req consensushttp.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeConsensusError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.consensus.Handler.ResolveConflictHandler(r.Context(), r.PathValue("item_id"), resolverID, req); err != nil {
		writeConsensusDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeConsensusDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consensuserrors.ErrItemNotFound):
		writeConsensusError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, consensuserrors.ErrItemDeleted):
		writeConsensusError(w, http.StatusGone, "item_deleted", err.Error())
	case errors.Is(err, consensuserrors.ErrSelfValidation):
		writeConsensusError(w, http.StatusForbidden, "self_validation", err.Error())
	case errors.Is(err, consensuserrors.ErrDuplicateVote):
		writeConsensusError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, consensuserrors.ErrVoteQuotaExceeded):
		writeConsensusError(w, http.StatusTooManyRequests, "vote_quota_exceeded", err.Error())
	case errors.Is(err, consensuserrors.ErrItemDecided):
		writeConsensusError(w, http.StatusConflict, "item_decided", err.Error())
	case errors.Is(err, consensuserrors.ErrNotInConflict):
		writeConsensusError(w, http.StatusConflict, "not_in_conflict", err.Error())
	case errors.Is(err, consensuserrors.ErrAlreadyResolved):
		writeConsensusError(w, http.StatusConflict, "already_resolved", err.Error())
	case errors.Is(err, consensuserrors.ErrConflict):
		writeConsensusError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, consensuserrors.ErrInvalidVoteInput),
		errors.Is(err, consensuserrors.ErrInvalidResolution):
		writeConsensusError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeConsensusError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeConsensusError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, consensushttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
