package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	settlementerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	settlementhttp "chorus/contexts/finance-core/settlement-service/transport/http"
)

func (s *Server) handleRequestPayout(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeSettlementError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req settlementhttp.PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.settlement.Handler.RequestPayoutHandler(r.Context(), userID, req)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeSettlementError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req settlementhttp.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.settlement.Handler.CreateDepositHandler(r.Context(), userID, req)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeSettlementError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	limit := 0
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeSettlementError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.settlement.Handler.ListTransactionsHandler(r.Context(), userID, limit)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.GetTransactionHandler(r.Context(), r.PathValue("transaction_id"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetryTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.RetryTransactionHandler(r.Context(), r.PathValue("transaction_id"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settlement.Handler.GetWalletHandler(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	var req settlementhttp.ProviderCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.settlement.Handler.ProviderCallbackHandler(r.Context(), req); err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSettlementDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlementerrors.ErrTransactionNotFound),
		errors.Is(err, settlementerrors.ErrWalletNotFound):
		writeSettlementError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrInsufficientBalance):
		writeSettlementError(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error())
	case errors.Is(err, settlementerrors.ErrAlreadySettled),
		errors.Is(err, settlementerrors.ErrConflict):
		writeSettlementError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, settlementerrors.ErrProviderUnavailable):
		writeSettlementError(w, http.StatusBadGateway, "provider_unavailable", err.Error())
	case errors.Is(err, settlementerrors.ErrProviderResponseInvalid):
		writeSettlementError(w, http.StatusBadGateway, "provider_response_invalid", err.Error())
	case errors.Is(err, settlementerrors.ErrInvalidTransactionInput):
		writeSettlementError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeSettlementError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSettlementError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, settlementhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
