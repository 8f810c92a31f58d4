package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	settlementservice "chorus/contexts/finance-core/settlement-service"
	assignmentservice "chorus/contexts/moderation-core/assignment-service"
	consensusengine "chorus/contexts/moderation-core/consensus-engine"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "chorus/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	consensus  consensusengine.Module
	assignment assignmentservice.Module
	settlement settlementservice.Module
}

func New(
	consensus consensusengine.Module,
	assignment assignmentservice.Module,
	settlement settlementservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		consensus:  consensus,
		assignment: assignment,
		settlement: settlement,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /api/items", s.handleListPendingItems)
	s.mux.HandleFunc("GET /api/items/{item_id}/progress", s.handleItemProgress)
	s.mux.HandleFunc("POST /api/items/{item_id}/votes", s.handleRecordVote)
	s.mux.HandleFunc("POST /api/items/{item_id}/votes/archive", s.handleArchiveVotes)
	s.mux.HandleFunc("POST /api/items/{item_id}/resolve", s.handleResolveConflict)

	s.mux.HandleFunc("POST /api/assignments/lease", s.handleLease)
	s.mux.HandleFunc("POST /api/assignments/release", s.handleRelease)

	s.mux.HandleFunc("POST /api/payouts", s.handleRequestPayout)
	s.mux.HandleFunc("POST /api/deposits", s.handleCreateDeposit)
	s.mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	s.mux.HandleFunc("GET /api/transactions/{transaction_id}", s.handleGetTransaction)
	s.mux.HandleFunc("POST /api/transactions/{transaction_id}/retry", s.handleRetryTransaction)
	s.mux.HandleFunc("GET /api/wallets/{user_id}", s.handleGetWallet)
	s.mux.HandleFunc("POST /api/payments/callback", s.handleProviderCallback)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requestUserID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

func requestLocale(r *http.Request) string {
	return r.Header.Get("X-User-Locale")
}
