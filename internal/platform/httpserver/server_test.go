package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	settlementservice "chorus/contexts/finance-core/settlement-service"
	queueadapter "chorus/contexts/finance-core/settlement-service/adapters/queue"
	settlemententities "chorus/contexts/finance-core/settlement-service/domain/entities"
	settlementports "chorus/contexts/finance-core/settlement-service/ports"
	assignmentservice "chorus/contexts/moderation-core/assignment-service"
	assignmententities "chorus/contexts/moderation-core/assignment-service/domain/entities"
	consensusengine "chorus/contexts/moderation-core/consensus-engine"
	consensusentities "chorus/contexts/moderation-core/consensus-engine/domain/entities"
	consensusports "chorus/contexts/moderation-core/consensus-engine/ports"
	"chorus/internal/platform/taskqueue"
)

type testConsensusConfig struct{}

func (testConsensusConfig) Snapshot(context.Context) consensusports.ConfigSnapshot {
	return consensusports.ConfigSnapshot{
		RequiredQuorum: map[consensusentities.ItemKind]int{
			consensusentities.ItemKindImage:         2,
			consensusentities.ItemKindAudio:         2,
			consensusentities.ItemKindTranscription: 2,
		},
	}
}

type testAssignmentConfig struct{}

func (testAssignmentConfig) LeaseTTL(assignmententities.WorkType) time.Duration {
	return 30 * time.Minute
}

func (testAssignmentConfig) LeaseBatchSize() int {
	return 5
}

type testSettlementConfig struct{}

func (testSettlementConfig) Snapshot(context.Context) settlementports.ConfigSnapshot {
	return settlementports.ConfigSnapshot{
		RecheckRounds:  3,
		RecheckWait:    time.Second,
		MinPayoutMinor: 1000,
	}
}

type acceptingProvider struct{}

func (acceptingProvider) Collect(context.Context, settlementports.PaymentRequest) (settlementports.ProviderResponse, error) {
	return settlementports.ProviderResponse{Code: "000", Message: "ok"}, nil
}

func (acceptingProvider) Disburse(context.Context, settlementports.PaymentRequest) (settlementports.ProviderResponse, error) {
	return settlementports.ProviderResponse{Code: "000", Message: "ok"}, nil
}

func (acceptingProvider) CheckStatus(context.Context, string) (settlementports.ProviderResponse, error) {
	return settlementports.ProviderResponse{Code: "000", Message: "ok"}, nil
}

func newTestServer() *Server {
	logger := slog.Default()
	consensus := consensusengine.NewInMemoryModule([]consensusentities.Validatable{
		{
			ItemID:      "item-1",
			Kind:        consensusentities.ItemKindImage,
			Locale:      "rw",
			SubmitterID: "submitter-1",
			Status:      consensusentities.ItemStatusPending,
			Category:    "market",
		},
	}, testConsensusConfig{}, logger)
	assignment := assignmentservice.NewInMemoryModule(testAssignmentConfig{}, logger)
	queue := taskqueue.NewQueue(logger)
	settlement := settlementservice.NewInMemoryModule(
		acceptingProvider{},
		queueadapter.Scheduler{Queue: queue},
		testSettlementConfig{},
		queue,
		logger,
	)
	return New(consensus, assignment, settlement, logger, ":0")
}

func TestRecordVoteRequiresUser(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/items/item-1/votes", bytes.NewReader([]byte(`{"judgement":"accept"}`)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRecordVoteReturnsItemStatus(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/items/item-1/votes", bytes.NewReader([]byte(`{"judgement":"accept"}`)))
	req.Header.Set("X-User-Id", "validator-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["item_status"] != "pending" {
		t.Fatalf("one vote of two should keep the item pending, got %v", body["item_status"])
	}
}

func TestRecordVoteRejectsSubmitter(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/items/item-1/votes", bytes.NewReader([]byte(`{"judgement":"accept"}`)))
	req.Header.Set("X-User-Id", "submitter-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestResolveConflictRejectsNonConflictedItem(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/items/item-1/resolve", bytes.NewReader([]byte(`{"corrected_value":"market"}`)))
	req.Header.Set("X-User-Id", "resolver-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLeaseRequiresLocale(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/assignments/lease", bytes.NewReader([]byte(`{"work_type":"validation","item_kind":"image"}`)))
	req.Header.Set("X-User-Id", "worker-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLeaseRejectsUnknownWorkType(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/assignments/lease", bytes.NewReader([]byte(`{"work_type":"review","item_kind":"image"}`)))
	req.Header.Set("X-User-Id", "worker-1")
	req.Header.Set("X-User-Locale", "rw")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPayoutRejectsInsufficientBalance(t *testing.T) {
	server := newTestServer()
	server.settlement.Store.SeedWallet(settlemententities.Wallet{UserID: "user-1", AccruedMinor: 2000})
	req := httptest.NewRequest(http.MethodPost, "/api/payouts", bytes.NewReader([]byte(`{
		"amount_minor": 500000,
		"phone_number": "0788000001",
		"network": "mtn"
	}`)))
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestWalletLookupUnknownUser(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/wallets/ghost", nil)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestProviderCallbackRequiresTransactionID(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewReader([]byte(`{"status_code":"000"}`)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}
