package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"chorus/contexts/moderation-core/consensus-engine/adapters/memory"
	"chorus/contexts/moderation-core/consensus-engine/application/commands"
	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	domainerrors "chorus/contexts/moderation-core/consensus-engine/domain/errors"
)

func newResolveUseCase(store *memory.Store) commands.ResolveUseCase {
	return commands.ResolveUseCase{
		Items:  store,
		Tx:     store,
		Outbox: store,
		Clock:  fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
		IDGen:  store,
	}
}

func seedConflictedTranscription(store *memory.Store) {
	store.SeedItem(entities.Validatable{
		ItemID:       "transcript-1",
		Kind:         entities.ItemKindTranscription,
		Locale:       "akan",
		SubmitterID:  "submitter-1",
		ParentItemID: "audio-1",
		Status:       entities.ItemStatusConflict,
		Text:         "good morning",
	})
}

func TestResolveConflictAcceptsWithCorrectedValue(t *testing.T) {
	store := memory.NewStore(nil)
	seedConflictedTranscription(store)
	uc := newResolveUseCase(store)

	err := uc.ResolveConflict(context.Background(), commands.ResolveConflictCommand{
		ItemID:         "transcript-1",
		ResolverID:     "resolver-1",
		CorrectedValue: "good morning everyone",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	item, err := store.GetItem(context.Background(), "transcript-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != entities.ItemStatusAccepted {
		t.Fatalf("expected accepted after resolution, got %s", item.Status)
	}
	if item.CorrectedValue != "good morning everyone" || item.Text != "good morning everyone" {
		t.Fatalf("corrected value not applied: %+v", item)
	}
	if item.ConflictResolvedBy != "resolver-1" {
		t.Fatalf("expected resolver-1, got %s", item.ConflictResolvedBy)
	}

	messages, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(messages) != 1 || messages[0].EventType != "item.resolved" {
		t.Fatalf("expected one item.resolved event, got %+v", messages)
	}
}

func TestResolveConflictFirstResolverWins(t *testing.T) {
	store := memory.NewStore(nil)
	seedConflictedTranscription(store)
	uc := newResolveUseCase(store)

	if err := uc.ResolveConflict(context.Background(), commands.ResolveConflictCommand{
		ItemID:         "transcript-1",
		ResolverID:     "resolver-1",
		CorrectedValue: "first value",
	}); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	// Retry by the winner is idempotent.
	if err := uc.ResolveConflict(context.Background(), commands.ResolveConflictCommand{
		ItemID:         "transcript-1",
		ResolverID:     "resolver-1",
		CorrectedValue: "first value",
	}); err != nil {
		t.Fatalf("winner retry failed: %v", err)
	}

	err := uc.ResolveConflict(context.Background(), commands.ResolveConflictCommand{
		ItemID:         "transcript-1",
		ResolverID:     "resolver-2",
		CorrectedValue: "second value",
	})
	if !errors.Is(err, domainerrors.ErrAlreadyResolved) {
		t.Fatalf("expected already resolved error, got %v", err)
	}

	item, err := store.GetItem(context.Background(), "transcript-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.CorrectedValue != "first value" || item.ConflictResolvedBy != "resolver-1" {
		t.Fatalf("losing resolver overwrote the resolution: %+v", item)
	}
}

func TestResolveConflictRequiresConflictStatus(t *testing.T) {
	store := memory.NewStore(nil)
	store.SeedItem(entities.Validatable{
		ItemID:      "audio-1",
		Kind:        entities.ItemKindAudio,
		Locale:      "akan",
		SubmitterID: "submitter-1",
		Status:      entities.ItemStatusPending,
	})
	uc := newResolveUseCase(store)

	err := uc.ResolveConflict(context.Background(), commands.ResolveConflictCommand{
		ItemID:         "audio-1",
		ResolverID:     "resolver-1",
		CorrectedValue: "value",
	})
	if !errors.Is(err, domainerrors.ErrNotInConflict) {
		t.Fatalf("expected not-in-conflict error, got %v", err)
	}
}

func TestResolveConflictValidatesInput(t *testing.T) {
	uc := newResolveUseCase(memory.NewStore(nil))
	err := uc.ResolveConflict(context.Background(), commands.ResolveConflictCommand{
		ItemID:         "transcript-1",
		ResolverID:     "resolver-1",
		CorrectedValue: "   ",
	})
	if !errors.Is(err, domainerrors.ErrInvalidResolution) {
		t.Fatalf("expected invalid resolution error, got %v", err)
	}
}
