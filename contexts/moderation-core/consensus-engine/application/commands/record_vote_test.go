package commands_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chorus/contexts/moderation-core/consensus-engine/adapters/memory"
	"chorus/contexts/moderation-core/consensus-engine/application/commands"
	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
	domainerrors "chorus/contexts/moderation-core/consensus-engine/domain/errors"
	"chorus/contexts/moderation-core/consensus-engine/ports"
)

type staticConfig struct {
	snapshot ports.ConfigSnapshot
}

func (c staticConfig) Snapshot(_ context.Context) ports.ConfigSnapshot {
	return c.snapshot
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newVoteUseCase(store *memory.Store, quorum int) commands.VoteUseCase {
	return commands.VoteUseCase{
		Items:          store,
		Validations:    store,
		Transcriptions: store,
		Tx:             store,
		Config: staticConfig{snapshot: ports.ConfigSnapshot{
			RequiredQuorum: map[entities.ItemKind]int{
				entities.ItemKindImage:         quorum,
				entities.ItemKindAudio:         quorum,
				entities.ItemKindTranscription: quorum,
			},
		}},
		Outbox: store,
		Clock:  fixedClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)},
		IDGen:  store,
	}
}

func seedAudioItem(store *memory.Store, itemID string, submitterID string) {
	store.SeedItem(entities.Validatable{
		ItemID:      itemID,
		Kind:        entities.ItemKindAudio,
		Locale:      "akan",
		SubmitterID: submitterID,
		Status:      entities.ItemStatusPending,
		CreatedAt:   time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC),
	})
}

func TestRecordVoteUnanimousAcceptReachesQuorum(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	uc := newVoteUseCase(store, 3)

	for i, validator := range []string{"validator-1", "validator-2"} {
		result, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
			ItemID:      "audio-1",
			ValidatorID: validator,
			Judgement:   entities.JudgementAccept,
		})
		if err != nil {
			t.Fatalf("vote %d failed: %v", i+1, err)
		}
		if result.Status != entities.ItemStatusPending {
			t.Fatalf("expected pending below quorum, got %s", result.Status)
		}
	}

	result, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-3",
		Judgement:   entities.JudgementAccept,
	})
	if err != nil {
		t.Fatalf("quorum vote failed: %v", err)
	}
	if result.Status != entities.ItemStatusAccepted {
		t.Fatalf("expected accepted at quorum, got %s", result.Status)
	}

	item, err := store.GetItem(context.Background(), "audio-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.ActiveVoteCount != 3 {
		t.Fatalf("expected 3 active votes, got %d", item.ActiveVoteCount)
	}

	messages, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(messages) != 1 || messages[0].EventType != "item.accepted" {
		t.Fatalf("expected one item.accepted event, got %+v", messages)
	}
}

func TestRecordVoteUnanimousRejectReachesQuorum(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	uc := newVoteUseCase(store, 2)

	for _, validator := range []string{"validator-1", "validator-2"} {
		if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
			ItemID:      "audio-1",
			ValidatorID: validator,
			Judgement:   entities.JudgementReject,
		}); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}
	item, err := store.GetItem(context.Background(), "audio-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != entities.ItemStatusRejected {
		t.Fatalf("expected rejected, got %s", item.Status)
	}
}

func TestRecordVoteMixedJudgementsConflict(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	uc := newVoteUseCase(store, 2)

	if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-1",
		Judgement:   entities.JudgementAccept,
	}); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	result, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-2",
		Judgement:   entities.JudgementReject,
	})
	if err != nil {
		t.Fatalf("second vote failed: %v", err)
	}
	if result.Status != entities.ItemStatusConflict {
		t.Fatalf("expected conflict on mixed judgements, got %s", result.Status)
	}
}

func TestRecordVoteRejectsSelfValidation(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	uc := newVoteUseCase(store, 3)

	_, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "Submitter-1",
		Judgement:   entities.JudgementAccept,
	})
	if !errors.Is(err, domainerrors.ErrSelfValidation) {
		t.Fatalf("expected self validation error, got %v", err)
	}
}

func TestRecordVoteRejectsDuplicateVote(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	uc := newVoteUseCase(store, 3)

	if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-1",
		Judgement:   entities.JudgementAccept,
	}); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	_, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-1",
		Judgement:   entities.JudgementReject,
	})
	if !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote error, got %v", err)
	}
}

func TestRecordVoteEnforcesActiveVoteQuota(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	seedAudioItem(store, "audio-2", "submitter-1")
	uc := newVoteUseCase(store, 3)
	uc.Config = staticConfig{snapshot: ports.ConfigSnapshot{
		RequiredQuorum: map[entities.ItemKind]int{
			entities.ItemKindAudio: 3,
		},
		MaxVotesPerUser: 1,
	}}

	if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-1",
		Judgement:   entities.JudgementAccept,
	}); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	_, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-2",
		ValidatorID: "validator-1",
		Judgement:   entities.JudgementAccept,
	})
	if !errors.Is(err, domainerrors.ErrVoteQuotaExceeded) {
		t.Fatalf("expected vote quota error, got %v", err)
	}

	// Another validator is unaffected by the first one's quota.
	if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-2",
		ValidatorID: "validator-2",
		Judgement:   entities.JudgementAccept,
	}); err != nil {
		t.Fatalf("second validator vote failed: %v", err)
	}
}

func TestRecordVoteRefusesTerminalItem(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	uc := newVoteUseCase(store, 2)

	for _, validator := range []string{"validator-1", "validator-2"} {
		if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
			ItemID:      "audio-1",
			ValidatorID: validator,
			Judgement:   entities.JudgementAccept,
		}); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}
	_, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-3",
		Judgement:   entities.JudgementReject,
	})
	if !errors.Is(err, domainerrors.ErrItemDecided) {
		t.Fatalf("expected item decided error, got %v", err)
	}
	item, err := store.GetItem(context.Background(), "audio-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != entities.ItemStatusAccepted {
		t.Fatalf("terminal status changed to %s", item.Status)
	}
}

func TestRecordVoteRejectsDeletedItem(t *testing.T) {
	store := memory.NewStore(nil)
	store.SeedItem(entities.Validatable{
		ItemID:      "audio-1",
		Kind:        entities.ItemKindAudio,
		Locale:      "akan",
		SubmitterID: "submitter-1",
		Status:      entities.ItemStatusPending,
		Deleted:     true,
	})
	uc := newVoteUseCase(store, 2)

	_, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-1",
		Judgement:   entities.JudgementAccept,
	})
	if !errors.Is(err, domainerrors.ErrItemDeleted) {
		t.Fatalf("expected deleted item error, got %v", err)
	}
}

func TestRecordVoteTranscriptionAgreement(t *testing.T) {
	store := memory.NewStore(nil)
	base := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	store.SeedItem(entities.Validatable{
		ItemID:       "transcript-1",
		Kind:         entities.ItemKindTranscription,
		Locale:       "akan",
		SubmitterID:  "submitter-1",
		ParentItemID: "audio-1",
		Status:       entities.ItemStatusPending,
		Text:         "Hello, world!",
		CreatedAt:    base,
	})
	store.SeedItem(entities.Validatable{
		ItemID:       "transcript-2",
		Kind:         entities.ItemKindTranscription,
		Locale:       "akan",
		SubmitterID:  "submitter-2",
		ParentItemID: "audio-1",
		Status:       entities.ItemStatusPending,
		Text:         "  hello   WORLD  ",
		CreatedAt:    base.Add(time.Minute),
	})
	uc := newVoteUseCase(store, 2)

	for _, validator := range []string{"validator-1", "validator-2"} {
		if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
			ItemID:      "transcript-1",
			ValidatorID: validator,
			Judgement:   entities.JudgementAccept,
		}); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}
	item, err := store.GetItem(context.Background(), "transcript-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != entities.ItemStatusAccepted {
		t.Fatalf("expected accepted on normalized agreement, got %s", item.Status)
	}
}

func TestRecordVoteTranscriptionDisagreementConflicts(t *testing.T) {
	store := memory.NewStore(nil)
	base := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	store.SeedItem(entities.Validatable{
		ItemID:       "transcript-1",
		Kind:         entities.ItemKindTranscription,
		Locale:       "akan",
		SubmitterID:  "submitter-1",
		ParentItemID: "audio-1",
		Status:       entities.ItemStatusPending,
		Text:         "good morning",
		CreatedAt:    base,
	})
	store.SeedItem(entities.Validatable{
		ItemID:       "transcript-2",
		Kind:         entities.ItemKindTranscription,
		Locale:       "akan",
		SubmitterID:  "submitter-2",
		ParentItemID: "audio-1",
		Status:       entities.ItemStatusPending,
		Text:         "good evening",
		CreatedAt:    base.Add(time.Minute),
	})
	uc := newVoteUseCase(store, 2)

	for _, validator := range []string{"validator-1", "validator-2"} {
		if _, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
			ItemID:      "transcript-1",
			ValidatorID: validator,
			Judgement:   entities.JudgementAccept,
		}); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}
	item, err := store.GetItem(context.Background(), "transcript-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != entities.ItemStatusConflict {
		t.Fatalf("expected conflict on text disagreement, got %s", item.Status)
	}
}

func TestRecordVoteConcurrentQuorumRace(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	uc := newVoteUseCase(store, 3)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := uc.RecordVote(context.Background(), commands.RecordVoteCommand{
				ItemID:      "audio-1",
				ValidatorID: fmt.Sprintf("validator-%d", n),
				Judgement:   entities.JudgementAccept,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domainerrors.ErrItemDecided):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded < 3 {
		t.Fatalf("expected at least 3 recorded votes, got %d", succeeded)
	}

	item, err := store.GetItem(context.Background(), "audio-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != entities.ItemStatusAccepted {
		t.Fatalf("expected accepted after race, got %s", item.Status)
	}
	messages, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	accepted := 0
	for _, message := range messages {
		if message.EventType == "item.accepted" {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted event, got %d", accepted)
	}
}
