package commands_test

import (
	"context"
	"testing"
	"time"

	"chorus/contexts/moderation-core/consensus-engine/adapters/memory"
	"chorus/contexts/moderation-core/consensus-engine/application/commands"
	"chorus/contexts/moderation-core/consensus-engine/domain/entities"
)

func TestArchiveVotesReopensDecidedItem(t *testing.T) {
	store := memory.NewStore(nil)
	seedAudioItem(store, "audio-1", "submitter-1")
	voteUC := newVoteUseCase(store, 2)

	for _, validator := range []string{"validator-1", "validator-2"} {
		if _, err := voteUC.RecordVote(context.Background(), commands.RecordVoteCommand{
			ItemID:      "audio-1",
			ValidatorID: validator,
			Judgement:   entities.JudgementAccept,
		}); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}

	archiveUC := commands.ArchiveUseCase{
		Items:       store,
		Validations: store,
		Tx:          store,
		Clock:       fixedClock{now: time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)},
	}
	if err := archiveUC.ArchiveVotes(context.Background(), commands.ArchiveVotesCommand{
		ItemID:     "audio-1",
		OperatorID: "operator-1",
	}); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	item, err := store.GetItem(context.Background(), "audio-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != entities.ItemStatusPending || item.ActiveVoteCount != 0 {
		t.Fatalf("expected reopened pending item, got %+v", item)
	}

	active, err := store.ListActiveValidations(context.Background(), "audio-1")
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active validations after archive, got %d", len(active))
	}

	// Validators who already voted may vote again in the new round.
	if _, err := voteUC.RecordVote(context.Background(), commands.RecordVoteCommand{
		ItemID:      "audio-1",
		ValidatorID: "validator-1",
		Judgement:   entities.JudgementReject,
	}); err != nil {
		t.Fatalf("revote after archive failed: %v", err)
	}
}
