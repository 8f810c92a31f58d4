package workers_test

import (
	"context"
	"testing"
	"time"

	"chorus/contexts/moderation-core/assignment-service/adapters/memory"
	"chorus/contexts/moderation-core/assignment-service/application/workers"
	"chorus/contexts/moderation-core/assignment-service/domain/entities"
	"chorus/contexts/moderation-core/assignment-service/ports"
)

type staticConfig struct {
	ttl time.Duration
}

func (c staticConfig) LeaseTTL(_ entities.WorkType) time.Duration {
	return c.ttl
}

func (c staticConfig) LeaseBatchSize() int {
	return 10
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func TestLeaseExpirerSweepsOnlyExpiredAssignments(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store.SeedItem(ports.CatalogItem{ItemID: "audio-1", Kind: "audio", Locale: "akan", SubmitterID: "s-1", Status: "in_review"})
	store.SeedItem(ports.CatalogItem{ItemID: "audio-2", Kind: "audio", Locale: "akan", SubmitterID: "s-2", Status: "in_review"})

	stale := entities.Assignment{
		AssignmentID: "assignment-stale",
		UserID:       "user-1",
		WorkType:     entities.WorkTypeValidation,
		ItemKind:     "audio",
		Locale:       "akan",
		ItemIDs:      []string{"audio-1"},
		CreatedAt:    base.Add(-3 * time.Hour),
	}
	fresh := entities.Assignment{
		AssignmentID: "assignment-fresh",
		UserID:       "user-2",
		WorkType:     entities.WorkTypeValidation,
		ItemKind:     "audio",
		Locale:       "akan",
		ItemIDs:      []string{"audio-2"},
		CreatedAt:    base.Add(-30 * time.Minute),
	}
	if err := store.SaveAssignment(context.Background(), stale); err != nil {
		t.Fatalf("seed stale failed: %v", err)
	}
	if err := store.SaveAssignment(context.Background(), fresh); err != nil {
		t.Fatalf("seed fresh failed: %v", err)
	}

	expirer := workers.LeaseExpirer{
		Assignments: store,
		Catalog:     store,
		Tx:          store,
		Config:      staticConfig{ttl: 2 * time.Hour},
		Clock:       &fixedClock{now: base},
	}
	if err := expirer.RunOnce(context.Background()); err != nil {
		t.Fatalf("expirer run failed: %v", err)
	}

	if _, found, _ := store.GetLiveAssignment(context.Background(), "user-1", entities.WorkTypeValidation); found {
		t.Fatalf("stale assignment survived the sweep")
	}
	if _, found, _ := store.GetLiveAssignment(context.Background(), "user-2", entities.WorkTypeValidation); !found {
		t.Fatalf("fresh assignment was swept")
	}

	items, err := store.GetItemsByIDs(context.Background(), []string{"audio-1", "audio-2"})
	if err != nil {
		t.Fatalf("get items failed: %v", err)
	}
	for _, item := range items {
		switch item.ItemID {
		case "audio-1":
			if item.Status != "pending" {
				t.Fatalf("expected released item back to pending, got %s", item.Status)
			}
		case "audio-2":
			if item.Status != "in_review" {
				t.Fatalf("fresh lease item should stay in_review, got %s", item.Status)
			}
		}
	}
}
