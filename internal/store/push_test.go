package store

import (
	"context"
	"testing"

	"github.com/dukerupert/homekeep/internal/model"
)

func TestPushSaveReplacesEndpoint(t *testing.T) {
	s := setupTestStores(t)
	ctx := context.Background()

	sub := &model.PushSubscription{ID: "s1", UserID: "u1", Endpoint: "https://push.example/abc", P256dhKey: "k1", AuthKey: "a1", CreatedAt: testTime}
	if err := s.Push.Save(ctx, sub); err != nil {
		t.Fatalf("save: %v", err)
	}
	again := &model.PushSubscription{ID: "s2", UserID: "u1", Endpoint: "https://push.example/abc", P256dhKey: "k2", AuthKey: "a2", CreatedAt: testTime}
	if err := s.Push.Save(ctx, again); err != nil {
		t.Fatalf("save again: %v", err)
	}

	subs, err := s.Push.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("len = %d, want 1", len(subs))
	}
	if subs[0].P256dhKey != "k2" {
		t.Errorf("p256dh = %q, want k2", subs[0].P256dhKey)
	}

	if err := s.Push.DeleteByEndpoint(ctx, "https://push.example/abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	subs, _ = s.Push.List(ctx)
	if len(subs) != 0 {
		t.Errorf("len = %d, want 0", len(subs))
	}
}
