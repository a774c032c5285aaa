package state

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestStateKeyLayout(t *testing.T) {
	if got := stateKey("news", "last_fetch"); got != "jobs:news:last_fetch" {
		t.Errorf("stateKey = %q, want jobs:news:last_fetch", got)
	}
	if got := nextRunKey("news"); got != "jobs:nextrun:news" {
		t.Errorf("nextRunKey = %q, want jobs:nextrun:news", got)
	}
}

func TestMemoryStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Save(ctx, "news", "last_fetch", "2026-09-01T00:00:00Z", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, "news", "last_fetch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "2026-09-01T00:00:00Z" {
		t.Errorf("got %q", got)
	}

	// namespaces do not bleed into each other
	other, err := s.Get(ctx, "communities", "last_fetch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if other != "" {
		t.Errorf("got %q from another namespace, want empty", other)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Save(ctx, "news", "extract:ts", "body", time.Millisecond); err != nil {
		t.Fatalf("save: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	got, err := s.Get(ctx, "news", "extract:ts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "" {
		t.Errorf("got %q after ttl expiry, want empty", got)
	}
}

func TestMemoryStoreSaveError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	payload := map[string]string{"error": "merge failed", "item_id": "doc3"}
	if err := s.SaveError(ctx, "news", "doc3", payload); err != nil {
		t.Fatalf("save error: %v", err)
	}

	raw, err := s.Get(ctx, "news", "error:doc3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("error record is not json: %v", err)
	}
	if decoded["item_id"] != "doc3" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestMemoryStoreNextRun(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.NextRun(ctx, "news")
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("unset next run = %v, want zero time", got)
	}

	want := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	if err := s.SetNextRun(ctx, "news", want); err != nil {
		t.Fatalf("set next run: %v", err)
	}
	got, err = s.NextRun(ctx, "news")
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("next run = %v, want %v", got, want)
	}
}
