package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestAddAndListPlays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"first", "second", "third"} {
		err := store.AddPlay(ctx, PlayRecord{
			GuildID:     "g1",
			Title:       title,
			SourceURL:   "https://yt/" + title,
			RequestedBy: "alice",
			PlayedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("add play %s: %v", title, err)
		}
	}

	records, err := store.ListRecentPlays(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("list plays: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title != "third" || records[1].Title != "second" {
		t.Fatalf("expected newest first, got %q then %q", records[0].Title, records[1].Title)
	}
}

func TestListPlaysScopedToGuild(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.AddPlay(ctx, PlayRecord{GuildID: "g1", Title: "mine", SourceURL: "u", RequestedBy: "a", PlayedAt: time.Now()})
	_ = store.AddPlay(ctx, PlayRecord{GuildID: "g2", Title: "theirs", SourceURL: "u", RequestedBy: "b", PlayedAt: time.Now()})

	records, err := store.ListRecentPlays(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("list plays: %v", err)
	}
	if len(records) != 1 || records[0].Title != "mine" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestCleanupPlays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.AddPlay(ctx, PlayRecord{GuildID: "g1", Title: "old", SourceURL: "u", RequestedBy: "a", PlayedAt: time.Now().AddDate(0, 0, -40)})
	_ = store.AddPlay(ctx, PlayRecord{GuildID: "g1", Title: "recent", SourceURL: "u", RequestedBy: "a", PlayedAt: time.Now()})

	if err := store.CleanupPlays(ctx, 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	records, err := store.ListRecentPlays(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("list plays: %v", err)
	}
	if len(records) != 1 || records[0].Title != "recent" {
		t.Fatalf("expected only recent play, got %+v", records)
	}
}
