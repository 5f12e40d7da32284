package queue

import (
	"errors"
	"path/filepath"
	"testing"

	"blackdiamond-music/internal/track"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queues.json")
	s := NewStore(path, zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTrack(title string) track.Track {
	return track.Track{
		Title:     title,
		SourceURL: "https://www.youtube.com/watch?v=" + title,
		Source:    track.SourceRemoteMedia,
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := newTestStore(t)

	s.Append("g1", testTrack("a"))
	s.Append("g1", testTrack("b"))
	s.Append("g1", testTrack("c"))

	got := s.Get("g1")
	if len(got) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Title != want {
			t.Fatalf("expected %q at %d, got %q", want, i, got[i].Title)
		}
	}
}

func TestQueuesAreIsolatedPerGuild(t *testing.T) {
	s := newTestStore(t)

	s.Append("g1", testTrack("a"))
	s.Append("g2", testTrack("b"))

	if s.Len("g1") != 1 || s.Len("g2") != 1 {
		t.Fatalf("expected 1 track each, got %d and %d", s.Len("g1"), s.Len("g2"))
	}
	s.Clear("g1")
	if s.Len("g2") != 1 {
		t.Fatalf("clearing g1 touched g2, len %d", s.Len("g2"))
	}
}

func TestRemoveAt(t *testing.T) {
	s := newTestStore(t)

	s.Append("g1", testTrack("a"))
	s.Append("g1", testTrack("b"))
	s.Append("g1", testTrack("c"))

	removed, err := s.RemoveAt("g1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.Title != "b" {
		t.Fatalf("expected removed b, got %q", removed.Title)
	}

	got := s.Get("g1")
	if len(got) != 2 || got[0].Title != "a" || got[1].Title != "c" {
		t.Fatalf("unexpected queue after remove: %+v", got)
	}
}

func TestRemoveAtOutOfRange(t *testing.T) {
	s := newTestStore(t)
	s.Append("g1", testTrack("a"))

	for _, index := range []int{-1, 1, 5} {
		if _, err := s.RemoveAt("g1", index); !errors.Is(err, ErrInvalidIndex) {
			t.Fatalf("index %d: expected ErrInvalidIndex, got %v", index, err)
		}
	}
	if s.Len("g1") != 1 {
		t.Fatalf("failed removal mutated queue, len %d", s.Len("g1"))
	}
}

func TestShuffleKeepsHeadAndContents(t *testing.T) {
	s := newTestStore(t)

	titles := []string{"head", "a", "b", "c", "d", "e", "f"}
	for _, title := range titles {
		s.Append("g1", testTrack(title))
	}

	if !s.Shuffle("g1") {
		t.Fatal("expected shuffle to report true")
	}

	got := s.Get("g1")
	if got[0].Title != "head" {
		t.Fatalf("expected head to stay fixed, got %q", got[0].Title)
	}
	if len(got) != len(titles) {
		t.Fatalf("expected %d tracks, got %d", len(titles), len(got))
	}

	counts := make(map[string]int)
	for _, tr := range got {
		counts[tr.Title]++
	}
	for _, title := range titles {
		if counts[title] != 1 {
			t.Fatalf("expected exactly one %q, got %d", title, counts[title])
		}
	}
}

func TestShuffleTooShort(t *testing.T) {
	s := newTestStore(t)

	if s.Shuffle("g1") {
		t.Fatal("expected false on empty queue")
	}
	s.Append("g1", testTrack("a"))
	if s.Shuffle("g1") {
		t.Fatal("expected false on single track")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queues.json")

	first := NewStore(path, zap.NewNop())
	first.Append("g1", testTrack("a"))
	first.Append("g1", testTrack("b"))
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewStore(path, zap.NewNop())
	defer func() { _ = second.Close() }()

	got := second.Get("g1")
	if len(got) != 2 || got[0].Title != "a" || got[1].Title != "b" {
		t.Fatalf("unexpected queue after reload: %+v", got)
	}
}

func TestMissingFileStartsEmpty(t *testing.T) {
	s := newTestStore(t)

	if s.Len("g1") != 0 {
		t.Fatalf("expected empty queue, got %d", s.Len("g1"))
	}
	if _, ok := s.Head("g1"); ok {
		t.Fatal("expected no head on empty queue")
	}
}
