package queue

import (
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"sync"

	"blackdiamond-music/internal/track"

	"go.uber.org/zap"
)

var ErrInvalidIndex = errors.New("queue index out of range")

const fileVersion = 1

type queueFile struct {
	Version int                      `json:"version"`
	Queues  map[string][]track.Track `json:"queues"`
}

// Store holds one ordered track queue per guild and mirrors every mutation to a
// single JSON document on disk. Writes happen on a background goroutine; a failed
// write is logged, never retried, and does not undo the in-memory mutation.
type Store struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	loaded bool
	queues map[string][]track.Track

	dirty  chan struct{}
	closed chan struct{}
	done   chan struct{}
}

func NewStore(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
		queues: make(map[string][]track.Track),
		dirty:  make(chan struct{}, 1),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Get returns a copy of the guild's queue, loading the backing file on the first
// access in this process lifetime.
func (s *Store) Get(guildID string) []track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	q := s.queues[guildID]
	out := make([]track.Track, len(q))
	copy(out, q)
	return out
}

func (s *Store) Len(guildID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
	return len(s.queues[guildID])
}

func (s *Store) Head(guildID string) (track.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	q := s.queues[guildID]
	if len(q) == 0 {
		return track.Track{}, false
	}
	return q[0], true
}

func (s *Store) Append(guildID string, t track.Track) {
	s.mu.Lock()
	s.ensureLoadedLocked()
	s.queues[guildID] = append(s.queues[guildID], t)
	s.mu.Unlock()
	s.markDirty()
}

// RemoveAt removes the track at the 0-based index. Removing index 0 means the
// current head is discarded; stopping the active player is the caller's job.
func (s *Store) RemoveAt(guildID string, index int) (track.Track, error) {
	s.mu.Lock()
	s.ensureLoadedLocked()

	q := s.queues[guildID]
	if index < 0 || index >= len(q) {
		s.mu.Unlock()
		return track.Track{}, ErrInvalidIndex
	}
	removed := q[index]
	s.queues[guildID] = append(q[:index], q[index+1:]...)
	s.mu.Unlock()

	s.markDirty()
	return removed, nil
}

// Shuffle randomizes everything except the head, which stays fixed so the
// currently playing track is undisturbed. Returns false for fewer than 2 tracks.
func (s *Store) Shuffle(guildID string) bool {
	s.mu.Lock()
	s.ensureLoadedLocked()

	q := s.queues[guildID]
	if len(q) < 2 {
		s.mu.Unlock()
		return false
	}
	tail := q[1:]
	rand.Shuffle(len(tail), func(i, j int) {
		tail[i], tail[j] = tail[j], tail[i]
	})
	s.mu.Unlock()

	s.markDirty()
	return true
}

func (s *Store) Clear(guildID string) {
	s.mu.Lock()
	s.ensureLoadedLocked()
	s.queues[guildID] = nil
	s.mu.Unlock()
	s.markDirty()
}

// Flush writes the current state synchronously. Used at shutdown and in tests.
func (s *Store) Flush() error {
	s.mu.Lock()
	s.ensureLoadedLocked()
	data, err := s.marshalLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *Store) Close() error {
	close(s.closed)
	<-s.done
	return s.Flush()
}

func (s *Store) ensureLoadedLocked() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("queue file unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var file queueFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.logger.Warn("queue file corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return
	}
	if file.Queues != nil {
		s.queues = file.Queues
	}
}

func (s *Store) marshalLocked() ([]byte, error) {
	return json.MarshalIndent(queueFile{Version: fileVersion, Queues: s.queues}, "", "  ")
}

func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.dirty:
			if err := s.Flush(); err != nil {
				s.logger.Error("queue persist failed", zap.String("path", s.path), zap.Error(err))
			}
		case <-s.closed:
			return
		}
	}
}
