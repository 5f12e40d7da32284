package player

import (
	"context"
	"errors"
	"sync"

	"blackdiamond-music/internal/queue"
	"blackdiamond-music/internal/resolver"
	"blackdiamond-music/internal/track"

	"go.uber.org/zap"
)

type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "idle"
	}
}

var (
	ErrNotConnected   = errors.New("not connected to a voice channel")
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrQueueEmpty     = errors.New("queue is empty")
)

// AudioPlayer transmits audio for a guild. Play returns a channel that yields
// exactly one value when transmission ends: nil for natural completion, an
// error otherwise.
type AudioPlayer interface {
	Play(ctx context.Context, guildID string, h resolver.StreamHandle) (<-chan error, error)
	Pause(guildID string) error
	Resume(guildID string) error
	Stop(guildID string)
}

// StreamSource fetches a fresh playback URL for a stored track.
type StreamSource interface {
	FreshStreamHandle(ctx context.Context, sourceURL string) (resolver.StreamHandle, error)
}

// ConnectionChecker reports whether a guild has a usable voice connection.
type ConnectionChecker interface {
	Ready(guildID string) bool
}

type guildState struct {
	status Status
	epoch  uint64
}

// Engine drives per-guild playback off the queue head: it starts tracks, drops
// unplayable ones, and advances when a track finishes on its own. Each guild
// carries an epoch counter so completions from a superseded playback (after a
// stop or disconnect) are ignored instead of advancing the queue twice.
type Engine struct {
	queues *queue.Store
	source StreamSource
	audio  AudioPlayer
	conns  ConnectionChecker
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]*guildState

	playHook func(guildID string, t track.Track)
}

func NewEngine(queues *queue.Store, source StreamSource, audio AudioPlayer, conns ConnectionChecker, logger *zap.Logger) *Engine {
	return &Engine{
		queues: queues,
		source: source,
		audio:  audio,
		conns:  conns,
		logger: logger,
		states: make(map[string]*guildState),
	}
}

// SetPlayHook registers a callback fired whenever a track starts playing.
// Must be called before playback begins.
func (e *Engine) SetPlayHook(fn func(guildID string, t track.Track)) {
	e.mu.Lock()
	e.playHook = fn
	e.mu.Unlock()
}

func (e *Engine) Status(guildID string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[guildID]; ok {
		return st.status
	}
	return StatusIdle
}

// PlayHead starts playback from the queue head. Tracks whose stream cannot be
// fetched are removed and the next one is tried, so one dead link never stalls
// the whole queue.
func (e *Engine) PlayHead(ctx context.Context, guildID string) error {
	if !e.conns.Ready(guildID) {
		return ErrNotConnected
	}

	for {
		head, ok := e.queues.Head(guildID)
		if !ok {
			e.setStatus(guildID, StatusIdle)
			return ErrQueueEmpty
		}

		handle, err := e.source.FreshStreamHandle(ctx, head.SourceURL)
		if err != nil {
			e.logger.Warn("dropping unplayable track",
				zap.String("guild_id", guildID),
				zap.String("title", head.Title),
				zap.Error(err))
			_, _ = e.queues.RemoveAt(guildID, 0)
			continue
		}

		done, err := e.audio.Play(ctx, guildID, handle)
		if err != nil {
			e.logger.Warn("playback start failed, dropping track",
				zap.String("guild_id", guildID),
				zap.String("title", head.Title),
				zap.Error(err))
			_, _ = e.queues.RemoveAt(guildID, 0)
			continue
		}

		e.mu.Lock()
		st := e.stateLocked(guildID)
		st.status = StatusPlaying
		epoch := st.epoch
		hook := e.playHook
		e.mu.Unlock()

		e.logger.Info("now playing",
			zap.String("guild_id", guildID),
			zap.String("title", head.Title),
			zap.Int("queue_len", e.queues.Len(guildID)))

		if hook != nil {
			hook(guildID, head)
		}

		go e.watch(guildID, epoch, done)
		return nil
	}
}

func (e *Engine) watch(guildID string, epoch uint64, done <-chan error) {
	err := <-done

	e.mu.Lock()
	st, ok := e.states[guildID]
	if !ok || st.epoch != epoch {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("playback ended with error",
			zap.String("guild_id", guildID), zap.Error(err))
	}
	e.advance(guildID)
}

// advance discards the finished head and starts the next track, or goes idle
// with the voice connection kept open when the queue runs out.
func (e *Engine) advance(guildID string) {
	_, _ = e.queues.RemoveAt(guildID, 0)

	if e.queues.Len(guildID) == 0 {
		e.setStatus(guildID, StatusIdle)
		e.logger.Info("queue finished", zap.String("guild_id", guildID))
		return
	}
	if err := e.PlayHead(context.Background(), guildID); err != nil {
		e.setStatus(guildID, StatusIdle)
	}
}

// Skip stops the current transmission. The completion watcher then advances
// exactly as it would on a natural track end.
func (e *Engine) Skip(guildID string) error {
	if !e.conns.Ready(guildID) {
		return ErrNotConnected
	}
	if e.Status(guildID) == StatusIdle {
		return ErrNothingPlaying
	}
	e.audio.Stop(guildID)
	return nil
}

// TogglePause flips between playing and paused and returns the new status.
func (e *Engine) TogglePause(guildID string) (Status, error) {
	e.mu.Lock()
	st, ok := e.states[guildID]
	if !ok || st.status == StatusIdle {
		e.mu.Unlock()
		return StatusIdle, ErrNothingPlaying
	}
	current := st.status
	e.mu.Unlock()

	if current == StatusPlaying {
		if err := e.audio.Pause(guildID); err != nil {
			return current, err
		}
		e.setStatus(guildID, StatusPaused)
		return StatusPaused, nil
	}
	if err := e.audio.Resume(guildID); err != nil {
		return current, err
	}
	e.setStatus(guildID, StatusPlaying)
	return StatusPlaying, nil
}

// Stop halts playback, clears the guild's queue, and invalidates any pending
// completion so it cannot trigger an advance.
func (e *Engine) Stop(guildID string) {
	e.mu.Lock()
	st := e.stateLocked(guildID)
	st.epoch++
	st.status = StatusIdle
	e.mu.Unlock()

	e.audio.Stop(guildID)
	e.queues.Clear(guildID)
	e.logger.Info("playback stopped", zap.String("guild_id", guildID))
}

func (e *Engine) setStatus(guildID string, status Status) {
	e.mu.Lock()
	e.stateLocked(guildID).status = status
	e.mu.Unlock()
}

func (e *Engine) stateLocked(guildID string) *guildState {
	st, ok := e.states[guildID]
	if !ok {
		st = &guildState{}
		e.states[guildID] = st
	}
	return st
}
