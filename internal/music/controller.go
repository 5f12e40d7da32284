package music

import (
	"context"
	"errors"

	"blackdiamond-music/internal/player"
	"blackdiamond-music/internal/queue"
	"blackdiamond-music/internal/track"
	"blackdiamond-music/internal/voice"

	"go.uber.org/zap"
)

var (
	ErrEmptyQueue      = errors.New("the queue is empty")
	ErrInvalidPosition = errors.New("no track at that position")
	ErrInvalidPage     = errors.New("no such queue page")
)

// TrackResolver turns user input into tracks. Satisfied by resolver.Resolver.
type TrackResolver interface {
	Resolve(ctx context.Context, input string) (track.Track, error)
}

// PlayResult describes what a play request did: either started the track right
// away or queued it behind whatever is already playing.
type PlayResult struct {
	Track    track.Track
	Queued   bool
	Position int
}

// QueueEntry pairs a track with its 1-based position in the queue.
type QueueEntry struct {
	Position int
	Track    track.Track
}

type QueuePage struct {
	Entries              []QueueEntry
	Page                 int
	TotalPages           int
	TotalTracks          int
	TotalDurationSeconds int
	NowPlaying           *track.Track
}

// Controller is the single entry point command handlers talk to. It sequences
// the resolver, queue, voice manager, and engine so callers never have to.
type Controller struct {
	queues   *queue.Store
	resolver TrackResolver
	voice    *voice.Manager
	engine   *player.Engine
	pageSize int
	logger   *zap.Logger
}

func NewController(queues *queue.Store, resolver TrackResolver, vm *voice.Manager, engine *player.Engine, pageSize int, logger *zap.Logger) *Controller {
	c := &Controller{
		queues:   queues,
		resolver: resolver,
		voice:    vm,
		engine:   engine,
		pageSize: pageSize,
		logger:   logger,
	}
	vm.SetLostHandler(func(guildID string) {
		engine.Stop(guildID)
		logger.Warn("session invalidated after voice loss", zap.String("guild_id", guildID))
	})
	return c
}

// Play resolves the input, joins the requester's channel if needed, enqueues
// the track, and starts playback when nothing is currently playing.
func (c *Controller) Play(ctx context.Context, guildID, channelID, input, requester string) (PlayResult, error) {
	if err := c.voice.Join(ctx, guildID, channelID); err != nil {
		return PlayResult{}, err
	}

	t, err := c.resolver.Resolve(ctx, input)
	if err != nil {
		return PlayResult{}, err
	}
	t.RequestedBy = requester

	c.queues.Append(guildID, t)
	position := c.queues.Len(guildID)

	if c.engine.Status(guildID) != player.StatusIdle {
		return PlayResult{Track: t, Queued: true, Position: position}, nil
	}

	if err := c.engine.PlayHead(ctx, guildID); err != nil {
		return PlayResult{}, err
	}
	return PlayResult{Track: t}, nil
}

func (c *Controller) Skip(guildID string) error {
	return c.engine.Skip(guildID)
}

func (c *Controller) TogglePause(guildID string) (player.Status, error) {
	return c.engine.TogglePause(guildID)
}

// Stop halts playback and empties the queue. The voice connection stays open.
// Always succeeds, even with nothing playing.
func (c *Controller) Stop(guildID string) {
	c.engine.Stop(guildID)
}

func (c *Controller) Join(ctx context.Context, guildID, channelID string) error {
	return c.voice.Join(ctx, guildID, channelID)
}

// Leave tears down the session: playback stops, the queue is emptied, and the
// connection is dropped.
func (c *Controller) Leave(guildID string) error {
	if !c.voice.Leave(guildID) {
		return voice.ErrNotConnected
	}
	c.engine.Stop(guildID)
	return nil
}

// NowPlayingInfo is the current track with playback status and queue depth.
type NowPlayingInfo struct {
	Track       track.Track
	Status      player.Status
	QueueLength int
}

func (c *Controller) NowPlaying(guildID string) (NowPlayingInfo, error) {
	head, ok := c.queues.Head(guildID)
	if !ok {
		return NowPlayingInfo{}, ErrEmptyQueue
	}
	status := c.engine.Status(guildID)
	if status == player.StatusIdle {
		return NowPlayingInfo{}, ErrEmptyQueue
	}
	return NowPlayingInfo{
		Track:       head,
		Status:      status,
		QueueLength: c.queues.Len(guildID),
	}, nil
}

// QueueView returns one page of the queue plus aggregate totals. Pages are
// 1-based; page 1 starts at the currently playing track.
func (c *Controller) QueueView(guildID string, page int) (QueuePage, error) {
	all := c.queues.Get(guildID)
	if len(all) == 0 {
		return QueuePage{}, ErrEmptyQueue
	}

	totalPages := (len(all) + c.pageSize - 1) / c.pageSize
	if page < 1 || page > totalPages {
		return QueuePage{}, ErrInvalidPage
	}

	totalSeconds := 0
	for _, t := range all {
		totalSeconds += t.DurationSeconds
	}

	start := (page - 1) * c.pageSize
	end := start + c.pageSize
	if end > len(all) {
		end = len(all)
	}

	entries := make([]QueueEntry, 0, end-start)
	for i := start; i < end; i++ {
		entries = append(entries, QueueEntry{Position: i + 1, Track: all[i]})
	}

	view := QueuePage{
		Entries:              entries,
		Page:                 page,
		TotalPages:           totalPages,
		TotalTracks:          len(all),
		TotalDurationSeconds: totalSeconds,
	}
	if c.engine.Status(guildID) != player.StatusIdle {
		now := all[0]
		view.NowPlaying = &now
	}
	return view, nil
}

// Shuffle randomizes everything behind the current head.
func (c *Controller) Shuffle(guildID string) error {
	if !c.queues.Shuffle(guildID) {
		return ErrEmptyQueue
	}
	return nil
}

// Remove deletes the track at the 1-based position. Position 1 is the playing
// track, so removing it is a skip: the engine stops the transmission and its
// watcher performs the single queue removal.
func (c *Controller) Remove(guildID string, position int) (track.Track, error) {
	if position == 1 && c.engine.Status(guildID) != player.StatusIdle {
		head, ok := c.queues.Head(guildID)
		if !ok {
			return track.Track{}, ErrInvalidPosition
		}
		if err := c.engine.Skip(guildID); err != nil {
			return track.Track{}, err
		}
		return head, nil
	}

	removed, err := c.queues.RemoveAt(guildID, position-1)
	if err != nil {
		return track.Track{}, ErrInvalidPosition
	}
	return removed, nil
}
