package bot

import (
	"context"
	"errors"
	"io"
	"sync"

	"blackdiamond-music/internal/player"
	"blackdiamond-music/internal/resolver"

	"github.com/jonas747/dca"
	"go.uber.org/zap"
)

// dcaPlayer transmits audio over discordgo voice connections. Each guild has
// at most one active encode and stream pair; ffmpeg pulls straight from the
// stream URL, so nothing is ever written to disk.
type dcaPlayer struct {
	gateway *discordGateway
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*playSession
}

type opusEncoder interface {
	Cleanup()
}

type opusStream interface {
	SetPaused(paused bool)
}

type playSession struct {
	encoder opusEncoder
	stream  opusStream
}

func newDCAPlayer(gateway *discordGateway, logger *zap.Logger) *dcaPlayer {
	return &dcaPlayer{
		gateway:  gateway,
		logger:   logger,
		sessions: make(map[string]*playSession),
	}
}

func (p *dcaPlayer) Play(ctx context.Context, guildID string, h resolver.StreamHandle) (<-chan error, error) {
	vc := p.gateway.Connection(guildID)
	if vc == nil {
		return nil, player.ErrNotConnected
	}

	p.Stop(guildID)

	opts := dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = 96
	opts.Application = dca.AudioApplicationAudio

	encoder, err := dca.EncodeFile(h.URL, opts)
	if err != nil {
		return nil, err
	}

	if err := vc.Speaking(true); err != nil {
		encoder.Cleanup()
		return nil, err
	}

	inner := make(chan error)
	stream := dca.NewStream(encoder, vc, inner)

	session := &playSession{encoder: encoder, stream: stream}
	p.mu.Lock()
	p.sessions[guildID] = session
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		err := <-inner
		_ = vc.Speaking(false)
		encoder.Cleanup()

		p.mu.Lock()
		if p.sessions[guildID] == session {
			delete(p.sessions, guildID)
		}
		p.mu.Unlock()

		if err != nil && errors.Is(err, io.EOF) {
			err = nil
		}
		done <- err
	}()
	return done, nil
}

func (p *dcaPlayer) Pause(guildID string) error {
	session := p.current(guildID)
	if session == nil {
		return player.ErrNothingPlaying
	}
	session.stream.SetPaused(true)
	return nil
}

func (p *dcaPlayer) Resume(guildID string) error {
	session := p.current(guildID)
	if session == nil {
		return player.ErrNothingPlaying
	}
	session.stream.SetPaused(false)
	return nil
}

// Stop kills the encoder, which ends the stream and fires its completion.
func (p *dcaPlayer) Stop(guildID string) {
	session := p.current(guildID)
	if session == nil {
		return
	}
	session.encoder.Cleanup()
	// A paused stream has left its send loop and would never observe the
	// killed encoder; unpause so it reads the error and completes.
	session.stream.SetPaused(false)
}

func (p *dcaPlayer) current(guildID string) *playSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[guildID]
}
