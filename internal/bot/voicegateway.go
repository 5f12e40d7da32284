package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"blackdiamond-music/internal/voice"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// discordGateway adapts discordgo voice connections to the voice.Gateway
// interface. discordgo exposes readiness as a mutex-guarded flag rather than
// events, so each connection runs a small poller that turns flag flips into
// status transitions.
type discordGateway struct {
	session *discordgo.Session
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[string]*discordConn
}

func newDiscordGateway(session *discordgo.Session, logger *zap.Logger) *discordGateway {
	return &discordGateway{
		session: session,
		logger:  logger,
		conns:   make(map[string]*discordConn),
	}
}

func (g *discordGateway) Join(ctx context.Context, guildID, channelID string) (voice.Conn, error) {
	vc, err := g.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "permission") {
			return nil, voice.ErrPermissionDenied
		}
		return nil, err
	}

	conn := &discordConn{
		gateway:   g,
		guildID:   guildID,
		channelID: channelID,
		vc:        vc,
		events:    make(chan voice.Status, 16),
		stop:      make(chan struct{}),
	}

	g.mu.Lock()
	g.conns[guildID] = conn
	g.mu.Unlock()

	go conn.watch()
	return conn, nil
}

// Connection returns the raw discordgo voice connection for audio transmission.
func (g *discordGateway) Connection(guildID string) *discordgo.VoiceConnection {
	g.mu.Lock()
	defer g.mu.Unlock()
	if conn, ok := g.conns[guildID]; ok {
		return conn.vc
	}
	return nil
}

// remove drops the guild's entry, but only if it still points at this
// connection; a newer connection for the same guild is left alone.
func (g *discordGateway) remove(guildID string, conn *discordConn) {
	g.mu.Lock()
	if g.conns[guildID] == conn {
		delete(g.conns, guildID)
	}
	g.mu.Unlock()
}

type discordConn struct {
	gateway   *discordGateway
	guildID   string
	channelID string
	vc        *discordgo.VoiceConnection
	events    chan voice.Status

	stopOnce sync.Once
	stop     chan struct{}
}

func (c *discordConn) GuildID() string             { return c.guildID }
func (c *discordConn) ChannelID() string           { return c.channelID }
func (c *discordConn) Events() <-chan voice.Status { return c.events }

func (c *discordConn) Destroy() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *discordConn) watch() {
	defer close(c.events)
	defer func() { _ = c.vc.Disconnect() }()
	defer c.gateway.remove(c.guildID, c)

	// ChannelVoiceJoin only returns once the connection is up.
	c.emit(voice.StatusReady)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastReady := true
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.vc.RLock()
			ready := c.vc.Ready
			c.vc.RUnlock()

			if ready != lastReady {
				lastReady = ready
				if ready {
					c.emit(voice.StatusReady)
				} else {
					c.emit(voice.StatusDisconnected)
				}
			}
		}
	}
}

func (c *discordConn) emit(status voice.Status) {
	select {
	case c.events <- status:
	case <-c.stop:
	}
}
