package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusSignalling
	StatusReady
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusSignalling:
		return "signalling"
	case StatusReady:
		return "ready"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

var (
	ErrJoinTimeout      = errors.New("voice join timed out")
	ErrPermissionDenied = errors.New("missing permission to join voice channel")
	ErrNotConnected     = errors.New("not connected to a voice channel")
)

// Gateway opens raw voice connections. The production implementation wraps the
// Discord session; tests substitute a fake.
type Gateway interface {
	Join(ctx context.Context, guildID, channelID string) (Conn, error)
}

// Conn is a live voice connection. Events delivers status transitions until
// Destroy is called, after which the channel is closed.
type Conn interface {
	GuildID() string
	ChannelID() string
	Events() <-chan Status
	Destroy()
}

type guildConn struct {
	conn   Conn
	status Status
}

// Manager tracks one voice connection per guild, enforces a join deadline, and
// rides out short gateway drops before declaring a connection lost.
type Manager struct {
	gateway     Gateway
	logger      *zap.Logger
	joinTimeout time.Duration
	grace       time.Duration

	mu     sync.Mutex
	conns  map[string]*guildConn
	onLost func(guildID string)
}

func NewManager(gateway Gateway, joinTimeout, grace time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		gateway:     gateway,
		logger:      logger,
		joinTimeout: joinTimeout,
		grace:       grace,
		conns:       make(map[string]*guildConn),
	}
}

// SetLostHandler registers the callback invoked after a connection drops for
// longer than the grace window. Must be called before the first Join.
func (m *Manager) SetLostHandler(fn func(guildID string)) {
	m.mu.Lock()
	m.onLost = fn
	m.mu.Unlock()
}

// Join connects the guild to the given channel. Joining the channel the guild
// is already connected to is a no-op; joining a different channel moves the
// connection. Blocks until the connection is ready or the deadline passes.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) error {
	m.mu.Lock()
	if existing, ok := m.conns[guildID]; ok {
		if existing.conn.ChannelID() == channelID && existing.status == StatusReady {
			m.mu.Unlock()
			return nil
		}
		existing.conn.Destroy()
		delete(m.conns, guildID)
	}
	m.mu.Unlock()

	joinCtx, cancel := context.WithTimeout(ctx, m.joinTimeout)
	defer cancel()

	conn, err := m.gateway.Join(joinCtx, guildID, channelID)
	if err != nil {
		return err
	}

	// The Ready wait shares joinCtx with the gateway call so the configured
	// timeout bounds the whole join, not each phase separately.
	for {
		select {
		case status, ok := <-conn.Events():
			if !ok {
				return ErrJoinTimeout
			}
			if status == StatusReady {
				gc := &guildConn{conn: conn, status: StatusReady}
				m.mu.Lock()
				m.conns[guildID] = gc
				m.mu.Unlock()
				m.logger.Info("voice connected",
					zap.String("guild_id", guildID),
					zap.String("channel_id", channelID))
				go m.monitor(guildID, gc)
				return nil
			}
		case <-joinCtx.Done():
			conn.Destroy()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrJoinTimeout
		}
	}
}

// Leave tears down the guild's connection. Returns false if there was none.
func (m *Manager) Leave(guildID string) bool {
	m.mu.Lock()
	gc, ok := m.conns[guildID]
	if ok {
		delete(m.conns, guildID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	gc.conn.Destroy()
	m.logger.Info("voice disconnected", zap.String("guild_id", guildID))
	return true
}

func (m *Manager) Status(guildID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gc, ok := m.conns[guildID]; ok {
		return gc.status
	}
	return StatusDisconnected
}

func (m *Manager) Ready(guildID string) bool {
	return m.Status(guildID) == StatusReady
}

func (m *Manager) monitor(guildID string, gc *guildConn) {
	for status := range gc.conn.Events() {
		m.mu.Lock()
		if m.conns[guildID] != gc {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if status == StatusDisconnected {
			m.setStatus(guildID, gc, StatusReconnecting)
			m.logger.Warn("voice connection dropped, waiting for recovery",
				zap.String("guild_id", guildID))
			if m.awaitRecovery(guildID, gc) {
				m.logger.Info("voice connection recovered", zap.String("guild_id", guildID))
				continue
			}
			m.drop(guildID, gc)
			return
		}
		m.setStatus(guildID, gc, status)
	}
}

// awaitRecovery watches for the gateway to come back within the grace window.
// Any sign of life, Connecting, Signalling, or Ready, counts as recovery.
func (m *Manager) awaitRecovery(guildID string, gc *guildConn) bool {
	timer := time.NewTimer(m.grace)
	defer timer.Stop()

	for {
		select {
		case status, ok := <-gc.conn.Events():
			if !ok {
				return false
			}
			switch status {
			case StatusConnecting, StatusSignalling, StatusReady:
				m.setStatus(guildID, gc, status)
				return true
			}
		case <-timer.C:
			return false
		}
	}
}

func (m *Manager) drop(guildID string, gc *guildConn) {
	m.mu.Lock()
	if m.conns[guildID] != gc {
		m.mu.Unlock()
		return
	}
	delete(m.conns, guildID)
	onLost := m.onLost
	m.mu.Unlock()

	gc.conn.Destroy()
	m.logger.Warn("voice connection lost", zap.String("guild_id", guildID))
	if onLost != nil {
		onLost(guildID)
	}
}

func (m *Manager) setStatus(guildID string, gc *guildConn, status Status) {
	m.mu.Lock()
	if m.conns[guildID] == gc {
		gc.status = status
	}
	m.mu.Unlock()
}
