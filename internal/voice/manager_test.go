package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeConn struct {
	guildID   string
	channelID string
	events    chan Status

	mu        sync.Mutex
	destroyed bool
}

func newFakeConn(guildID, channelID string) *fakeConn {
	return &fakeConn{guildID: guildID, channelID: channelID, events: make(chan Status, 8)}
}

func (c *fakeConn) GuildID() string       { return c.guildID }
func (c *fakeConn) ChannelID() string     { return c.channelID }
func (c *fakeConn) Events() <-chan Status { return c.events }

func (c *fakeConn) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.destroyed {
		c.destroyed = true
		close(c.events)
	}
}

func (c *fakeConn) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

type fakeGateway struct {
	mu    sync.Mutex
	conns []*fakeConn
	ready bool
	err   error
}

func (g *fakeGateway) Join(ctx context.Context, guildID, channelID string) (Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	conn := newFakeConn(guildID, channelID)
	if g.ready {
		conn.events <- StatusSignalling
		conn.events <- StatusReady
	}
	g.conns = append(g.conns, conn)
	return conn, nil
}

func (g *fakeGateway) last() *fakeConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) == 0 {
		return nil
	}
	return g.conns[len(g.conns)-1]
}

func newTestManager(g *fakeGateway, grace time.Duration) *Manager {
	return NewManager(g, 200*time.Millisecond, grace, zap.NewNop())
}

func waitForStatus(t *testing.T, m *Manager, guildID string, want Status) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if m.Status(guildID) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected status %v, got %v", want, m.Status(guildID))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestJoinBecomesReady(t *testing.T) {
	g := &fakeGateway{ready: true}
	m := newTestManager(g, 50*time.Millisecond)

	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Ready("g1") {
		t.Fatalf("expected ready, got %v", m.Status("g1"))
	}
}

func TestJoinSameChannelIsNoOp(t *testing.T) {
	g := &fakeGateway{ready: true}
	m := newTestManager(g, 50*time.Millisecond)

	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error on repeat join: %v", err)
	}
	if len(g.conns) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(g.conns))
	}
}

func TestJoinDifferentChannelMoves(t *testing.T) {
	g := &fakeGateway{ready: true}
	m := newTestManager(g, 50*time.Millisecond)

	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	old := g.last()

	if err := m.Join(context.Background(), "g1", "c2"); err != nil {
		t.Fatalf("unexpected error on move: %v", err)
	}
	if !old.isDestroyed() {
		t.Fatal("expected old connection to be destroyed")
	}
	if got := g.last().ChannelID(); got != "c2" {
		t.Fatalf("expected channel c2, got %q", got)
	}
}

func TestJoinTimeout(t *testing.T) {
	g := &fakeGateway{ready: false}
	m := newTestManager(g, 50*time.Millisecond)

	err := m.Join(context.Background(), "g1", "c1")
	if !errors.Is(err, ErrJoinTimeout) {
		t.Fatalf("expected ErrJoinTimeout, got %v", err)
	}
	if !g.last().isDestroyed() {
		t.Fatal("expected connection to be destroyed on timeout")
	}
	if m.Status("g1") != StatusDisconnected {
		t.Fatalf("expected disconnected, got %v", m.Status("g1"))
	}
}

type slowGateway struct {
	fakeGateway
	delay time.Duration
}

func (g *slowGateway) Join(ctx context.Context, guildID, channelID string) (Conn, error) {
	time.Sleep(g.delay)
	return g.fakeGateway.Join(ctx, guildID, channelID)
}

func TestJoinTimeoutCoversGatewayDelay(t *testing.T) {
	g := &slowGateway{delay: 150 * time.Millisecond}
	m := NewManager(g, 200*time.Millisecond, 50*time.Millisecond, zap.NewNop())

	start := time.Now()
	err := m.Join(context.Background(), "g1", "c1")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrJoinTimeout) {
		t.Fatalf("expected ErrJoinTimeout, got %v", err)
	}
	if elapsed > 300*time.Millisecond {
		t.Fatalf("join outlived the configured deadline, took %v", elapsed)
	}
}

func TestJoinGatewayError(t *testing.T) {
	wantErr := errors.New("missing access")
	g := &fakeGateway{err: wantErr}
	m := newTestManager(g, 50*time.Millisecond)

	if err := m.Join(context.Background(), "g1", "c1"); !errors.Is(err, wantErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestDisconnectRecoversWithinGrace(t *testing.T) {
	g := &fakeGateway{ready: true}
	m := newTestManager(g, 200*time.Millisecond)

	var lost []string
	var mu sync.Mutex
	m.SetLostHandler(func(guildID string) {
		mu.Lock()
		lost = append(lost, guildID)
		mu.Unlock()
	})

	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn := g.last()
	conn.events <- StatusDisconnected
	waitForStatus(t, m, "g1", StatusReconnecting)

	conn.events <- StatusReady
	waitForStatus(t, m, "g1", StatusReady)

	mu.Lock()
	defer mu.Unlock()
	if len(lost) != 0 {
		t.Fatalf("expected no lost callback, got %v", lost)
	}
}

func TestDisconnectRecoversViaSignalling(t *testing.T) {
	g := &fakeGateway{ready: true}
	m := newTestManager(g, 200*time.Millisecond)

	lostCh := make(chan string, 1)
	m.SetLostHandler(func(guildID string) { lostCh <- guildID })

	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn := g.last()
	conn.events <- StatusDisconnected
	waitForStatus(t, m, "g1", StatusReconnecting)

	conn.events <- StatusSignalling
	waitForStatus(t, m, "g1", StatusSignalling)

	conn.events <- StatusReady
	waitForStatus(t, m, "g1", StatusReady)

	select {
	case guildID := <-lostCh:
		t.Fatalf("unexpected lost callback for %q", guildID)
	default:
	}
}

func TestDisconnectBeyondGraceDrops(t *testing.T) {
	g := &fakeGateway{ready: true}
	m := newTestManager(g, 30*time.Millisecond)

	lostCh := make(chan string, 1)
	m.SetLostHandler(func(guildID string) { lostCh <- guildID })

	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.last().events <- StatusDisconnected

	select {
	case guildID := <-lostCh:
		if guildID != "g1" {
			t.Fatalf("expected g1, got %q", guildID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected lost callback")
	}

	if m.Status("g1") != StatusDisconnected {
		t.Fatalf("expected disconnected, got %v", m.Status("g1"))
	}
	if !g.last().isDestroyed() {
		t.Fatal("expected connection destroyed")
	}
}

func TestLeave(t *testing.T) {
	g := &fakeGateway{ready: true}
	m := newTestManager(g, 50*time.Millisecond)

	if m.Leave("g1") {
		t.Fatal("expected false when not connected")
	}

	if err := m.Join(context.Background(), "g1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Leave("g1") {
		t.Fatal("expected true on connected leave")
	}
	if !g.last().isDestroyed() {
		t.Fatal("expected connection destroyed")
	}
	if m.Status("g1") != StatusDisconnected {
		t.Fatalf("expected disconnected, got %v", m.Status("g1"))
	}
}
