package ws

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/amannsus/Online-Chat-App-sub000/internal/models"
	"github.com/amannsus/Online-Chat-App-sub000/internal/relay"
)

type mockWS struct {
	incoming  chan models.ClientEvent
	written   chan models.ServerEvent
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockWS() *mockWS {
	return &mockWS{
		incoming: make(chan models.ClientEvent),
		written:  make(chan models.ServerEvent, 16),
		closed:   make(chan struct{}),
	}
}

func (m *mockWS) ReadJSON(v interface{}) error {
	select {
	case ev, ok := <-m.incoming:
		if !ok {
			return io.EOF
		}
		*(v.(*models.ClientEvent)) = ev
		return nil
	case <-m.closed:
		return errors.New("use of closed connection")
	}
}

func (m *mockWS) WriteJSON(v interface{}) error {
	m.written <- v.(models.ServerEvent)
	return nil
}

func (m *mockWS) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

type mockHub struct {
	mu           sync.Mutex
	events       []models.ClientEvent
	disconnected bool
	gotEvent     chan struct{}
}

func newMockHub() *mockHub {
	return &mockHub{gotEvent: make(chan struct{}, 16)}
}

func (m *mockHub) NewSession(_ context.Context, _ relay.Sender) *relay.Session {
	return &relay.Session{}
}

func (m *mockHub) HandleEvent(_ *relay.Session, ev models.ClientEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	m.gotEvent <- struct{}{}
}

func (m *mockHub) Disconnect(_ *relay.Session) {
	m.mu.Lock()
	m.disconnected = true
	m.mu.Unlock()
}

func (m *mockHub) lastEvent(t *testing.T) models.ClientEvent {
	t.Helper()
	select {
	case <-m.gotEvent:
	case <-time.After(time.Second):
		t.Fatal("hub received no event")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

func TestConnection_ForwardsClientEvents(t *testing.T) {
	hub := newMockHub()
	sock := newMockWS()
	conn := NewConnection(hub, sock, "alice")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- conn.Handle(ctx) }()

	sock.incoming <- models.ClientEvent{
		Type:       models.ClientEventSendMessage,
		ReceiverID: "bob",
		Message:    &models.Message{Text: "hi"},
	}
	if got := hub.lastEvent(t); got.Type != models.ClientEventSendMessage || got.ReceiverID != "bob" {
		t.Errorf("hub received wrong event: %+v", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if !hub.disconnected {
		t.Error("hub must be told about the disconnect")
	}
}

func TestConnection_JoinUsesAuthenticatedIdentity(t *testing.T) {
	hub := newMockHub()
	sock := newMockWS()
	conn := NewConnection(hub, sock, "alice")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- conn.Handle(ctx) }()

	// Whatever identity the client claims is replaced by the token's.
	sock.incoming <- models.ClientEvent{Type: models.ClientEventJoin, UserID: "mallory"}
	if got := hub.lastEvent(t); got.UserID != "alice" {
		t.Errorf("join identity not overwritten: %q", got.UserID)
	}

	cancel()
	<-done
}

func TestConnection_WritesOutboundEvents(t *testing.T) {
	hub := newMockHub()
	sock := newMockWS()
	conn := NewConnection(hub, sock, "alice")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- conn.Handle(ctx) }()

	conn.Send(models.ServerEvent{Type: models.ServerEventUserOnline, UserID: "bob"})

	select {
	case ev := <-sock.written:
		if ev.Type != models.ServerEventUserOnline || ev.UserID != "bob" {
			t.Errorf("wrong frame written: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing written to the socket")
	}

	cancel()
	<-done
}

func TestConnection_ReadErrorTearsDown(t *testing.T) {
	hub := newMockHub()
	sock := newMockWS()
	conn := NewConnection(hub, sock, "alice")

	done := make(chan error, 1)
	go func() { done <- conn.Handle(t.Context()) }()

	close(sock.incoming)

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("expected the read error back, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after read failure")
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if !hub.disconnected {
		t.Error("hub must be told about the disconnect")
	}
}

func TestConnection_SendNeverBlocks(t *testing.T) {
	conn := NewConnection(newMockHub(), newMockWS(), "alice")

	// Nobody draining the outbound queue; overflow must be dropped, not
	// block the caller.
	for i := 0; i < outboundBuffer+10; i++ {
		conn.Send(models.ServerEvent{Type: models.ServerEventUserOnline})
	}
	if len(conn.send) != outboundBuffer {
		t.Errorf("expected a full buffer, got %d", len(conn.send))
	}
}
