package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/amannsus/Online-Chat-App-sub000/internal/models"
	"github.com/amannsus/Online-Chat-App-sub000/internal/relay"
)

// outboundBuffer is how many server events may queue per connection before
// fan-out starts dropping. Delivery is fire-and-forget: a stalled peer
// loses events instead of stalling its senders.
const outboundBuffer = 64

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type relayHub interface {
	NewSession(ctx context.Context, conn relay.Sender) *relay.Session
	HandleEvent(s *relay.Session, ev models.ClientEvent)
	Disconnect(s *relay.Session)
}

// Connection pumps one websocket: inbound frames go to the relay hub,
// outbound events queued via Send are written back to the socket.
type Connection struct {
	ws         wsConnection
	hub        relayHub
	userID     string
	fromClient chan models.ClientEvent
	send       chan models.ServerEvent
	errorCh    chan error
	closeOnce  sync.Once
}

func NewConnection(hub relayHub, ws wsConnection, userID string) *Connection {
	return &Connection{
		ws:         ws,
		hub:        hub,
		userID:     userID,
		fromClient: make(chan models.ClientEvent),
		send:       make(chan models.ServerEvent, outboundBuffer),
		errorCh:    make(chan error, 2),
	}
}

// Send implements relay.Sender. It never blocks; when the outbound buffer
// is full the event is dropped, which self-heals on the peer's next
// disconnect cleanup.
func (c *Connection) Send(ev models.ServerEvent) {
	select {
	case c.send <- ev:
	default:
		slog.Warn("dropping event for slow connection", "type", ev.Type, "user_id", c.userID)
	}
}

// Close implements relay.Sender. The hub calls it when a newer connection
// for the same user displaces this one.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	sess := c.hub.NewSession(ctx, c)

	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Disconnect(sess)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpEvents(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx, sess)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpEvents(ctx context.Context) error {
	for {
		var ev models.ClientEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			return err
		}
		if ev.Type == models.ClientEventJoin {
			// The identity comes from the authenticated token, never from
			// the client payload.
			ev.UserID = c.userID
		}
		select {
		case c.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context, sess *relay.Session) error {
	for {
		select {
		case ev := <-c.fromClient:
			c.hub.HandleEvent(sess, ev)
		case ev := <-c.send:
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
