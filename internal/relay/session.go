package relay

import (
	"github.com/amannsus/Online-Chat-App-sub000/internal/dedup"
)

// State is the lifecycle position of one connection's session.
type State int

const (
	// StateUnjoined: connection open, no user identity bound yet. Every
	// event except "join" is silently ignored in this state, since the
	// sender identity is unknown.
	StateUnjoined State = iota
	// StateJoined: identity bound, presence registered.
	StateJoined
	// StateDisconnected: terminal, all associated state torn down.
	StateDisconnected
)

// Session is the per-connection relay state. It is owned by the
// connection's event loop: all HandleEvent and Disconnect calls for one
// session happen serially from that goroutine, so it needs no lock.
type Session struct {
	conn   Sender
	userID string
	state  State
	seen   *dedup.Cache
}

// UserID returns the user identity bound on join, or "" before that.
func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) State() State {
	return s.state
}
