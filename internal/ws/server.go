package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

type tokenValidator interface {
	GetUserID(token string) (string, error)
}

type Server struct {
	auth     tokenValidator
	hub      relayHub
	upgrader *websocket.Upgrader
}

func NewServer(auth tokenValidator, hub relayHub) *Server {
	return &Server{
		auth: auth,
		hub:  hub,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

// HandleConnections authenticates the request, upgrades it and runs the
// connection until the peer goes away. Browsers cannot set headers on
// websocket dials, so the token is also accepted as a query parameter or
// cookie.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.GetUserID(requestToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	conn := NewConnection(s.hub, ws, userID)
	if err := conn.Handle(r.Context()); err != nil {
		log.Printf("connection for user %s closed: %v", userID, err)
	}
}

func requestToken(r *http.Request) string {
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
