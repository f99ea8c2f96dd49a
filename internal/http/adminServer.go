package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/amannsus/Online-Chat-App-sub000/internal/api"
	"github.com/amannsus/Online-Chat-App-sub000/internal/auth"
	"github.com/amannsus/Online-Chat-App-sub000/internal/relay"
)

type AdminServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAdminServer(authService *auth.Service, hub *relay.Hub, adminPassword, addr string) *AdminServer {
	adminHandler := api.NewAdminHandler(authService, hub, adminPassword)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/users", adminHandler.RequireAdmin(adminHandler.AddUserHandler))
	mux.HandleFunc("GET /admin/users", adminHandler.RequireAdmin(adminHandler.ListUsersHandler))

	if addr == "" {
		addr = "localhost:8081"
	}

	return &AdminServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *AdminServer) Start() error {
	log.Printf("Admin API started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
