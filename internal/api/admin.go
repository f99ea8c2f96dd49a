package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amannsus/Online-Chat-App-sub000/internal/auth"
	"github.com/amannsus/Online-Chat-App-sub000/internal/relay"
)

type AdminHandler struct {
	authService   *auth.Service
	hub           *relay.Hub
	adminPassword string
}

func NewAdminHandler(authService *auth.Service, hub *relay.Hub, adminPassword string) *AdminHandler {
	return &AdminHandler{authService: authService, hub: hub, adminPassword: adminPassword}
}

// RequireAdmin guards the admin API with basic auth.
func (h *AdminHandler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(h.adminPassword)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type AddUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Password    string `json:"password,omitempty"`
}

type AddUserResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// AddUserHandler provisions a user. When no password is supplied a random
// one is generated and returned once in the response.
func (h *AdminHandler) AddUserHandler(w http.ResponseWriter, r *http.Request) {
	var req AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}

	password := req.Password
	if password == "" {
		b := make([]byte, 12)
		if _, err := rand.Read(b); err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		password = base64.RawURLEncoding.EncodeToString(b)
	}

	user, err := h.authService.AddUser(req.Username, req.DisplayName, password)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(AddUserResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to create user: %v", err),
		})
		return
	}

	writeJSON(w, AddUserResponse{
		Success:  true,
		UserID:   user.ID,
		Username: user.UserName,
		Password: password,
	})
}

// ListUsersHandler returns all active users plus who is online right now.
func (h *AdminHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Users  any      `json:"users"`
		Online []string `json:"online"`
	}{Users: h.authService.Users(), Online: h.hub.Online()})
}
