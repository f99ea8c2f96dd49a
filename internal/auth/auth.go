package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/amannsus/Online-Chat-App-sub000/internal/content"
	"github.com/amannsus/Online-Chat-App-sub000/internal/models"
)

const (
	DefaultTokenExpiry = 12 * time.Hour
	loginFailedMessage = "Login failed"
)

var (
	ErrUserExists = errors.New("user already exists")
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Token       string `json:"token,omitempty"`
	TokenExpiry int64  `json:"tokenExpiry,omitempty"`
}

// Credentials is a user record plus its secret material. Only the User
// part ever leaves this package.
type Credentials struct {
	models.User
	PasswordHash string
}

// Store persists credentials across restarts. Live tokens are deliberately
// not persisted: relay sessions are scoped to one process lifetime anyway,
// so clients re-login after a restart.
type Store interface {
	UpsertCredentials(credentials Credentials) error
	ListCredentials() ([]Credentials, error)
}

type Config struct {
	TokenExpiry time.Duration `json:"tokenExpiry"`
}

func (c *Config) Validate() error {
	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}
	if c.TokenExpiry < 0 {
		return errors.New("token expiry must be positive")
	}
	return nil
}

// Service authenticates users and resolves bearer tokens to user
// identities. The websocket server consults it before upgrading a
// connection; the relay core itself never sees a token.
type Service struct {
	Config
	store      Store
	users      *geche.Locker[string, *Credentials]
	liveTokens geche.Geche[string, string]
	now        func() time.Time
}

func NewService(ctx context.Context, config Config, store Store) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		Config:     config,
		store:      store,
		users:      geche.NewLocker[string, *Credentials](geche.NewMapCache[string, *Credentials]()),
		liveTokens: geche.NewMapTTLCache[string, string](ctx, config.TokenExpiry, time.Minute),
		now:        time.Now,
	}

	credentials, err := store.ListCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	tx := s.users.Lock()
	defer tx.Unlock()
	for _, c := range credentials {
		if c.Status != models.UserStatusActive {
			continue
		}
		cc := c
		tx.Set(c.UserName, &cc)
	}

	return s, nil
}

// AddUser creates an active user with the given password and persists it.
func (s *Service) AddUser(username, displayName, password string) (models.User, error) {
	if err := content.ValidateUsername(username); err != nil {
		return models.User{}, err
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	tx := s.users.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(username); err == nil {
		return models.User{}, ErrUserExists
	}

	credentials := &Credentials{
		User: models.User{
			ID:          uuid.NewString(),
			UserName:    username,
			DisplayName: content.Sanitize(displayName),
			Status:      models.UserStatusActive,
		},
		PasswordHash: string(hash),
	}

	if err := s.store.UpsertCredentials(*credentials); err != nil {
		return models.User{}, fmt.Errorf("failed to persist credentials: %w", err)
	}
	tx.Set(username, credentials)

	return credentials.User, nil
}

func (s *Service) Login(req LoginRequest) LoginResponse {
	tx := s.users.Lock()
	user, err := tx.Get(req.Username)
	tx.Unlock()
	if err != nil {
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Info("failed login attempt", "username", req.Username)
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	token, err := s.generateToken()
	if err != nil {
		slog.Error("login failed", "user_id", user.ID, "error", err)
		return LoginResponse{Success: false, Message: "internal error"}
	}

	s.liveTokens.Set(token, user.ID)

	return LoginResponse{
		Success:     true,
		UserID:      user.ID,
		Token:       token,
		TokenExpiry: s.now().Unix() + int64(s.TokenExpiry.Seconds()),
	}
}

func (s *Service) Logoff(token string) error {
	return s.liveTokens.Del(token)
}

// GetUserID resolves a live bearer token to a user identity.
func (s *Service) GetUserID(token string) (string, error) {
	return s.liveTokens.Get(token)
}

// Users lists all active users sorted by display name.
func (s *Service) Users() []models.User {
	tx := s.users.Lock()
	snapshot := tx.Snapshot()
	tx.Unlock()

	users := make([]models.User, 0, len(snapshot))
	for _, c := range snapshot {
		users = append(users, c.User)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].DisplayName < users[j].DisplayName
	})
	return users
}

func (s *Service) generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
