package auth

import (
	"errors"
	"testing"
	"time"
)

type memStore struct {
	credentials map[string]Credentials
	failUpsert  bool
}

func newMemStore() *memStore {
	return &memStore{credentials: make(map[string]Credentials)}
}

func (m *memStore) UpsertCredentials(c Credentials) error {
	if m.failUpsert {
		return errors.New("disk full")
	}
	m.credentials[c.UserName] = c
	return nil
}

func (m *memStore) ListCredentials() ([]Credentials, error) {
	out := make([]Credentials, 0, len(m.credentials))
	for _, c := range m.credentials {
		out = append(out, c)
	}
	return out, nil
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	s, err := NewService(t.Context(), Config{TokenExpiry: time.Minute}, store)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestService_AddUserAndLogin(t *testing.T) {
	store := newMemStore()
	s := newTestService(t, store)

	user, err := s.AddUser("alice", "Alice", "secret123")
	if err != nil {
		t.Fatal(err)
	}
	if user.ID == "" || user.UserName != "alice" || user.DisplayName != "Alice" {
		t.Errorf("unexpected user record: %+v", user)
	}
	if _, ok := store.credentials["alice"]; !ok {
		t.Error("credentials not persisted")
	}
	if store.credentials["alice"].PasswordHash == "secret123" {
		t.Error("password stored in clear")
	}

	resp := s.Login(LoginRequest{Username: "alice", Password: "secret123"})
	if !resp.Success || resp.Token == "" || resp.UserID != user.ID {
		t.Fatalf("login should succeed: %+v", resp)
	}

	userID, err := s.GetUserID(resp.Token)
	if err != nil || userID != user.ID {
		t.Errorf("token should resolve to %s, got %s (%v)", user.ID, userID, err)
	}
}

func TestService_LoginFailures(t *testing.T) {
	s := newTestService(t, newMemStore())
	if _, err := s.AddUser("alice", "", "secret123"); err != nil {
		t.Fatal(err)
	}

	if resp := s.Login(LoginRequest{Username: "alice", Password: "wrong"}); resp.Success {
		t.Error("wrong password must fail")
	}
	if resp := s.Login(LoginRequest{Username: "nobody", Password: "secret123"}); resp.Success {
		t.Error("unknown user must fail")
	}
}

func TestService_AddUserValidation(t *testing.T) {
	store := newMemStore()
	s := newTestService(t, store)

	if _, err := s.AddUser("bad name!", "", "pw"); err == nil {
		t.Error("invalid username must be rejected")
	}

	if _, err := s.AddUser("alice", "", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddUser("alice", "", "pw"); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	// A failed persist must not leave the user usable.
	store.failUpsert = true
	if _, err := s.AddUser("bob", "", "pw"); err == nil {
		t.Fatal("persist failure must surface")
	}
	if resp := s.Login(LoginRequest{Username: "bob", Password: "pw"}); resp.Success {
		t.Error("unpersisted user must not be able to log in")
	}
}

func TestService_Logoff(t *testing.T) {
	s := newTestService(t, newMemStore())
	if _, err := s.AddUser("alice", "", "secret123"); err != nil {
		t.Fatal(err)
	}

	resp := s.Login(LoginRequest{Username: "alice", Password: "secret123"})
	if !resp.Success {
		t.Fatal("login failed")
	}
	if err := s.Logoff(resp.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetUserID(resp.Token); err == nil {
		t.Error("token must be dead after logoff")
	}
}

func TestService_TokenExpiry(t *testing.T) {
	store := newMemStore()
	s, err := NewService(t.Context(), Config{TokenExpiry: 30 * time.Millisecond}, store)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddUser("alice", "", "secret123"); err != nil {
		t.Fatal(err)
	}

	resp := s.Login(LoginRequest{Username: "alice", Password: "secret123"})
	if !resp.Success {
		t.Fatal("login failed")
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := s.GetUserID(resp.Token); err == nil {
		t.Error("expired token must not resolve")
	}
}

func TestService_LoadsOnlyActiveUsers(t *testing.T) {
	store := newMemStore()
	seed := newTestService(t, store)
	if _, err := seed.AddUser("alice", "Alice", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := seed.AddUser("bob", "Bob", "pw"); err != nil {
		t.Fatal(err)
	}

	deleted := store.credentials["bob"]
	deleted.Status = "deleted"
	store.credentials["bob"] = deleted

	s := newTestService(t, store)
	users := s.Users()
	if len(users) != 1 || users[0].UserName != "alice" {
		t.Errorf("expected only alice, got %+v", users)
	}
	if resp := s.Login(LoginRequest{Username: "bob", Password: "pw"}); resp.Success {
		t.Error("deleted user must not log in")
	}
}

func TestService_UsersSortedByDisplayName(t *testing.T) {
	s := newTestService(t, newMemStore())
	for _, u := range [][2]string{{"u1", "Zoe"}, {"u2", "Adam"}, {"u3", "Mia"}} {
		if _, err := s.AddUser(u[0], u[1], "pw"); err != nil {
			t.Fatal(err)
		}
	}

	users := s.Users()
	want := []string{"Adam", "Mia", "Zoe"}
	if len(users) != len(want) {
		t.Fatalf("expected %d users, got %d", len(want), len(users))
	}
	for i, name := range want {
		if users[i].DisplayName != name {
			t.Errorf("position %d: want %s, got %s", i, name, users[i].DisplayName)
		}
	}
}
