package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"

	"github.com/amannsus/Online-Chat-App-sub000/internal/auth"
	"github.com/amannsus/Online-Chat-App-sub000/internal/models"
	"github.com/amannsus/Online-Chat-App-sub000/internal/push"
	"github.com/amannsus/Online-Chat-App-sub000/internal/storage"
)

const maxImageSize = 5 << 20 // 5 MiB

type API struct {
	auth  *auth.Service
	store *storage.BboltStorage
}

func New(authService *auth.Service, store *storage.BboltStorage) *API {
	return &API{auth: authService, store: store}
}

func (a *API) getToken(r *http.Request) string {
	token := r.Header.Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	return token
}

// RequireAuth wraps a handler, resolving the bearer token to a user
// identity passed via the request context's header surrogate.
func (a *API) RequireAuth(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.auth.GetUserID(a.getToken(r))
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, userID)
	}
}

// RequireSameOrigin rejects state-changing cross-site requests.
func RequireSameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = r.Header.Get("Referer")
		}
		if origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loginResp := a.auth.Login(req)
	if !loginResp.Success {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, loginResp)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    loginResp.Token,
		HttpOnly: true,
		Path:     "/",
		Expires:  time.Unix(loginResp.TokenExpiry, 0),
	})

	writeJSON(w, loginResp)
}

func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	if token := a.getToken(r); token != "" {
		_ = a.auth.Logoff(token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusOK)
}

func (a *API) UsersHandler(w http.ResponseWriter, r *http.Request, _ string) {
	writeJSON(w, a.auth.Users())
}

// MessagesHandler returns conversation history: ?with=<userID> for a
// direct conversation, ?group=<groupID> for a group, optional from/to
// Unix-second bounds.
func (a *API) MessagesHandler(w http.ResponseWriter, r *http.Request, userID string) {
	var convID string
	switch {
	case r.URL.Query().Get("with") != "":
		convID = storage.DirectConversationID(userID, r.URL.Query().Get("with"))
	case r.URL.Query().Get("group") != "":
		convID = storage.GroupConversationID(r.URL.Query().Get("group"))
	default:
		http.Error(w, "with or group parameter is required", http.StatusBadRequest)
		return
	}

	from := queryInt64(r, "from", 0)
	to := queryInt64(r, "to", time.Now().Unix())

	messages, err := a.store.ListMessages(convID, from, to)
	if err != nil {
		log.Printf("failed to list messages for %s: %v", convID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, messages)
}

// SaveMessageHandler is the thin persistence write: clients call it before
// emitting the send event on the websocket, so history is durable
// regardless of relay outcome.
func (a *API) SaveMessageHandler(w http.ResponseWriter, r *http.Request, userID string) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg.SenderID = userID
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	if msg.Text == "" && msg.ImageURL == "" {
		http.Error(w, "Message requires a text or image payload", http.StatusBadRequest)
		return
	}

	if err := a.store.SaveMessage(msg); err != nil {
		log.Printf("failed to save message from %s: %v", userID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, models.APIResponse{Success: true})
}

func (a *API) SubscribePushHandler(w http.ResponseWriter, r *http.Request, userID string) {
	var sub push.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if sub.Endpoint == "" || sub.Auth == "" || sub.P256dh == "" {
		http.Error(w, "endpoint, auth and p256dh are required", http.StatusBadRequest)
		return
	}

	sub.UserID = userID
	if err := a.store.UpsertPushSubscription(sub); err != nil {
		log.Printf("failed to store push subscription for %s: %v", userID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, models.APIResponse{Success: true})
}

// UploadImageHandler accepts an image blob and returns the id under which
// it is served; the client embeds the resulting URL in a message envelope.
func (a *API) UploadImageHandler(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageSize+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Empty upload", http.StatusBadRequest)
		return
	}
	if len(data) > maxImageSize {
		http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
		return
	}

	kind, err := filetype.Match(data)
	if err != nil || kind.MIME.Type != "image" {
		http.Error(w, "Unsupported file type (images only)", http.StatusUnsupportedMediaType)
		return
	}
	if kind == matchers.TypeIco {
		http.Error(w, "Unsupported image format", http.StatusUnsupportedMediaType)
		return
	}

	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])

	meta := storage.FileMetadata{
		ID:        id,
		MimeType:  kind.MIME.Value,
		Size:      int64(len(data)),
		CreatedAt: time.Now().Unix(),
		UserID:    userID,
	}
	if err := a.store.PutFile(meta, data); err != nil {
		log.Printf("failed to store image from %s: %v", userID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		URL     string `json:"url"`
	}{Success: true, ID: id, URL: "/api/images/" + id})
}

func (a *API) GetImageHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meta, data, err := a.store.GetFile(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func queryInt64(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
