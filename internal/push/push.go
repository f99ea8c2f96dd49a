package push

import (
	"encoding/json"
	"errors"
	"log/slog"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/amannsus/Online-Chat-App-sub000/internal/models"
)

// Subscription is a browser web-push subscription registered by a user.
type Subscription struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
	Auth     string `json:"auth"`
	P256dh   string `json:"p256dh"`
}

// SubscriptionStore resolves a user identity to its stored subscription.
type SubscriptionStore interface {
	GetPushSubscription(userID string) (Subscription, error)
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Service sends offline-fallback notices: when a direct message targets a
// user with no live connection, the relay hands the envelope here and a
// web-push notification goes out instead. Strictly best effort.
type Service struct {
	config Config
	store  SubscriptionStore
}

func NewService(config Config, store SubscriptionStore) *Service {
	return &Service{config: config, store: store}
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotifyOffline implements relay.Notifier. The relay calls it in its own
// goroutine, so blocking on the push endpoint here is fine.
func (s *Service) NotifyOffline(userID string, msg models.Message) {
	sub, err := s.store.GetPushSubscription(userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			slog.Warn("failed to load push subscription", "user_id", userID, "error", err)
		}
		return
	}

	body := msg.Text
	if body == "" {
		body = "Sent you an image"
	}
	payload, err := json.Marshal(notification{
		Title: "New message",
		Body:  body,
	})
	if err != nil {
		slog.Error("failed to marshal push payload", "error", err)
		return
	}

	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		Subscriber:      s.config.Subscriber,
		VAPIDPublicKey:  s.config.VAPIDPublicKey,
		VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		slog.Warn("failed to send push notification", "user_id", userID, "error", err)
		return
	}
	_ = resp.Body.Close()
}
