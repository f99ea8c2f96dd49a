package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/amannsus/Online-Chat-App-sub000/internal/auth"
	"github.com/amannsus/Online-Chat-App-sub000/internal/models"
	"github.com/amannsus/Online-Chat-App-sub000/internal/push"
)

var (
	bucketUsers    = []byte("users")
	bucketMessages = []byte("messages")
	bucketPushSubs = []byte("push_subscriptions")
	bucketFiles    = []byte("files")
)

// BboltStorage is the durable side of the system: credentials, message
// history, push subscriptions and uploaded images. The relay core never
// touches it; only the HTTP layer and the auth service do.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketUsers, bucketMessages, bucketPushSubs, bucketFiles} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// DirectConversationID returns the deterministic conversation identity for
// a pair of users, independent of who is the sender.
func DirectConversationID(u1, u2 string) string {
	ids := []string{u1, u2}
	sort.Strings(ids)
	return fmt.Sprintf("dm_%s_%s", ids[0], ids[1])
}

// GroupConversationID returns the conversation identity for a group.
func GroupConversationID(groupID string) string {
	return "group_" + groupID
}

// ConversationID derives the conversation a message belongs to.
func ConversationID(msg models.Message) (string, error) {
	switch {
	case msg.GroupID != "":
		return GroupConversationID(msg.GroupID), nil
	case msg.ReceiverID != "":
		return DirectConversationID(msg.SenderID, msg.ReceiverID), nil
	default:
		return "", errors.New("message has neither receiver nor group")
	}
}

// UpsertCredentials stores new or updated user credentials.
func (s *BboltStorage) UpsertCredentials(credentials auth.Credentials) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		dbUser := &DBUser{
			ID:           credentials.ID,
			UserName:     credentials.UserName,
			DisplayName:  credentials.DisplayName,
			AvatarURL:    credentials.AvatarURL,
			Status:       string(credentials.Status),
			PasswordHash: credentials.PasswordHash,
		}

		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), data)
	})
}

// ListCredentials returns all user credentials stored in the database.
func (s *BboltStorage) ListCredentials() ([]auth.Credentials, error) {
	var credentials []auth.Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			credentials = append(credentials, auth.Credentials{
				User: models.User{
					ID:          dbUser.ID,
					UserName:    dbUser.UserName,
					DisplayName: dbUser.DisplayName,
					AvatarURL:   dbUser.AvatarURL,
					Status:      models.UserStatus(dbUser.Status),
				},
				PasswordHash: dbUser.PasswordHash,
			})
			return nil
		})
	})
	return credentials, err
}

// SaveMessage writes one message into its conversation's history. This is
// the thin persistence write the HTTP layer performs before the client
// instructs the relay to fan the message out.
func (s *BboltStorage) SaveMessage(message models.Message) error {
	convID, err := ConversationID(message)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		convBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(convID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		dbMessage := DBMessage{
			ID:         message.ID,
			SenderID:   message.SenderID,
			ReceiverID: message.ReceiverID,
			GroupID:    message.GroupID,
			Text:       message.Text,
			ImageURL:   message.ImageURL,
			Timestamp:  message.Timestamp,
		}

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return convBucket.Put(dbMessage.Key(), data)
	})
}

// ListMessages returns the messages of one conversation with timestamps in
// [from, to], oldest first.
func (s *BboltStorage) ListMessages(conversationID string, from, to int64) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		convBucket := tx.Bucket(bucketMessages).Bucket([]byte(conversationID))
		if convBucket == nil {
			return nil // no messages for this conversation
		}

		c := convBucket.Cursor()

		minKey := make([]byte, 8)
		binary.BigEndian.PutUint64(minKey, uint64(from))

		// Inclusive upper bound: the id suffix sorts after the bare prefix.
		// Clamped so to == MaxInt64 does not wrap the key to zero.
		if to == math.MaxInt64 {
			to = math.MaxInt64 - 1
		}
		maxKey := make([]byte, 8)
		binary.BigEndian.PutUint64(maxKey, uint64(to)+1)

		for k, v := c.Seek(minKey); k != nil && bytes.Compare(k, maxKey) < 0; k, v = c.Next() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, models.Message{
				ID:         dbMsg.ID,
				SenderID:   dbMsg.SenderID,
				ReceiverID: dbMsg.ReceiverID,
				GroupID:    dbMsg.GroupID,
				Text:       dbMsg.Text,
				ImageURL:   dbMsg.ImageURL,
				Timestamp:  dbMsg.Timestamp,
			})
		}
		return nil
	})
	return messages, err
}

// DeleteMessagesBefore removes every message older than cutoff across all
// conversations and reports how many were deleted. The retention sweep
// scheduler calling this lives outside this repository.
func (s *BboltStorage) DeleteMessagesBefore(cutoff int64) (int, error) {
	deleted := 0
	cutoffKey := make([]byte, 8)
	binary.BigEndian.PutUint64(cutoffKey, uint64(cutoff))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketMessages)
		return root.ForEachBucket(func(name []byte) error {
			convBucket := root.Bucket(name)
			c := convBucket.Cursor()
			for k, _ := c.First(); k != nil && bytes.Compare(k, cutoffKey) < 0; k, _ = c.Next() {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// UpsertPushSubscription stores a user's web-push subscription, replacing
// any previous one.
func (s *BboltStorage) UpsertPushSubscription(sub push.Subscription) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPushSubs)
		dbSub := &DBPushSubscription{
			UserID:   sub.UserID,
			Endpoint: sub.Endpoint,
			Auth:     sub.Auth,
			P256dh:   sub.P256dh,
		}
		data, err := dbSub.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbSub.Key(), data)
	})
}

// GetPushSubscription returns the stored web-push subscription for userID.
func (s *BboltStorage) GetPushSubscription(userID string) (push.Subscription, error) {
	var sub push.Subscription
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPushSubs).Get([]byte(userID))
		if data == nil {
			return models.ErrNotFound
		}
		var dbSub DBPushSubscription
		if err := dbSub.UnmarshalBinary(data); err != nil {
			return err
		}
		sub = push.Subscription{
			UserID:   dbSub.UserID,
			Endpoint: dbSub.Endpoint,
			Auth:     dbSub.Auth,
			P256dh:   dbSub.P256dh,
		}
		return nil
	})
	return sub, err
}

// FileMetadata describes one stored image blob.
type FileMetadata struct {
	ID        string
	MimeType  string
	Size      int64
	CreatedAt int64
	UserID    string
}

// PutFile stores an uploaded image blob with its metadata.
func (s *BboltStorage) PutFile(meta FileMetadata, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbFile := &DBFile{
			ID:        meta.ID,
			MimeType:  meta.MimeType,
			Size:      meta.Size,
			CreatedAt: meta.CreatedAt,
			UserID:    meta.UserID,
			Data:      data,
		}
		encoded, err := dbFile.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal file: %w", err)
		}
		return tx.Bucket(bucketFiles).Put(dbFile.Key(), encoded)
	})
}

// GetFile returns a stored image blob and its metadata.
func (s *BboltStorage) GetFile(id string) (FileMetadata, []byte, error) {
	var meta FileMetadata
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbFile DBFile
		if err := dbFile.UnmarshalBinary(data); err != nil {
			return err
		}
		meta = FileMetadata{
			ID:        dbFile.ID,
			MimeType:  dbFile.MimeType,
			Size:      dbFile.Size,
			CreatedAt: dbFile.CreatedAt,
			UserID:    dbFile.UserID,
		}
		blob = dbFile.Data
		return nil
	})
	return meta, blob, err
}
