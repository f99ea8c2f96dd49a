package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusDeleted UserStatus = "deleted"
)

// User represents a user in the system.
type User struct {
	ID          string     `json:"id"`
	UserName    string     `json:"userName"`
	DisplayName string     `json:"displayName"`
	AvatarURL   string     `json:"avatarUrl"`
	Status      UserStatus `json:"status"`
}

// Message is the envelope relayed between connections. The relay never
// persists it; durable history is written by the HTTP layer before the
// client asks the relay to fan the message out.
type Message struct {
	ID         string `json:"id,omitempty"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	Text       string `json:"text,omitempty"`
	HTML       string `json:"html,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Timestamp  int64  `json:"timestamp"` // Unix timestamp (seconds)
}

type ClientEventType string

const (
	ClientEventJoin             ClientEventType = "join"
	ClientEventJoinGroups       ClientEventType = "joinGroups"
	ClientEventSendMessage      ClientEventType = "sendMessage"
	ClientEventSendGroupMessage ClientEventType = "sendGroupMessage"
	ClientEventTyping           ClientEventType = "typing"
	ClientEventStopTyping       ClientEventType = "stopTyping"
	ClientEventGroupTyping      ClientEventType = "groupTyping"
	ClientEventGroupStopTyping  ClientEventType = "groupStopTyping"
	ClientEventLeaveGroup       ClientEventType = "leaveGroup"
)

type ServerEventType string

const (
	ServerEventUserOnline            ServerEventType = "userOnline"
	ServerEventUserOffline           ServerEventType = "userOffline"
	ServerEventOnlineUsers           ServerEventType = "onlineUsers"
	ServerEventNewMessage            ServerEventType = "newMessage"
	ServerEventMessageDelivered      ServerEventType = "messageDelivered"
	ServerEventMessageError          ServerEventType = "messageError"
	ServerEventNewGroupMessage       ServerEventType = "newGroupMessage"
	ServerEventGroupMessageDelivered ServerEventType = "groupMessageDelivered"
	ServerEventGroupMessageError     ServerEventType = "groupMessageError"
	ServerEventUserTyping            ServerEventType = "userTyping"
	ServerEventUserStopTyping        ServerEventType = "userStopTyping"
	ServerEventGroupUserTyping       ServerEventType = "groupUserTyping"
	ServerEventGroupUserStopTyping   ServerEventType = "groupUserStopTyping"
	ServerEventUserLeftGroup         ServerEventType = "userLeftGroup"
)

// ClientEvent is one frame received from a client connection.
type ClientEvent struct {
	Type       ClientEventType `json:"type"`
	UserID     string          `json:"userId,omitempty"`
	GroupIDs   []string        `json:"groupIds,omitempty"`
	ReceiverID string          `json:"receiverId,omitempty"`
	GroupID    string          `json:"groupId,omitempty"`
	ContactID  string          `json:"contactId,omitempty"`
	Message    *Message        `json:"message,omitempty"`
}

// ServerEvent is one frame emitted to a client connection.
// Delivered is a pointer so acknowledgments can carry an explicit false
// without every other event serializing the field.
type ServerEvent struct {
	Type      ServerEventType `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Users     []string        `json:"users,omitempty"`
	GroupID   string          `json:"groupId,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	Delivered *bool           `json:"delivered,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
