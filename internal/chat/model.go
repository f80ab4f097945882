package chat

import (
	"context"
	"time"
)

// PageSize is the number of messages returned per history page.
const PageSize = 10

type UserSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

// Conversation joins exactly two users. UserA sorts before UserB so the pair
// has a single stored form.
type Conversation struct {
	ID            string        `json:"id"`
	UserA         string        `json:"-"`
	UserB         string        `json:"-"`
	Participants  []UserSummary `json:"participants"`
	Messages      []Message     `json:"messages,omitempty"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.UserA == userID || c.UserB == userID)
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Image          *string   `json:"image"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NewMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	Image          *string
}

type Page struct {
	Data       []Message `json:"data"`
	NextCursor *int64    `json:"nextCursor"`
}

// Store persists conversations and messages. Lookups return (nil, nil) when
// nothing matches. CreateConversation returns the existing row when the pair
// is already taken.
type Store interface {
	FindUserSummary(ctx context.Context, userID string) (*UserSummary, error)
	FindConversationByParticipants(ctx context.Context, userA, userB string) (*Conversation, error)
	CreateConversation(ctx context.Context, userA, userB string) (*Conversation, error)
	FindConversationByID(ctx context.Context, id string) (*Conversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]Conversation, error)
	ListConversationIDs(ctx context.Context, userID string) ([]string, error)
	DeleteConversation(ctx context.Context, id string) error
	CreateMessage(ctx context.Context, m NewMessage) (*Message, error)
	FindMessagesPage(ctx context.Context, conversationID string, cursor *int64, limit int) ([]Message, error)
	ListMessagesByConversation(ctx context.Context, conversationID string) ([]Message, error)
	FindMessage(ctx context.Context, id int64) (*Message, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// OrderedPair returns a and b in stored order.
func OrderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
