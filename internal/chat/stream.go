package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"meetmax/internal/apperr"
)

const (
	EventNewMessage     = "newMessage"
	EventMessageDeleted = "messageDeleted"
)

// Event is a broadcast scoped to one conversation's subscribers.
// Participants lets every instance route it to connections that have not
// joined the room yet.
type Event struct {
	Name           string          `json:"name"`
	ConversationID string          `json:"conversationId"`
	Participants   []string        `json:"participants,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

// Broadcaster hands an event to live subscribers without waiting for them.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event) error
}

// Stream serves message history and fans new messages out to subscribers.
type Stream struct {
	store       Store
	registry    *Registry
	broadcaster Broadcaster
}

func NewStream(store Store, registry *Registry, broadcaster Broadcaster) *Stream {
	return &Stream{store: store, registry: registry, broadcaster: broadcaster}
}

// ListMessages returns one page of history, newest first. cursor is the id of
// the last message of the previous page.
func (s *Stream) ListMessages(ctx context.Context, conversationID string, cursor *int64) (Page, error) {
	if strings.TrimSpace(conversationID) == "" {
		return Page{}, apperr.New(apperr.InvalidArgument, "CONVERSATION_ID_REQUIRED", "conversationId is required")
	}

	msgs, err := s.store.FindMessagesPage(ctx, conversationID, cursor, PageSize)
	if err != nil {
		return Page{}, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []Message{}
	}

	page := Page{Data: msgs}
	if len(msgs) == PageSize {
		last := msgs[len(msgs)-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

func (s *Stream) PostMessage(ctx context.Context, senderID, conversationID, content string, image *string) (*Message, error) {
	content = strings.TrimSpace(content)
	if image != nil && strings.TrimSpace(*image) == "" {
		image = nil
	}
	if content == "" && image == nil {
		return nil, apperr.New(apperr.InvalidArgument, "EMPTY_MESSAGE", "message content is required")
	}

	conv, err := s.registry.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperr.New(apperr.Forbidden, "NOT_A_PARTICIPANT", "you are not a participant of this conversation")
	}

	msg, err := s.store.CreateMessage(ctx, NewMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Image:          image,
	})
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}

	s.emit(ctx, EventNewMessage, conv, msg)
	return msg, nil
}

type deletedPayload struct {
	ID             int64  `json:"id"`
	ConversationID string `json:"conversationId"`
}

func (s *Stream) RemoveMessage(ctx context.Context, messageID int64, conversationID string) error {
	if messageID <= 0 || strings.TrimSpace(conversationID) == "" {
		return apperr.New(apperr.InvalidArgument, "IDS_REQUIRED", "messageId and conversationId are required")
	}

	conv, err := s.registry.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	msg, err := s.store.FindMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("remove message: lookup: %w", err)
	}
	if msg == nil || msg.ConversationID != conv.ID {
		return apperr.New(apperr.NotFound, "MESSAGE_NOT_FOUND", "message not found")
	}

	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("remove message: %w", err)
	}

	s.emit(ctx, EventMessageDeleted, conv, deletedPayload{ID: messageID, ConversationID: conv.ID})
	return nil
}

// emit is fire-and-forget: a failed broadcast never fails the write.
func (s *Stream) emit(ctx context.Context, name string, conv *Conversation, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("chat: encode %s event failed: %v", name, err)
		return
	}
	ev := Event{
		Name:           name,
		ConversationID: conv.ID,
		Participants:   []string{conv.UserA, conv.UserB},
		Payload:        raw,
	}
	if err := s.broadcaster.Publish(ctx, ev); err != nil {
		log.Printf("chat: publish %s for conversation %s failed: %v", name, conv.ID, err)
	}
}
