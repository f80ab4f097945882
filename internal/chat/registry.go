package chat

import (
	"context"
	"fmt"
	"strings"

	"meetmax/internal/apperr"
)

// Registry owns two-party conversations.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// FindOrCreate returns the conversation between requester and target,
// creating it on first contact. The pair is unordered.
func (r *Registry) FindOrCreate(ctx context.Context, requesterID, targetID string) (*Conversation, error) {
	requesterID = strings.TrimSpace(requesterID)
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "USER_ID_REQUIRED", "userId is required")
	}
	if requesterID == targetID {
		return nil, apperr.New(apperr.Forbidden, "SELF_CONVERSATION", "you cannot start a conversation with yourself")
	}

	target, err := r.store.FindUserSummary(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("find or create conversation: lookup user: %w", err)
	}
	if target == nil {
		return nil, apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user not found")
	}

	a, b := OrderedPair(requesterID, targetID)
	existing, err := r.store.FindConversationByParticipants(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("find or create conversation: lookup: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	conv, err := r.store.CreateConversation(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("find or create conversation: create: %w", err)
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first,
// with participants and messages attached.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]Conversation, error) {
	convs, err := r.store.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if convs == nil {
		convs = []Conversation{}
	}
	return convs, nil
}

func (r *Registry) GetByID(ctx context.Context, id string) (*Conversation, error) {
	conv, err := r.store.FindConversationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, apperr.New(apperr.NotFound, "CONVERSATION_NOT_FOUND", "conversation not found")
	}
	return conv, nil
}

// Detail is GetByID with the full history attached, oldest first.
func (r *Registry) Detail(ctx context.Context, id string) (*Conversation, error) {
	conv, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := r.store.ListMessagesByConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation: messages: %w", err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	conv.Messages = msgs
	return conv, nil
}

func (r *Registry) Remove(ctx context.Context, id, requesterID string) error {
	conv, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(requesterID) {
		return apperr.New(apperr.Forbidden, "NOT_A_PARTICIPANT", "you are not a participant of this conversation")
	}
	if err := r.store.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("remove conversation: %w", err)
	}
	return nil
}

func (r *Registry) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	conv, err := r.store.FindConversationByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return conv != nil && conv.HasParticipant(userID), nil
}

func (r *Registry) ConversationIDs(ctx context.Context, userID string) ([]string, error) {
	return r.store.ListConversationIDs(ctx, userID)
}
