// Package memstore keeps users, codes, conversations and messages in memory.
// It implements auth.Store and chat.Store with the same semantics as the
// Postgres repositories.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetmax/internal/apperr"
	"meetmax/internal/auth"
	"meetmax/internal/chat"
)

type Store struct {
	mu            sync.Mutex
	users         map[string]*auth.User
	codes         []auth.VerificationCode
	conversations map[string]*chat.Conversation
	messages      []chat.Message
	nextMessageID int64
	now           func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[string]*auth.User),
		conversations: make(map[string]*chat.Conversation),
		now:           time.Now,
	}
}

func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (s *Store) FindUserByGoogleID(_ context.Context, googleID string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) CreateUser(_ context.Context, nu auth.NewUser) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, nu.Email) {
			return nil, apperr.New(apperr.Conflict, "EMAIL_TAKEN", "a user with this email already exists")
		}
		if nu.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *nu.GoogleID {
			return nil, apperr.New(apperr.Conflict, "GOOGLE_ACCOUNT_LINKED", "this Google account is linked to another user")
		}
	}
	now := s.now()
	u := &auth.User{
		ID:            uuid.NewString(),
		Name:          nu.Name,
		Email:         nu.Email,
		PasswordHash:  nu.PasswordHash,
		GoogleID:      nu.GoogleID,
		EmailVerified: nu.EmailVerified,
		Birth:         nu.Birth,
		Gender:        nu.Gender,
		Image:         nu.Image,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.users[u.ID] = u
	return copyUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, id string, upd auth.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	if upd.PasswordHash != nil {
		v := *upd.PasswordHash
		u.PasswordHash = &v
	}
	if upd.GoogleID != nil {
		v := *upd.GoogleID
		u.GoogleID = &v
	}
	if upd.EmailVerified != nil {
		u.EmailVerified = *upd.EmailVerified
	}
	if upd.Image != nil {
		v := *upd.Image
		u.Image = &v
	}
	if upd.ClearRefreshToken {
		u.RefreshTokenHash = nil
	} else if upd.RefreshTokenHash != nil {
		v := *upd.RefreshTokenHash
		u.RefreshTokenHash = &v
	}
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) CreateCode(_ context.Context, code auth.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = s.now()
	}
	s.codes = append(s.codes, code)
	return nil
}

// FindCodeByUser returns the most recently stored code of the kind.
func (s *Store) FindCodeByUser(_ context.Context, userID string, kind auth.CodeKind) (*auth.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.codes) - 1; i >= 0; i-- {
		c := s.codes[i]
		if c.UserID == userID && c.Kind == kind {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) DeleteCodesByUserAndKind(_ context.Context, userID string, kind auth.CodeKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.codes[:0]
	for _, c := range s.codes {
		if c.UserID == userID && c.Kind == kind {
			continue
		}
		kept = append(kept, c)
	}
	s.codes = kept
	return nil
}

// Codes returns every stored code for the user, oldest first.
func (s *Store) Codes(userID string, kind auth.CodeKind) []auth.VerificationCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.VerificationCode
	for _, c := range s.codes {
		if c.UserID == userID && c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) FindUserSummary(_ context.Context, userID string) (*chat.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return summary(u), nil
}

func (s *Store) FindConversationByParticipants(_ context.Context, userA, userB string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findPairLocked(userA, userB), nil
}

func (s *Store) CreateConversation(_ context.Context, userA, userB string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findPairLocked(userA, userB); existing != nil {
		return existing, nil
	}
	a, b := chat.OrderedPair(userA, userB)
	now := s.now()
	c := &chat.Conversation{
		ID:            uuid.NewString(),
		UserA:         a,
		UserB:         b,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	s.conversations[c.ID] = c
	return s.withParticipantsLocked(c), nil
}

func (s *Store) FindConversationByID(_ context.Context, id string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return s.withParticipantsLocked(c), nil
}

func (s *Store) ListConversationsByUser(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Conversation
	for _, c := range s.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		conv := s.withParticipantsLocked(c)
		for _, m := range s.messages {
			if m.ConversationID == c.ID {
				conv.Messages = append(conv.Messages, m)
			}
		}
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (s *Store) ListConversationIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, c := range s.conversations {
		if c.HasParticipant(userID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ConversationID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *Store) CreateMessage(_ context.Context, nm chat.NewMessage) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessageID++
	m := chat.Message{
		ID:             s.nextMessageID,
		ConversationID: nm.ConversationID,
		SenderID:       nm.SenderID,
		Content:        nm.Content,
		Image:          nm.Image,
		CreatedAt:      s.now(),
	}
	s.messages = append(s.messages, m)
	if c, ok := s.conversations[nm.ConversationID]; ok {
		c.LastMessageAt = m.CreatedAt
	}
	return &m, nil
}

func (s *Store) FindMessagesPage(_ context.Context, conversationID string, cursor *int64, limit int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if m.ConversationID != conversationID {
			continue
		}
		if cursor != nil && m.ID >= *cursor {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) ListMessagesByConversation(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) FindMessage(_ context.Context, id int64) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			msg := m
			return &msg, nil
		}
	}
	return nil, nil
}

func (s *Store) DeleteMessage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) findPairLocked(userA, userB string) *chat.Conversation {
	a, b := chat.OrderedPair(userA, userB)
	for _, c := range s.conversations {
		if c.UserA == a && c.UserB == b {
			return s.withParticipantsLocked(c)
		}
	}
	return nil
}

func (s *Store) withParticipantsLocked(c *chat.Conversation) *chat.Conversation {
	out := *c
	out.Messages = nil
	out.Participants = nil
	for _, id := range []string{c.UserA, c.UserB} {
		if u, ok := s.users[id]; ok {
			out.Participants = append(out.Participants, *summary(u))
		}
	}
	return &out
}

func summary(u *auth.User) *chat.UserSummary {
	return &chat.UserSummary{ID: u.ID, Name: u.Name, Image: u.Image}
}

func copyUser(u *auth.User) *auth.User {
	out := *u
	return &out
}
