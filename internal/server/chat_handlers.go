package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"meetmax/internal/apperr"
	"meetmax/internal/chat"
)

type createConversationRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	conv, err := s.Conversations.FindOrCreate(r.Context(), claims.UserID, req.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	convs, err := s.Conversations.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	conv, err := s.Conversations.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !conv.HasParticipant(claims.UserID) {
		writeAppError(w, r, apperr.New(apperr.Forbidden, "NOT_A_PARTICIPANT", "you are not a participant of this conversation"))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.Conversations.Remove(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	q := r.URL.Query()
	conversationID := strings.TrimSpace(q.Get("conversationId"))
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "CONVERSATION_ID_REQUIRED", "conversationId is required")
		return
	}

	var cursor *int64
	if raw := strings.TrimSpace(q.Get("cursor")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "cursor must be a message id")
			return
		}
		cursor = &id
	}

	if _, err := s.participantConversation(r.Context(), conversationID, claims.UserID); err != nil {
		writeAppError(w, r, err)
		return
	}

	page, err := s.Messages.ListMessages(r.Context(), conversationID, cursor)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type createMessageRequest struct {
	ConversationID string  `json:"conversationId"`
	Content        string  `json:"content"`
	Image          *string `json:"image"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, "CONVERSATION_ID_REQUIRED", "conversationId is required")
		return
	}

	msg, err := s.Messages.PostMessage(r.Context(), claims.UserID, req.ConversationID, req.Content, req.Image)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MESSAGE_ID", "messageId must be a number")
		return
	}
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversationId"))
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "CONVERSATION_ID_REQUIRED", "conversationId is required")
		return
	}

	if _, err := s.participantConversation(r.Context(), conversationID, claims.UserID); err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := s.Messages.RemoveMessage(r.Context(), messageID, conversationID); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted"})
}

func (s *Server) participantConversation(ctx context.Context, conversationID, userID string) (*chat.Conversation, error) {
	conv, err := s.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.New(apperr.Forbidden, "NOT_A_PARTICIPANT", "you are not a participant of this conversation")
	}
	return conv, nil
}
