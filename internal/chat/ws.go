package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"
)

const (
	frameJoin     = "conversation.join"
	frameLeave    = "conversation.leave"
	framePing     = "ping"
	frameReady    = "ready"
	frameJoined   = "joined"
	frameLeft     = "left"
	framePong     = "pong"
	frameError    = "error"
	maxFrameBytes = 4 << 10

	maxDecodeErrorsPerConn = 5
)

// Authenticator resolves the user behind a WebSocket upgrade request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type wsUserIDContextKey struct{}

type roomPayload struct {
	ConversationID string `json:"conversationId"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSHandler upgrades authenticated requests and subscribes the connection
// to every conversation its user belongs to.
type WSHandler struct {
	hub      *Hub
	registry *Registry
	auth     Authenticator
}

func NewWSHandler(hub *Hub, registry *Registry, auth Authenticator) *WSHandler {
	return &WSHandler{hub: hub, registry: registry, auth: auth}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := h.auth.Authenticate(r)
	if err != nil || strings.TrimSpace(userID) == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ctx := context.WithValue(r.Context(), wsUserIDContextKey{}, userID)
	srv := websocket.Server{
		// Clients authenticate with a bearer token, not cookies.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serveConn,
	}
	srv.ServeHTTP(w, r.WithContext(ctx))
}

func (h *WSHandler) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := conn.Request().Context()
	userID, _ := ctx.Value(wsUserIDContextKey{}).(string)

	p := newPeer(userID)
	h.hub.register(p)
	defer func() {
		h.hub.leaveAll(p)
		p.close()
	}()
	go writeLoop(conn, p)

	ids, err := h.registry.ConversationIDs(ctx, userID)
	if err != nil {
		log.Printf("chat: load conversations for %s failed: %v", userID, err)
		writeWSError(p, "", "INTERNAL", "could not load conversations")
		return
	}
	for _, id := range ids {
		h.hub.join(id, p)
	}
	if ids == nil {
		ids = []string{}
	}
	ready, _ := json.Marshal(map[string][]string{"conversationIds": ids})
	p.writeFrame(wsFrame{Type: frameReady, Payload: ready})

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			var syntaxErr *json.SyntaxError
			if !errors.As(err, &syntaxErr) {
				return
			}
			decodeErrors++
			writeWSError(p, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFrameBytes {
			writeWSError(p, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}
		h.handleFrame(ctx, p, frame)
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, p *peer, frame wsFrame) {
	switch frame.Type {
	case framePing:
		p.writeFrame(wsFrame{Type: framePong, RequestID: frame.RequestID})
	case frameJoin, frameLeave:
		var payload roomPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || strings.TrimSpace(payload.ConversationID) == "" {
			writeWSError(p, frame.RequestID, "INVALID_ARGUMENT", "conversationId is required")
			return
		}
		if frame.Type == frameLeave {
			h.hub.leave(payload.ConversationID, p)
			p.writeFrame(wsFrame{Type: frameLeft, RequestID: frame.RequestID, Payload: frame.Payload})
			return
		}
		ok, err := h.registry.IsParticipant(ctx, payload.ConversationID, p.userID)
		if err != nil {
			log.Printf("chat: participant check failed: %v", err)
			writeWSError(p, frame.RequestID, "INTERNAL", "could not join conversation")
			return
		}
		if !ok {
			writeWSError(p, frame.RequestID, "FORBIDDEN", "you are not a participant of this conversation")
			return
		}
		h.hub.join(payload.ConversationID, p)
		p.writeFrame(wsFrame{Type: frameJoined, RequestID: frame.RequestID, Payload: frame.Payload})
	default:
		writeWSError(p, frame.RequestID, "INVALID_ARGUMENT", "unknown frame type")
	}
}

func writeLoop(conn *websocket.Conn, p *peer) {
	for {
		select {
		case <-p.done:
			return
		case raw := <-p.send:
			if err := websocket.Message.Send(conn, string(raw)); err != nil {
				p.close()
				_ = conn.Close()
				return
			}
		}
	}
}

func writeWSError(p *peer, requestID, code, message string) {
	raw, _ := json.Marshal(errorPayload{Code: code, Message: message})
	p.writeFrame(wsFrame{Type: frameError, RequestID: requestID, Payload: raw})
}
