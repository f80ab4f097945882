package chat

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

const peerSendBuffer = 64

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type peer struct {
	userID string
	send   chan []byte
	done   chan struct{}

	mu     sync.Mutex
	rooms  map[string]struct{}
	left   map[string]struct{}
	closed bool
}

func newPeer(userID string) *peer {
	return &peer{
		userID: userID,
		send:   make(chan []byte, peerSendBuffer),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
		left:   make(map[string]struct{}),
	}
}

// enqueue never blocks; a full buffer drops the frame.
func (p *peer) enqueue(frame []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

func (p *peer) writeFrame(frame wsFrame) bool {
	raw, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	return p.enqueue(raw)
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

// hasLeft reports whether the connection asked to leave the room.
func (p *peer) hasLeft(conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.left[conversationID]
	return ok
}

func (p *peer) roomIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.rooms))
	for id := range p.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Hub maps conversation ids to the connections subscribed to them and keeps
// every connection indexed by its user.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*peer]struct{}
	users map[string]map[*peer]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*peer]struct{}),
		users: make(map[string]map[*peer]struct{}),
	}
}

func (h *Hub) register(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[p.userID]
	if !ok {
		conns = make(map[*peer]struct{})
		h.users[p.userID] = conns
	}
	conns[p] = struct{}{}
}

func (h *Hub) join(conversationID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(conversationID, p)
}

// joinLocked takes p.mu while holding h.mu; never the other way round.
func (h *Hub) joinLocked(conversationID string, p *peer) {
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*peer]struct{})
		h.rooms[conversationID] = room
	}
	room[p] = struct{}{}

	p.mu.Lock()
	p.rooms[conversationID] = struct{}{}
	delete(p.left, conversationID)
	p.mu.Unlock()
}

func (h *Hub) leave(conversationID string, p *peer) {
	h.mu.Lock()
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, p)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	h.mu.Unlock()

	p.mu.Lock()
	delete(p.rooms, conversationID)
	p.left[conversationID] = struct{}{}
	p.mu.Unlock()
}

// leaveAll drops p from its rooms and from the user index.
func (h *Hub) leaveAll(p *peer) {
	for _, id := range p.roomIDs() {
		h.leave(id, p)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[p.userID]; ok {
		delete(conns, p)
		if len(conns) == 0 {
			delete(h.users, p.userID)
		}
	}
}

// Subscribers returns the number of connections in a conversation's room.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[conversationID])
}

// Publish delivers locally. It satisfies Broadcaster for single-instance runs.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.Deliver(ev)
	return nil
}

// Deliver pushes ev to every connection in its room and returns how many
// accepted it. Connections of the event's participants that are not in the
// room yet (a conversation created after they connected) join it first,
// unless they left it explicitly.
func (h *Hub) Deliver(ev Event) int {
	raw, err := json.Marshal(wsFrame{Type: ev.Name, Payload: ev.Payload})
	if err != nil {
		log.Printf("chat: encode frame failed: %v", err)
		return 0
	}

	h.mu.Lock()
	for _, userID := range ev.Participants {
		for p := range h.users[userID] {
			if _, in := h.rooms[ev.ConversationID][p]; !in && !p.hasLeft(ev.ConversationID) {
				h.joinLocked(ev.ConversationID, p)
			}
		}
	}
	room := h.rooms[ev.ConversationID]
	peers := make([]*peer, 0, len(room))
	for p := range room {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	delivered := 0
	for _, p := range peers {
		if p.enqueue(raw) {
			delivered++
		}
	}
	return delivered
}
