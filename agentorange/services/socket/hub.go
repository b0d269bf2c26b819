package socket

import (
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/logging"
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const outboundBuffer = 64

// Message carries one chat message update for a group.
type Message struct {
	GroupID string             `json:"group_id"`
	Origin  string             `json:"origin"`
	Data    models.ChatMessage `json:"data"`
}

// Client is one subscriber. Outbound is closed when the client unsubscribes.
type Client struct {
	ID       uuid.UUID
	GroupID  string
	Outbound chan Message
}

type broadcaster interface {
	Publish(ctx context.Context, msg Message) error
}

// Hub fans message updates out to the subscribers of each group. With a remote
// broadcaster attached, updates also reach subscribers on other nodes.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[uuid.UUID]*Client
	nodeID string
	remote broadcaster
}

func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[uuid.UUID]*Client),
		nodeID: uuid.NewString(),
	}
}

func (h *Hub) SetRemote(b broadcaster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remote = b
}

func (h *Hub) Subscribe(groupID string) *Client {
	c := &Client{ID: uuid.New(), GroupID: groupID, Outbound: make(chan Message, outboundBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[groupID] == nil {
		h.groups[groupID] = make(map[uuid.UUID]*Client)
	}
	h.groups[groupID][c.ID] = c
	logging.AppLogger.Debug("client subscribed", zap.String("client", c.ID.String()), zap.String("group_id", groupID))
	return c
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.groups[c.GroupID]
	if !ok {
		return
	}
	if _, ok := clients[c.ID]; !ok {
		return
	}
	delete(clients, c.ID)
	if len(clients) == 0 {
		delete(h.groups, c.GroupID)
	}
	close(c.Outbound)
}

func (h *Hub) Subscribers(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}

// Publish delivers msg to local subscribers of its group and forwards it to the
// remote broadcaster when one is attached.
func (h *Hub) Publish(ctx context.Context, msg models.ChatMessage) {
	m := Message{GroupID: msg.GroupID, Origin: h.nodeID, Data: msg}
	h.localBroadcast(m)

	h.mu.RLock()
	remote := h.remote
	h.mu.RUnlock()
	if remote == nil {
		return
	}
	if err := remote.Publish(ctx, m); err != nil {
		logging.ErrorLogger.Warn("remote publish failed", zap.String("group_id", msg.GroupID), zap.Error(err))
	}
}

// receive handles a message from another node. Our own echoes are dropped.
func (h *Hub) receive(m Message) {
	if m.Origin == h.nodeID {
		return
	}
	h.localBroadcast(m)
}

func (h *Hub) localBroadcast(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.groups[m.GroupID] {
		select {
		case c.Outbound <- m:
		default:
			logging.ErrorLogger.Warn("dropping update, outbound buffer full",
				zap.String("client", c.ID.String()),
				zap.String("group_id", m.GroupID))
		}
	}
}
