package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Info("SSE client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Info("SSE client unregistered",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)))
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("SSE client buffer full, skipping event",
				zap.String("client_id", client.ID))
		}
	}
}

// PublishPurchaseUpdate 采购单变更广播：本地操作者已生效，其余操作者据此重渲染
func (h *Hub) PublishPurchaseUpdate(action, purchaseID, itemID string) {
	payload, _ := json.Marshal(map[string]string{
		"action":      action,
		"purchase_id": purchaseID,
		"item_id":     itemID,
	})
	h.Broadcast(Event{
		EventType: "purchase_update",
		Data:      string(payload),
	})
}

// PublishWriteFailure 远端写入失败通知：缓存不回滚，提示操作者等待对账结果
func (h *Hub) PublishWriteFailure(purchaseID, reason string) {
	payload, _ := json.Marshal(map[string]string{
		"purchase_id": purchaseID,
		"reason":      reason,
	})
	h.Broadcast(Event{
		EventType: "purchase_write_failed",
		Data:      string(payload),
	})
}
