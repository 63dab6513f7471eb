package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/cache"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/sse"
)

// Manager 按操作者身份分发采购服务
// 缓存与身份一一绑定，换操作者换缓存，不存在跨身份共享的快照
type Manager struct {
	store  RemoteStore
	hub    *sse.Hub
	logger *zap.Logger
	window time.Duration
	limit  int

	mu         sync.Mutex
	byIdentity map[string]*PurchaseService
}

func NewManager(store RemoteStore, hub *sse.Hub, logger *zap.Logger, window time.Duration, recentLimit int) *Manager {
	return &Manager{
		store:      store,
		hub:        hub,
		logger:     logger,
		window:     window,
		limit:      recentLimit,
		byIdentity: make(map[string]*PurchaseService),
	}
}

// For 取该身份的采购服务，首次访问时懒创建
func (m *Manager) For(identity string) *PurchaseService {
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc, ok := m.byIdentity[identity]; ok {
		return svc
	}
	svc := NewPurchaseService(m.store, cache.New(identity, m.window), m.hub, m.logger, m.limit)
	m.byIdentity[identity] = svc
	return svc
}

// Flush 等待全部身份的在途远端写入完成（优雅关闭用）
func (m *Manager) Flush() {
	m.mu.Lock()
	services := make([]*PurchaseService, 0, len(m.byIdentity))
	for _, svc := range m.byIdentity {
		services = append(services, svc)
	}
	m.mu.Unlock()

	for _, svc := range services {
		svc.Flush()
	}
}
