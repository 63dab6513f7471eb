package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
)

var (
	// ErrNotFound 目标采购单不在缓存中，动作整体中止，缓存不变
	ErrNotFound = errors.New("purchase not found in cache")
	// ErrItemNotFound 目标行项不存在
	ErrItemNotFound = errors.New("purchase item not found in cache")
	// ErrIdentityMismatch 缓存与加载方身份不一致（A的缓存不得交付给B）
	ErrIdentityMismatch = errors.New("cache identity mismatch")
	// ErrInvalidQuantity 收货数量必须为正数
	ErrInvalidQuantity = errors.New("receive quantity must be positive")
)

// 缓存变更动作
const (
	ActionLoad        = "load"
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionPayment     = "payment"
	ActionReceive     = "receive"
	ActionStatement   = "statement"
	ActionExpenditure = "expenditure"
	ActionRemoveItem  = "remove_item"
	ActionDelete      = "delete"
)

// Event 缓存变更通知
type Event struct {
	Action     string `json:"action"`
	PurchaseID string `json:"purchase_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
}

// Listener 缓存订阅回调，每次变更动作恰好回调一次，且回调时缓存已完整更新
type Listener func(Event)

// Store 身份绑定的采购单内存缓存
// 显式构造并注入消费者，身份在构造时绑定；读操作永不阻塞，写操作与远端写入解耦
type Store struct {
	mu       sync.RWMutex
	identity string
	window   time.Duration
	loadedAt time.Time
	order    []string
	byID     map[string]*entity.PurchaseRequest
	now      func() time.Time

	subMu   sync.Mutex
	subs    map[int]Listener
	nextSub int
}

// New 创建缓存，window为快照的新鲜窗口
func New(identity string, window time.Duration) *Store {
	return &Store{
		identity: identity,
		window:   window,
		byID:     make(map[string]*entity.PurchaseRequest),
		subs:     make(map[int]Listener),
		now:      time.Now,
	}
}

// Identity 缓存绑定的身份
func (s *Store) Identity() string {
	return s.identity
}

// Fresh 快照对该身份是否仍然有效（身份一致且在新鲜窗口内）
func (s *Store) Fresh(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity != s.identity || s.loadedAt.IsZero() {
		return false
	}
	return s.now().Sub(s.loadedAt) < s.window
}

// Load 批量拉取完成后整体替换快照
// 身份不一致直接拒绝：换了操作者必须换缓存，而不是复用旧快照
func (s *Store) Load(identity string, requests []entity.PurchaseRequest) error {
	if identity != s.identity {
		return ErrIdentityMismatch
	}
	s.mu.Lock()
	s.order = s.order[:0]
	s.byID = make(map[string]*entity.PurchaseRequest, len(requests))
	for i := range requests {
		r := requests[i].Clone()
		s.order = append(s.order, r.ID)
		s.byID[r.ID] = r
	}
	s.loadedAt = s.now()
	s.mu.Unlock()

	s.notify(Event{Action: ActionLoad})
	return nil
}

// Snapshot 当前快照（深拷贝），不触发任何网络调用
func (s *Store) Snapshot() []entity.PurchaseRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.PurchaseRequest, 0, len(s.order))
	for _, id := range s.order {
		if r, ok := s.byID[id]; ok {
			out = append(out, *r.Clone())
		}
	}
	return out
}

// Find 按ID查找，未命中返回nil
func (s *Store) Find(id string) *entity.PurchaseRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byID[id]; ok {
		return r.Clone()
	}
	return nil
}

// Insert 新建采购单插入快照头部
func (s *Store) Insert(req *entity.PurchaseRequest) {
	s.mu.Lock()
	r := req.Clone()
	if _, ok := s.byID[r.ID]; !ok {
		s.order = append([]string{r.ID}, s.order...)
	}
	s.byID[r.ID] = r
	s.mu.Unlock()

	s.notify(Event{Action: ActionCreate, PurchaseID: r.ID})
}

// Replace 用远端权威副本覆盖单条缓存记录（远端写失败后的对账路径）
func (s *Store) Replace(req *entity.PurchaseRequest) {
	s.mu.Lock()
	r := req.Clone()
	if _, ok := s.byID[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.byID[r.ID] = r
	s.mu.Unlock()

	s.notify(Event{Action: ActionUpdate, PurchaseID: r.ID})
}

// Subscribe 注册订阅，返回退订句柄
func (s *Store) Subscribe(fn Listener) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// notify 在缓存完整更新后同步回调全部订阅者
// 必须在释放mu之后调用，订阅者在回调内读Snapshot不会死锁
func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// locate 调用方必须持有mu写锁
func (s *Store) locate(purchaseID, itemID string) (*entity.PurchaseRequest, *entity.PurchaseItem, error) {
	req, ok := s.byID[purchaseID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if itemID == "" {
		return req, nil, nil
	}
	for i := range req.Items {
		if req.Items[i].ID == itemID {
			return req, &req.Items[i], nil
		}
	}
	return nil, nil, ErrItemNotFound
}

// remove 调用方必须持有mu写锁
func (s *Store) remove(purchaseID string) {
	delete(s.byID, purchaseID)
	for i, id := range s.order {
		if id == purchaseID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
