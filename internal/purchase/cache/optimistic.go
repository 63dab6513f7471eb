package cache

import (
	"sync"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
)

// Bridge 乐观更新桥
// UI面持有一份本地副本，可以在缓存原语生效前就地套用变换函数，让可见行立即刷新。
// 这只是渲染优化，不是第二份真相：下一次缓存通知到达时以缓存副本为准覆盖本地，
// 唯一例外是该记录正处于本地编辑会话中（重入保护，避免并发操作者的更新冲掉输入中的内容）。
type Bridge struct {
	store *Store

	mu      sync.Mutex
	local   map[string]*entity.PurchaseRequest
	order   []string
	editing map[string]struct{}

	unsubscribe func()
}

// NewBridge 以当前缓存快照为起点创建桥并订阅缓存
func NewBridge(store *Store) *Bridge {
	b := &Bridge{
		store:   store,
		local:   make(map[string]*entity.PurchaseRequest),
		editing: make(map[string]struct{}),
	}
	b.resyncAll()
	b.unsubscribe = store.Subscribe(b.onEvent)
	return b
}

// Close 退订缓存
func (b *Bridge) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
}

// Rows 本地视图（含尚未被缓存通知确认的乐观变更）
func (b *Bridge) Rows() []entity.PurchaseRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]entity.PurchaseRequest, 0, len(b.order))
	for _, id := range b.order {
		if r, ok := b.local[id]; ok {
			out = append(out, *r.Clone())
		}
	}
	return out
}

// Row 本地视图中的单条记录
func (b *Bridge) Row(id string) *entity.PurchaseRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.local[id]; ok {
		return r.Clone()
	}
	return nil
}

// OptimisticUpdate 只对本地副本套用变换，与缓存原语并行调用
func (b *Bridge) OptimisticUpdate(id string, updater func(entity.PurchaseRequest) entity.PurchaseRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.local[id]
	if !ok {
		return ErrNotFound
	}
	next := updater(*prev.Clone())
	next.ID = id
	b.local[id] = next.Clone()
	return nil
}

// BeginEdit 进入编辑会话：此后忽略该记录的缓存通知
func (b *Bridge) BeginEdit(id string) {
	b.mu.Lock()
	b.editing[id] = struct{}{}
	b.mu.Unlock()
}

// EndEdit 结束编辑会话并立即向缓存副本对齐
func (b *Bridge) EndEdit(id string) {
	b.mu.Lock()
	delete(b.editing, id)
	b.mu.Unlock()

	if authoritative := b.store.Find(id); authoritative != nil {
		b.mu.Lock()
		b.ensureOrder(id)
		b.local[id] = authoritative
		b.mu.Unlock()
		return
	}
	b.mu.Lock()
	b.drop(id)
	b.mu.Unlock()
}

// Editing 该记录是否处于编辑会话
func (b *Bridge) Editing(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.editing[id]
	return ok
}

// onEvent 缓存通知：缓存副本覆盖本地，编辑中的记录除外
func (b *Bridge) onEvent(ev Event) {
	if ev.PurchaseID != "" {
		b.mu.Lock()
		if _, held := b.editing[ev.PurchaseID]; held {
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		if authoritative := b.store.Find(ev.PurchaseID); authoritative != nil {
			b.mu.Lock()
			b.ensureOrder(ev.PurchaseID)
			b.local[ev.PurchaseID] = authoritative
			b.mu.Unlock()
		} else {
			b.mu.Lock()
			b.drop(ev.PurchaseID)
			b.mu.Unlock()
		}
		return
	}
	b.resyncAll()
}

// resyncAll 整体向缓存快照对齐，编辑中的记录保留本地副本
func (b *Bridge) resyncAll() {
	snapshot := b.store.Snapshot()

	b.mu.Lock()
	defer b.mu.Unlock()
	next := make(map[string]*entity.PurchaseRequest, len(snapshot))
	order := make([]string, 0, len(snapshot))
	for i := range snapshot {
		r := &snapshot[i]
		order = append(order, r.ID)
		next[r.ID] = r
	}
	for id := range b.editing {
		if held, ok := b.local[id]; ok {
			if _, present := next[id]; !present {
				order = append(order, id)
			}
			next[id] = held
		}
	}
	b.local = next
	b.order = order
}

// ensureOrder 调用方必须持有mu
func (b *Bridge) ensureOrder(id string) {
	if _, ok := b.local[id]; ok {
		return
	}
	b.order = append(b.order, id)
}

// drop 调用方必须持有mu
func (b *Bridge) drop(id string) {
	delete(b.local, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}
