package cache

import (
	"testing"
	"time"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/testutil"
)

func newBridgeFixture(t *testing.T) (*Store, *Bridge) {
	t.Helper()
	s := New("user-a", time.Minute)
	loadOne(t, s,
		testutil.NewApprovedPurchase("pr-1", "user-a", testutil.NewItem("it-1", 10, 5)),
		testutil.NewPurchase("pr-2", "user-a", testutil.NewItem("it-2", 3, 2)))
	b := NewBridge(s)
	t.Cleanup(b.Close)
	return s, b
}

func TestBridgeSeedsFromSnapshot(t *testing.T) {
	_, b := newBridgeFixture(t)

	rows := b.Rows()
	if len(rows) != 2 || rows[0].ID != "pr-1" || rows[1].ID != "pr-2" {
		t.Fatalf("bridge seeds rows in cache order, got %d rows", len(rows))
	}
}

func TestOptimisticUpdateIsLocalOnly(t *testing.T) {
	s, b := newBridgeFixture(t)

	if err := b.OptimisticUpdate("pr-1", func(p entity.PurchaseRequest) entity.PurchaseRequest {
		p.VendorName = "本地乐观值"
		return p
	}); err != nil {
		t.Fatalf("optimistic update: %v", err)
	}

	if b.Row("pr-1").VendorName != "本地乐观值" {
		t.Error("local view shows the optimistic value immediately")
	}
	if s.Find("pr-1").VendorName == "本地乐观值" {
		t.Error("optimistic update must not touch the cache")
	}

	if err := b.OptimisticUpdate("pr-x", func(p entity.PurchaseRequest) entity.PurchaseRequest { return p }); err != ErrNotFound {
		t.Errorf("unknown row: %v", err)
	}
}

func TestBridgeFollowsCacheEvents(t *testing.T) {
	s, b := newBridgeFixture(t)

	// 本地先套一个乐观值，缓存通知到达后以缓存副本覆盖
	b.OptimisticUpdate("pr-1", func(p entity.PurchaseRequest) entity.PurchaseRequest {
		p.Items[0].ReceivedQuantity = 9
		return p
	})
	if err := s.MarkItemReceived("pr-1", "it-1", time.Now(), "收货员", 4); err != nil {
		t.Fatalf("receive: %v", err)
	}

	if got := b.Row("pr-1").Items[0].ReceivedQuantity; got != 4 {
		t.Errorf("cache copy overwrites the optimistic one, got %v", got)
	}

	// 缓存里删掉的记录本地也消失
	if err := s.RemovePurchase("pr-2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if b.Row("pr-2") != nil || len(b.Rows()) != 1 {
		t.Error("deleted purchase drops out of the local view")
	}
}

func TestEditSessionBlocksOverwrite(t *testing.T) {
	s, b := newBridgeFixture(t)

	b.BeginEdit("pr-1")
	if !b.Editing("pr-1") {
		t.Fatal("edit session should be active")
	}
	b.OptimisticUpdate("pr-1", func(p entity.PurchaseRequest) entity.PurchaseRequest {
		p.Notes = "输入中的草稿"
		return p
	})

	// 编辑会话期间缓存通知被忽略，草稿不被并发操作者冲掉
	if err := s.MarkItemReceived("pr-1", "it-1", time.Now(), "别人", 4); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if b.Row("pr-1").Notes != "输入中的草稿" {
		t.Error("in-flight edit must survive cache events")
	}

	// 结束会话立即对齐缓存副本
	b.EndEdit("pr-1")
	row := b.Row("pr-1")
	if row.Notes == "输入中的草稿" {
		t.Error("EndEdit resyncs from the cache")
	}
	if row.Items[0].ReceivedQuantity != 4 {
		t.Error("resynced row carries the mutation applied during the session")
	}
}

func TestEditSessionOnDeletedRow(t *testing.T) {
	s, b := newBridgeFixture(t)

	b.BeginEdit("pr-2")
	if err := s.RemovePurchase("pr-2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// 会话持有期间本地副本还在
	if b.Row("pr-2") == nil {
		t.Fatal("edit session keeps the local copy of a deleted row")
	}

	b.EndEdit("pr-2")
	if b.Row("pr-2") != nil {
		t.Error("ending the session on a deleted row drops it")
	}
}

func TestBridgeResyncAllKeepsEditing(t *testing.T) {
	s, b := newBridgeFixture(t)

	b.BeginEdit("pr-1")
	b.OptimisticUpdate("pr-1", func(p entity.PurchaseRequest) entity.PurchaseRequest {
		p.Notes = "草稿"
		return p
	})

	// 整体回源触发全量对齐，编辑中的记录保留本地副本
	if err := s.Load("user-a", []entity.PurchaseRequest{
		*testutil.NewPurchase("pr-3", "user-a", testutil.NewItem("it-3", 1, 1)),
	}); err != nil {
		t.Fatalf("load: %v", err)
	}

	if b.Row("pr-1") == nil || b.Row("pr-1").Notes != "草稿" {
		t.Error("editing row survives a full resync")
	}
	if b.Row("pr-3") == nil {
		t.Error("resync picks up new cache rows")
	}
	if b.Row("pr-2") != nil {
		t.Error("resync drops rows absent from the cache")
	}
}
