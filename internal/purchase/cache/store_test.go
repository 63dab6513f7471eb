package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/testutil"
)

func TestLoadIdentityMismatch(t *testing.T) {
	s := New("user-a", time.Minute)

	err := s.Load("user-b", []entity.PurchaseRequest{})
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestFreshnessWindow(t *testing.T) {
	s := New("user-a", time.Minute)

	if s.Fresh("user-a") {
		t.Error("empty cache is never fresh")
	}

	base := time.Now()
	s.now = func() time.Time { return base }
	if err := s.Load("user-a", []entity.PurchaseRequest{}); err != nil {
		t.Fatalf("load: %v", err)
	}

	if !s.Fresh("user-a") {
		t.Error("cache fresh right after load")
	}
	if s.Fresh("user-b") {
		t.Error("cache is never fresh for another identity")
	}

	s.now = func() time.Time { return base.Add(61 * time.Second) }
	if s.Fresh("user-a") {
		t.Error("cache stale after window elapsed")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New("user-a", time.Minute)
	pr := testutil.NewPurchase("pr-1", "user-a", testutil.NewItem("it-1", 10, 5))
	if err := s.Load("user-a", []entity.PurchaseRequest{*pr}); err != nil {
		t.Fatalf("load: %v", err)
	}

	snap := s.Snapshot()
	snap[0].VendorName = "mutated"
	snap[0].Items[0].Quantity = 999

	again := s.Find("pr-1")
	if again.VendorName == "mutated" || again.Items[0].Quantity == 999 {
		t.Error("mutating a snapshot must not leak into the cache")
	}

	// 写入方向同理：装载后改原对象不影响缓存
	pr.VendorName = "changed-after-load"
	if s.Find("pr-1").VendorName == "changed-after-load" {
		t.Error("cache must clone on load")
	}
}

func TestInsertPrependsOrder(t *testing.T) {
	s := New("user-a", time.Minute)
	if err := s.Load("user-a", []entity.PurchaseRequest{
		*testutil.NewPurchase("pr-old", "user-a", testutil.NewItem("it-1", 1, 1)),
	}); err != nil {
		t.Fatalf("load: %v", err)
	}

	s.Insert(testutil.NewPurchase("pr-new", "user-a", testutil.NewItem("it-2", 1, 1)))

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].ID != "pr-new" {
		t.Errorf("new purchase goes to the head, got order %v", []string{snap[0].ID, snap[1].ID})
	}
}

func TestSubscribeNotifyOncePerMutation(t *testing.T) {
	s := New("user-a", time.Minute)
	pr := testutil.NewApprovedPurchase("pr-1", "user-a", testutil.NewItem("it-1", 10, 5))
	if err := s.Load("user-a", []entity.PurchaseRequest{*pr}); err != nil {
		t.Fatalf("load: %v", err)
	}

	var events []Event
	unsubscribe := s.Subscribe(func(ev Event) {
		events = append(events, ev)
		// 回调时缓存必须已完整更新，且订阅者读快照不得死锁
		if ev.Action == ActionReceive {
			got := s.Find("pr-1")
			if got.Items[0].ReceivedQuantity != 4 {
				t.Errorf("listener must observe the fully updated record, got %v", got.Items[0].ReceivedQuantity)
			}
		}
	})
	defer unsubscribe()

	if err := s.MarkItemReceived("pr-1", "it-1", time.Now(), "tester", 4); err != nil {
		t.Fatalf("receive: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("exactly one notification per mutation, got %d", len(events))
	}
	if events[0].Action != ActionReceive || events[0].PurchaseID != "pr-1" || events[0].ItemID != "it-1" {
		t.Errorf("unexpected event %+v", events[0])
	}

	// 失败的动作不通知
	if err := s.MarkItemReceived("pr-missing", "it-1", time.Now(), "tester", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(events) != 1 {
		t.Error("aborted mutation must not notify")
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	s := New("user-a", time.Minute)
	count := 0
	unsubscribe := s.Subscribe(func(Event) { count++ })

	s.Insert(testutil.NewPurchase("pr-1", "user-a", testutil.NewItem("it-1", 1, 1)))
	unsubscribe()
	s.Insert(testutil.NewPurchase("pr-2", "user-a", testutil.NewItem("it-2", 1, 1)))

	if count != 1 {
		t.Errorf("expected 1 event after unsubscribe, got %d", count)
	}
}

func TestReplaceOverwritesRecord(t *testing.T) {
	s := New("user-a", time.Minute)
	s.Insert(testutil.NewPurchase("pr-1", "user-a", testutil.NewItem("it-1", 10, 5)))

	remote := testutil.NewPurchase("pr-1", "user-a", testutil.NewItem("it-1", 10, 5))
	remote.VendorName = "authoritative"
	s.Replace(remote)

	if got := s.Find("pr-1"); got.VendorName != "authoritative" {
		t.Errorf("replace must take the remote copy, got %q", got.VendorName)
	}
}
