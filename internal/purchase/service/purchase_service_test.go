package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/cache"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/lifecycle"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/perm"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/repository"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/testutil"
)

// fakeStore 内存远端：记录调用序列，可注入失败
type fakeStore struct {
	mu      sync.Mutex
	recent  []entity.PurchaseRequest
	remote  map[string]*entity.PurchaseRequest
	calls   []string
	failOn  map[string]error
	codeSeq int
}

func newFakeStore(requests ...*entity.PurchaseRequest) *fakeStore {
	f := &fakeStore{
		remote: make(map[string]*entity.PurchaseRequest),
		failOn: make(map[string]error),
	}
	for _, pr := range requests {
		f.recent = append(f.recent, *pr.Clone())
		f.remote[pr.ID] = pr.Clone()
	}
	return f
}

func (f *fakeStore) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeStore) FetchRecent(ctx context.Context, requesterID string, limit int) ([]entity.PurchaseRequest, error) {
	if err := f.record("FetchRecent"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.PurchaseRequest, len(f.recent))
	for i := range f.recent {
		out[i] = *f.recent[i].Clone()
	}
	return out, nil
}

func (f *fakeStore) FetchByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	if err := f.record("FetchByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr, ok := f.remote[id]; ok {
		return pr.Clone(), nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) Create(ctx context.Context, req *entity.PurchaseRequest) error {
	if err := f.record("Create"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote[req.ID] = req.Clone()
	return nil
}

func (f *fakeStore) Save(ctx context.Context, req *entity.PurchaseRequest) error {
	if err := f.record("Save"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote[req.ID] = req.Clone()
	return nil
}

func (f *fakeStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return f.record("UpdateFields")
}

func (f *fakeStore) UpdateItemFields(ctx context.Context, itemID string, fields map[string]interface{}) error {
	return f.record("UpdateItemFields")
}

func (f *fakeStore) InsertReceipt(ctx context.Context, ent *entity.ReceiptEntry) error {
	return f.record("InsertReceipt")
}

func (f *fakeStore) DeleteItem(ctx context.Context, itemID string) error {
	return f.record("DeleteItem")
}

func (f *fakeStore) DeletePurchase(ctx context.Context, id string) error {
	if err := f.record("DeletePurchase"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.remote, id)
	return nil
}

func (f *fakeStore) GenerateCode(ctx context.Context) (string, error) {
	if err := f.record("GenerateCode"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeSeq++
	return fmt.Sprintf("PR-2026-%04d", f.codeSeq), nil
}

func session(userID string, roles ...string) *Session {
	return &Session{
		UserID: userID,
		Name:   "用户-" + userID,
		Perms:  perm.ParseRoles(roles...),
	}
}

func newTestService(t *testing.T, identity string, requests ...*entity.PurchaseRequest) (*PurchaseService, *fakeStore) {
	t.Helper()
	store := newFakeStore(requests...)
	svc := NewPurchaseService(store, cache.New(identity, time.Minute), nil, zap.NewNop(), 50)
	return svc, store
}

func TestCreateWritesCacheThenRemote(t *testing.T) {
	svc, store := newTestService(t, "u1")
	sess := session("u1", perm.RoleRequester)
	if err := svc.EnsureLoaded(context.Background(), sess); err != nil {
		t.Fatalf("load: %v", err)
	}

	pr, err := svc.Create(context.Background(), sess, &CreatePurchaseRequest{
		VendorName:      "测试供应商",
		PaymentCategory: entity.PaymentCategoryRequest,
		Items: []CreatePurchaseItem{
			{Name: "外壳", Quantity: 10, UnitPrice: 5, TaxAmount: 2},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pr.RequestCode != "PR-2026-0001" {
		t.Errorf("request code = %s", pr.RequestCode)
	}
	if pr.MiddleApprovalStatus != entity.ApprovalPending || pr.FinalApprovalStatus != entity.ApprovalPending {
		t.Error("new purchase starts pending on both tiers")
	}
	if pr.TotalAmount != 52 {
		t.Errorf("total = 10*5+2, got %v", pr.TotalAmount)
	}

	// 缓存同步可见，远端异步落库
	if svc.Get(pr.ID) == nil {
		t.Fatal("created purchase visible in cache immediately")
	}
	svc.Flush()
	if store.callCount("Create") != 1 {
		t.Error("remote create dispatched exactly once")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, "u1")
	sess := session("u1", perm.RoleRequester)
	svc.EnsureLoaded(context.Background(), sess)

	if _, err := svc.Create(context.Background(), session("u1", perm.RoleAccounting), &CreatePurchaseRequest{
		PaymentCategory: entity.PaymentCategoryRequest,
		Items:           []CreatePurchaseItem{{Name: "x", Quantity: 1}},
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("accounting cannot create: %v", err)
	}

	if _, err := svc.Create(context.Background(), sess, &CreatePurchaseRequest{
		PaymentCategory: entity.PaymentCategoryRequest,
	}); !errors.Is(err, ErrNoItems) {
		t.Errorf("empty items rejected: %v", err)
	}

	if _, err := svc.Create(context.Background(), sess, &CreatePurchaseRequest{
		PaymentCategory: "installments",
		Items:           []CreatePurchaseItem{{Name: "x", Quantity: 1}},
	}); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("unknown category rejected: %v", err)
	}
}

func TestApprovalChain(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, store := newTestService(t, "mgr", pr)
	middle := session("mgr", perm.RoleMiddleManager)
	final := session("mgr", perm.RoleFinalManager)
	svc.EnsureLoaded(context.Background(), middle)

	// 终审前置条件：初审必须已通过
	if err := svc.ApproveFinal(context.Background(), final, "pr-1"); !errors.Is(err, lifecycle.ErrMiddleNotApproved) {
		t.Fatalf("final before middle: %v", err)
	}

	// 权限与动作逐级对应
	if err := svc.ApproveMiddle(context.Background(), final, "pr-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("final manager lacks middle approve: %v", err)
	}
	if err := svc.ApproveMiddle(context.Background(), middle, "pr-1"); err != nil {
		t.Fatalf("middle approve: %v", err)
	}
	if err := svc.ApproveFinal(context.Background(), final, "pr-1"); err != nil {
		t.Fatalf("final approve: %v", err)
	}

	got := svc.Get("pr-1")
	if got.MiddleApprovalStatus != entity.ApprovalApproved || got.FinalApprovalStatus != entity.ApprovalApproved {
		t.Error("both tiers approved")
	}
	svc.Flush()
	if store.callCount("UpdateFields") != 2 {
		t.Errorf("one remote field update per approval, got %d", store.callCount("UpdateFields"))
	}
}

func TestRejectIsTerminal(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, _ := newTestService(t, "mgr", pr)
	middle := session("mgr", perm.RoleMiddleManager)
	svc.EnsureLoaded(context.Background(), middle)

	if err := svc.RejectMiddle(context.Background(), middle, "pr-1"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := svc.ApproveMiddle(context.Background(), middle, "pr-1"); !errors.Is(err, lifecycle.ErrTierRejected) {
		t.Fatalf("approve after reject: %v", err)
	}
	if svc.Get("pr-1").MiddleApprovalStatus != entity.ApprovalRejected {
		t.Error("rejected status preserved")
	}
}

func TestReceiveGatedByExecution(t *testing.T) {
	normal := testutil.NewPurchase("pr-normal", "u1", testutil.NewItem("it-1", 10, 5))
	fast := testutil.NewPurchase("pr-fast", "u1", testutil.NewItem("it-2", 10, 5))
	fast.ProgressType = entity.ProgressFastTrack
	svc, store := newTestService(t, "buyer", normal, fast)
	buyer := session("buyer", perm.RoleBuyer)
	svc.EnsureLoaded(context.Background(), buyer)

	if err := svc.ReceiveItem(context.Background(), buyer, "pr-normal", "it-1", time.Now(), 4); !errors.Is(err, lifecycle.ErrNotEligible) {
		t.Fatalf("unapproved normal purchase not receivable: %v", err)
	}

	// 加急单跳过审批门槛
	if err := svc.ReceiveItem(context.Background(), buyer, "pr-fast", "it-2", time.Now(), 4); err != nil {
		t.Fatalf("fast track receive: %v", err)
	}
	got := svc.Get("pr-fast").Items[0]
	if got.ReceivedQuantity != 4 || got.DeliveryStatus != entity.DeliveryPartial {
		t.Error("receipt applied to cache")
	}

	svc.Flush()
	if store.callCount("InsertReceipt") != 1 {
		t.Error("receipt row dispatched to remote")
	}
	if err := svc.ReceiveItem(context.Background(), session("buyer", perm.RoleAccounting), "pr-fast", "it-2", time.Now(), 1); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("accounting cannot receive: %v", err)
	}
}

func TestStatementIndependentOfApproval(t *testing.T) {
	// 明细单确认不经过审批门槛
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, _ := newTestService(t, "acct", pr)
	acct := session("acct", perm.RoleAccounting)
	svc.EnsureLoaded(context.Background(), acct)

	if err := svc.ConfirmItemStatement(context.Background(), acct, "pr-1", "it-1", time.Now()); err != nil {
		t.Fatalf("confirm on pending purchase: %v", err)
	}
	if !svc.Get("pr-1").IsStatementReceived {
		t.Error("single item confirmed, aggregate flips")
	}
}

func TestBulkExpenditureRemoteSequence(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1",
		testutil.NewItem("it-1", 10, 5), testutil.NewItem("it-2", 3, 2))
	svc, store := newTestService(t, "acct", pr)
	acct := session("acct", perm.RoleAccounting)
	svc.EnsureLoaded(context.Background(), acct)

	if err := svc.SetBulkExpenditure(context.Background(), acct, "pr-1", time.Now(), 500); err != nil {
		t.Fatalf("bulk expenditure: %v", err)
	}
	svc.Flush()
	// 每个行项清金额一次，请求级落一次
	if store.callCount("UpdateItemFields") != 2 {
		t.Errorf("item updates = %d, want 2", store.callCount("UpdateItemFields"))
	}
	if store.callCount("UpdateFields") != 1 {
		t.Errorf("request updates = %d, want 1", store.callCount("UpdateFields"))
	}
}

func TestDeletePermissions(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	approved := testutil.NewApprovedPurchase("pr-2", "u1", testutil.NewItem("it-2", 3, 2))
	svc, store := newTestService(t, "u1", pr, approved)
	owner := session("u1", perm.RoleRequester)
	svc.EnsureLoaded(context.Background(), owner)

	if err := svc.Delete(context.Background(), session("u2", perm.RoleRequester), "pr-1"); !errors.Is(err, lifecycle.ErrDeleteForbidden) {
		t.Fatalf("non-requester delete: %v", err)
	}
	if err := svc.Delete(context.Background(), owner, "pr-2"); !errors.Is(err, lifecycle.ErrDeleteForbidden) {
		t.Fatalf("post-approval delete by requester: %v", err)
	}
	if err := svc.Delete(context.Background(), owner, "pr-1"); err != nil {
		t.Fatalf("pre-approval delete by requester: %v", err)
	}
	if svc.Get("pr-1") != nil {
		t.Error("deleted purchase gone from cache")
	}
	svc.Flush()
	if store.callCount("DeletePurchase") != 1 {
		t.Error("remote delete dispatched")
	}
}

func TestRemoveLastItemTakesDeleteSequence(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, store := newTestService(t, "u1", pr)
	owner := session("u1", perm.RoleRequester)
	svc.EnsureLoaded(context.Background(), owner)

	removed, err := svc.RemoveItem(context.Background(), owner, "pr-1", "it-1")
	if err != nil || !removed {
		t.Fatalf("last item removal deletes the purchase: removed=%v err=%v", removed, err)
	}
	svc.Flush()
	if store.callCount("DeletePurchase") != 1 {
		t.Error("remote delete sequence dispatched, not an item delete")
	}
	if store.callCount("DeleteItem") != 0 {
		t.Error("no standalone item delete on the delete sequence")
	}
}

func TestUpdateEmptiedBecomesDelete(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, store := newTestService(t, "u1", pr)
	owner := session("u1", perm.RoleRequester)
	svc.EnsureLoaded(context.Background(), owner)

	removed, err := svc.Update(context.Background(), owner, "pr-1", &UpdatePurchaseRequest{
		Items: []EditPurchaseItem{},
	})
	if err != nil || !removed {
		t.Fatalf("emptied purchase takes the delete transition: removed=%v err=%v", removed, err)
	}
	if svc.Get("pr-1") != nil {
		t.Error("emptied purchase not kept in cache")
	}
	svc.Flush()
	if store.callCount("DeletePurchase") != 1 {
		t.Error("emptied purchase deleted remotely")
	}
}

func TestUpdateKeepsItemProgress(t *testing.T) {
	item := testutil.NewItem("it-1", 10, 5)
	item.ReceivedQuantity = 4
	item.DeliveryStatus = entity.DeliveryPartial
	pr := testutil.NewPurchase("pr-1", "u1", item)
	svc, store := newTestService(t, "u1", pr)
	owner := session("u1", perm.RoleRequester)
	svc.EnsureLoaded(context.Background(), owner)

	removed, err := svc.Update(context.Background(), owner, "pr-1", &UpdatePurchaseRequest{
		Items: []EditPurchaseItem{
			{ID: "it-1", Name: "改名后的物料", Quantity: 10, UnitPrice: 6},
			{Name: "新增物料", Quantity: 2, UnitPrice: 3},
		},
	})
	if err != nil || removed {
		t.Fatalf("update: removed=%v err=%v", removed, err)
	}

	got := svc.Get("pr-1")
	if len(got.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(got.Items))
	}
	if got.Items[0].ReceivedQuantity != 4 {
		t.Error("ID-matched item keeps its receiving progress")
	}
	if got.Items[0].Name != "改名后的物料" || got.Items[0].UnitPrice != 6 {
		t.Error("edited fields applied")
	}
	if got.Items[1].ID == "" {
		t.Error("new item gets an ID")
	}
	svc.Flush()
	if store.callCount("Save") != 1 {
		t.Error("full save dispatched for item group replacement")
	}
}

func TestEditGateAfterFinalApproval(t *testing.T) {
	approved := testutil.NewApprovedPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, _ := newTestService(t, "u1", approved)
	owner := session("u1", perm.RoleRequester)
	admin := session("boss", perm.RoleAdmin)
	svc.EnsureLoaded(context.Background(), owner)

	if _, err := svc.Update(context.Background(), owner, "pr-1", &UpdatePurchaseRequest{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("requester cannot edit after final approval: %v", err)
	}
	if _, err := svc.Update(context.Background(), admin, "pr-1", &UpdatePurchaseRequest{}); err != nil {
		t.Fatalf("admin edits in any state: %v", err)
	}
}

func TestWriteFailureReconcilesFromRemote(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, store := newTestService(t, "acct", pr)
	acct := session("acct", perm.RoleAccounting)
	svc.EnsureLoaded(context.Background(), acct)

	// 远端写失败：缓存不回滚，而是对账回读远端权威副本
	store.mu.Lock()
	store.failOn["UpdateFields"] = errors.New("connection reset")
	store.mu.Unlock()

	if err := svc.SetUTKChecked(context.Background(), acct, "pr-1", true); err != nil {
		t.Fatalf("utk check applies to cache regardless: %v", err)
	}
	svc.Flush()

	got := svc.Get("pr-1")
	if got == nil {
		t.Fatal("purchase still cached after reconcile")
	}
	if got.IsUTKChecked {
		t.Error("reconcile overwrote the cache with the remote copy")
	}
	if store.callCount("FetchByID") != 1 {
		t.Error("reconcile fetches the record once")
	}
}

func TestWriteFailureOnDeletedRecordDropsIt(t *testing.T) {
	pr := testutil.NewPurchase("pr-1", "u1", testutil.NewItem("it-1", 10, 5))
	svc, store := newTestService(t, "acct", pr)
	acct := session("acct", perm.RoleAccounting)
	svc.EnsureLoaded(context.Background(), acct)

	// 远端已被别人删掉：写失败且回读404，缓存同步删除
	store.mu.Lock()
	store.failOn["UpdateFields"] = errors.New("row vanished")
	delete(store.remote, "pr-1")
	store.mu.Unlock()

	if err := svc.SetUTKChecked(context.Background(), acct, "pr-1", true); err != nil {
		t.Fatalf("utk check: %v", err)
	}
	svc.Flush()

	if svc.Get("pr-1") != nil {
		t.Error("record absent remotely gets dropped from the cache")
	}
}
