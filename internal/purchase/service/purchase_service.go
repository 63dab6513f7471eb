package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/cache"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/lifecycle"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/perm"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/repository"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/sse"
	"go.uber.org/zap"
)

var (
	// ErrPermissionDenied 会话权限不足，动作不执行
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoItems 无行项的采购单不是合法状态，创建即拒绝
	ErrNoItems = errors.New("purchase must contain at least one item")
	// ErrInvalidCategory 未知结算类型
	ErrInvalidCategory = errors.New("invalid payment category")
)

// 远端写入超时。写入与缓存解耦，超时只影响远端一侧
const remoteWriteTimeout = 10 * time.Second

// RemoteStore 远端存储适配器契约：全部是独立调用，跨调用无原子性保证
type RemoteStore interface {
	FetchRecent(ctx context.Context, requesterID string, limit int) ([]entity.PurchaseRequest, error)
	FetchByID(ctx context.Context, id string) (*entity.PurchaseRequest, error)
	Create(ctx context.Context, req *entity.PurchaseRequest) error
	Save(ctx context.Context, req *entity.PurchaseRequest) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	UpdateItemFields(ctx context.Context, itemID string, fields map[string]interface{}) error
	InsertReceipt(ctx context.Context, ent *entity.ReceiptEntry) error
	DeleteItem(ctx context.Context, itemID string) error
	DeletePurchase(ctx context.Context, id string) error
	GenerateCode(ctx context.Context) (string, error)
}

// PurchaseService 采购服务
// 数据流：校验→缓存原语同步生效并通知订阅者→远端写入异步下发。
// 远端写失败不回滚缓存，记日志、广播失败事件、随后对该记录做一次对账回读
type PurchaseService struct {
	store   RemoteStore
	cache   *cache.Store
	hub     *sse.Hub
	logger  *zap.Logger
	limit   int
	pending sync.WaitGroup
}

func NewPurchaseService(store RemoteStore, c *cache.Store, hub *sse.Hub, logger *zap.Logger, recentLimit int) *PurchaseService {
	s := &PurchaseService{
		store:  store,
		cache:  c,
		hub:    hub,
		logger: logger,
		limit:  recentLimit,
	}
	if hub != nil {
		// 缓存每次变更都转发给其余操作者：本地操作者先赢，别人收通知重渲染
		c.Subscribe(func(ev cache.Event) {
			hub.PublishPurchaseUpdate(ev.Action, ev.PurchaseID, ev.ItemID)
		})
	}
	return s
}

// Cache 缓存句柄（消费者直接读快照/订阅用）
func (s *PurchaseService) Cache() *cache.Store {
	return s.cache
}

// Flush 等待所有在途远端写入完成（优雅关闭用）
func (s *PurchaseService) Flush() {
	s.pending.Wait()
}

// EnsureLoaded 快照过期或身份不符时整体回源重拉
func (s *PurchaseService) EnsureLoaded(ctx context.Context, sess *Session) error {
	if s.cache.Fresh(sess.UserID) {
		return nil
	}
	return s.Reload(ctx, sess)
}

// Reload 强制回源
func (s *PurchaseService) Reload(ctx context.Context, sess *Session) error {
	requesterID := sess.UserID
	if sess.ViewAll() {
		requesterID = ""
	}
	requests, err := s.store.FetchRecent(ctx, requesterID, s.limit)
	if err != nil {
		return fmt.Errorf("fetch recent purchases: %w", err)
	}
	return s.cache.Load(sess.UserID, requests)
}

// List 当前快照
func (s *PurchaseService) List() []entity.PurchaseRequest {
	return s.cache.Snapshot()
}

// Get 单条查询
func (s *PurchaseService) Get(id string) *entity.PurchaseRequest {
	return s.cache.Find(id)
}

// === 创建/编辑/删除 ===

// CreatePurchaseRequest 创建采购单请求
type CreatePurchaseRequest struct {
	VendorID        *string              `json:"vendor_id"`
	VendorName      string               `json:"vendor_name"`
	PaymentCategory string               `json:"payment_category" binding:"required"`
	ProgressType    string               `json:"progress_type"`
	Notes           string               `json:"notes"`
	Items           []CreatePurchaseItem `json:"items" binding:"required"`
}

type CreatePurchaseItem struct {
	Name          string  `json:"name" binding:"required"`
	Specification string  `json:"specification"`
	Quantity      float64 `json:"quantity" binding:"required"`
	UnitPrice     float64 `json:"unit_price"`
	TaxAmount     float64 `json:"tax_amount"`
}

// Create 创建采购单：初始两级审批均为pending
func (s *PurchaseService) Create(ctx context.Context, sess *Session, req *CreatePurchaseRequest) (*entity.PurchaseRequest, error) {
	if !sess.Perms.Has(perm.PermCreate) {
		return nil, ErrPermissionDenied
	}
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	switch req.PaymentCategory {
	case entity.PaymentCategoryRequest, entity.PaymentCategoryOrder, entity.PaymentCategoryOnsite:
	default:
		return nil, ErrInvalidCategory
	}

	code, err := s.store.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate request code: %w", err)
	}

	progress := req.ProgressType
	if progress == "" {
		progress = entity.ProgressNormal
	}

	now := time.Now()
	pr := &entity.PurchaseRequest{
		ID:                   uuid.New().String()[:32],
		RequestCode:          code,
		RequesterID:          sess.UserID,
		RequesterName:        sess.Name,
		VendorID:             req.VendorID,
		VendorName:           req.VendorName,
		PaymentCategory:      req.PaymentCategory,
		ProgressType:         progress,
		MiddleApprovalStatus: entity.ApprovalPending,
		FinalApprovalStatus:  entity.ApprovalPending,
		Notes:                req.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for i, item := range req.Items {
		it := entity.PurchaseItem{
			ID:             uuid.New().String()[:32],
			PurchaseID:     pr.ID,
			Name:           item.Name,
			Specification:  item.Specification,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TaxAmount:      item.TaxAmount,
			DeliveryStatus: entity.DeliveryPending,
			SortOrder:      i + 1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		lifecycle.RecomputeItem(&it)
		pr.Items = append(pr.Items, it)
	}
	lifecycle.RecomputeRequest(pr)

	s.cache.Insert(pr)
	created := pr.Clone()
	s.asyncWrite(pr.ID, func(ctx context.Context) error {
		return s.store.Create(ctx, created)
	})
	return pr, nil
}

// UpdatePurchaseRequest 编辑请求（元数据与行项整组替换）
type UpdatePurchaseRequest struct {
	VendorID        *string            `json:"vendor_id"`
	VendorName      *string            `json:"vendor_name"`
	PaymentCategory *string            `json:"payment_category"`
	ProgressType    *string            `json:"progress_type"`
	Notes           *string            `json:"notes"`
	Items           []EditPurchaseItem `json:"items"`
}

type EditPurchaseItem struct {
	ID            string  `json:"id"` // 空表示新行项
	Name          string  `json:"name" binding:"required"`
	Specification string  `json:"specification"`
	Quantity      float64 `json:"quantity" binding:"required"`
	UnitPrice     float64 `json:"unit_price"`
	TaxAmount     float64 `json:"tax_amount"`
}

// Update 编辑会话提交
// 行项编辑后为空时不保存空单，而是走与删除完全相同的序列（显式契约，见lifecycle）
func (s *PurchaseService) Update(ctx context.Context, sess *Session, id string, req *UpdatePurchaseRequest) (removed bool, err error) {
	prev := s.cache.Find(id)
	if prev == nil {
		return false, cache.ErrNotFound
	}
	if err := s.checkEdit(prev, sess); err != nil {
		return false, err
	}

	var removedItemIDs []string
	removed, err = s.cache.UpdatePurchase(id, func(p entity.PurchaseRequest) entity.PurchaseRequest {
		if req.VendorID != nil {
			p.VendorID = req.VendorID
		}
		if req.VendorName != nil {
			p.VendorName = *req.VendorName
		}
		if req.PaymentCategory != nil {
			p.PaymentCategory = *req.PaymentCategory
		}
		if req.ProgressType != nil {
			p.ProgressType = *req.ProgressType
		}
		if req.Notes != nil {
			p.Notes = *req.Notes
		}
		if req.Items != nil {
			p.Items, removedItemIDs = rebuildItems(&p, req.Items)
		}
		lifecycle.RecomputeRequest(&p)
		lifecycle.StampAggregates(&p, time.Now())
		return p
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.asyncWrite(id, func(ctx context.Context) error {
			return s.store.DeletePurchase(ctx, id)
		})
		return true, nil
	}

	next := s.cache.Find(id)
	saved := next.Clone()
	dropped := removedItemIDs
	s.asyncWrite(id, func(ctx context.Context) error {
		for _, itemID := range dropped {
			if err := s.store.DeleteItem(ctx, itemID); err != nil {
				return err
			}
		}
		return s.store.Save(ctx, saved)
	})
	return false, nil
}

// rebuildItems 整组替换行项：保留ID匹配的既有行项进度，收集被移除的行项ID
func rebuildItems(p *entity.PurchaseRequest, edits []EditPurchaseItem) ([]entity.PurchaseItem, []string) {
	existing := make(map[string]entity.PurchaseItem, len(p.Items))
	for _, it := range p.Items {
		existing[it.ID] = it
	}

	now := time.Now()
	next := make([]entity.PurchaseItem, 0, len(edits))
	kept := make(map[string]struct{}, len(edits))
	for i, edit := range edits {
		it, ok := existing[edit.ID]
		if !ok {
			it = entity.PurchaseItem{
				ID:             uuid.New().String()[:32],
				PurchaseID:     p.ID,
				DeliveryStatus: entity.DeliveryPending,
				CreatedAt:      now,
			}
		} else {
			kept[edit.ID] = struct{}{}
		}
		it.Name = edit.Name
		it.Specification = edit.Specification
		it.Quantity = edit.Quantity
		it.UnitPrice = edit.UnitPrice
		it.TaxAmount = edit.TaxAmount
		it.SortOrder = i + 1
		it.UpdatedAt = now
		lifecycle.RecomputeItem(&it)
		next = append(next, it)
	}

	var removed []string
	for id := range existing {
		if _, ok := kept[id]; !ok {
			removed = append(removed, id)
		}
	}
	return next, removed
}

// Delete 删除采购单：终审通过前本人或管理员，通过后仅管理员
func (s *PurchaseService) Delete(ctx context.Context, sess *Session, id string) error {
	req := s.cache.Find(id)
	if req == nil {
		return cache.ErrNotFound
	}
	if err := lifecycle.CheckDelete(req, sess.UserID, sess.Perms); err != nil {
		return err
	}
	if err := s.cache.RemovePurchase(id); err != nil {
		return err
	}
	s.asyncWrite(id, func(ctx context.Context) error {
		return s.store.DeletePurchase(ctx, id)
	})
	return nil
}

// RemoveItem 移除单个行项；移除最后一个行项时整单走删除序列
func (s *PurchaseService) RemoveItem(ctx context.Context, sess *Session, id, itemID string) (requestRemoved bool, err error) {
	req := s.cache.Find(id)
	if req == nil {
		return false, cache.ErrNotFound
	}
	if err := s.checkEdit(req, sess); err != nil {
		return false, err
	}
	requestRemoved, err = s.cache.RemoveItem(id, itemID)
	if err != nil {
		return false, err
	}
	if requestRemoved {
		s.asyncWrite(id, func(ctx context.Context) error {
			return s.store.DeletePurchase(ctx, id)
		})
		return true, nil
	}
	next := s.cache.Find(id)
	fields := aggregateFields(next)
	s.asyncWrite(id, func(ctx context.Context) error {
		if err := s.store.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		return s.store.UpdateFields(ctx, id, fields)
	})
	return false, nil
}

// === 审批 ===

const (
	tierMiddle = "middle"
	tierFinal  = "final"
)

// ApproveMiddle 初审通过
func (s *PurchaseService) ApproveMiddle(ctx context.Context, sess *Session, id string) error {
	return s.approval(ctx, sess, id, tierMiddle, lifecycle.ApproveMiddle)
}

// ApproveFinal 终审通过（前置条件：初审已通过）
func (s *PurchaseService) ApproveFinal(ctx context.Context, sess *Session, id string) error {
	return s.approval(ctx, sess, id, tierFinal, lifecycle.ApproveFinal)
}

// RejectMiddle 初审驳回（终态）
func (s *PurchaseService) RejectMiddle(ctx context.Context, sess *Session, id string) error {
	return s.approval(ctx, sess, id, tierMiddle, lifecycle.RejectMiddle)
}

// RejectFinal 终审驳回（终态）
func (s *PurchaseService) RejectFinal(ctx context.Context, sess *Session, id string) error {
	return s.approval(ctx, sess, id, tierFinal, lifecycle.RejectFinal)
}

type transition func(req *entity.PurchaseRequest, actorID string, now time.Time) error

func (s *PurchaseService) approval(ctx context.Context, sess *Session, id, tier string, apply transition) error {
	required := perm.PermMiddleApprove
	if tier == tierFinal {
		required = perm.PermFinalApprove
	}
	if !sess.Perms.Has(required) {
		return ErrPermissionDenied
	}
	// 前置条件在动作上校验：先对副本干跑一遍，不合法就不碰缓存
	probe := s.cache.Find(id)
	if probe == nil {
		return cache.ErrNotFound
	}
	now := time.Now()
	if err := apply(probe, sess.UserID, now); err != nil {
		return err
	}

	if _, err := s.cache.UpdatePurchase(id, func(p entity.PurchaseRequest) entity.PurchaseRequest {
		apply(&p, sess.UserID, now)
		return p
	}); err != nil {
		return err
	}

	next := s.cache.Find(id)
	var fields map[string]interface{}
	if tier == tierMiddle {
		fields = map[string]interface{}{
			"middle_approval_status": next.MiddleApprovalStatus,
			"middle_approved_at":     next.MiddleApprovedAt,
			"middle_approved_by":     next.MiddleApprovedBy,
			"updated_at":             next.UpdatedAt,
		}
	} else {
		fields = map[string]interface{}{
			"final_approval_status": next.FinalApprovalStatus,
			"final_approved_at":     next.FinalApprovedAt,
			"final_approved_by":     next.FinalApprovedBy,
			"updated_at":            next.UpdatedAt,
		}
	}
	s.asyncWrite(id, func(ctx context.Context) error {
		return s.store.UpdateFields(ctx, id, fields)
	})
	return nil
}

// === 采购执行：付款/收货 ===

// MarkItemPayment 行项付款完成（门槛：终审通过或加急单）
func (s *PurchaseService) MarkItemPayment(ctx context.Context, sess *Session, id, itemID string) error {
	if !sess.Perms.Has(perm.PermExecute) {
		return ErrPermissionDenied
	}
	req := s.cache.Find(id)
	if req == nil {
		return cache.ErrNotFound
	}
	if err := lifecycle.CheckExecute(req); err != nil {
		return err
	}
	now := time.Now()
	if err := s.cache.MarkItemPaymentCompleted(id, itemID, now); err != nil {
		return err
	}
	s.writeItemAndAggregates(id, itemID, map[string]interface{}{
		"is_payment_completed": true,
		"payment_completed_at": now,
	})
	return nil
}

// CancelItemPayment 撤销行项付款完成
func (s *PurchaseService) CancelItemPayment(ctx context.Context, sess *Session, id, itemID string) error {
	if !sess.Perms.Has(perm.PermExecute) {
		return ErrPermissionDenied
	}
	if err := s.cache.CancelItemPaymentCompleted(id, itemID, time.Now()); err != nil {
		return err
	}
	s.writeItemAndAggregates(id, itemID, map[string]interface{}{
		"is_payment_completed": false,
		"payment_completed_at": nil,
	})
	return nil
}

// ReceiveItem 分批收货
func (s *PurchaseService) ReceiveItem(ctx context.Context, sess *Session, id, itemID string, date time.Time, quantityDelta float64) error {
	if !sess.Perms.Has(perm.PermReceive) {
		return ErrPermissionDenied
	}
	req := s.cache.Find(id)
	if req == nil {
		return cache.ErrNotFound
	}
	if err := lifecycle.CheckExecute(req); err != nil {
		return err
	}
	if err := s.cache.MarkItemReceived(id, itemID, date, sess.Name, quantityDelta); err != nil {
		return err
	}

	next := s.cache.Find(id)
	fields := aggregateFields(next)
	var itemFields map[string]interface{}
	var receipt *entity.ReceiptEntry
	for i := range next.Items {
		if next.Items[i].ID == itemID {
			it := &next.Items[i]
			itemFields = map[string]interface{}{
				"received_quantity": it.ReceivedQuantity,
				"delivery_status":   it.DeliveryStatus,
				"updated_at":        it.UpdatedAt,
			}
			if n := len(it.ReceiptHistory); n > 0 {
				last := it.ReceiptHistory[n-1]
				receipt = &last
			}
			break
		}
	}
	s.asyncWrite(id, func(ctx context.Context) error {
		if receipt != nil {
			if err := s.store.InsertReceipt(ctx, receipt); err != nil {
				return err
			}
		}
		if err := s.store.UpdateItemFields(ctx, itemID, itemFields); err != nil {
			return err
		}
		return s.store.UpdateFields(ctx, id, fields)
	})
	return nil
}

// === 会计侧通道：明细单确认/支出登记（独立于审批链的权限集） ===

// ConfirmItemStatement 行项交易明细单确认
func (s *PurchaseService) ConfirmItemStatement(ctx context.Context, sess *Session, id, itemID string, date time.Time) error {
	if !sess.Perms.Has(perm.PermStatementConfirm) {
		return ErrPermissionDenied
	}
	if err := s.cache.MarkItemStatementReceived(id, itemID, date, sess.Name); err != nil {
		return err
	}
	s.writeItemAndAggregates(id, itemID, map[string]interface{}{
		"is_statement_received": true,
		"statement_received_at": date,
		"statement_actor":       sess.Name,
	})
	return nil
}

// CancelItemStatement 撤销行项交易明细单确认
func (s *PurchaseService) CancelItemStatement(ctx context.Context, sess *Session, id, itemID string) error {
	if !sess.Perms.Has(perm.PermStatementConfirm) {
		return ErrPermissionDenied
	}
	if err := s.cache.CancelItemStatementReceived(id, itemID, time.Now()); err != nil {
		return err
	}
	s.writeItemAndAggregates(id, itemID, map[string]interface{}{
		"is_statement_received": false,
		"statement_received_at": nil,
		"statement_actor":       "",
	})
	return nil
}

// SetItemExpenditure 行项支出登记
func (s *PurchaseService) SetItemExpenditure(ctx context.Context, sess *Session, id, itemID string, date time.Time, amount float64) error {
	if !sess.Perms.Has(perm.PermExpenditure) {
		return ErrPermissionDenied
	}
	if err := s.cache.SetItemExpenditure(id, itemID, date, amount); err != nil {
		return err
	}
	next := s.cache.Find(id)
	fields := map[string]interface{}{
		"total_expenditure_amount": next.TotalExpenditureAmount,
		"updated_at":               next.UpdatedAt,
	}
	s.asyncWrite(id, func(ctx context.Context) error {
		if err := s.store.UpdateItemFields(ctx, itemID, map[string]interface{}{
			"expenditure_date":   date,
			"expenditure_amount": amount,
		}); err != nil {
			return err
		}
		return s.store.UpdateFields(ctx, id, fields)
	})
	return nil
}

// SetBulkExpenditure 整单支出登记
// 行项金额被清空且不可恢复；远端是多步写入，中途失败会与缓存短暂分叉，直到对账回读
func (s *PurchaseService) SetBulkExpenditure(ctx context.Context, sess *Session, id string, date time.Time, amount float64) error {
	if !sess.Perms.Has(perm.PermExpenditure) {
		return ErrPermissionDenied
	}
	if err := s.cache.SetBulkExpenditure(id, date, amount); err != nil {
		return err
	}
	next := s.cache.Find(id)
	itemIDs := make([]string, 0, len(next.Items))
	for _, it := range next.Items {
		itemIDs = append(itemIDs, it.ID)
	}
	fields := map[string]interface{}{
		"expenditure_date":         date,
		"total_expenditure_amount": amount,
		"updated_at":               next.UpdatedAt,
	}
	s.asyncWrite(id, func(ctx context.Context) error {
		for _, itemID := range itemIDs {
			if err := s.store.UpdateItemFields(ctx, itemID, map[string]interface{}{
				"expenditure_date":   date,
				"expenditure_amount": nil,
			}); err != nil {
				return err
			}
		}
		return s.store.UpdateFields(ctx, id, fields)
	})
	return nil
}

// SetUTKChecked UTK对账标记
func (s *PurchaseService) SetUTKChecked(ctx context.Context, sess *Session, id string, checked bool) error {
	if !sess.Perms.Has(perm.PermUTKCheck) {
		return ErrPermissionDenied
	}
	if _, err := s.cache.UpdatePurchase(id, func(p entity.PurchaseRequest) entity.PurchaseRequest {
		p.IsUTKChecked = checked
		return p
	}); err != nil {
		return err
	}
	next := s.cache.Find(id)
	s.asyncWrite(id, func(ctx context.Context) error {
		return s.store.UpdateFields(ctx, id, map[string]interface{}{
			"is_utk_checked": checked,
			"updated_at":     next.UpdatedAt,
		})
	})
	return nil
}

// === 内部 ===

// checkEdit 编辑门槛：终审通过前本人可改，管理员随时可改
func (s *PurchaseService) checkEdit(req *entity.PurchaseRequest, sess *Session) error {
	if sess.Perms.IsAdmin() {
		return nil
	}
	if req.FinalApprovalStatus == entity.ApprovalApproved {
		return ErrPermissionDenied
	}
	if req.RequesterID != sess.UserID {
		return ErrPermissionDenied
	}
	return nil
}

// writeItemAndAggregates 行项字段更新+请求级聚合回写的组合远端写入
func (s *PurchaseService) writeItemAndAggregates(id, itemID string, itemFields map[string]interface{}) {
	next := s.cache.Find(id)
	if next == nil {
		return
	}
	fields := aggregateFields(next)
	s.asyncWrite(id, func(ctx context.Context) error {
		if err := s.store.UpdateItemFields(ctx, itemID, itemFields); err != nil {
			return err
		}
		return s.store.UpdateFields(ctx, id, fields)
	})
}

// aggregateFields 请求级聚合字段快照
func aggregateFields(req *entity.PurchaseRequest) map[string]interface{} {
	return map[string]interface{}{
		"is_received":           req.IsReceived,
		"received_at":           req.ReceivedAt,
		"is_payment_completed":  req.IsPaymentCompleted,
		"payment_completed_at":  req.PaymentCompletedAt,
		"is_statement_received": req.IsStatementReceived,
		"statement_received_at": req.StatementReceivedAt,
		"total_amount":          req.TotalAmount,
		"updated_at":            req.UpdatedAt,
	}
}

// asyncWrite 远端写入异步下发：失败不回滚缓存，广播失败事件并对账回读
func (s *PurchaseService) asyncWrite(purchaseID string, fn func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Error("Remote write failed, cache kept ahead of store",
				zap.String("purchase_id", purchaseID),
				zap.Error(err))
			if s.hub != nil {
				s.hub.PublishWriteFailure(purchaseID, err.Error())
			}
			// 写入超时后原ctx已失效，对账回读用新的
			rctx, rcancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
			s.reconcile(rctx, purchaseID)
			rcancel()
		}
	}()
}

// reconcile 写失败后的对账：以远端当前状态覆盖缓存中的该记录
func (s *PurchaseService) reconcile(ctx context.Context, purchaseID string) {
	remote, err := s.store.FetchByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.cache.RemovePurchase(purchaseID)
			return
		}
		s.logger.Warn("Reconcile fetch failed, cache left as-is",
			zap.String("purchase_id", purchaseID),
			zap.Error(err))
		return
	}
	s.cache.Replace(remote)
}
