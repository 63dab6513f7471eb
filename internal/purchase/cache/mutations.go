package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/lifecycle"
)

// 变更原语：每个原语对缓存同步生效，成功后恰好发出一次订阅通知，
// 对已处于目标状态的记录重复调用是幂等的，目标缺失则中止且缓存不变。

// MarkItemPaymentCompleted 行项付款完成
func (s *Store) MarkItemPaymentCompleted(purchaseID, itemID string, at time.Time) error {
	s.mu.Lock()
	req, it, err := s.locate(purchaseID, itemID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	it.IsPaymentCompleted = true
	it.PaymentCompletedAt = &at
	s.refresh(req, at)
	s.mu.Unlock()

	s.notify(Event{Action: ActionPayment, PurchaseID: purchaseID, ItemID: itemID})
	return nil
}

// CancelItemPaymentCompleted 撤销行项付款完成
func (s *Store) CancelItemPaymentCompleted(purchaseID, itemID string, at time.Time) error {
	s.mu.Lock()
	req, it, err := s.locate(purchaseID, itemID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	it.IsPaymentCompleted = false
	it.PaymentCompletedAt = nil
	s.refresh(req, at)
	s.mu.Unlock()

	s.notify(Event{Action: ActionPayment, PurchaseID: purchaseID, ItemID: itemID})
	return nil
}

// MarkItemReceived 分批收货：数量做累加而非覆盖，封顶于请求数量，
// 同时向收货历史追加一条严格递增序号的记录
func (s *Store) MarkItemReceived(purchaseID, itemID string, at time.Time, actor string, quantityDelta float64) error {
	if quantityDelta <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	req, it, err := s.locate(purchaseID, itemID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	it.ReceivedQuantity += quantityDelta
	if it.ReceivedQuantity > it.Quantity {
		it.ReceivedQuantity = it.Quantity
	}
	it.DeliveryStatus = lifecycle.DeliveryStatusFor(it.ReceivedQuantity, it.Quantity)
	it.ReceiptHistory = append(it.ReceiptHistory, entity.ReceiptEntry{
		ID:         uuid.New().String()[:32],
		ItemID:     it.ID,
		Sequence:   len(it.ReceiptHistory) + 1,
		Quantity:   quantityDelta,
		ReceivedAt: at,
		Actor:      actor,
		CreatedAt:  s.now(),
	})
	s.refresh(req, at)
	s.mu.Unlock()

	s.notify(Event{Action: ActionReceive, PurchaseID: purchaseID, ItemID: itemID})
	return nil
}

// MarkItemStatementReceived 行项交易明细单确认
func (s *Store) MarkItemStatementReceived(purchaseID, itemID string, at time.Time, actor string) error {
	s.mu.Lock()
	req, it, err := s.locate(purchaseID, itemID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	it.IsStatementReceived = true
	it.StatementReceivedAt = &at
	it.StatementActor = actor
	s.refresh(req, at)
	s.mu.Unlock()

	s.notify(Event{Action: ActionStatement, PurchaseID: purchaseID, ItemID: itemID})
	return nil
}

// CancelItemStatementReceived 撤销行项交易明细单确认
func (s *Store) CancelItemStatementReceived(purchaseID, itemID string, at time.Time) error {
	s.mu.Lock()
	req, it, err := s.locate(purchaseID, itemID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	it.IsStatementReceived = false
	it.StatementReceivedAt = nil
	it.StatementActor = ""
	s.refresh(req, at)
	s.mu.Unlock()

	s.notify(Event{Action: ActionStatement, PurchaseID: purchaseID, ItemID: itemID})
	return nil
}

// SetItemExpenditure 行项支出登记
func (s *Store) SetItemExpenditure(purchaseID, itemID string, date time.Time, amount float64) error {
	s.mu.Lock()
	req, it, err := s.locate(purchaseID, itemID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	it.ExpenditureDate = &date
	it.ExpenditureAmount = &amount
	s.refresh(req, s.now())
	s.mu.Unlock()

	s.notify(Event{Action: ActionExpenditure, PurchaseID: purchaseID, ItemID: itemID})
	return nil
}

// SetBulkExpenditure 整单支出登记：所有行项的支出日期统一为给定日期，
// 行项金额清空为null，单笔金额落在请求级
// 注意：整单模式一旦执行，行项级支出明细不可恢复（与旧系统行为一致，见DESIGN.md）
func (s *Store) SetBulkExpenditure(purchaseID string, date time.Time, amount float64) error {
	s.mu.Lock()
	req, _, err := s.locate(purchaseID, "")
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for i := range req.Items {
		req.Items[i].ExpenditureDate = &date
		req.Items[i].ExpenditureAmount = nil
	}
	req.ExpenditureDate = &date
	req.TotalExpenditureAmount = &amount
	s.refresh(req, s.now())
	s.mu.Unlock()

	s.notify(Event{Action: ActionExpenditure, PurchaseID: purchaseID})
	return nil
}

// RemoveItem 移除单个行项
// 移除最后一个行项等价于删除整个采购单：空行项的采购单不是合法稳态
func (s *Store) RemoveItem(purchaseID, itemID string) (requestRemoved bool, err error) {
	s.mu.Lock()
	req, _, err := s.locate(purchaseID, itemID)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	kept := req.Items[:0]
	for i := range req.Items {
		if req.Items[i].ID != itemID {
			kept = append(kept, req.Items[i])
		}
	}
	req.Items = kept
	if len(req.Items) == 0 {
		s.remove(purchaseID)
		s.mu.Unlock()
		s.notify(Event{Action: ActionDelete, PurchaseID: purchaseID})
		return true, nil
	}
	s.refresh(req, s.now())
	s.mu.Unlock()

	s.notify(Event{Action: ActionRemoveItem, PurchaseID: purchaseID, ItemID: itemID})
	return false, nil
}

// RemovePurchase 删除整个采购单及其行项
func (s *Store) RemovePurchase(purchaseID string) error {
	s.mu.Lock()
	if _, ok := s.byID[purchaseID]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.remove(purchaseID)
	s.mu.Unlock()

	s.notify(Event{Action: ActionDelete, PurchaseID: purchaseID})
	return nil
}

// UpdatePurchase 通用字段级更新，审批转移与元数据编辑走这里
// updater拿到上一版记录的副本并返回下一版，派生聚合由调用方自行计算
// 返回的记录若行项为空，执行“清空即删除”转移而不是保存空单
func (s *Store) UpdatePurchase(purchaseID string, updater func(entity.PurchaseRequest) entity.PurchaseRequest) (requestRemoved bool, err error) {
	s.mu.Lock()
	prev, ok := s.byID[purchaseID]
	if !ok {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	next := updater(*prev.Clone())
	next.ID = purchaseID
	if len(next.Items) == 0 {
		s.remove(purchaseID)
		s.mu.Unlock()
		s.notify(Event{Action: ActionDelete, PurchaseID: purchaseID})
		return true, nil
	}
	next.UpdatedAt = s.now()
	s.byID[purchaseID] = next.Clone()
	s.mu.Unlock()

	s.notify(Event{Action: ActionUpdate, PurchaseID: purchaseID})
	return false, nil
}

// refresh 调用方必须持有mu写锁
func (s *Store) refresh(req *entity.PurchaseRequest, at time.Time) {
	lifecycle.RecomputeRequest(req)
	lifecycle.StampAggregates(req, at)
	req.UpdatedAt = s.now()
}
