package lifecycle

import (
	"errors"
	"time"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/perm"
)

var (
	// ErrMiddleNotApproved 终审前置条件：初审必须已通过
	ErrMiddleNotApproved = errors.New("middle approval is not approved yet")
	// ErrTierRejected 驳回为终态，该级不再接受任何转移
	ErrTierRejected = errors.New("approval tier is rejected")
	// ErrNotEligible 采购执行/收货的门槛未满足
	ErrNotEligible = errors.New("purchase is not eligible for execution")
	// ErrDeleteForbidden 当前状态下该操作者不允许删除
	ErrDeleteForbidden = errors.New("delete is not permitted for this actor")
)

// ApproveMiddle 初审通过。重复通过为幂等空操作
func ApproveMiddle(req *entity.PurchaseRequest, actorID string, now time.Time) error {
	switch req.MiddleApprovalStatus {
	case entity.ApprovalRejected:
		return ErrTierRejected
	case entity.ApprovalApproved:
		return nil
	}
	req.MiddleApprovalStatus = entity.ApprovalApproved
	req.MiddleApprovedAt = &now
	req.MiddleApprovedBy = &actorID
	return nil
}

// ApproveFinal 终审通过，前置条件为初审已通过（对动作校验，而非事后状态检查）
func ApproveFinal(req *entity.PurchaseRequest, actorID string, now time.Time) error {
	if req.FinalApprovalStatus == entity.ApprovalRejected {
		return ErrTierRejected
	}
	if req.MiddleApprovalStatus != entity.ApprovalApproved {
		return ErrMiddleNotApproved
	}
	if req.FinalApprovalStatus == entity.ApprovalApproved {
		return nil
	}
	req.FinalApprovalStatus = entity.ApprovalApproved
	req.FinalApprovedAt = &now
	req.FinalApprovedBy = &actorID
	return nil
}

// RejectMiddle 初审驳回。驳回是该级的终态，不提供撤销
func RejectMiddle(req *entity.PurchaseRequest, actorID string, now time.Time) error {
	if req.MiddleApprovalStatus == entity.ApprovalRejected {
		return nil
	}
	req.MiddleApprovalStatus = entity.ApprovalRejected
	req.MiddleApprovedAt = &now
	req.MiddleApprovedBy = &actorID
	return nil
}

// RejectFinal 终审驳回
func RejectFinal(req *entity.PurchaseRequest, actorID string, now time.Time) error {
	if req.FinalApprovalStatus == entity.ApprovalRejected {
		return nil
	}
	req.FinalApprovalStatus = entity.ApprovalRejected
	req.FinalApprovedAt = &now
	req.FinalApprovedBy = &actorID
	return nil
}

// CanExecute 采购执行/收货是否开放：终审通过，或加急单（完全跳过审批门槛）
func CanExecute(req *entity.PurchaseRequest) bool {
	if req.ProgressType == entity.ProgressFastTrack {
		return true
	}
	return req.FinalApprovalStatus == entity.ApprovalApproved
}

// CheckExecute 同CanExecute，以错误形式返回供动作前置校验使用
func CheckExecute(req *entity.PurchaseRequest) error {
	if !CanExecute(req) {
		return ErrNotEligible
	}
	return nil
}

// CheckDelete 删除权限：终审通过前本人或管理员，终审通过后仅管理员
func CheckDelete(req *entity.PurchaseRequest, actorID string, perms perm.Set) error {
	if perms.IsAdmin() || perms.Has(perm.PermDeleteAny) {
		return nil
	}
	if req.FinalApprovalStatus == entity.ApprovalApproved {
		return ErrDeleteForbidden
	}
	if req.RequesterID == actorID {
		return nil
	}
	return ErrDeleteForbidden
}

// DeliveryStatusFor 由累计收货数量推导行项收货状态
func DeliveryStatusFor(received, quantity float64) string {
	switch {
	case received <= 0:
		return entity.DeliveryPending
	case received < quantity:
		return entity.DeliveryPartial
	default:
		return entity.DeliveryReceived
	}
}

// RecomputeItem 重算行项派生字段
func RecomputeItem(it *entity.PurchaseItem) {
	if it.ReceivedQuantity > it.Quantity {
		it.ReceivedQuantity = it.Quantity
	}
	it.DeliveryStatus = DeliveryStatusFor(it.ReceivedQuantity, it.Quantity)
	it.LineAmount = it.UnitPrice * it.Quantity
}

// RecomputeRequest 重算采购单聚合字段
// 三个聚合标记都是对全部行项的AND，空行项集合不构成合法状态，聚合一律为false
func RecomputeRequest(req *entity.PurchaseRequest) {
	received := len(req.Items) > 0
	paid := len(req.Items) > 0
	statement := len(req.Items) > 0
	var total float64
	for i := range req.Items {
		it := &req.Items[i]
		total += it.LineAmount + it.TaxAmount
		if it.DeliveryStatus != entity.DeliveryReceived {
			received = false
		}
		if !it.IsPaymentCompleted {
			paid = false
		}
		if !it.IsStatementReceived {
			statement = false
		}
	}
	req.TotalAmount = total
	req.IsReceived = received
	req.IsPaymentCompleted = paid
	req.IsStatementReceived = statement

	// 行项支出模式下聚合支出为行项之和；整单模式的金额由SetBulkExpenditure直接落在请求上
	var sum float64
	var perItem bool
	for i := range req.Items {
		if req.Items[i].ExpenditureAmount != nil {
			sum += *req.Items[i].ExpenditureAmount
			perItem = true
		}
	}
	if perItem {
		req.TotalExpenditureAmount = &sum
	} else if req.ExpenditureDate == nil {
		req.TotalExpenditureAmount = nil
	}
}

// StampAggregates 聚合标记翻转时登记/清除请求级时间戳
func StampAggregates(req *entity.PurchaseRequest, now time.Time) {
	switch {
	case req.IsReceived && req.ReceivedAt == nil:
		req.ReceivedAt = &now
	case !req.IsReceived:
		req.ReceivedAt = nil
	}
	switch {
	case req.IsPaymentCompleted && req.PaymentCompletedAt == nil:
		req.PaymentCompletedAt = &now
	case !req.IsPaymentCompleted:
		req.PaymentCompletedAt = nil
	}
	switch {
	case req.IsStatementReceived && req.StatementReceivedAt == nil:
		req.StatementReceivedAt = &now
	case !req.IsStatementReceived:
		req.StatementReceivedAt = nil
	}
}
