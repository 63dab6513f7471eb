// Package testutil 测试夹具：内存态采购单构造器
package testutil

import (
	"fmt"
	"time"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/lifecycle"
)

// NewItem 构造测试行项
func NewItem(id string, quantity, unitPrice float64) entity.PurchaseItem {
	it := entity.PurchaseItem{
		ID:             id,
		Name:           "物料-" + id,
		Specification:  "test spec",
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		DeliveryStatus: entity.DeliveryPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	lifecycle.RecomputeItem(&it)
	return it
}

// NewPurchase 构造测试采购单，聚合字段已重算
func NewPurchase(id, requesterID string, items ...entity.PurchaseItem) *entity.PurchaseRequest {
	now := time.Now()
	pr := &entity.PurchaseRequest{
		ID:                   id,
		RequestCode:          fmt.Sprintf("PR-2026-%s", id),
		RequesterID:          requesterID,
		RequesterName:        "申请人-" + requesterID,
		VendorName:           "测试供应商",
		PaymentCategory:      entity.PaymentCategoryRequest,
		ProgressType:         entity.ProgressNormal,
		MiddleApprovalStatus: entity.ApprovalPending,
		FinalApprovalStatus:  entity.ApprovalPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for i := range items {
		items[i].PurchaseID = id
		items[i].SortOrder = i + 1
	}
	pr.Items = items
	lifecycle.RecomputeRequest(pr)
	return pr
}

// NewApprovedPurchase 构造已通过两级审批的测试采购单
func NewApprovedPurchase(id, requesterID string, items ...entity.PurchaseItem) *entity.PurchaseRequest {
	pr := NewPurchase(id, requesterID, items...)
	now := time.Now()
	actor := "approver"
	pr.MiddleApprovalStatus = entity.ApprovalApproved
	pr.MiddleApprovedAt = &now
	pr.MiddleApprovedBy = &actor
	pr.FinalApprovalStatus = entity.ApprovalApproved
	pr.FinalApprovedAt = &now
	pr.FinalApprovedBy = &actor
	return pr
}
