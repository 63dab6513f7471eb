package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"gorm.io/gorm"
)

// PurchaseRepository 采购单仓库（远端存储适配器）
// 各写入方法都是独立调用，跨调用不保证原子性，这是远端存储的既有契约
type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// FetchRecent 批量读取最近的采购单（含行项与收货历史）
// requesterID为空表示不按申请人过滤（管理/采购/会计类会话）
func (r *PurchaseRepository) FetchRecent(ctx context.Context, requesterID string, limit int) ([]entity.PurchaseRequest, error) {
	var requests []entity.PurchaseRequest
	query := r.db.WithContext(ctx).Model(&entity.PurchaseRequest{})
	if requesterID != "" {
		query = query.Where("requester_id = ?", requesterID)
	}
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Items.ReceiptHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

// FetchByID 单条读取（含行项与收货历史）
func (r *PurchaseRepository) FetchByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	var req entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Items.ReceiptHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// Create 创建采购单及行项
func (r *PurchaseRepository) Create(ctx context.Context, req *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Save 整单保存（含行项）
func (r *PurchaseRepository) Save(ctx context.Context, req *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(req).Error
}

// UpdateFields 请求级字段更新
func (r *PurchaseRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateItemFields 行项级字段更新
func (r *PurchaseRepository) UpdateItemFields(ctx context.Context, itemID string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&entity.PurchaseItem{}).
		Where("id = ?", itemID).
		Updates(fields).Error
}

// DeleteItem 删除行项及其收货历史
func (r *PurchaseRepository) DeleteItem(ctx context.Context, itemID string) error {
	if err := r.db.WithContext(ctx).Where("item_id = ?", itemID).Delete(&entity.ReceiptEntry{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", itemID).Delete(&entity.PurchaseItem{}).Error
}

// InsertReceipt 追加收货记录
func (r *PurchaseRepository) InsertReceipt(ctx context.Context, ent *entity.ReceiptEntry) error {
	return r.db.WithContext(ctx).Create(ent).Error
}

// DeletePurchase 删除采购单：行项收货历史→行项→置空工单引用→请求本体
// 刻意不包事务：每一步都是对远端的独立调用，与旧系统的删除序列保持一致
func (r *PurchaseRepository) DeletePurchase(ctx context.Context, id string) error {
	var itemIDs []string
	if err := r.db.WithContext(ctx).
		Model(&entity.PurchaseItem{}).
		Where("purchase_id = ?", id).
		Pluck("id", &itemIDs).Error; err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if len(itemIDs) > 0 {
		if err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Delete(&entity.ReceiptEntry{}).Error; err != nil {
			return fmt.Errorf("delete receipt entries: %w", err)
		}
	}
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", id).Delete(&entity.PurchaseItem{}).Error; err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	// 工单只置空引用不删除：主体没了，历史也要留
	if err := r.db.WithContext(ctx).
		Model(&entity.SupportTicket{}).
		Where("purchase_id = ?", id).
		Update("purchase_id", nil).Error; err != nil {
		return fmt.Errorf("detach support tickets: %w", err)
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.PurchaseRequest{}).Error; err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	return nil
}

// GenerateCode 生成采购单编码 PR-{year}-{4位}
func (r *PurchaseRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("PR-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Select("COALESCE(MAX(request_code), '')").
		Where("request_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "PR-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("PR-%s-%04d", year, seq), nil
}
