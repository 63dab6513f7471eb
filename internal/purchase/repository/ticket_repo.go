package repository

import (
	"context"
	"errors"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"gorm.io/gorm"
)

// TicketRepository 支援工单仓库
type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// FindByPurchase 查找引用某采购单的工单
func (r *TicketRepository) FindByPurchase(ctx context.Context, purchaseID string) ([]entity.SupportTicket, error) {
	var tickets []entity.SupportTicket
	err := r.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at DESC").
		Find(&tickets).Error
	return tickets, err
}

// FindByID 按ID查找工单
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*entity.SupportTicket, error) {
	var ticket entity.SupportTicket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// Create 创建工单
func (r *TicketRepository) Create(ctx context.Context, ticket *entity.SupportTicket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

// Update 更新工单
func (r *TicketRepository) Update(ctx context.Context, ticket *entity.SupportTicket) error {
	return r.db.WithContext(ctx).Save(ticket).Error
}
