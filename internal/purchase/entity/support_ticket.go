package entity

import "time"

// SupportTicket 采购相关咨询/支援工单
// 采购单删除时只置空引用，工单本身保留（历史不随主体消失）
type SupportTicket struct {
	ID         string  `json:"id" gorm:"primaryKey;size:32"`
	PurchaseID *string `json:"purchase_id" gorm:"size:32;index"`
	Category   string  `json:"category" gorm:"size:50"` // inquiry/issue/request
	Title      string  `json:"title" gorm:"size:200;not null"`
	Content    string  `json:"content" gorm:"type:text"`
	Status     string  `json:"status" gorm:"size:20;default:open"` // open/resolved

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SupportTicket) TableName() string {
	return "purchase_support_tickets"
}
