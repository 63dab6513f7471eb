package entity

import "time"

// PurchaseRequest 采购单（含行项）
type PurchaseRequest struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RequestCode   string `json:"request_code" gorm:"size:32;uniqueIndex;not null"`
	RequesterID   string `json:"requester_id" gorm:"size:32;not null;index"`
	RequesterName string `json:"requester_name" gorm:"size:100"`
	VendorID      *string `json:"vendor_id" gorm:"size:32"`
	VendorName    string  `json:"vendor_name" gorm:"size:200"`

	// 结算类型与进行方式
	PaymentCategory string `json:"payment_category" gorm:"size:20;not null"`       // request/order/onsite
	ProgressType    string `json:"progress_type" gorm:"size:20;default:normal"` // normal/fast_track

	// 两级审批
	MiddleApprovalStatus string     `json:"middle_approval_status" gorm:"size:20;default:pending"` // pending/approved/rejected
	FinalApprovalStatus  string     `json:"final_approval_status" gorm:"size:20;default:pending"`
	MiddleApprovedAt     *time.Time `json:"middle_approved_at"`
	FinalApprovedAt      *time.Time `json:"final_approved_at"`
	MiddleApprovedBy     *string    `json:"middle_approved_by" gorm:"size:32"`
	FinalApprovedBy      *string    `json:"final_approved_by" gorm:"size:32"`

	// 聚合标记（由行项推导，禁止直接写入）
	IsPaymentCompleted  bool       `json:"is_payment_completed" gorm:"default:false"`
	IsReceived          bool       `json:"is_received" gorm:"default:false"`
	IsStatementReceived bool       `json:"is_statement_received" gorm:"default:false"`
	IsUTKChecked        bool       `json:"is_utk_checked" gorm:"default:false"` // UTK对账标记
	PaymentCompletedAt  *time.Time `json:"payment_completed_at"`
	ReceivedAt          *time.Time `json:"received_at"`
	StatementReceivedAt *time.Time `json:"statement_received_at"`

	// 金额
	TotalAmount            float64    `json:"total_amount" gorm:"type:decimal(15,2);default:0"`
	TotalExpenditureAmount *float64   `json:"total_expenditure_amount" gorm:"type:decimal(15,2)"` // 整单支出模式时有值
	ExpenditureDate        *time.Time `json:"expenditure_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Items []PurchaseItem `json:"items,omitempty" gorm:"foreignKey:PurchaseID"`
}

func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

// 审批状态
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// 结算类型
const (
	PaymentCategoryRequest = "request" // 采购请求
	PaymentCategoryOrder   = "order"   // 采购发注
	PaymentCategoryOnsite  = "onsite"  // 现场结算
)

// 进行方式
const (
	ProgressNormal    = "normal"
	ProgressFastTrack = "fast_track" // 加急：跳过审批门槛直接进入采购/收货
)

// PurchaseItem 采购行项
type PurchaseItem struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	PurchaseID string `json:"purchase_id" gorm:"size:32;not null;index"`

	// 物品信息
	Name          string  `json:"name" gorm:"size:200;not null"`
	Specification string  `json:"specification" gorm:"size:500"`
	Quantity      float64 `json:"quantity" gorm:"type:decimal(10,2);not null"`

	// 收货进度（DeliveryStatus由数量推导，禁止直接写入）
	ReceivedQuantity float64 `json:"received_quantity" gorm:"type:decimal(10,2);default:0"`
	DeliveryStatus   string  `json:"delivery_status" gorm:"size:20;default:pending"` // pending/partial/received

	// 金额
	UnitPrice  float64 `json:"unit_price" gorm:"type:decimal(12,4);default:0"`
	LineAmount float64 `json:"line_amount" gorm:"type:decimal(15,2);default:0"`
	TaxAmount  float64 `json:"tax_amount" gorm:"type:decimal(15,2);default:0"`

	// 付款
	IsPaymentCompleted bool       `json:"is_payment_completed" gorm:"default:false"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at"`

	// 交易明细单确认
	IsStatementReceived bool       `json:"is_statement_received" gorm:"default:false"`
	StatementReceivedAt *time.Time `json:"statement_received_at"`
	StatementActor      string     `json:"statement_actor" gorm:"size:100"`

	// 支出登记（与整单支出模式互斥）
	ExpenditureDate   *time.Time `json:"expenditure_date"`
	ExpenditureAmount *float64   `json:"expenditure_amount" gorm:"type:decimal(15,2)"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	ReceiptHistory []ReceiptEntry `json:"receipt_history,omitempty" gorm:"foreignKey:ItemID"`
}

func (PurchaseItem) TableName() string {
	return "purchase_items"
}

// 收货状态
const (
	DeliveryPending  = "pending"
	DeliveryPartial  = "partial"
	DeliveryReceived = "received"
)

// ReceiptEntry 分批收货记录（只追加）
type ReceiptEntry struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	ItemID     string    `json:"item_id" gorm:"size:32;not null;index"`
	Sequence   int       `json:"sequence" gorm:"not null"`
	Quantity   float64   `json:"quantity" gorm:"type:decimal(10,2);not null"`
	ReceivedAt time.Time `json:"received_at"`
	Actor      string    `json:"actor" gorm:"size:100"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ReceiptEntry) TableName() string {
	return "purchase_receipt_entries"
}

// Clone 深拷贝（缓存对外只交付副本）
func (p *PurchaseRequest) Clone() *PurchaseRequest {
	if p == nil {
		return nil
	}
	c := *p
	c.VendorID = clonePtr(p.VendorID)
	c.MiddleApprovedAt = clonePtr(p.MiddleApprovedAt)
	c.FinalApprovedAt = clonePtr(p.FinalApprovedAt)
	c.MiddleApprovedBy = clonePtr(p.MiddleApprovedBy)
	c.FinalApprovedBy = clonePtr(p.FinalApprovedBy)
	c.PaymentCompletedAt = clonePtr(p.PaymentCompletedAt)
	c.ReceivedAt = clonePtr(p.ReceivedAt)
	c.StatementReceivedAt = clonePtr(p.StatementReceivedAt)
	c.TotalExpenditureAmount = clonePtr(p.TotalExpenditureAmount)
	c.ExpenditureDate = clonePtr(p.ExpenditureDate)
	if p.Items != nil {
		c.Items = make([]PurchaseItem, len(p.Items))
		for i := range p.Items {
			c.Items[i] = *p.Items[i].Clone()
		}
	}
	return &c
}

// Clone 深拷贝行项
func (it *PurchaseItem) Clone() *PurchaseItem {
	if it == nil {
		return nil
	}
	c := *it
	c.PaymentCompletedAt = clonePtr(it.PaymentCompletedAt)
	c.StatementReceivedAt = clonePtr(it.StatementReceivedAt)
	c.ExpenditureDate = clonePtr(it.ExpenditureDate)
	c.ExpenditureAmount = clonePtr(it.ExpenditureAmount)
	if it.ReceiptHistory != nil {
		c.ReceiptHistory = make([]ReceiptEntry, len(it.ReceiptHistory))
		copy(c.ReceiptHistory, it.ReceiptHistory)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
