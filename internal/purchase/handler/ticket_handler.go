package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/repository"
)

// TicketHandler 采购支援工单处理器
type TicketHandler struct {
	tickets *repository.TicketRepository
}

func NewTicketHandler(tickets *repository.TicketRepository) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// CreateTicketRequest 创建工单请求
type CreateTicketRequest struct {
	Category string `json:"category"`
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
}

// Create 对某采购单发起支援工单
// POST /api/v1/purchases/:id/tickets
func (h *TicketHandler) Create(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		Unauthorized(c, "未登录")
		return
	}
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	purchaseID := c.Param("id")
	category := req.Category
	if category == "" {
		category = "inquiry"
	}

	now := time.Now()
	ticket := &entity.SupportTicket{
		ID:         uuid.New().String()[:32],
		PurchaseID: &purchaseID,
		Category:   category,
		Title:      req.Title,
		Content:    req.Content,
		Status:     "open",
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.tickets.Create(c.Request.Context(), ticket); err != nil {
		InternalError(c, "创建工单失败: "+err.Error())
		return
	}
	Created(c, ticket)
}

// ListByPurchase 某采购单的工单列表
// GET /api/v1/purchases/:id/tickets
func (h *TicketHandler) ListByPurchase(c *gin.Context) {
	tickets, err := h.tickets.FindByPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取工单列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": tickets})
}

// Resolve 关闭工单
// POST /api/v1/tickets/:ticket_id/resolve
func (h *TicketHandler) Resolve(c *gin.Context) {
	ticket, err := h.tickets.FindByID(c.Request.Context(), c.Param("ticket_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "工单不存在")
			return
		}
		InternalError(c, "获取工单失败: "+err.Error())
		return
	}
	ticket.Status = "resolved"
	ticket.UpdatedAt = time.Now()
	if err := h.tickets.Update(c.Request.Context(), ticket); err != nil {
		InternalError(c, "更新工单失败: "+err.Error())
		return
	}
	Success(c, ticket)
}
