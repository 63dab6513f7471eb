package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/service"
)

// PurchaseHandler 采购单处理器
type PurchaseHandler struct {
	mgr      *service.Manager
	sessions *service.SessionService
}

func NewPurchaseHandler(mgr *service.Manager, sessions *service.SessionService) *PurchaseHandler {
	return &PurchaseHandler{mgr: mgr, sessions: sessions}
}

// session 解析会话、取该身份的服务并保证缓存已加载；失败时已写入响应
func (h *PurchaseHandler) session(c *gin.Context) (*service.Session, *service.PurchaseService, bool) {
	userID := GetUserID(c)
	if userID == "" {
		Unauthorized(c, "未登录")
		return nil, nil, false
	}
	sess, err := h.sessions.Resolve(c.Request.Context(), userID)
	if err != nil {
		Unauthorized(c, "会话解析失败: "+err.Error())
		return nil, nil, false
	}
	svc := h.mgr.For(sess.UserID)
	if err := svc.EnsureLoaded(c.Request.Context(), sess); err != nil {
		InternalError(c, "加载采购数据失败: "+err.Error())
		return nil, nil, false
	}
	return sess, svc, true
}

// parseDate 解析日期参数，空值取当天
func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now(), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, err == nil
}

// List 采购单列表
// GET /api/v1/purchases?page=1&page_size=20
func (h *PurchaseHandler) List(c *gin.Context) {
	_, svc, ok := h.session(c)
	if !ok {
		return
	}
	page, pageSize := GetPagination(c)

	all := svc.List()
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}

	Success(c, ListResponse{
		Items: all[start:end],
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// Get 采购单详情
// GET /api/v1/purchases/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	_, svc, ok := h.session(c)
	if !ok {
		return
	}
	pr := svc.Get(c.Param("id"))
	if pr == nil {
		NotFound(c, "采购单不存在")
		return
	}
	Success(c, pr)
}

// Create 创建采购单
// POST /api/v1/purchases
func (h *PurchaseHandler) Create(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	var req service.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	pr, err := svc.Create(c.Request.Context(), sess, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, pr)
}

// Update 编辑采购单（元数据与行项整组替换）
// PUT /api/v1/purchases/:id
func (h *PurchaseHandler) Update(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	var req service.UpdatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	removed, err := svc.Update(c.Request.Context(), sess, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	if removed {
		// 行项清空后整单按删除处理
		Success(c, gin.H{"deleted": true})
		return
	}
	Success(c, svc.Get(id))
}

// Delete 删除采购单
// DELETE /api/v1/purchases/:id
func (h *PurchaseHandler) Delete(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	if err := svc.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// Refresh 强制重拉缓存
// POST /api/v1/purchases/refresh
func (h *PurchaseHandler) Refresh(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	if err := svc.Reload(c.Request.Context(), sess); err != nil {
		InternalError(c, "刷新失败: "+err.Error())
		return
	}
	Success(c, gin.H{"count": len(svc.List())})
}

// === 审批 ===

// ApproveMiddle 初审通过
// POST /api/v1/purchases/:id/middle-approve
func (h *PurchaseHandler) ApproveMiddle(c *gin.Context) {
	h.approval(c, (*service.PurchaseService).ApproveMiddle)
}

// RejectMiddle 初审驳回
// POST /api/v1/purchases/:id/middle-reject
func (h *PurchaseHandler) RejectMiddle(c *gin.Context) {
	h.approval(c, (*service.PurchaseService).RejectMiddle)
}

// ApproveFinal 终审通过
// POST /api/v1/purchases/:id/final-approve
func (h *PurchaseHandler) ApproveFinal(c *gin.Context) {
	h.approval(c, (*service.PurchaseService).ApproveFinal)
}

// RejectFinal 终审驳回
// POST /api/v1/purchases/:id/final-reject
func (h *PurchaseHandler) RejectFinal(c *gin.Context) {
	h.approval(c, (*service.PurchaseService).RejectFinal)
}

func (h *PurchaseHandler) approval(c *gin.Context, op func(svc *service.PurchaseService, ctx context.Context, sess *service.Session, id string) error) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := op(svc, c.Request.Context(), sess, id); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// === 行项进度 ===

// CompleteItemPayment 行项付款完成
// POST /api/v1/purchases/:id/items/:item_id/payment-complete
func (h *PurchaseHandler) CompleteItemPayment(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	id, itemID := c.Param("id"), c.Param("item_id")
	if err := svc.MarkItemPayment(c.Request.Context(), sess, id, itemID); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// CancelItemPayment 撤销行项付款
// POST /api/v1/purchases/:id/items/:item_id/payment-cancel
func (h *PurchaseHandler) CancelItemPayment(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	id, itemID := c.Param("id"), c.Param("item_id")
	if err := svc.CancelItemPayment(c.Request.Context(), sess, id, itemID); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// ReceiveItemRequest 收货请求
type ReceiveItemRequest struct {
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity" binding:"required"`
}

// ReceiveItem 行项收货（数量累加）
// POST /api/v1/purchases/:id/items/:item_id/receipts
func (h *PurchaseHandler) ReceiveItem(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	var req ReceiveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	date, valid := parseDate(req.Date)
	if !valid {
		BadRequest(c, "日期格式错误")
		return
	}
	id, itemID := c.Param("id"), c.Param("item_id")
	if err := svc.ReceiveItem(c.Request.Context(), sess, id, itemID, date, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// StatementRequest 对账确认请求
type StatementRequest struct {
	Date string `json:"date"`
}

// ConfirmItemStatement 行项对账确认
// POST /api/v1/purchases/:id/items/:item_id/statement-confirm
func (h *PurchaseHandler) ConfirmItemStatement(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	var req StatementRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	date, valid := parseDate(req.Date)
	if !valid {
		BadRequest(c, "日期格式错误")
		return
	}
	id, itemID := c.Param("id"), c.Param("item_id")
	if err := svc.ConfirmItemStatement(c.Request.Context(), sess, id, itemID, date); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// CancelItemStatement 撤销行项对账
// POST /api/v1/purchases/:id/items/:item_id/statement-cancel
func (h *PurchaseHandler) CancelItemStatement(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	id, itemID := c.Param("id"), c.Param("item_id")
	if err := svc.CancelItemStatement(c.Request.Context(), sess, id, itemID); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// ExpenditureRequest 支出记录请求
type ExpenditureRequest struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount" binding:"required"`
}

// SetItemExpenditure 行项支出记录
// POST /api/v1/purchases/:id/items/:item_id/expenditure
func (h *PurchaseHandler) SetItemExpenditure(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	var req ExpenditureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	date, valid := parseDate(req.Date)
	if !valid {
		BadRequest(c, "日期格式错误")
		return
	}
	id, itemID := c.Param("id"), c.Param("item_id")
	if err := svc.SetItemExpenditure(c.Request.Context(), sess, id, itemID, date, req.Amount); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// SetBulkExpenditure 整单支出记录（清空行项金额）
// POST /api/v1/purchases/:id/expenditure
func (h *PurchaseHandler) SetBulkExpenditure(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	var req ExpenditureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	date, valid := parseDate(req.Date)
	if !valid {
		BadRequest(c, "日期格式错误")
		return
	}
	id := c.Param("id")
	if err := svc.SetBulkExpenditure(c.Request.Context(), sess, id, date, req.Amount); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// UTKRequest UTK核对请求
type UTKRequest struct {
	Checked bool `json:"checked"`
}

// SetUTKChecked UTK核对标记
// POST /api/v1/purchases/:id/utk-check
func (h *PurchaseHandler) SetUTKChecked(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	var req UTKRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	id := c.Param("id")
	if err := svc.SetUTKChecked(c.Request.Context(), sess, id, req.Checked); err != nil {
		respondError(c, err)
		return
	}
	Success(c, svc.Get(id))
}

// RemoveItem 删除行项（最后一条删除时整单按删除处理）
// DELETE /api/v1/purchases/:id/items/:item_id
func (h *PurchaseHandler) RemoveItem(c *gin.Context) {
	sess, svc, ok := h.session(c)
	if !ok {
		return
	}
	id, itemID := c.Param("id"), c.Param("item_id")
	requestRemoved, err := svc.RemoveItem(c.Request.Context(), sess, id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	if requestRemoved {
		Success(c, gin.H{"deleted": true})
		return
	}
	Success(c, svc.Get(id))
}
