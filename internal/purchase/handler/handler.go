package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/cache"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/lifecycle"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/repository"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/service"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/sse"
)

// Handlers 处理器集合
type Handlers struct {
	Purchase  *PurchaseHandler
	Dashboard *DashboardHandler
	Ticket    *TicketHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(mgr *service.Manager, sessions *service.SessionService, tickets *repository.TicketRepository, hub *sse.Hub) *Handlers {
	return &Handlers{
		Purchase:  NewPurchaseHandler(mgr, sessions),
		Dashboard: NewDashboardHandler(mgr, sessions),
		Ticket:    NewTicketHandler(tickets),
		SSE:       NewSSEHandler(hub),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// respondError 按业务错误映射HTTP响应
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, lifecycle.ErrDeleteForbidden):
		Forbidden(c, err.Error())
	case errors.Is(err, cache.ErrNotFound):
		NotFound(c, "采购单不存在")
	case errors.Is(err, cache.ErrItemNotFound):
		NotFound(c, "行项不存在")
	case errors.Is(err, cache.ErrInvalidQuantity),
		errors.Is(err, service.ErrNoItems),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, lifecycle.ErrMiddleNotApproved),
		errors.Is(err, lifecycle.ErrTierRejected),
		errors.Is(err, lifecycle.ErrNotEligible):
		BadRequest(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}
