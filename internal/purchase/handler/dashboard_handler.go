package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/entity"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/service"
)

// DashboardHandler 看板处理器
type DashboardHandler struct {
	mgr      *service.Manager
	sessions *service.SessionService
}

func NewDashboardHandler(mgr *service.Manager, sessions *service.SessionService) *DashboardHandler {
	return &DashboardHandler{mgr: mgr, sessions: sessions}
}

// DashboardSummary 采购看板汇总
type DashboardSummary struct {
	Total            int     `json:"total"`
	PendingMiddle    int     `json:"pending_middle"`
	PendingFinal     int     `json:"pending_final"`
	Rejected         int     `json:"rejected"`
	InProgress       int     `json:"in_progress"`
	Received         int     `json:"received"`
	TotalAmount      float64 `json:"total_amount"`
	ExpenditureTotal float64 `json:"expenditure_total"`
}

// Summary 看板汇总
// GET /api/v1/dashboard/summary
func (h *DashboardHandler) Summary(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		Unauthorized(c, "未登录")
		return
	}
	sess, err := h.sessions.Resolve(c.Request.Context(), userID)
	if err != nil {
		Unauthorized(c, "会话解析失败: "+err.Error())
		return
	}
	svc := h.mgr.For(sess.UserID)
	if err := svc.EnsureLoaded(c.Request.Context(), sess); err != nil {
		InternalError(c, "加载采购数据失败: "+err.Error())
		return
	}

	var sum DashboardSummary
	for _, pr := range svc.List() {
		sum.Total++
		sum.TotalAmount += pr.TotalAmount
		if pr.TotalExpenditureAmount != nil {
			sum.ExpenditureTotal += *pr.TotalExpenditureAmount
		}
		switch {
		case pr.MiddleApprovalStatus == entity.ApprovalRejected || pr.FinalApprovalStatus == entity.ApprovalRejected:
			sum.Rejected++
		case pr.MiddleApprovalStatus == entity.ApprovalPending:
			sum.PendingMiddle++
		case pr.FinalApprovalStatus == entity.ApprovalPending:
			sum.PendingFinal++
		case pr.IsReceived:
			sum.Received++
		default:
			sum.InProgress++
		}
	}
	Success(c, sum)
}
