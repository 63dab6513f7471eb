package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/perm"
	"github.com/hyeunung/hanslworkspace-sub000/internal/purchase/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Session 会话：身份加上建立时解析好的不可变权限集合
type Session struct {
	UserID string
	Name   string
	Perms  perm.Set
}

// ViewAll 是否可见全量采购单（审批/采购/会计类会话），否则只看本人申请
func (s *Session) ViewAll() bool {
	return s.Perms.IsAdmin() ||
		s.Perms.Has(perm.PermMiddleApprove) ||
		s.Perms.Has(perm.PermFinalApprove) ||
		s.Perms.Has(perm.PermExecute) ||
		s.Perms.Has(perm.PermStatementConfirm)
}

// SessionService 会话服务
// 旧系统的角色字符串（逗号分隔或数组，格式不统一）在这里一次性解析为类型化权限集合，
// 解析结果按会话缓存在redis，后续请求不再接触松散格式
type SessionService struct {
	employees *repository.EmployeeRepository
	rdb       *redis.Client
	ttl       time.Duration
	logger    *zap.Logger
}

func NewSessionService(employees *repository.EmployeeRepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionService {
	return &SessionService{
		employees: employees,
		rdb:       rdb,
		ttl:       ttl,
		logger:    logger,
	}
}

type cachedSession struct {
	Name  string `json:"name"`
	Roles string `json:"roles"`
}

// Resolve 建立会话：redis命中则直接复用解析结果，未命中回源员工表
func (s *SessionService) Resolve(ctx context.Context, userID string) (*Session, error) {
	key := "session:roles:" + userID

	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
			var cached cachedSession
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &Session{
					UserID: userID,
					Name:   cached.Name,
					Perms:  perm.ParseRoles(cached.Roles),
				}, nil
			}
		}
	}

	emp, err := s.employees.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	if s.rdb != nil {
		raw, _ := json.Marshal(cachedSession{Name: emp.Name, Roles: emp.Roles})
		if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.logger.Warn("Failed to cache session roles", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return &Session{
		UserID: userID,
		Name:   emp.Name,
		Perms:  perm.ParseRoles(emp.Roles),
	}, nil
}

// Invalidate 角色变更后作废会话缓存
func (s *SessionService) Invalidate(ctx context.Context, userID string) {
	if s.rdb != nil {
		s.rdb.Del(ctx, "session:roles:"+userID)
	}
}
