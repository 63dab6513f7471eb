package perm

import "strings"

// Permission 操作权限
type Permission string

const (
	PermCreate          Permission = "purchase:create"
	PermMiddleApprove   Permission = "purchase:approve:middle"
	PermFinalApprove    Permission = "purchase:approve:final"
	PermExecute         Permission = "purchase:execute" // 下单/付款等采购执行
	PermReceive         Permission = "purchase:receive"
	PermStatementConfirm Permission = "purchase:statement"
	PermExpenditure     Permission = "purchase:expenditure"
	PermUTKCheck        Permission = "purchase:utk_check"
	PermDeleteAny       Permission = "purchase:delete_any"
)

// 角色编码（旧系统的角色字符串归一化后的形态）
const (
	RoleRequester     = "requester"
	RoleMiddleManager = "middle_manager"
	RoleFinalManager  = "final_manager"
	RoleBuyer         = "buyer"
	RoleAccounting    = "accounting"
	RoleAdmin         = "admin"
)

var rolePermissions = map[string][]Permission{
	RoleRequester:     {PermCreate},
	RoleMiddleManager: {PermCreate, PermMiddleApprove},
	RoleFinalManager:  {PermCreate, PermFinalApprove},
	RoleBuyer:         {PermCreate, PermExecute, PermReceive},
	RoleAccounting:    {PermStatementConfirm, PermExpenditure, PermUTKCheck},
	RoleAdmin: {
		PermCreate, PermMiddleApprove, PermFinalApprove, PermExecute,
		PermReceive, PermStatementConfirm, PermExpenditure, PermUTKCheck,
		PermDeleteAny,
	},
}

// Set 不可变权限集合，会话建立时构建一次
type Set struct {
	perms map[Permission]struct{}
	admin bool
}

// ParseRoles 解析旧系统的角色声明
// 旧数据既有逗号分隔字符串也有数组，两种形态统一走这里归一化，未知角色直接丢弃
func ParseRoles(raw ...string) Set {
	s := Set{perms: make(map[Permission]struct{})}
	for _, chunk := range raw {
		for _, r := range strings.Split(chunk, ",") {
			role := strings.ToLower(strings.TrimSpace(r))
			if role == "" {
				continue
			}
			if role == RoleAdmin {
				s.admin = true
			}
			for _, p := range rolePermissions[role] {
				s.perms[p] = struct{}{}
			}
		}
	}
	return s
}

// Has 是否持有某权限
func (s Set) Has(p Permission) bool {
	_, ok := s.perms[p]
	return ok
}

// IsAdmin 管理员（可删除任意状态的采购单）
func (s Set) IsAdmin() bool {
	return s.admin
}

// List 已持有权限列表（输出顺序不保证）
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	return out
}
