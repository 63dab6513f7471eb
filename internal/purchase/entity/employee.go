package entity

import "time"

// Employee 员工
// Roles列沿用旧系统的松散格式（逗号分隔字符串），会话建立时一次性解析为权限集合
type Employee struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Email     string    `json:"email" gorm:"size:200;uniqueIndex"`
	Roles     string    `json:"roles" gorm:"size:500"`
	Status    string    `json:"status" gorm:"size:20;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Employee) TableName() string {
	return "employees"
}
