package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Purchase *PurchaseRepository
	Ticket   *TicketRepository
	Employee *EmployeeRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Purchase: NewPurchaseRepository(db),
		Ticket:   NewTicketRepository(db),
		Employee: NewEmployeeRepository(db),
	}
}
