package ledger

import (
	"github.com/ledgerscan/backend/internal/domain/shared"
)

// Customer represents a bookkeeping client (the tenant every supplier and
// invoice belongs to).
type Customer struct {
	shared.BaseEntity
	Name           string `gorm:"type:varchar(200);not null;index"`
	TaxCode        string `gorm:"type:varchar(30)"`
	IsSelfEmployed bool   `gorm:"not null;default:false"`
	Active         bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a new customer with required fields
func NewCustomer(name string) (*Customer, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot exceed 200 characters")
	}
	return &Customer{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Active:     true,
	}, nil
}
