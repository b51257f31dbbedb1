package ledger

import (
	"github.com/ledgerscan/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ExpenseAccount represents a chart-of-accounts entry that invoices are
// booked against. Each account carries the deductible percentage applied
// by default to invoices booked on it.
type ExpenseAccount struct {
	shared.BaseEntity
	Code                 string          `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name                 string          `gorm:"type:varchar(200);not null"`
	Description          string          `gorm:"type:text"`
	DefaultDeductiblePct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:100.00"`
	Active               bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ExpenseAccount) TableName() string {
	return "expense_accounts"
}

// NewExpenseAccount creates a new expense account
func NewExpenseAccount(code, name string, defaultDeductiblePct decimal.Decimal) (*ExpenseAccount, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Expense account code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Expense account name cannot be empty")
	}
	if defaultDeductiblePct.IsNegative() || defaultDeductiblePct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_DEDUCTIBLE_PCT", "Deductible percentage must be between 0 and 100")
	}
	return &ExpenseAccount{
		BaseEntity:           shared.NewBaseEntity(),
		Code:                 code,
		Name:                 name,
		DefaultDeductiblePct: defaultDeductiblePct,
		Active:               true,
	}, nil
}
