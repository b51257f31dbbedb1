package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerscan/backend/internal/domain/ledger"
	"github.com/ledgerscan/backend/internal/domain/shared"
)

// GormExpenseAccountRepository implements ledger.ExpenseAccountRepository using GORM
type GormExpenseAccountRepository struct {
	db *gorm.DB
}

// NewGormExpenseAccountRepository creates a new GormExpenseAccountRepository
func NewGormExpenseAccountRepository(db *gorm.DB) *GormExpenseAccountRepository {
	return &GormExpenseAccountRepository{db: db}
}

// FindByID finds an expense account by its ID
func (r *GormExpenseAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.ExpenseAccount, error) {
	var account ledger.ExpenseAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Ensure GormExpenseAccountRepository implements the repository interface
var _ ledger.ExpenseAccountRepository = (*GormExpenseAccountRepository)(nil)
