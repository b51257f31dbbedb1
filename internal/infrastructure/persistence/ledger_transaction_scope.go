package persistence

import (
	"context"

	"gorm.io/gorm"

	appprocessing "github.com/ledgerscan/backend/internal/application/processing"
	"github.com/ledgerscan/backend/internal/domain/ledger"
)

// GormTransactionScope implements the application layer's TransactionScope
// using GORM transactions, giving each persisted invoice an atomic
// supplier+invoice write.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appprocessing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides repository access within one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// SupplierRepo returns the supplier repository scoped to the current transaction
func (r *gormTransactionalRepositories) SupplierRepo() ledger.SupplierRepository {
	return NewGormSupplierRepository(r.tx)
}

// InvoiceRepo returns the invoice repository scoped to the current transaction
func (r *gormTransactionalRepositories) InvoiceRepo() ledger.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// Ensure the GORM scope satisfies the application contracts
var _ appprocessing.TransactionScope = (*GormTransactionScope)(nil)
var _ appprocessing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
