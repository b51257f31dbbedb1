// Package processing orchestrates the document pipeline: it drives discovery
// output through analysis, classification, mapping and validation, then
// reconciles the results against the ledger.
package processing

import (
	"context"

	"github.com/ledgerscan/backend/internal/domain/ledger"
	"github.com/ledgerscan/backend/internal/domain/processing"
)

// Document is one discovered document locator. Discovery happens outside this
// service; the pipeline receives an already-expanded list.
type Document struct {
	// Locator is a scheme-prefixed location, "file:///path" or "s3://key"
	Locator string `json:"locator"`
	// Name is the display/file name used for logging and as the document
	// reference fallback.
	Name string `json:"name"`
}

// Analyzer is the analysis-provider boundary. Implementations are the only
// components permitted to perform network I/O against the provider.
type Analyzer interface {
	// Analyze submits document bytes and blocks until the provider returns a
	// result or the configured per-call timeout elapses. The hint selects the
	// provider model; implementations treat an empty hint as invoice-shaped.
	Analyze(ctx context.Context, data []byte, contentType string, hint processing.DocumentType) (processing.RawExtraction, error)
}

// DocumentFetcher resolves a locator into raw bytes plus a content type
type DocumentFetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, string, error)
}

// TransactionScope provides transactional access to ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within
// a transaction. All repositories returned share the same underlying database
// transaction.
type TransactionalRepositories interface {
	// SupplierRepo returns the supplier repository scoped to the current transaction
	SupplierRepo() ledger.SupplierRepository
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() ledger.InvoiceRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing or when transaction support is not
// required.
type NoOpTransactionScope struct {
	supplierRepo ledger.SupplierRepository
	invoiceRepo  ledger.InvoiceRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(supplierRepo ledger.SupplierRepository, invoiceRepo ledger.InvoiceRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		supplierRepo: supplierRepo,
		invoiceRepo:  invoiceRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// SupplierRepo returns the supplier repository.
func (s *NoOpTransactionScope) SupplierRepo() ledger.SupplierRepository {
	return s.supplierRepo
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() ledger.InvoiceRepository {
	return s.invoiceRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
