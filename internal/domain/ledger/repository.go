package ledger

import (
	"context"

	"github.com/google/uuid"
)

// SupplierRepository defines the persistence operations for suppliers
type SupplierRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Supplier, error)
	// FindByOCRIdentification looks a supplier up by the raw OCR alias
	// within a customer's books.
	FindByOCRIdentification(ctx context.Context, customerID uuid.UUID, alias string) (*Supplier, error)
	// FindByName looks a supplier up by canonical name within a customer's books
	FindByName(ctx context.Context, customerID uuid.UUID, name string) (*Supplier, error)
	Save(ctx context.Context, supplier *Supplier) error
}

// InvoiceRepository defines the persistence operations for invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByUniqueKey fetches the invoice stored under
	// (customer_id, supplier_id, invoice_number), or shared.ErrNotFound.
	FindByUniqueKey(ctx context.Context, customerID, supplierID uuid.UUID, invoiceNumber string) (*Invoice, error)
	// Upsert inserts the invoice or, on unique-key conflict, updates the
	// OCR-owned columns in place. Reviewer-owned columns (expense_account_id,
	// deductible_pct, status) are never written on conflict. Returns the
	// stored row id, which on conflict is the pre-existing one.
	Upsert(ctx context.Context, invoice *Invoice) (uuid.UUID, error)
}

// CustomerRepository defines the persistence operations for customers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
}

// ExpenseAccountRepository defines the persistence operations for expense accounts
type ExpenseAccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ExpenseAccount, error)
}
