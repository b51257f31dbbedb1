package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerscan/backend/internal/domain/ledger"
	"github.com/ledgerscan/backend/internal/domain/shared"
)

// ocrOwnedColumns are the invoice columns refreshed when an upsert hits an
// existing row. Reviewer-owned columns (expense_account_id, deductible_pct,
// status) are deliberately absent: once a human has touched them, a re-scan
// must not undo that work.
var ocrOwnedColumns = []string{
	"invoice_date",
	"due_date",
	"currency",
	"subtotal",
	"vat_amount",
	"total",
	"document_type",
	"doc_name",
	"doc_full_path",
	"ocr_confidence",
	"ocr_language",
	"ocr_metadata",
	"needs_review",
	"duplicate_of",
	"payment_terms",
	"updated_at",
}

// GormInvoiceRepository implements ledger.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	var invoice ledger.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// FindByUniqueKey fetches the invoice stored under (customer_id, supplier_id, invoice_number)
func (r *GormInvoiceRepository) FindByUniqueKey(ctx context.Context, customerID, supplierID uuid.UUID, invoiceNumber string) (*ledger.Invoice, error) {
	var invoice ledger.Invoice
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND supplier_id = ? AND invoice_number = ?", customerID, supplierID, invoiceNumber).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// Upsert inserts the invoice or, on unique-key conflict, refreshes the
// OCR-owned columns of the stored row. Returns the stored row id, which on
// conflict is the pre-existing one.
func (r *GormInvoiceRepository) Upsert(ctx context.Context, invoice *ledger.Invoice) (uuid.UUID, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "customer_id"},
				{Name: "supplier_id"},
				{Name: "invoice_number"},
			},
			DoUpdates: clause.AssignmentColumns(ocrOwnedColumns),
		}).
		Create(invoice).Error
	if err != nil {
		return uuid.Nil, err
	}

	// On conflict GORM keeps the candidate row's generated id; read the
	// stored id back through the unique key.
	stored, err := r.FindByUniqueKey(ctx, invoice.CustomerID, invoice.SupplierID, invoice.InvoiceNumber)
	if err != nil {
		return uuid.Nil, err
	}
	return stored.ID, nil
}

// Ensure GormInvoiceRepository implements the repository interface
var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)
