package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerscan/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the review lifecycle of a stored invoice
type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "pending"
	InvoiceStatusApproved InvoiceStatus = "approved"
	InvoiceStatusExported InvoiceStatus = "exported"
	InvoiceStatusRejected InvoiceStatus = "rejected"
)

// Document types stored on an invoice row
const (
	DocumentTypeInvoice = "invoice"
	DocumentTypeReceipt = "receipt"
	DocumentTypeOther   = "other"
)

// Invoice is the durable accounting record produced by the processing
// pipeline, uniquely keyed by (customer_id, supplier_id, invoice_number).
//
// Columns split into two ownership groups: OCR-owned fields (amounts, dates,
// confidence, language, metadata, needs_review) are refreshed on every
// re-processing of the same document, while reviewer-owned fields
// (expense_account_id, deductible_pct, status) are set from supplier
// defaults on first insert and never overwritten by the pipeline afterwards.
type Invoice struct {
	shared.BaseEntity
	CustomerID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_customer_supplier_number,priority:1;index:idx_invoices_customer_date,priority:1"`
	SupplierID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_customer_supplier_number,priority:2"`
	InvoiceNumber string    `gorm:"type:varchar(80);not null;uniqueIndex:idx_invoices_customer_supplier_number,priority:3"`

	InvoiceDate time.Time       `gorm:"type:date;not null;index:idx_invoices_customer_date,priority:2"`
	DueDate     *time.Time      `gorm:"type:date"`
	Currency    string          `gorm:"type:varchar(3);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	VATAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0.00"`
	Total       decimal.Decimal `gorm:"type:decimal(14,2);not null"`

	ExpenseAccountID *uuid.UUID       `gorm:"type:uuid"`
	DeductiblePct    *decimal.Decimal `gorm:"type:decimal(5,2)"`
	Status           InvoiceStatus    `gorm:"type:varchar(20);not null;default:'pending';index"`

	DocName      string `gorm:"type:varchar(255)"`
	DocFullPath  string `gorm:"type:text"`
	DocumentType string `gorm:"type:varchar(20);not null;default:'invoice'"`

	OCRConfidence float64    `gorm:"type:decimal(3,2)"`
	OCRLanguage   string     `gorm:"type:varchar(5)"`
	OCRMetadata   string     `gorm:"type:jsonb"`
	NeedsReview   bool       `gorm:"not null;default:false;index"`
	DuplicateOf   *uuid.UUID `gorm:"type:uuid"`
	PaymentTerms  string     `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// NewInvoice creates a new invoice row in the pending state
func NewInvoice(customerID, supplierID uuid.UUID, invoiceNumber string, invoiceDate time.Time, currency string, subtotal, vatAmount, total decimal.Decimal) (*Invoice, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID is required")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUPPLIER", "Supplier ID is required")
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 80 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 80 characters")
	}
	if len(currency) != 3 {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3-letter ISO code")
	}

	return &Invoice{
		BaseEntity:    shared.NewBaseEntity(),
		CustomerID:    customerID,
		SupplierID:    supplierID,
		InvoiceNumber: invoiceNumber,
		InvoiceDate:   invoiceDate,
		Currency:      currency,
		Subtotal:      subtotal,
		VATAmount:     vatAmount,
		Total:         total,
		Status:        InvoiceStatusPending,
		DocumentType:  DocumentTypeInvoice,
	}, nil
}

// SetOCRDetails records the extraction provenance on the row
func (i *Invoice) SetOCRDetails(confidence float64, language, metadataJSON string, needsReview bool) {
	i.OCRConfidence = confidence
	i.OCRLanguage = language
	i.OCRMetadata = metadataJSON
	i.NeedsReview = needsReview
	i.UpdatedAt = time.Now()
}

// SetDocument records where the source document came from
func (i *Invoice) SetDocument(docType, name, fullPath string) {
	if docType != "" {
		i.DocumentType = docType
	}
	i.DocName = name
	i.DocFullPath = fullPath
	i.UpdatedAt = time.Now()
}

// ApplySupplierDefaults inherits booking defaults from the supplier.
// Only meaningful on first insert; the upsert never touches these columns
// on conflict.
func (i *Invoice) ApplySupplierDefaults(s *Supplier) {
	if i.ExpenseAccountID == nil {
		i.ExpenseAccountID = s.DefaultExpenseAccountID
	}
	if i.DeductiblePct == nil {
		i.DeductiblePct = s.DefaultDeductiblePct
	}
}

// LinkDuplicate flags the invoice for review and records the prior invoice
// that shares its unique key with a materially different total.
func (i *Invoice) LinkDuplicate(priorID uuid.UUID) {
	i.NeedsReview = true
	i.DuplicateOf = &priorID
	i.UpdatedAt = time.Now()
}

// IsApproved returns true once a reviewer has approved the invoice
func (i *Invoice) IsApproved() bool {
	return i.Status == InvoiceStatusApproved
}

// TotalsMatchWithin reports whether the stored total differs from another
// total by no more than the given tolerance.
func (i *Invoice) TotalsMatchWithin(other, tolerance decimal.Decimal) bool {
	return i.Total.Sub(other).Abs().LessThanOrEqual(tolerance)
}
