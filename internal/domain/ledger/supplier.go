package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerscan/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Supplier represents a vendor that issues invoices to a customer.
//
// A supplier has two identities inside a customer's books: the canonical
// name shown to the accountant, and the raw OCR identification string as it
// appears on scanned documents. Both are unique per customer so that a
// document can be re-matched to the same supplier even when the canonical
// name has since been corrected.
type Supplier struct {
	shared.BaseEntity
	CustomerID              uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_suppliers_customer_name,priority:1;uniqueIndex:idx_suppliers_customer_ocr,priority:1"`
	Name                    string           `gorm:"type:varchar(200);not null;uniqueIndex:idx_suppliers_customer_name,priority:2"`
	OCRIdentification       string           `gorm:"type:varchar(255);uniqueIndex:idx_suppliers_customer_ocr,priority:2"`
	Currency                string           `gorm:"type:varchar(3)"`
	DefaultExpenseAccountID *uuid.UUID       `gorm:"type:uuid"`
	DefaultDeductiblePct    *decimal.Decimal `gorm:"type:decimal(5,2)"`
	Active                  bool             `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Supplier) TableName() string {
	return "suppliers"
}

// NewSupplier creates a new supplier from an extracted document. The OCR
// identification is seeded with the raw extracted name so future documents
// from the same vendor re-match even after a manual rename.
func NewSupplier(customerID uuid.UUID, name, ocrIdentification, currency string) (*Supplier, error) {
	if err := validateSupplierName(name); err != nil {
		return nil, err
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID is required")
	}
	if ocrIdentification == "" {
		ocrIdentification = name
	}

	return &Supplier{
		BaseEntity:        shared.NewBaseEntity(),
		CustomerID:        customerID,
		Name:              name,
		OCRIdentification: ocrIdentification,
		Currency:          strings.ToUpper(currency),
		Active:            true,
	}, nil
}

// Rename updates the canonical name in place. Used when a known OCR alias
// maps to a supplier whose displayed name has changed.
func (s *Supplier) Rename(name string) error {
	if err := validateSupplierName(name); err != nil {
		return err
	}
	s.Name = name
	s.UpdatedAt = time.Now()
	return nil
}

// BackfillOCRIdentification records the raw OCR string on a supplier that was
// previously matched by canonical name only.
func (s *Supplier) BackfillOCRIdentification(alias string) error {
	if alias == "" {
		return shared.NewDomainError("INVALID_OCR_ALIAS", "OCR identification cannot be empty")
	}
	if len(alias) > 255 {
		return shared.NewDomainError("INVALID_OCR_ALIAS", "OCR identification cannot exceed 255 characters")
	}
	s.OCRIdentification = alias
	s.UpdatedAt = time.Now()
	return nil
}

// SetDefaults sets the default expense account and deductible percentage
// applied to this supplier's invoices on first insert.
func (s *Supplier) SetDefaults(expenseAccountID *uuid.UUID, deductiblePct *decimal.Decimal) error {
	if deductiblePct != nil {
		if deductiblePct.IsNegative() || deductiblePct.GreaterThan(decimal.NewFromInt(100)) {
			return shared.NewDomainError("INVALID_DEDUCTIBLE_PCT", "Deductible percentage must be between 0 and 100")
		}
	}
	s.DefaultExpenseAccountID = expenseAccountID
	s.DefaultDeductiblePct = deductiblePct
	s.UpdatedAt = time.Now()
	return nil
}

// HasDefaults returns true if the supplier carries booking defaults
func (s *Supplier) HasDefaults() bool {
	return s.DefaultExpenseAccountID != nil || s.DefaultDeductiblePct != nil
}

func validateSupplierName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Supplier name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Supplier name cannot exceed 200 characters")
	}
	return nil
}
