package processing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field names used in FieldConfidence and BoundingBoxes maps
const (
	FieldSupplierName  = "supplier_name"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldDueDate       = "due_date"
	FieldCurrency      = "currency"
	FieldSubtotal      = "subtotal"
	FieldVATAmount     = "vat_amount"
	FieldTotal         = "total"
)

// NormalizedInvoice is the canonical in-flight record for one processed
// document. Created by the mapper, enriched by the validator, consumed
// exactly once by the persistence engine, then discarded; the durable record
// is the stored supplier/invoice row.
type NormalizedInvoice struct {
	// SupplierName is the extracted vendor name, pre-matching
	SupplierName string `json:"supplier_name"`
	// SupplierOCRAlias is the raw OCR string, which may differ from the
	// normalized supplier name stored in the ledger.
	SupplierOCRAlias string `json:"supplier_ocr_alias"`

	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   time.Time  `json:"invoice_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`

	Currency  string          `json:"currency"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`

	DocumentType DocumentType `json:"document_type"`
	Language     Language     `json:"language"`

	// OverallConfidence is the weighted mean of individual field
	// confidences, in [0, 1].
	OverallConfidence float64                   `json:"overall_confidence"`
	FieldConfidence   map[string]float64        `json:"field_confidence,omitempty"`
	BoundingBoxes     map[string]BoundingRegion `json:"bounding_boxes,omitempty"`
	PageCount         int                       `json:"page_count"`

	NeedsReview        bool `json:"needs_review"`
	ArithmeticMismatch bool `json:"arithmetic_mismatch"`

	SourceDocumentPath string `json:"source_document_path"`
	SourceDocumentName string `json:"source_document_name"`
}

// HasDueDate reports whether a due date was extracted
func (n *NormalizedInvoice) HasDueDate() bool {
	return n.DueDate != nil
}

// ComputedTotal returns subtotal + vat_amount
func (n *NormalizedInvoice) ComputedTotal() decimal.Decimal {
	return n.Subtotal.Add(n.VATAmount)
}
