package processing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/ledgerscan/backend/internal/domain/shared"
)

// ErrUnmappableExtraction is returned when the provider result carries none of
// the fields the selected mapping table knows about.
var ErrUnmappableExtraction = shared.NewDomainError("UNMAPPABLE_EXTRACTION", "extraction carries no mappable fields")

// fieldTable binds canonical invoice slots to provider field names for one
// document shape. Each slot lists candidate names in priority order; the first
// present field wins. One fixed table exists per document type.
type fieldTable struct {
	supplierName  []string
	invoiceNumber []string
	invoiceDate   []string
	dueDate       []string
	currencyCode  []string
	subtotal      []string
	vatAmount     []string
	total         []string
}

// invoiceFieldTable covers invoice-shaped analysis results
var invoiceFieldTable = fieldTable{
	supplierName:  []string{"VendorName"},
	invoiceNumber: []string{"InvoiceId", "InvoiceNumber"},
	invoiceDate:   []string{"InvoiceDate"},
	dueDate:       []string{"DueDate"},
	currencyCode:  []string{"Currency"},
	subtotal:      []string{"SubTotal"},
	vatAmount:     []string{"TotalTax"},
	total:         []string{"InvoiceTotal"},
}

// receiptFieldTable covers receipt-shaped analysis results. Receipts carry no
// document number or due date; those slots stay empty and map to absent.
var receiptFieldTable = fieldTable{
	supplierName: []string{"MerchantName"},
	invoiceDate:  []string{"TransactionDate"},
	currencyCode: []string{"Currency"},
	subtotal:     []string{"Subtotal"},
	vatAmount:    []string{"TotalTax", "Tax"},
	total:        []string{"Total"},
}

// tableFor selects the mapping table for a classified document type.
// Unclassified documents use the invoice table, the superset shape.
func tableFor(docType DocumentType) fieldTable {
	switch docType {
	case DocumentTypeInvoice:
		return invoiceFieldTable
	case DocumentTypeReceipt:
		return receiptFieldTable
	case DocumentTypeOther:
		return invoiceFieldTable
	default:
		return invoiceFieldTable
	}
}

// confidenceWeights rank amount fields above descriptive ones when averaging
// per-field confidences, since amount correctness is business-critical.
var confidenceWeights = map[string]float64{
	FieldTotal:         3.0,
	FieldSubtotal:      2.0,
	FieldVATAmount:     2.0,
	FieldInvoiceNumber: 1.5,
	FieldInvoiceDate:   1.0,
	FieldSupplierName:  1.0,
	FieldDueDate:       0.5,
	FieldCurrency:      0.5,
}

// dateLayouts are tried in order when parsing provider date strings. The
// provider normally emits ISO dates; the remaining layouts cover textual
// fallbacks for dates recovered from recognized content.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"02.01.2006",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// Mapper converts provider-specific field bags into canonical normalized
// invoices, selecting a mapping table by classified document type.
type Mapper struct {
	defaultCurrency string
}

// NewMapper creates a mapper that falls back to the given ISO currency code
// when a document carries no currency information.
func NewMapper(defaultCurrency string) *Mapper {
	if defaultCurrency == "" {
		defaultCurrency = "ILS"
	}
	return &Mapper{defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// Map normalizes one extraction into a NormalizedInvoice. Unparseable amounts
// become zero with field confidence forced to zero; unparseable dates become
// absent. Neither is fatal. Only an extraction with no mappable fields at all
// fails, with ErrUnmappableExtraction.
func (m *Mapper) Map(raw RawExtraction, classification ClassificationResult) (*NormalizedInvoice, error) {
	table := tableFor(classification.Type)

	inv := &NormalizedInvoice{
		DocumentType:    classification.Type,
		PageCount:       raw.PageCount,
		FieldConfidence: map[string]float64{},
		BoundingBoxes:   map[string]BoundingRegion{},
	}

	mapped := 0

	if f, ok := firstPresent(raw, table.supplierName); ok {
		inv.SupplierName = normalizeName(f.Value)
		inv.SupplierOCRAlias = strings.TrimSpace(f.Value)
		m.record(inv, FieldSupplierName, f)
		mapped++
	}

	if f, ok := firstPresent(raw, table.invoiceNumber); ok {
		inv.InvoiceNumber = strings.TrimSpace(f.Value)
		m.record(inv, FieldInvoiceNumber, f)
		mapped++
	}

	if f, ok := firstPresent(raw, table.invoiceDate); ok {
		if t, parsed := parseDate(f.Value); parsed {
			inv.InvoiceDate = t
			m.record(inv, FieldInvoiceDate, f)
		} else {
			inv.FieldConfidence[FieldInvoiceDate] = 0
		}
		mapped++
	}

	if f, ok := firstPresent(raw, table.dueDate); ok {
		if t, parsed := parseDate(f.Value); parsed {
			inv.DueDate = &t
			m.record(inv, FieldDueDate, f)
		}
		mapped++
	}

	inv.Subtotal = m.mapAmount(inv, raw, table.subtotal, FieldSubtotal, &mapped)
	inv.VATAmount = m.mapAmount(inv, raw, table.vatAmount, FieldVATAmount, &mapped)
	inv.Total = m.mapAmount(inv, raw, table.total, FieldTotal, &mapped)

	if f, ok := firstPresent(raw, table.currencyCode); ok {
		if code, parsed := normalizeCurrency(f.Value); parsed {
			inv.Currency = code
			m.record(inv, FieldCurrency, f)
			mapped++
		}
	}
	if inv.Currency == "" {
		inv.Currency = m.defaultCurrency
	}

	if mapped == 0 {
		return nil, ErrUnmappableExtraction
	}

	inv.OverallConfidence = weightedConfidence(inv.FieldConfidence)
	return inv, nil
}

// mapAmount parses one amount slot. An absent or unparseable amount maps to
// zero with confidence zero, keeping the record viable for review.
func (m *Mapper) mapAmount(inv *NormalizedInvoice, raw RawExtraction, names []string, canonical string, mapped *int) decimal.Decimal {
	f, ok := firstPresent(raw, names)
	if !ok {
		inv.FieldConfidence[canonical] = 0
		return decimal.Zero
	}
	*mapped = *mapped + 1
	amount, parsed := parseAmount(f.Value)
	if !parsed {
		inv.FieldConfidence[canonical] = 0
		return decimal.Zero
	}
	m.record(inv, canonical, f)
	return amount
}

func (m *Mapper) record(inv *NormalizedInvoice, canonical string, f ExtractedField) {
	inv.FieldConfidence[canonical] = f.Confidence
	if f.Region != nil {
		inv.BoundingBoxes[canonical] = *f.Region
	}
}

func firstPresent(raw RawExtraction, names []string) (ExtractedField, bool) {
	for _, name := range names {
		if f, ok := raw.Field(name); ok && strings.TrimSpace(f.Value) != "" {
			return f, true
		}
	}
	return ExtractedField{}, false
}

// normalizeName collapses internal whitespace and trims the extracted value
func normalizeName(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// amountCleaner strips currency symbols, thousands separators and whitespace
// before decimal parsing.
var amountCleaner = strings.NewReplacer(
	",", "",
	" ", "",
	" ", "",
	"₪", "",
	"$", "",
	"€", "",
	"£", "",
)

func parseAmount(value string) (decimal.Decimal, bool) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeCurrency uppercases and validates an ISO 4217 code
func normalizeCurrency(value string) (string, bool) {
	unit, err := currency.ParseISO(strings.TrimSpace(value))
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

// weightedConfidence averages recorded field confidences using the amount-first
// weight table. Fields without a configured weight count as 1.0.
func weightedConfidence(fields map[string]float64) float64 {
	var sum, totalWeight float64
	for name, confidence := range fields {
		weight, ok := confidenceWeights[name]
		if !ok {
			weight = 1.0
		}
		sum += confidence * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}
