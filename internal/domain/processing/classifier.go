package processing

import "strings"

// DefaultClassificationThreshold is the minimum top score required before a
// document is typed as anything more specific than "other".
const DefaultClassificationThreshold = 0.5

// Keyword tables per document type, English and Hebrew. Keywords are matched
// as substrings of the lowercased recognized text, so the multi-word Hebrew
// forms ("חשבונית מס") score on top of their shorter prefixes.
var (
	invoiceKeywords = []string{
		"invoice",
		"tax invoice",
		"חשבונית",
		"חשבונית מס",
		"חשבונית מס קבלה",
		"חשבון",
	}
	receiptKeywords = []string{
		"receipt",
		"sales receipt",
		"קבלה",
	}

	// Field-shape signals: provider field names whose presence indicates the
	// document shape, independent of the recognized text. A "merchant" style
	// field bag is receipt-shaped; a vendor/bill-to style bag is
	// invoice-shaped.
	invoiceFieldSignals = []string{"VendorName", "CustomerName", "InvoiceId", "InvoiceTotal"}
	receiptFieldSignals = []string{"MerchantName", "TransactionDate"}
)

// Classifier decides the document type of a RawExtraction from configured
// keyword tables and field-shape signals. Pure function of its input; no
// external calls.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier with the given score threshold.
// A non-positive threshold falls back to the default.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultClassificationThreshold
	}
	return &Classifier{threshold: threshold}
}

// Classify scores each candidate type and picks the strongest. When the top
// score falls below the threshold, or nothing matched at all, the document is
// typed "other". Ties break toward invoice over receipt, since invoices carry
// the superset of required structured fields.
func (c *Classifier) Classify(raw RawExtraction) ClassificationResult {
	lower := strings.ToLower(raw.Content)

	invoiceScore := typeScore(countKeywordHits(lower, invoiceKeywords) + countFieldHits(raw, invoiceFieldSignals))
	receiptScore := typeScore(countKeywordHits(lower, receiptKeywords) + countFieldHits(raw, receiptFieldSignals))

	top := ClassificationResult{Type: DocumentTypeInvoice, Score: invoiceScore}
	if receiptScore > invoiceScore {
		top = ClassificationResult{Type: DocumentTypeReceipt, Score: receiptScore}
	}

	if top.Score < c.threshold {
		return ClassificationResult{Type: DocumentTypeOther, Score: top.Score}
	}
	return top
}

// typeScore converts a hit count into a score: a base of 0.4 for any match
// plus 0.2 per hit, capped at 1.0. Zero hits score zero.
func typeScore(hits int) float64 {
	if hits == 0 {
		return 0
	}
	score := 0.4 + 0.2*float64(hits)
	if score > 1.0 {
		return 1.0
	}
	return score
}

func countKeywordHits(lowerText string, keywords []string) int {
	if lowerText == "" {
		return 0
	}
	hits := 0
	for _, k := range keywords {
		if strings.Contains(lowerText, k) {
			hits++
		}
	}
	return hits
}

func countFieldHits(raw RawExtraction, fieldNames []string) int {
	hits := 0
	for _, name := range fieldNames {
		if raw.HasField(name) {
			hits++
		}
	}
	return hits
}
