// Package processing holds the pure document-processing core: provider
// extraction results, language detection, document classification, field
// mapping into normalized invoices, and validation. Nothing in this package
// performs I/O.
package processing

import "sort"

// DocumentType is the classified kind of a scanned document
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypeReceipt DocumentType = "receipt"
	DocumentTypeOther   DocumentType = "other"
)

// Language is the detected document language
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHebrew  Language = "he"
	LanguageUnknown Language = "unknown"
)

// BoundingRegion locates an extracted field on the source document.
// Coordinates are in the provider's page units.
type BoundingRegion struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ExtractedField is one provider-returned field: the raw string value, the
// provider's confidence in it, and where it was found on the page.
type ExtractedField struct {
	Value      string
	Confidence float64
	Region     *BoundingRegion
}

// RawExtraction is the provider's result for a single document. It is
// ephemeral: produced by the analysis client, consumed by the classifier and
// mapper, never persisted as-is.
//
// Field access is an optional-lookup contract; providers return different
// field bags per document shape and absence is the normal case, not an error.
type RawExtraction struct {
	fields    map[string]ExtractedField
	Content   string
	PageCount int
	// Locale is the provider-reported language hint ("he-IL", "en-US"),
	// empty when the provider did not report one.
	Locale string
}

// NewRawExtraction builds a RawExtraction from a provider field bag
func NewRawExtraction(fields map[string]ExtractedField, content string, pageCount int, locale string) RawExtraction {
	if fields == nil {
		fields = map[string]ExtractedField{}
	}
	return RawExtraction{
		fields:    fields,
		Content:   content,
		PageCount: pageCount,
		Locale:    locale,
	}
}

// Field returns the named field and whether it was present
func (r RawExtraction) Field(name string) (ExtractedField, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// HasField reports whether the provider returned the named field
func (r RawExtraction) HasField(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// FieldValue returns the raw string value of the named field, or "" when absent
func (r RawExtraction) FieldValue(name string) string {
	return r.fields[name].Value
}

// FieldConfidence returns the provider confidence for the named field,
// defaulting to zero when absent.
func (r RawExtraction) FieldConfidence(name string) float64 {
	return r.fields[name].Confidence
}

// FieldNames returns the provider field names in sorted order
func (r RawExtraction) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassificationResult is the classifier's decision for one document.
// Score is the strength of the matched classification signal, not a
// provider confidence.
type ClassificationResult struct {
	Type  DocumentType `json:"type"`
	Score float64      `json:"score"`
}
