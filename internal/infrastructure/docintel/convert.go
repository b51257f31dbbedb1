package docintel

import (
	"strconv"

	"github.com/ledgerscan/backend/internal/domain/processing"
)

// operationEnvelope is the provider's operation-status wrapper
type operationEnvelope struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult"`
	Error         *providerError `json:"error"`
}

type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e operationEnvelope) errorMessage() string {
	if e.Error == nil {
		return "operation failed"
	}
	return e.Error.Code + ": " + e.Error.Message
}

// analyzeResult is the subset of the provider's analysis payload the pipeline
// consumes.
type analyzeResult struct {
	Content   string           `json:"content"`
	Pages     []analyzePage    `json:"pages"`
	Documents []analyzedDoc    `json:"documents"`
	Languages []resultLanguage `json:"languages"`
}

type analyzePage struct {
	PageNumber int `json:"pageNumber"`
}

type analyzedDoc struct {
	DocType string                `json:"docType"`
	Fields  map[string]azureField `json:"fields"`
}

type resultLanguage struct {
	Locale     string  `json:"locale"`
	Confidence float64 `json:"confidence"`
}

// azureField is one extracted field. Exactly one value* member is set,
// depending on the field's type.
type azureField struct {
	Type            string           `json:"type"`
	ValueString     string           `json:"valueString"`
	ValueDate       string           `json:"valueDate"`
	ValueNumber     *float64         `json:"valueNumber"`
	ValueCurrency   *currencyValue   `json:"valueCurrency"`
	Content         string           `json:"content"`
	Confidence      float64          `json:"confidence"`
	BoundingRegions []boundingRegion `json:"boundingRegions"`
}

type currencyValue struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode"`
}

type boundingRegion struct {
	PageNumber int       `json:"pageNumber"`
	Polygon    []float64 `json:"polygon"`
}

// convertResult flattens the provider payload into the pipeline's
// RawExtraction: the first analyzed document's field bag, the full recognized
// text, the page count and the dominant detected locale. A currency code seen
// on any amount field is surfaced as a synthetic "Currency" field, since the
// provider reports currency per amount rather than per document.
func convertResult(result *analyzeResult) processing.RawExtraction {
	fields := map[string]processing.ExtractedField{}

	if len(result.Documents) > 0 {
		for name, field := range result.Documents[0].Fields {
			fields[name] = processing.ExtractedField{
				Value:      fieldValue(field),
				Confidence: field.Confidence,
				Region:     fieldRegion(field),
			}
		}
		if code, confidence, ok := documentCurrency(result.Documents[0].Fields); ok {
			fields["Currency"] = processing.ExtractedField{Value: code, Confidence: confidence}
		}
	}

	return processing.NewRawExtraction(fields, result.Content, len(result.Pages), dominantLocale(result.Languages))
}

// fieldValue picks the raw string form of a field, in value-type order
func fieldValue(field azureField) string {
	switch {
	case field.ValueCurrency != nil:
		return strconv.FormatFloat(field.ValueCurrency.Amount, 'f', -1, 64)
	case field.ValueString != "":
		return field.ValueString
	case field.ValueDate != "":
		return field.ValueDate
	case field.ValueNumber != nil:
		return strconv.FormatFloat(*field.ValueNumber, 'f', -1, 64)
	default:
		return field.Content
	}
}

// fieldRegion converts the first bounding polygon into an axis-aligned box
func fieldRegion(field azureField) *processing.BoundingRegion {
	if len(field.BoundingRegions) == 0 {
		return nil
	}
	region := field.BoundingRegions[0]
	if len(region.Polygon) < 4 || len(region.Polygon)%2 != 0 {
		return nil
	}

	minX, minY := region.Polygon[0], region.Polygon[1]
	maxX, maxY := minX, minY
	for i := 2; i < len(region.Polygon); i += 2 {
		x, y := region.Polygon[i], region.Polygon[i+1]
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return &processing.BoundingRegion{
		Page:   region.PageNumber,
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// currencyPreference orders the amount fields a document-level currency code
// is read from.
var currencyPreference = []string{"InvoiceTotal", "Total", "SubTotal", "Subtotal", "TotalTax", "Tax"}

func documentCurrency(fields map[string]azureField) (string, float64, bool) {
	for _, name := range currencyPreference {
		if field, ok := fields[name]; ok && field.ValueCurrency != nil && field.ValueCurrency.CurrencyCode != "" {
			return field.ValueCurrency.CurrencyCode, field.Confidence, true
		}
	}
	return "", 0, false
}

func dominantLocale(languages []resultLanguage) string {
	best := ""
	bestConfidence := 0.0
	for _, lang := range languages {
		if lang.Confidence > bestConfidence {
			best = lang.Locale
			bestConfidence = lang.Confidence
		}
	}
	return best
}
