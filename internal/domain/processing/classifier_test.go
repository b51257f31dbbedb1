package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier(t *testing.T) {
	classifier := NewClassifier(DefaultClassificationThreshold)

	t.Run("classifies english invoice text", func(t *testing.T) {
		raw := NewRawExtraction(nil, "Tax Invoice #42\nAcme Ltd\nTotal: 1170.00", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeInvoice, result.Type)
		assert.GreaterOrEqual(t, result.Score, 0.5)
	})

	t.Run("classifies hebrew tax invoice text", func(t *testing.T) {
		raw := NewRawExtraction(nil, "חשבונית מס 123 סך הכל 1170", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeInvoice, result.Type)
		assert.GreaterOrEqual(t, result.Score, 0.5)
	})

	t.Run("classifies hebrew receipt text", func(t *testing.T) {
		raw := NewRawExtraction(nil, "קבלה על תשלום", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeReceipt, result.Type)
		assert.GreaterOrEqual(t, result.Score, 0.5)
	})

	t.Run("field shape alone can classify a receipt", func(t *testing.T) {
		raw := NewRawExtraction(map[string]ExtractedField{
			"MerchantName":    {Value: "Cafe Noir", Confidence: 0.92},
			"TransactionDate": {Value: "2026-03-01", Confidence: 0.9},
		}, "illegible scan", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeReceipt, result.Type)
	})

	t.Run("vendor and invoice id fields reinforce invoice", func(t *testing.T) {
		raw := NewRawExtraction(map[string]ExtractedField{
			"VendorName": {Value: "Acme Ltd", Confidence: 0.95},
			"InvoiceId":  {Value: "INV-42", Confidence: 0.9},
		}, "", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeInvoice, result.Type)
	})

	t.Run("no keyword match yields other below threshold", func(t *testing.T) {
		raw := NewRawExtraction(nil, "quarterly shareholder letter", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeOther, result.Type)
		assert.Less(t, result.Score, 0.5)
	})

	t.Run("empty extraction yields other with zero score", func(t *testing.T) {
		raw := NewRawExtraction(nil, "", 0, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeOther, result.Type)
		assert.Zero(t, result.Score)
	})

	t.Run("invoice wins ties over receipt", func(t *testing.T) {
		// One keyword hit each side scores 0.6 for both types.
		raw := NewRawExtraction(nil, "invoice and receipt enclosed", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeInvoice, result.Type)
	})

	t.Run("score is capped at one", func(t *testing.T) {
		raw := NewRawExtraction(map[string]ExtractedField{
			"VendorName":   {Value: "Acme", Confidence: 0.9},
			"InvoiceId":    {Value: "1", Confidence: 0.9},
			"InvoiceTotal": {Value: "10", Confidence: 0.9},
		}, "tax invoice חשבונית מס", 1, "")
		result := classifier.Classify(raw)
		assert.Equal(t, DocumentTypeInvoice, result.Type)
		assert.Equal(t, 1.0, result.Score)
	})

	t.Run("custom threshold can demote a weak match", func(t *testing.T) {
		strict := NewClassifier(0.9)
		raw := NewRawExtraction(nil, "invoice", 1, "")
		result := strict.Classify(raw)
		assert.Equal(t, DocumentTypeOther, result.Type)
	})
}
