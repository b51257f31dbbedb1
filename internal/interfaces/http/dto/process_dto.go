package dto

import (
	appprocessing "github.com/ledgerscan/backend/internal/application/processing"
)

// ProcessRequest is the batch submission payload
type ProcessRequest struct {
	CustomerID        string            `json:"customer_id" binding:"required,uuid"`
	Documents         []ProcessDocument `json:"documents" binding:"required,min=1,dive"`
	LanguageDetection bool              `json:"language_detection"`
	StartingPoint     int               `json:"starting_point" binding:"omitempty,min=0"`
}

// ProcessDocument names one document to process
type ProcessDocument struct {
	// Locator is a path, file:// URL or s3://bucket/key URL
	Locator string `json:"locator" binding:"required"`
	Name    string `json:"name"`
}

// ProcessResponse reports the outcome of one batch window
type ProcessResponse struct {
	Status       string            `json:"status"`
	TotalFiles   int               `json:"total_files"`
	FilesHandled int               `json:"files_handled"`
	Results      []DocumentOutcome `json:"results"`
}

// DocumentOutcome is the per-document result within a batch response
type DocumentOutcome struct {
	Locator     string `json:"locator"`
	Name        string `json:"name"`
	State       string `json:"state"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`

	SupplierID    string  `json:"supplier_id,omitempty"`
	InvoiceID     string  `json:"invoice_id,omitempty"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
	DocumentType  string  `json:"document_type,omitempty"`
	Language      string  `json:"language,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	NeedsReview   bool    `json:"needs_review,omitempty"`
	Duplicate     bool    `json:"duplicate,omitempty"`
}

// NewProcessResponse converts a batch result into its response shape
func NewProcessResponse(result *appprocessing.BatchResult) ProcessResponse {
	resp := ProcessResponse{
		Status:       string(result.Status),
		TotalFiles:   result.TotalFiles,
		FilesHandled: result.FilesHandled,
		Results:      make([]DocumentOutcome, 0, len(result.Outcomes)),
	}
	for _, outcome := range result.Outcomes {
		resp.Results = append(resp.Results, newDocumentOutcome(outcome))
	}
	return resp
}

func newDocumentOutcome(outcome appprocessing.DocumentOutcome) DocumentOutcome {
	out := DocumentOutcome{
		Locator:     outcome.Document.Locator,
		Name:        outcome.Document.Name,
		State:       string(outcome.State),
		FailedStage: string(outcome.FailedStage),
		Error:       outcome.Error,
	}
	if outcome.Invoice != nil {
		out.InvoiceNumber = outcome.Invoice.InvoiceNumber
		out.DocumentType = string(outcome.Invoice.DocumentType)
		out.Language = string(outcome.Invoice.Language)
		out.Confidence = outcome.Invoice.OverallConfidence
		out.NeedsReview = outcome.Invoice.NeedsReview
	}
	if outcome.Persisted != nil {
		out.SupplierID = outcome.Persisted.SupplierID.String()
		out.InvoiceID = outcome.Persisted.InvoiceID.String()
		out.Duplicate = outcome.Persisted.Duplicate
	}
	return out
}
