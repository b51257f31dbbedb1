package processing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerscan/backend/internal/domain/ledger"
	"github.com/ledgerscan/backend/internal/domain/processing"
	"github.com/ledgerscan/backend/internal/domain/shared"
)

// DocumentState tracks a document through the pipeline. Failed is terminal
// and can be entered from any stage.
type DocumentState string

const (
	StateDiscovered  DocumentState = "discovered"
	StateAnalyzing   DocumentState = "analyzing"
	StateClassifying DocumentState = "classifying"
	StateMapping     DocumentState = "mapping"
	StateValidating  DocumentState = "validating"
	StatePersisting  DocumentState = "persisting"
	StateReady       DocumentState = "ready"
	StateFailed      DocumentState = "failed"
)

// BatchStatus aggregates per-document outcomes
type BatchStatus string

const (
	BatchAllSucceeded BatchStatus = "all_succeeded"
	BatchPartial      BatchStatus = "partial"
	BatchAllFailed    BatchStatus = "all_failed"
)

// PipelineConfig carries every tunable the pipeline consumes, threaded in at
// construction rather than read from ambient state.
type PipelineConfig struct {
	Concurrency             int
	DocumentTimeout         time.Duration
	ClassificationThreshold float64
	ReviewThreshold         float64
	ArithmeticTolerance     decimal.Decimal
	ConfidencePenalty       float64
	DefaultCurrency         string
	// BulkSize caps how many documents one request processes; callers page
	// through larger sets with BatchRequest.StartingPoint.
	BulkSize int
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 3 * time.Minute
	}
	if c.ArithmeticTolerance.IsZero() {
		c.ArithmeticTolerance = decimal.RequireFromString(processing.DefaultArithmeticTolerance)
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "ILS"
	}
	if c.BulkSize <= 0 {
		c.BulkSize = 25
	}
	return c
}

// BatchRequest is one processing call: a customer, an already-expanded list
// of document locators and the window to handle.
type BatchRequest struct {
	CustomerID        uuid.UUID
	Documents         []Document
	LanguageDetection bool
	// StartingPoint is the offset into Documents at which this request's
	// window begins.
	StartingPoint int
}

// DocumentOutcome is the terminal record for one document: a persisted
// normalized invoice, or the stage and reason it failed.
type DocumentOutcome struct {
	Document    Document                      `json:"document"`
	State       DocumentState                 `json:"state"`
	Invoice     *processing.NormalizedInvoice `json:"invoice,omitempty"`
	Persisted   *PersistResult                `json:"persisted,omitempty"`
	FailedStage DocumentState                 `json:"failed_stage,omitempty"`
	Error       string                        `json:"error,omitempty"`
}

// BatchResult is the full batch outcome. Documents abandoned by whole-batch
// cancellation are absent from Outcomes; they were neither processed nor
// persisted.
type BatchResult struct {
	Status       BatchStatus       `json:"status"`
	Outcomes     []DocumentOutcome `json:"outcomes"`
	TotalFiles   int               `json:"total_files"`
	FilesHandled int               `json:"files_handled"`
}

// BatchService drives the document pipeline over a discovered batch under a
// bounded concurrency limit. Stages for one document run sequentially inside
// one worker; documents are independent and one failure never aborts the rest.
type BatchService struct {
	fetcher    DocumentFetcher
	analyzer   Analyzer
	classifier *processing.Classifier
	mapper     *processing.Mapper
	validator  *processing.Validator
	persister  *Persister
	customers  ledger.CustomerRepository
	cfg        PipelineConfig
	logger     *zap.Logger
}

// NewBatchService wires the pipeline from its boundaries and configuration.
// The pure stages (classifier, mapper, validator) are built here from the
// config so every threshold lives in one place.
func NewBatchService(fetcher DocumentFetcher, analyzer Analyzer, persister *Persister, customers ledger.CustomerRepository, cfg PipelineConfig, logger *zap.Logger) *BatchService {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		fetcher:    fetcher,
		analyzer:   analyzer,
		customers:  customers,
		classifier: processing.NewClassifier(cfg.ClassificationThreshold),
		mapper:     processing.NewMapper(cfg.DefaultCurrency),
		validator:  processing.NewValidator(cfg.ArithmeticTolerance, cfg.ReviewThreshold, cfg.ConfidencePenalty),
		persister:  persister,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run processes one request window to completion and returns the per-document
// outcome list. The error return covers request-level problems only; document
// failures are reported inside the result.
func (s *BatchService) Run(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if req.CustomerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID is required")
	}
	if _, err := s.customers.FindByID(ctx, req.CustomerID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("CUSTOMER_NOT_FOUND", "Customer does not exist")
		}
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	window := s.window(req)
	outcomes := make([]*DocumentOutcome, len(window))

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, doc := range window {
		wg.Add(1)
		go func(i int, doc Document) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}
			outcome := s.processDocument(ctx, req, doc)
			// A document in flight when the batch is cancelled is dropped,
			// not reported as failed.
			if ctx.Err() != nil && outcome.State != StateReady {
				return
			}
			outcomes[i] = outcome
		}(i, doc)
	}
	wg.Wait()

	result := &BatchResult{
		Outcomes:     make([]DocumentOutcome, 0, len(window)),
		TotalFiles:   len(req.Documents),
		FilesHandled: len(window),
	}
	var succeeded, failed int
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		result.Outcomes = append(result.Outcomes, *outcome)
		if outcome.State == StateReady {
			succeeded++
		} else {
			failed++
		}
	}
	result.Status = batchStatus(succeeded, failed)

	s.logger.Info("batch complete",
		zap.String("customer_id", req.CustomerID.String()),
		zap.Int("handled", result.FilesHandled),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.String("status", string(result.Status)))
	return result, nil
}

// window clamps the request to [StartingPoint, StartingPoint+BulkSize)
func (s *BatchService) window(req BatchRequest) []Document {
	start := req.StartingPoint
	if start < 0 {
		start = 0
	}
	if start > len(req.Documents) {
		start = len(req.Documents)
	}
	end := start + s.cfg.BulkSize
	if end > len(req.Documents) {
		end = len(req.Documents)
	}
	return req.Documents[start:end]
}

// processDocument runs stages Analyzing through Persisting for one document.
// Fetch and analysis run under the per-document wall-clock timeout; the
// persisting transaction runs under the batch context so a slow provider
// never aborts a healthy database write.
func (s *BatchService) processDocument(ctx context.Context, req BatchRequest, doc Document) *DocumentOutcome {
	docCtx, cancel := context.WithTimeout(ctx, s.cfg.DocumentTimeout)
	defer cancel()

	outcome := &DocumentOutcome{Document: doc, State: StateDiscovered}

	outcome.State = StateAnalyzing
	data, contentType, err := s.fetcher.Fetch(docCtx, doc.Locator)
	if err != nil {
		return s.fail(outcome, err)
	}
	raw, err := s.analyzer.Analyze(docCtx, data, contentType, "")
	if err != nil {
		return s.fail(outcome, err)
	}

	outcome.State = StateClassifying
	classification := s.classifier.Classify(raw)

	outcome.State = StateMapping
	inv, err := s.mapper.Map(raw, classification)
	if err != nil {
		return s.fail(outcome, err)
	}
	if req.LanguageDetection {
		inv.Language = processing.DetectLanguage(raw.Content, raw.Locale)
	} else {
		inv.Language = processing.LanguageUnknown
	}
	inv.SourceDocumentPath = doc.Locator
	inv.SourceDocumentName = doc.Name
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = documentReference(doc.Name)
	}

	outcome.State = StateValidating
	s.validator.Validate(inv)
	outcome.Invoice = inv

	outcome.State = StatePersisting
	if err := ctx.Err(); err != nil {
		return s.fail(outcome, err)
	}
	persisted, err := s.persister.Persist(ctx, req.CustomerID, inv)
	if err != nil {
		return s.fail(outcome, err)
	}
	outcome.Persisted = persisted

	outcome.State = StateReady
	return outcome
}

func (s *BatchService) fail(outcome *DocumentOutcome, err error) *DocumentOutcome {
	outcome.FailedStage = outcome.State
	outcome.State = StateFailed
	outcome.Error = err.Error()
	s.logger.Warn("document failed",
		zap.String("document", outcome.Document.Name),
		zap.String("stage", string(outcome.FailedStage)),
		zap.Error(err))
	return outcome
}

// documentReference derives an invoice-number fallback from the file name for
// receipt-shaped documents, which carry no document number of their own.
func documentReference(name string) string {
	ref := strings.TrimSuffix(name, filepath.Ext(name))
	if len(ref) > 80 {
		ref = ref[:80]
	}
	return ref
}

func batchStatus(succeeded, failed int) BatchStatus {
	switch {
	case failed == 0:
		return BatchAllSucceeded
	case succeeded > 0:
		return BatchPartial
	default:
		return BatchAllFailed
	}
}
