package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerscan/backend/internal/domain/ledger"
	"github.com/ledgerscan/backend/internal/domain/processing"
	"github.com/ledgerscan/backend/internal/domain/shared"
)

// fakeFetcher hands each document's locator back as its bytes so the fake
// analyzer can key its script off the document identity.
type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, locator string) ([]byte, string, error) {
	return []byte(locator), "application/pdf", nil
}

// fakeAnalyzer returns a scripted invoice-shaped extraction per document and
// fails documents whose locator contains failOn.
type fakeAnalyzer struct {
	failOn  string
	failErr error

	mu    sync.Mutex
	calls int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, data []byte, _ string, _ processing.DocumentType) (processing.RawExtraction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	locator := string(data)
	if f.failOn != "" && strings.Contains(locator, f.failOn) {
		return processing.RawExtraction{}, f.failErr
	}
	fields := map[string]processing.ExtractedField{
		"VendorName":   {Value: "Acme Ltd", Confidence: 0.9},
		"InvoiceId":    {Value: "INV-" + locator, Confidence: 0.9},
		"InvoiceDate":  {Value: "2026-03-15", Confidence: 0.9},
		"SubTotal":     {Value: "100.00", Confidence: 0.9},
		"TotalTax":     {Value: "17.00", Confidence: 0.9},
		"InvoiceTotal": {Value: "117.00", Confidence: 0.95},
	}
	return processing.NewRawExtraction(fields, "חשבונית מס "+locator, 1, "he-IL"), nil
}

// blockingAnalyzer stalls matching documents until their context expires and
// scripts the rest through the embedded fake.
type blockingAnalyzer struct {
	fakeAnalyzer
	blockOn string
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, data []byte, contentType string, hint processing.DocumentType) (processing.RawExtraction, error) {
	if strings.Contains(string(data), a.blockOn) {
		<-ctx.Done()
		return processing.RawExtraction{}, ctx.Err()
	}
	return a.fakeAnalyzer.Analyze(ctx, data, contentType, hint)
}

// cancellingAnalyzer handles its first document normally, then cancels the
// batch and stalls until the cancellation reaches it.
type cancellingAnalyzer struct {
	fakeAnalyzer
	cancel context.CancelFunc
}

func (a *cancellingAnalyzer) Analyze(ctx context.Context, data []byte, contentType string, hint processing.DocumentType) (processing.RawExtraction, error) {
	a.mu.Lock()
	first := a.calls == 0
	a.mu.Unlock()
	if first {
		return a.fakeAnalyzer.Analyze(ctx, data, contentType, hint)
	}
	a.cancel()
	<-ctx.Done()
	return processing.RawExtraction{}, ctx.Err()
}

// memory-backed repositories give the batch tests real resolution and upsert
// semantics without a database.
type memSupplierRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*ledger.Supplier
}

func newMemSupplierRepo() *memSupplierRepo {
	return &memSupplierRepo{rows: map[uuid.UUID]*ledger.Supplier{}}
}

func (r *memSupplierRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[id]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memSupplierRepo) FindByOCRIdentification(_ context.Context, customerID uuid.UUID, alias string) (*ledger.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.CustomerID == customerID && s.OCRIdentification == alias {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memSupplierRepo) FindByName(_ context.Context, customerID uuid.UUID, name string) (*ledger.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.CustomerID == customerID && s.Name == name {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memSupplierRepo) Save(_ context.Context, supplier *ledger.Supplier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[supplier.ID] = supplier
	return nil
}

type memInvoiceRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*ledger.Invoice
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{rows: map[uuid.UUID]*ledger.Invoice{}}
}

func (r *memInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.rows[id]; ok {
		return inv, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoiceRepo) FindByUniqueKey(_ context.Context, customerID, supplierID uuid.UUID, invoiceNumber string) (*ledger.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv := r.findLocked(customerID, supplierID, invoiceNumber); inv != nil {
		return inv, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoiceRepo) Upsert(_ context.Context, invoice *ledger.Invoice) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior := r.findLocked(invoice.CustomerID, invoice.SupplierID, invoice.InvoiceNumber); prior != nil {
		prior.Subtotal = invoice.Subtotal
		prior.VATAmount = invoice.VATAmount
		prior.Total = invoice.Total
		prior.NeedsReview = invoice.NeedsReview
		prior.DuplicateOf = invoice.DuplicateOf
		return prior.ID, nil
	}
	r.rows[invoice.ID] = invoice
	return invoice.ID, nil
}

func (r *memInvoiceRepo) findLocked(customerID, supplierID uuid.UUID, invoiceNumber string) *ledger.Invoice {
	for _, inv := range r.rows {
		if inv.CustomerID == customerID && inv.SupplierID == supplierID && inv.InvoiceNumber == invoiceNumber {
			return inv
		}
	}
	return nil
}

type memCustomerRepo struct {
	rows map[uuid.UUID]*ledger.Customer
}

// newMemCustomerRepo seeds one customer row per given ID
func newMemCustomerRepo(ids ...uuid.UUID) *memCustomerRepo {
	repo := &memCustomerRepo{rows: map[uuid.UUID]*ledger.Customer{}}
	for _, id := range ids {
		customer, err := ledger.NewCustomer("Client " + id.String()[:8])
		if err != nil {
			panic(err)
		}
		customer.ID = id
		repo.rows[id] = customer
	}
	return repo
}

func (r *memCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.Customer, error) {
	if customer, ok := r.rows[id]; ok {
		return customer, nil
	}
	return nil, shared.ErrNotFound
}

type memExpenseAccountRepo struct {
	rows map[uuid.UUID]*ledger.ExpenseAccount
}

func (r *memExpenseAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.ExpenseAccount, error) {
	if account, ok := r.rows[id]; ok {
		return account, nil
	}
	return nil, shared.ErrNotFound
}

func newTestBatchService(analyzer Analyzer, cfg PipelineConfig, customerID uuid.UUID) (*BatchService, *memSupplierRepo, *memInvoiceRepo) {
	suppliers := newMemSupplierRepo()
	invoices := newMemInvoiceRepo()
	scope := NewNoOpTransactionScope(suppliers, invoices)
	accounts := &memExpenseAccountRepo{rows: map[uuid.UUID]*ledger.ExpenseAccount{}}
	persister := NewPersister(scope, accounts, decimal.RequireFromString("0.01"), zap.NewNop())
	service := NewBatchService(fakeFetcher{}, analyzer, persister, newMemCustomerRepo(customerID), cfg, zap.NewNop())
	return service, suppliers, invoices
}

func batchDocuments(n int) []Document {
	docs := make([]Document, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, Document{
			Locator: fmt.Sprintf("doc-%d", i),
			Name:    fmt.Sprintf("doc-%d.pdf", i),
		})
	}
	return docs
}

func TestBatchServiceRun(t *testing.T) {
	ctx := context.Background()
	customerID := uuid.New()

	t.Run("processes and persists a full batch", func(t *testing.T) {
		service, suppliers, invoices := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		result, err := service.Run(ctx, BatchRequest{
			CustomerID:        customerID,
			Documents:         batchDocuments(3),
			LanguageDetection: true,
		})
		require.NoError(t, err)

		assert.Equal(t, BatchAllSucceeded, result.Status)
		assert.Equal(t, 3, result.TotalFiles)
		assert.Equal(t, 3, result.FilesHandled)
		require.Len(t, result.Outcomes, 3)

		for _, outcome := range result.Outcomes {
			assert.Equal(t, StateReady, outcome.State)
			require.NotNil(t, outcome.Persisted)
			assert.NotEqual(t, uuid.Nil, outcome.Persisted.InvoiceID)
			assert.Equal(t, processing.LanguageHebrew, outcome.Invoice.Language)
		}

		// All three documents name the same vendor, so one supplier row serves
		// the whole batch.
		assert.Len(t, suppliers.rows, 1)
		assert.Len(t, invoices.rows, 3)
	})

	t.Run("isolates a single document failure", func(t *testing.T) {
		analyzer := &fakeAnalyzer{failOn: "doc-3", failErr: errors.New("analysis timed out")}
		service, _, _ := newTestBatchService(analyzer, PipelineConfig{}, customerID)

		result, err := service.Run(ctx, BatchRequest{
			CustomerID: customerID,
			Documents:  batchDocuments(5),
		})
		require.NoError(t, err)

		assert.Equal(t, BatchPartial, result.Status)
		require.Len(t, result.Outcomes, 5)

		var succeeded, failed int
		for _, outcome := range result.Outcomes {
			switch outcome.State {
			case StateReady:
				succeeded++
			case StateFailed:
				failed++
				assert.Equal(t, StateAnalyzing, outcome.FailedStage)
				assert.Contains(t, outcome.Error, "timed out")
				assert.Equal(t, "doc-3", outcome.Document.Locator)
			}
		}
		assert.Equal(t, 4, succeeded)
		assert.Equal(t, 1, failed)
	})

	t.Run("reports all_failed when every document fails", func(t *testing.T) {
		analyzer := &fakeAnalyzer{failOn: "doc-", failErr: errors.New("provider unavailable")}
		service, _, _ := newTestBatchService(analyzer, PipelineConfig{}, customerID)

		result, err := service.Run(ctx, BatchRequest{
			CustomerID: customerID,
			Documents:  batchDocuments(2),
		})
		require.NoError(t, err)
		assert.Equal(t, BatchAllFailed, result.Status)
	})

	t.Run("skips language detection when disabled", func(t *testing.T) {
		service, _, _ := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		result, err := service.Run(ctx, BatchRequest{
			CustomerID: customerID,
			Documents:  batchDocuments(1),
		})
		require.NoError(t, err)
		require.Len(t, result.Outcomes, 1)
		assert.Equal(t, processing.LanguageUnknown, result.Outcomes[0].Invoice.Language)
	})

	t.Run("windows a large batch by bulk size", func(t *testing.T) {
		service, _, _ := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		result, err := service.Run(ctx, BatchRequest{
			CustomerID: customerID,
			Documents:  batchDocuments(30),
		})
		require.NoError(t, err)
		assert.Equal(t, 30, result.TotalFiles)
		assert.Equal(t, 25, result.FilesHandled)
		assert.Len(t, result.Outcomes, 25)
	})

	t.Run("starting point selects the next window", func(t *testing.T) {
		service, _, _ := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		result, err := service.Run(ctx, BatchRequest{
			CustomerID:    customerID,
			Documents:     batchDocuments(30),
			StartingPoint: 25,
		})
		require.NoError(t, err)
		assert.Equal(t, 30, result.TotalFiles)
		assert.Equal(t, 5, result.FilesHandled)
	})

	t.Run("resubmitting the same batch reuses rows", func(t *testing.T) {
		service, suppliers, invoices := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		first, err := service.Run(ctx, BatchRequest{CustomerID: customerID, Documents: batchDocuments(2)})
		require.NoError(t, err)
		second, err := service.Run(ctx, BatchRequest{CustomerID: customerID, Documents: batchDocuments(2)})
		require.NoError(t, err)

		assert.Len(t, suppliers.rows, 1)
		assert.Len(t, invoices.rows, 2)

		firstIDs := map[string]uuid.UUID{}
		for _, o := range first.Outcomes {
			firstIDs[o.Document.Locator] = o.Persisted.InvoiceID
		}
		for _, o := range second.Outcomes {
			assert.Equal(t, firstIDs[o.Document.Locator], o.Persisted.InvoiceID)
		}
	})

	t.Run("times out a stalled document without holding the batch", func(t *testing.T) {
		analyzer := &blockingAnalyzer{blockOn: "doc-2"}
		service, _, _ := newTestBatchService(analyzer, PipelineConfig{DocumentTimeout: 20 * time.Millisecond}, customerID)

		result, err := service.Run(ctx, BatchRequest{
			CustomerID: customerID,
			Documents:  batchDocuments(3),
		})
		require.NoError(t, err)

		assert.Equal(t, BatchPartial, result.Status)
		require.Len(t, result.Outcomes, 3)
		for _, outcome := range result.Outcomes {
			if outcome.Document.Locator == "doc-2" {
				assert.Equal(t, StateFailed, outcome.State)
				assert.Equal(t, StateAnalyzing, outcome.FailedStage)
				assert.Contains(t, outcome.Error, "context deadline exceeded")
			} else {
				assert.Equal(t, StateReady, outcome.State)
				require.NotNil(t, outcome.Persisted)
			}
		}
	})

	t.Run("mid-batch cancellation keeps persisted documents only", func(t *testing.T) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		analyzer := &cancellingAnalyzer{cancel: cancel}
		service, _, invoices := newTestBatchService(analyzer, PipelineConfig{Concurrency: 1}, customerID)

		result, err := service.Run(runCtx, BatchRequest{
			CustomerID: customerID,
			Documents:  batchDocuments(3),
		})
		require.NoError(t, err)

		// The document that completed before the cancellation stays in the
		// result with its persisted row; the in-flight and unstarted ones
		// are dropped.
		assert.Equal(t, 3, result.FilesHandled)
		require.Len(t, result.Outcomes, 1)
		assert.Equal(t, StateReady, result.Outcomes[0].State)
		require.NotNil(t, result.Outcomes[0].Persisted)
		assert.Len(t, invoices.rows, 1)
	})

	t.Run("cancelled batch drops unprocessed documents", func(t *testing.T) {
		service, _, _ := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		result, err := service.Run(cancelled, BatchRequest{
			CustomerID: customerID,
			Documents:  batchDocuments(3),
		})
		require.NoError(t, err)
		assert.Empty(t, result.Outcomes)
	})

	t.Run("rejects a missing customer id", func(t *testing.T) {
		service, _, _ := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		_, err := service.Run(ctx, BatchRequest{Documents: batchDocuments(1)})
		require.Error(t, err)
	})

	t.Run("rejects an unknown customer", func(t *testing.T) {
		service, _, _ := newTestBatchService(&fakeAnalyzer{}, PipelineConfig{}, customerID)

		_, err := service.Run(ctx, BatchRequest{
			CustomerID: uuid.New(),
			Documents:  batchDocuments(1),
		})
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "CUSTOMER_NOT_FOUND", domainErr.Code)
	})
}
