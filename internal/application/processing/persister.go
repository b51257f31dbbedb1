package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerscan/backend/internal/domain/ledger"
	"github.com/ledgerscan/backend/internal/domain/processing"
	"github.com/ledgerscan/backend/internal/domain/shared"
)

// PersistResult reports where a normalized invoice landed in the ledger
type PersistResult struct {
	SupplierID uuid.UUID `json:"supplier_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
	// Duplicate is set when the upsert collided with a stored invoice whose
	// total differs beyond the arithmetic tolerance.
	Duplicate bool `json:"duplicate"`
}

// Persister reconciles validated invoices against the supplier/invoice store.
// Each invoice commits in its own transaction; a failing record never poisons
// the records around it.
type Persister struct {
	scope     TransactionScope
	accounts  ledger.ExpenseAccountRepository
	tolerance decimal.Decimal
	logger    *zap.Logger

	// mu serializes commits; concurrent workers would otherwise race to
	// create the same supplier row.
	mu sync.Mutex
}

// NewPersister creates a persister. The tolerance bounds how far a stored
// total may differ from a re-submitted one before the pair is treated as
// conflicting duplicates rather than a re-scan of the same document.
func NewPersister(scope TransactionScope, accounts ledger.ExpenseAccountRepository, tolerance decimal.Decimal, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{scope: scope, accounts: accounts, tolerance: tolerance, logger: logger}
}

// Persist writes one normalized invoice for the given customer: resolves or
// creates the supplier, then upserts the invoice row keyed by
// (customer_id, supplier_id, invoice_number). Runs in a single transaction.
func (p *Persister) Persist(ctx context.Context, customerID uuid.UUID, inv *processing.NormalizedInvoice) (*PersistResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := &PersistResult{}

	err := p.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		supplier, err := p.resolveSupplier(ctx, repos.SupplierRepo(), customerID, inv)
		if err != nil {
			return fmt.Errorf("resolve supplier: %w", err)
		}
		result.SupplierID = supplier.ID

		row, err := p.buildInvoiceRow(ctx, customerID, supplier, inv)
		if err != nil {
			return fmt.Errorf("build invoice: %w", err)
		}

		prior, err := repos.InvoiceRepo().FindByUniqueKey(ctx, customerID, supplier.ID, row.InvoiceNumber)
		switch {
		case err == nil:
			if !prior.TotalsMatchWithin(row.Total, p.tolerance) {
				row.LinkDuplicate(prior.ID)
				result.Duplicate = true
				p.logger.Warn("invoice upsert collides with differing total",
					zap.String("invoice_number", row.InvoiceNumber),
					zap.String("stored_total", prior.Total.String()),
					zap.String("new_total", row.Total.String()))
			}
		case errors.Is(err, shared.ErrNotFound):
			// first sighting of this invoice number
		default:
			return fmt.Errorf("find prior invoice: %w", err)
		}

		storedID, err := repos.InvoiceRepo().Upsert(ctx, row)
		if err != nil {
			return fmt.Errorf("upsert invoice: %w", err)
		}
		result.InvoiceID = storedID
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("invoice persisted",
		zap.String("customer_id", customerID.String()),
		zap.String("supplier_id", result.SupplierID.String()),
		zap.String("invoice_id", result.InvoiceID.String()),
		zap.Bool("needs_review", inv.NeedsReview))
	return result, nil
}

// resolveSupplier implements the three-step matching policy: by OCR alias
// with rename-in-place, by canonical name with alias backfill, else create.
func (p *Persister) resolveSupplier(ctx context.Context, repo ledger.SupplierRepository, customerID uuid.UUID, inv *processing.NormalizedInvoice) (*ledger.Supplier, error) {
	alias := inv.SupplierOCRAlias
	if alias == "" {
		alias = inv.SupplierName
	}

	if alias != "" {
		supplier, err := repo.FindByOCRIdentification(ctx, customerID, alias)
		switch {
		case err == nil:
			// The alias already uniquely identifies the supplier; a changed
			// canonical name is a rename, not a new vendor.
			if inv.SupplierName != "" && supplier.Name != inv.SupplierName {
				if err := supplier.Rename(inv.SupplierName); err != nil {
					return nil, err
				}
				if err := repo.Save(ctx, supplier); err != nil {
					return nil, err
				}
			}
			return supplier, nil
		case errors.Is(err, shared.ErrNotFound):
		default:
			return nil, err
		}
	}

	if inv.SupplierName != "" {
		supplier, err := repo.FindByName(ctx, customerID, inv.SupplierName)
		switch {
		case err == nil:
			if alias != "" && supplier.OCRIdentification != alias {
				if err := supplier.BackfillOCRIdentification(alias); err != nil {
					return nil, err
				}
				if err := repo.Save(ctx, supplier); err != nil {
					return nil, err
				}
			}
			return supplier, nil
		case errors.Is(err, shared.ErrNotFound):
		default:
			return nil, err
		}
	}

	supplier, err := ledger.NewSupplier(customerID, inv.SupplierName, alias, inv.Currency)
	if err != nil {
		return nil, err
	}
	if err := repo.Save(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

func (p *Persister) buildInvoiceRow(ctx context.Context, customerID uuid.UUID, supplier *ledger.Supplier, inv *processing.NormalizedInvoice) (*ledger.Invoice, error) {
	row, err := ledger.NewInvoice(customerID, supplier.ID, inv.InvoiceNumber, inv.InvoiceDate, inv.Currency, inv.Subtotal, inv.VATAmount, inv.Total)
	if err != nil {
		return nil, err
	}
	row.DueDate = inv.DueDate
	row.SetDocument(string(inv.DocumentType), inv.SourceDocumentName, inv.SourceDocumentPath)

	metadata, err := ocrMetadataJSON(inv)
	if err != nil {
		return nil, err
	}
	row.SetOCRDetails(inv.OverallConfidence, string(inv.Language), metadata, inv.NeedsReview)
	row.ApplySupplierDefaults(supplier)
	if err := p.applyAccountDefaults(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// applyAccountDefaults fills the deductible percentage from the booked
// expense account when the supplier default names an account but carries no
// percentage of its own.
func (p *Persister) applyAccountDefaults(ctx context.Context, row *ledger.Invoice) error {
	if row.ExpenseAccountID == nil || row.DeductiblePct != nil {
		return nil
	}
	account, err := p.accounts.FindByID(ctx, *row.ExpenseAccountID)
	switch {
	case err == nil:
		pct := account.DefaultDeductiblePct
		row.DeductiblePct = &pct
	case errors.Is(err, shared.ErrNotFound):
		// Stale account reference on the supplier; leave the percentage for
		// the reviewer to settle.
	default:
		return fmt.Errorf("resolve expense account: %w", err)
	}
	return nil
}

// ocrMetadataJSON captures per-field extraction provenance for the stored row
func ocrMetadataJSON(inv *processing.NormalizedInvoice) (string, error) {
	payload := struct {
		FieldConfidence    map[string]float64                   `json:"field_confidence,omitempty"`
		BoundingBoxes      map[string]processing.BoundingRegion `json:"bounding_boxes,omitempty"`
		PageCount          int                                  `json:"page_count"`
		ArithmeticMismatch bool                                 `json:"arithmetic_mismatch"`
	}{
		FieldConfidence:    inv.FieldConfidence,
		BoundingBoxes:      inv.BoundingBoxes,
		PageCount:          inv.PageCount,
		ArithmeticMismatch: inv.ArithmeticMismatch,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ocr metadata: %w", err)
	}
	return string(data), nil
}
