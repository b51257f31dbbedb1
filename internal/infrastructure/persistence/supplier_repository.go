package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerscan/backend/internal/domain/ledger"
	"github.com/ledgerscan/backend/internal/domain/shared"
)

// GormSupplierRepository implements ledger.SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// FindByID finds a supplier by its ID
func (r *GormSupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Supplier, error) {
	var supplier ledger.Supplier
	if err := r.db.WithContext(ctx).First(&supplier, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

// FindByOCRIdentification finds a supplier by its raw OCR alias within a customer's books
func (r *GormSupplierRepository) FindByOCRIdentification(ctx context.Context, customerID uuid.UUID, alias string) (*ledger.Supplier, error) {
	if alias == "" {
		return nil, shared.NewDomainError("INVALID_OCR_ALIAS", "OCR identification cannot be empty")
	}
	var supplier ledger.Supplier
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND ocr_identification = ?", customerID, alias).
		First(&supplier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

// FindByName finds a supplier by canonical name within a customer's books
func (r *GormSupplierRepository) FindByName(ctx context.Context, customerID uuid.UUID, name string) (*ledger.Supplier, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Supplier name cannot be empty")
	}
	var supplier ledger.Supplier
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND name = ?", customerID, name).
		First(&supplier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

// Save inserts or updates a supplier row
func (r *GormSupplierRepository) Save(ctx context.Context, supplier *ledger.Supplier) error {
	return r.db.WithContext(ctx).Save(supplier).Error
}

// Ensure GormSupplierRepository implements the repository interface
var _ ledger.SupplierRepository = (*GormSupplierRepository)(nil)
