package processing

import "github.com/shopspring/decimal"

// Default validation parameters
const (
	DefaultArithmeticTolerance = "0.01"
	DefaultReviewThreshold     = 0.70
	DefaultMismatchPenalty     = 0.15
)

// Validator cross-checks normalized amounts and decides the needs_review flag.
// Data-quality findings never reject a record; they lower confidence and route
// it to manual review.
type Validator struct {
	tolerance       decimal.Decimal
	reviewThreshold float64
	mismatchPenalty float64
}

// NewValidator creates a validator. Zero-valued parameters fall back to the
// defaults: tolerance 0.01 in the record's currency unit, review threshold
// 0.70, mismatch penalty 0.15.
func NewValidator(tolerance decimal.Decimal, reviewThreshold, mismatchPenalty float64) *Validator {
	if tolerance.IsZero() {
		tolerance = decimal.RequireFromString(DefaultArithmeticTolerance)
	}
	if reviewThreshold <= 0 {
		reviewThreshold = DefaultReviewThreshold
	}
	if mismatchPenalty <= 0 {
		mismatchPenalty = DefaultMismatchPenalty
	}
	return &Validator{
		tolerance:       tolerance,
		reviewThreshold: reviewThreshold,
		mismatchPenalty: mismatchPenalty,
	}
}

// Validate mutates the record in place. When subtotal + vat_amount strays from
// total by more than the tolerance, the record is marked as an arithmetic
// mismatch, flagged for review, and its overall confidence is lowered by the
// penalty, floored at zero. Independently of arithmetic, a record whose
// overall confidence is strictly below the review threshold is also flagged;
// confidence exactly at the threshold passes.
func (v *Validator) Validate(inv *NormalizedInvoice) {
	diff := inv.ComputedTotal().Sub(inv.Total).Abs()
	if diff.GreaterThan(v.tolerance) {
		inv.ArithmeticMismatch = true
		inv.NeedsReview = true
		inv.OverallConfidence -= v.mismatchPenalty
		if inv.OverallConfidence < 0 {
			inv.OverallConfidence = 0
		}
	}

	if inv.OverallConfidence < v.reviewThreshold {
		inv.NeedsReview = true
	}
}
