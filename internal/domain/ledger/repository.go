package ledger

import (
	"context"

	"github.com/google/uuid"
)

// EntryFilter contains filtering options for ledger history queries
type EntryFilter struct {
	Source   *EntrySource
	Page     int
	PageSize int
}

// Store is the transactional gateway for balance-changing operations.
// Implementations must guarantee that the ledger insert and the balance
// update happen as a single atomic unit, and that debits for the same
// user serialize on the balance row.
type Store interface {
	// GetBalance returns the current balance for a user, 0 if none exists
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)

	// Credit appends the entry and upserts the balance by entry.Delta.
	// Returns shared.ErrDuplicateEvent when an entry with the same
	// StripeEventID already exists.
	Credit(ctx context.Context, entry *Entry) error

	// Debit appends the entry (entry.Delta must be negative) and
	// decrements the balance. Returns shared.ErrInsufficientBalance
	// without side effects when the balance does not cover the amount.
	Debit(ctx context.Context, entry *Entry) error

	// Clawback deducts up to -entry.Delta tokens, clamped so the balance
	// never goes below zero. The recorded entry carries the actually
	// deducted amount, which is returned. A clamp to zero deduction
	// records nothing and returns 0.
	Clawback(ctx context.Context, entry *Entry) (int64, error)

	// History returns ledger entries for a user, newest first, with total count
	History(ctx context.Context, userID uuid.UUID, filter EntryFilter) ([]*Entry, int64, error)

	// FindEntryByStripeEventID looks up an entry by external event ID.
	// Returns shared.ErrNotFound when no such entry exists.
	FindEntryByStripeEventID(ctx context.Context, eventID string) (*Entry, error)

	// FindCreditByPaymentIntent looks up the credit entry whose metadata
	// records the given payment intent, used to attribute refunds.
	// Returns shared.ErrNotFound when no such entry exists.
	FindCreditByPaymentIntent(ctx context.Context, paymentIntentID string) (*Entry, error)

	// SumDeltas recomputes the balance from the ledger, used as a
	// consistency check against the balance row
	SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error)
}

// BillingCustomerRepository persists user to Stripe customer mappings
type BillingCustomerRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*BillingCustomer, error)
	FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*BillingCustomer, error)
	Upsert(ctx context.Context, customer *BillingCustomer) error
}
