// Package ledger contains the token balance and ledger domain model.
// The ledger is the source of truth: a user's balance is always the sum
// of the entry deltas recorded for that user.
package ledger

import (
	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/shared"
)

// EntrySource identifies what kind of operation produced a ledger entry
type EntrySource string

const (
	// EntrySourceCheckout represents a one-time token pack purchase
	EntrySourceCheckout EntrySource = "checkout"
	// EntrySourceInvoice represents a recurring subscription allotment
	EntrySourceInvoice EntrySource = "invoice"
	// EntrySourceRefund represents a clawback for a refunded charge
	EntrySourceRefund EntrySource = "refund"
	// EntrySourceManual represents an operator-initiated adjustment
	EntrySourceManual EntrySource = "manual"
	// EntrySourceConsume represents tokens spent on a render
	EntrySourceConsume EntrySource = "consume"
)

// String returns the string representation of EntrySource
func (s EntrySource) String() string {
	return string(s)
}

// IsValid returns true if the entry source is valid
func (s EntrySource) IsValid() bool {
	switch s {
	case EntrySourceCheckout,
		EntrySourceInvoice,
		EntrySourceRefund,
		EntrySourceManual,
		EntrySourceConsume:
		return true
	}
	return false
}

// Entry represents an immutable record of a token balance change.
// Entries are append-only: corrections are made with new entries, never
// by mutating or deleting existing ones.
type Entry struct {
	shared.BaseEntity
	UserID        uuid.UUID
	Delta         int64 // positive = credit, negative = debit
	Reason        string
	Source        EntrySource
	StripeEventID *string // set for webhook-driven entries; unique per event
	Metadata      map[string]any
}

// NewEntry creates a new ledger entry
func NewEntry(userID uuid.UUID, delta int64, reason string, source EntrySource) (*Entry, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if delta == 0 {
		return nil, shared.NewDomainError("INVALID_DELTA", "Entry delta cannot be zero")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Entry reason cannot be empty")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Invalid entry source")
	}

	return &Entry{
		BaseEntity: shared.NewBaseEntity(),
		UserID:     userID,
		Delta:      delta,
		Reason:     reason,
		Source:     source,
	}, nil
}

// NewDebitEntry creates an entry that spends tokens.
// Amount is the positive number of tokens to deduct.
func NewDebitEntry(userID uuid.UUID, amount int64, reason string, source EntrySource) (*Entry, error) {
	if amount <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Debit amount must be positive")
	}
	return NewEntry(userID, -amount, reason, source)
}

// WithStripeEventID sets the external event ID used for idempotency
func (e *Entry) WithStripeEventID(eventID string) *Entry {
	if eventID != "" {
		e.StripeEventID = &eventID
	}
	return e
}

// WithMetadata attaches opaque context to the entry
func (e *Entry) WithMetadata(meta map[string]any) *Entry {
	e.Metadata = meta
	return e
}

// IsCredit returns true if this entry increased the balance
func (e *Entry) IsCredit() bool {
	return e.Delta > 0
}

// IsDebit returns true if this entry decreased the balance
func (e *Entry) IsDebit() bool {
	return e.Delta < 0
}
