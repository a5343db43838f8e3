package ledger

import (
	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/shared"
)

// BillingCustomer maps a user to the payment provider's customer record.
// Created lazily on first checkout, or upserted from webhook events.
type BillingCustomer struct {
	shared.BaseEntity
	UserID           uuid.UUID
	StripeCustomerID string
}

// NewBillingCustomer creates a new billing customer mapping
func NewBillingCustomer(userID uuid.UUID, stripeCustomerID string) (*BillingCustomer, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if stripeCustomerID == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Stripe customer ID cannot be empty")
	}
	return &BillingCustomer{
		BaseEntity:       shared.NewBaseEntity(),
		UserID:           userID,
		StripeCustomerID: stripeCustomerID,
	}, nil
}
