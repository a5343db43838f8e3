package billing

import (
	"time"

	"github.com/google/uuid"
)

// CreateCustomerInput contains input for creating a Stripe customer
type CreateCustomerInput struct {
	UserID   uuid.UUID
	Email    string
	Name     string
	Metadata map[string]string
}

// CreateCustomerOutput contains the result of creating a Stripe customer
type CreateCustomerOutput struct {
	CustomerID string
	Email      string
	Name       string
	CreatedAt  time.Time
}

// CheckoutMode selects between a one-time pack purchase and a subscription
type CheckoutMode string

const (
	// CheckoutModePayment is a one-time token pack purchase
	CheckoutModePayment CheckoutMode = "payment"

	// CheckoutModeSubscription is a recurring token allotment
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// CreateCheckoutSessionInput contains input for creating a Stripe Checkout session
type CreateCheckoutSessionInput struct {
	UserID     uuid.UUID
	CustomerID string // Stripe Customer ID
	PriceID    string // Stripe Price ID
	Mode       CheckoutMode
	Metadata   map[string]string
}

// CreateCheckoutSessionOutput contains the created Checkout session
type CreateCheckoutSessionOutput struct {
	SessionID string
	URL       string
	ExpiresAt time.Time
}

// CreatePortalSessionInput contains input for creating a billing portal session
type CreatePortalSessionInput struct {
	CustomerID string
	ReturnURL  string // Optional, falls back to BillingPortalReturnURL
}

// CreatePortalSessionOutput contains the created billing portal session
type CreatePortalSessionOutput struct {
	URL string
}
