package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds configuration for Stripe integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// PublishableKey is the Stripe publishable key for frontend (pk_test_xxx or pk_live_xxx)
	PublishableKey string `json:"publishable_key" mapstructure:"publishable_key"`

	// WebhookSecret is the secret for verifying webhook signatures
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret"`

	// IsTestMode indicates if using Stripe test mode
	IsTestMode bool `json:"is_test_mode" mapstructure:"is_test_mode"`

	// DefaultCurrency is the default currency for checkout (e.g., "usd")
	DefaultCurrency string `json:"default_currency" mapstructure:"default_currency"`

	// TokenPacks maps one-time Stripe Price IDs to the number of tokens granted
	TokenPacks map[string]int64 `json:"token_packs" mapstructure:"token_packs"`

	// SubscriptionGrants maps recurring Stripe Price IDs to the monthly token allotment
	SubscriptionGrants map[string]int64 `json:"subscription_grants" mapstructure:"subscription_grants"`

	// SuccessURL is the URL to redirect after successful checkout
	SuccessURL string `json:"success_url" mapstructure:"success_url"`

	// CancelURL is the URL to redirect after cancelled checkout
	CancelURL string `json:"cancel_url" mapstructure:"cancel_url"`

	// BillingPortalReturnURL is the return URL from Stripe billing portal
	BillingPortalReturnURL string `json:"billing_portal_return_url" mapstructure:"billing_portal_return_url"`
}

// DefaultStripeConfig returns a default configuration for development/testing
func DefaultStripeConfig() *StripeConfig {
	return &StripeConfig{
		IsTestMode:      true,
		DefaultCurrency: "usd",
		TokenPacks: map[string]int64{
			"price_pack_starter": 100,
			"price_pack_pro":     500,
			"price_pack_studio":  2000,
		},
		SubscriptionGrants: map[string]int64{
			"price_sub_basic":  50,
			"price_sub_pro":    200,
			"price_sub_studio": 1000,
		},
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}

	// Validate key format
	if c.IsTestMode {
		if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_test" {
			return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
		}
	} else {
		if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_live" {
			return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
		}
	}

	if c.DefaultCurrency == "" {
		return fmt.Errorf("stripe: default currency is required")
	}

	if len(c.TokenPacks) == 0 && len(c.SubscriptionGrants) == 0 {
		return fmt.Errorf("stripe: at least one token pack or subscription grant must be configured")
	}

	return nil
}

// PackTokens returns the token grant for a one-time purchase price ID
func (c *StripeConfig) PackTokens(priceID string) (int64, bool) {
	tokens, ok := c.TokenPacks[priceID]
	return tokens, ok
}

// SubscriptionTokens returns the monthly allotment for a recurring price ID
func (c *StripeConfig) SubscriptionTokens(priceID string) (int64, bool) {
	tokens, ok := c.SubscriptionGrants[priceID]
	return tokens, ok
}

// IsKnownPrice returns true if the price ID maps to a pack or a subscription
func (c *StripeConfig) IsKnownPrice(priceID string) bool {
	if _, ok := c.TokenPacks[priceID]; ok {
		return true
	}
	_, ok := c.SubscriptionGrants[priceID]
	return ok
}

// InitStripeClient initializes the Stripe client with the configured API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
