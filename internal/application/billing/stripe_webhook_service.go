package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/domain/shared"
	infrabilling "github.com/soundfoundry/backend/internal/infrastructure/billing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeWebhookService reconciles Stripe webhook events into ledger entries.
// Delivery is at-least-once; the unique index on the entry's event ID is
// the authoritative duplicate guard, the pre-check is an optimization.
type StripeWebhookService struct {
	config    *infrabilling.StripeConfig
	store     ledger.Store
	customers ledger.BillingCustomerRepository
	logger    *zap.Logger
}

// StripeWebhookServiceConfig contains configuration for StripeWebhookService
type StripeWebhookServiceConfig struct {
	Config    *infrabilling.StripeConfig
	Store     ledger.Store
	Customers ledger.BillingCustomerRepository
	Logger    *zap.Logger
}

// NewStripeWebhookService creates a new StripeWebhookService
func NewStripeWebhookService(cfg StripeWebhookServiceConfig) *StripeWebhookService {
	return &StripeWebhookService{
		config:    cfg.Config,
		store:     cfg.Store,
		customers: cfg.Customers,
		logger:    cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ErrInvalidSignature is returned when signature verification fails
var ErrInvalidSignature = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")

// ProcessWebhook verifies the payload signature and reconciles the event
func (s *StripeWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature", zap.Error(err))
		return nil, ErrInvalidSignature
	}
	return s.HandleEvent(ctx, event)
}

// HandleEvent dispatches a verified Stripe event to its handler
func (s *StripeWebhookService) HandleEvent(ctx context.Context, event stripe.Event) (*WebhookResult, error) {
	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	if event.ID != "" {
		if _, err := s.store.FindEntryByStripeEventID(ctx, event.ID); err == nil {
			result.Message = "Event already processed"
			return result, nil
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("failed to check event: %w", err)
		}
	}

	var err error
	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutSessionCompleted(ctx, event, result)
	case "invoice.paid":
		err = s.handleInvoicePaid(ctx, event, result)
	case "charge.refunded":
		err = s.handleChargeRefunded(ctx, event, result)
	case "customer.subscription.updated", "customer.subscription.deleted":
		// Token grants are driven by invoice.paid; subscription lifecycle
		// changes leave the ledger untouched.
		s.logger.Info("Acknowledged subscription lifecycle event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		result.Message = "No ledger change for subscription lifecycle events"
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	if err != nil {
		if errors.Is(err, shared.ErrDuplicateEvent) {
			result.Message = "Event already processed"
			return result, nil
		}
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	return result, nil
}

// handleCheckoutSessionCompleted credits a one-time token pack purchase
func (s *StripeWebhookService) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event, result *WebhookResult) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	if session.Mode != stripe.CheckoutSessionModePayment {
		// Subscription checkouts are credited by the invoice.paid event
		// that Stripe emits for the first billing period.
		result.Message = "Subscription checkout, credited via invoice"
		return nil
	}

	userID, err := s.resolveUser(ctx, session.Metadata["user_id"], session.Customer)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No user for checkout session, acknowledging",
				zap.String("session_id", session.ID))
			result.Message = "User not found"
			return nil
		}
		return err
	}

	priceID := session.Metadata["price_id"]
	tokens, ok := s.config.PackTokens(priceID)
	if !ok {
		s.logger.Warn("Unknown pack price in checkout session, acknowledging",
			zap.String("session_id", session.ID),
			zap.String("price_id", priceID))
		result.Message = "Unknown price ID"
		return nil
	}

	if session.Customer != nil {
		s.upsertCustomerMapping(ctx, userID, session.Customer.ID)
	}

	entry, err := ledger.NewEntry(userID, tokens, "token_pack_purchase", ledger.EntrySourceCheckout)
	if err != nil {
		return err
	}
	meta := map[string]any{
		"session_id": session.ID,
		"price_id":   priceID,
	}
	if session.PaymentIntent != nil {
		meta["payment_intent"] = session.PaymentIntent.ID
	}
	entry.WithStripeEventID(event.ID).WithMetadata(meta)

	if err := s.store.Credit(ctx, entry); err != nil {
		return err
	}

	s.logger.Info("Credited token pack purchase",
		zap.String("user_id", userID.String()),
		zap.String("price_id", priceID),
		zap.Int64("tokens", tokens))

	return nil
}

// handleInvoicePaid credits a subscription's monthly token allotment
func (s *StripeWebhookService) handleInvoicePaid(ctx context.Context, event stripe.Event, result *WebhookResult) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Invoice has no customer ID, acknowledging",
			zap.String("invoice_id", invoice.ID))
		result.Message = "No customer on invoice"
		return nil
	}

	customer, err := s.customers.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Invoices can arrive for customers created outside this
			// system; acknowledge so Stripe stops retrying.
			s.logger.Warn("No user mapping for Stripe customer, acknowledging",
				zap.String("customer_id", customerID))
			result.Message = "Customer not mapped to a user"
			return nil
		}
		return fmt.Errorf("failed to find billing customer: %w", err)
	}

	priceID, tokens, ok := s.subscriptionGrantFromInvoice(&invoice)
	if !ok {
		s.logger.Warn("No recognized subscription price on invoice, acknowledging",
			zap.String("invoice_id", invoice.ID))
		result.Message = "Unknown price ID"
		return nil
	}

	entry, err := ledger.NewEntry(customer.UserID, tokens, "subscription_allotment", ledger.EntrySourceInvoice)
	if err != nil {
		return err
	}
	meta := map[string]any{
		"invoice_id": invoice.ID,
		"price_id":   priceID,
	}
	if invoice.Subscription != nil {
		meta["subscription_id"] = invoice.Subscription.ID
	}
	if invoice.PaymentIntent != nil {
		meta["payment_intent"] = invoice.PaymentIntent.ID
	}
	entry.WithStripeEventID(event.ID).WithMetadata(meta)

	if err := s.store.Credit(ctx, entry); err != nil {
		return err
	}

	s.logger.Info("Credited subscription allotment",
		zap.String("user_id", customer.UserID.String()),
		zap.String("price_id", priceID),
		zap.Int64("tokens", tokens))

	return nil
}

// handleChargeRefunded claws back tokens proportionally to the refunded
// amount, clamped so the balance never goes negative
func (s *StripeWebhookService) handleChargeRefunded(ctx context.Context, event stripe.Event, result *WebhookResult) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	if charge.PaymentIntent == nil || charge.Amount <= 0 {
		s.logger.Warn("Refunded charge not attributable, acknowledging",
			zap.String("charge_id", charge.ID))
		result.Message = "Charge not attributable to a credit"
		return nil
	}

	original, err := s.store.FindCreditByPaymentIntent(ctx, charge.PaymentIntent.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("No credit entry for refunded charge, acknowledging",
				zap.String("charge_id", charge.ID),
				zap.String("payment_intent", charge.PaymentIntent.ID))
			result.Message = "No matching credit entry"
			return nil
		}
		return fmt.Errorf("failed to find original credit: %w", err)
	}

	refunded := latestRefundAmount(&charge)
	if refunded <= 0 {
		result.Message = "Nothing refunded"
		return nil
	}

	clawback := decimal.NewFromInt(original.Delta).
		Mul(decimal.NewFromInt(refunded)).
		Div(decimal.NewFromInt(charge.Amount)).
		Floor().
		IntPart()
	if clawback <= 0 {
		result.Message = "Refund too small to claw back tokens"
		return nil
	}

	entry, err := ledger.NewDebitEntry(original.UserID, clawback, "refund_clawback", ledger.EntrySourceRefund)
	if err != nil {
		return err
	}
	entry.WithStripeEventID(event.ID).WithMetadata(map[string]any{
		"charge_id":       charge.ID,
		"payment_intent":  charge.PaymentIntent.ID,
		"amount_refunded": refunded,
		"original_entry":  original.ID.String(),
	})

	deducted, err := s.store.Clawback(ctx, entry)
	if err != nil {
		return err
	}
	if deducted == 0 {
		result.Message = "Balance already empty, nothing clawed back"
		return nil
	}

	s.logger.Info("Clawed back refunded tokens",
		zap.String("user_id", original.UserID.String()),
		zap.Int64("computed", clawback),
		zap.Int64("deducted", deducted))

	return nil
}

// subscriptionGrantFromInvoice finds the first invoice line whose price
// maps to a configured monthly allotment
func (s *StripeWebhookService) subscriptionGrantFromInvoice(invoice *stripe.Invoice) (string, int64, bool) {
	if invoice.Lines == nil {
		return "", 0, false
	}
	for _, line := range invoice.Lines.Data {
		if line == nil || line.Price == nil {
			continue
		}
		if tokens, ok := s.config.SubscriptionTokens(line.Price.ID); ok {
			return line.Price.ID, tokens, true
		}
	}
	return "", 0, false
}

// resolveUser resolves the ledger owner from event metadata, falling back
// to the billing customer mapping
func (s *StripeWebhookService) resolveUser(ctx context.Context, metaUserID string, customer *stripe.Customer) (uuid.UUID, error) {
	if metaUserID != "" {
		userID, err := uuid.Parse(metaUserID)
		if err == nil {
			return userID, nil
		}
		s.logger.Warn("Malformed user_id in event metadata", zap.String("user_id", metaUserID))
	}
	if customer != nil && customer.ID != "" {
		mapping, err := s.customers.FindByStripeCustomerID(ctx, customer.ID)
		if err != nil {
			return uuid.Nil, err
		}
		return mapping.UserID, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

// upsertCustomerMapping records the Stripe customer mapping observed on
// an event, best effort
func (s *StripeWebhookService) upsertCustomerMapping(ctx context.Context, userID uuid.UUID, stripeCustomerID string) {
	mapping, err := ledger.NewBillingCustomer(userID, stripeCustomerID)
	if err != nil {
		return
	}
	if err := s.customers.Upsert(ctx, mapping); err != nil {
		s.logger.Warn("Failed to upsert billing customer mapping",
			zap.String("user_id", userID.String()),
			zap.String("customer_id", stripeCustomerID),
			zap.Error(err))
	}
}

// latestRefundAmount returns the amount of the most recent refund on the
// charge. Stripe reports amount_refunded cumulatively, so clawing back
// per event needs the individual refund that triggered it.
func latestRefundAmount(charge *stripe.Charge) int64 {
	if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
		return charge.Refunds.Data[0].Amount
	}
	return charge.AmountRefunded
}
