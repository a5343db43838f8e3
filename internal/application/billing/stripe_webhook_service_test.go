package billing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/domain/shared"
	infrabilling "github.com/soundfoundry/backend/internal/infrastructure/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

func newWebhookService(store *MockLedgerStore, customers *MockBillingCustomerRepository) *StripeWebhookService {
	cfg := infrabilling.DefaultStripeConfig()
	cfg.SecretKey = "sk_test_123"
	cfg.WebhookSecret = "whsec_test"
	return NewStripeWebhookService(StripeWebhookServiceConfig{
		Config:    cfg,
		Store:     store,
		Customers: customers,
		Logger:    zap.NewNop(),
	})
}

func makeEvent(t *testing.T, id string, eventType stripe.EventType, obj any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return stripe.Event{
		ID:   id,
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestStripeWebhookService_ProcessWebhook_InvalidSignature(t *testing.T) {
	service := newWebhookService(new(MockLedgerStore), new(MockBillingCustomerRepository))

	_, err := service.ProcessWebhook(context.Background(), []byte(`{}`), "bad signature")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeWebhookService_HandleEvent_DuplicatePreCheck(t *testing.T) {
	ctx := context.Background()
	store := new(MockLedgerStore)
	customers := new(MockBillingCustomerRepository)
	service := newWebhookService(store, customers)

	existing := &ledger.Entry{}
	store.On("FindEntryByStripeEventID", ctx, "evt_dup").Return(existing, nil)

	event := makeEvent(t, "evt_dup", "checkout.session.completed", stripe.CheckoutSession{})
	result, err := service.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, "Event already processed", result.Message)
	store.AssertNotCalled(t, "Credit")
}

func TestStripeWebhookService_CheckoutSessionCompleted(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	session := stripe.CheckoutSession{
		ID:   "cs_1",
		Mode: stripe.CheckoutSessionModePayment,
		Metadata: map[string]string{
			"user_id":  userID.String(),
			"price_id": "price_pack_pro",
		},
		Customer:      &stripe.Customer{ID: "cus_1"},
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
	}

	t.Run("credits the configured pack", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		store.On("FindEntryByStripeEventID", ctx, "evt_1").Return(nil, shared.ErrNotFound)
		customers.On("Upsert", ctx, mock.Anything).Return(nil)
		store.On("Credit", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.UserID == userID && e.Delta == 500 &&
				e.Source == ledger.EntrySourceCheckout &&
				*e.StripeEventID == "evt_1" &&
				e.Metadata["payment_intent"] == "pi_1"
		})).Return(nil)

		event := makeEvent(t, "evt_1", "checkout.session.completed", session)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		store.AssertExpectations(t)
	})

	t.Run("duplicate insert treated as processed", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		store.On("FindEntryByStripeEventID", ctx, "evt_1").Return(nil, shared.ErrNotFound)
		customers.On("Upsert", ctx, mock.Anything).Return(nil)
		store.On("Credit", ctx, mock.Anything).Return(shared.ErrDuplicateEvent)

		event := makeEvent(t, "evt_1", "checkout.session.completed", session)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.Equal(t, "Event already processed", result.Message)
	})

	t.Run("unknown price acknowledged as no-op", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		unknown := session
		unknown.Metadata = map[string]string{
			"user_id":  userID.String(),
			"price_id": "price_mystery",
		}

		store.On("FindEntryByStripeEventID", ctx, "evt_2").Return(nil, shared.ErrNotFound)

		event := makeEvent(t, "evt_2", "checkout.session.completed", unknown)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.Equal(t, "Unknown price ID", result.Message)
		store.AssertNotCalled(t, "Credit")
	})

	t.Run("subscription mode checkout skipped", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		sub := session
		sub.Mode = stripe.CheckoutSessionModeSubscription

		store.On("FindEntryByStripeEventID", ctx, "evt_3").Return(nil, shared.ErrNotFound)

		event := makeEvent(t, "evt_3", "checkout.session.completed", sub)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.Contains(t, result.Message, "invoice")
		store.AssertNotCalled(t, "Credit")
	})

	t.Run("resolves user via customer mapping when metadata missing", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		bare := session
		bare.Metadata = map[string]string{"price_id": "price_pack_starter"}

		mapping, err := ledger.NewBillingCustomer(userID, "cus_1")
		require.NoError(t, err)

		store.On("FindEntryByStripeEventID", ctx, "evt_4").Return(nil, shared.ErrNotFound)
		customers.On("FindByStripeCustomerID", ctx, "cus_1").Return(mapping, nil)
		customers.On("Upsert", ctx, mock.Anything).Return(nil)
		store.On("Credit", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.UserID == userID && e.Delta == 100
		})).Return(nil)

		event := makeEvent(t, "evt_4", "checkout.session.completed", bare)
		_, err = service.HandleEvent(ctx, event)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})
}

func TestStripeWebhookService_InvoicePaid(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	invoice := stripe.Invoice{
		ID:       "in_1",
		Customer: &stripe.Customer{ID: "cus_1"},
		Lines: &stripe.InvoiceLineItemList{
			Data: []*stripe.InvoiceLineItem{
				{Price: &stripe.Price{ID: "price_sub_pro"}},
			},
		},
		Subscription: &stripe.Subscription{ID: "sub_1"},
	}

	t.Run("credits the monthly allotment", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		mapping, err := ledger.NewBillingCustomer(userID, "cus_1")
		require.NoError(t, err)

		store.On("FindEntryByStripeEventID", ctx, "evt_10").Return(nil, shared.ErrNotFound)
		customers.On("FindByStripeCustomerID", ctx, "cus_1").Return(mapping, nil)
		store.On("Credit", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.UserID == userID && e.Delta == 200 &&
				e.Source == ledger.EntrySourceInvoice &&
				e.Metadata["subscription_id"] == "sub_1"
		})).Return(nil)

		event := makeEvent(t, "evt_10", "invoice.paid", invoice)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		store.AssertExpectations(t)
	})

	t.Run("unmapped customer acknowledged", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		store.On("FindEntryByStripeEventID", ctx, "evt_11").Return(nil, shared.ErrNotFound)
		customers.On("FindByStripeCustomerID", ctx, "cus_1").Return(nil, shared.ErrNotFound)

		event := makeEvent(t, "evt_11", "invoice.paid", invoice)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		store.AssertNotCalled(t, "Credit")
	})

	t.Run("unknown subscription price acknowledged", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		mapping, err := ledger.NewBillingCustomer(userID, "cus_1")
		require.NoError(t, err)

		odd := invoice
		odd.Lines = &stripe.InvoiceLineItemList{
			Data: []*stripe.InvoiceLineItem{
				{Price: &stripe.Price{ID: "price_mystery"}},
			},
		}

		store.On("FindEntryByStripeEventID", ctx, "evt_12").Return(nil, shared.ErrNotFound)
		customers.On("FindByStripeCustomerID", ctx, "cus_1").Return(mapping, nil)

		event := makeEvent(t, "evt_12", "invoice.paid", odd)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, "Unknown price ID", result.Message)
		store.AssertNotCalled(t, "Credit")
	})
}

func TestStripeWebhookService_ChargeRefunded(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	newCredit := func(tokens int64) *ledger.Entry {
		entry, err := ledger.NewEntry(userID, tokens, "token_pack_purchase", ledger.EntrySourceCheckout)
		require.NoError(t, err)
		return entry
	}

	t.Run("full refund claws back all granted tokens", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		charge := stripe.Charge{
			ID:             "ch_1",
			Amount:         1000,
			AmountRefunded: 1000,
			PaymentIntent:  &stripe.PaymentIntent{ID: "pi_1"},
		}

		store.On("FindEntryByStripeEventID", ctx, "evt_20").Return(nil, shared.ErrNotFound)
		store.On("FindCreditByPaymentIntent", ctx, "pi_1").Return(newCredit(500), nil)
		store.On("Clawback", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.UserID == userID && e.Delta == -500 &&
				e.Source == ledger.EntrySourceRefund
		})).Return(int64(500), nil)

		event := makeEvent(t, "evt_20", "charge.refunded", charge)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		store.AssertExpectations(t)
	})

	t.Run("partial refund claws back proportionally with floor", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		charge := stripe.Charge{
			ID:             "ch_2",
			Amount:         1000,
			AmountRefunded: 333,
			PaymentIntent:  &stripe.PaymentIntent{ID: "pi_2"},
			Refunds: &stripe.RefundList{
				Data: []*stripe.Refund{{Amount: 333}},
			},
		}

		store.On("FindEntryByStripeEventID", ctx, "evt_21").Return(nil, shared.ErrNotFound)
		store.On("FindCreditByPaymentIntent", ctx, "pi_2").Return(newCredit(500), nil)
		// 500 * 333 / 1000 = 166.5, floored to 166
		store.On("Clawback", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.Delta == -166
		})).Return(int64(166), nil)

		event := makeEvent(t, "evt_21", "charge.refunded", charge)
		_, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("clamped clawback reports deducted amount", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		charge := stripe.Charge{
			ID:             "ch_3",
			Amount:         1000,
			AmountRefunded: 1000,
			PaymentIntent:  &stripe.PaymentIntent{ID: "pi_3"},
		}

		store.On("FindEntryByStripeEventID", ctx, "evt_22").Return(nil, shared.ErrNotFound)
		store.On("FindCreditByPaymentIntent", ctx, "pi_3").Return(newCredit(500), nil)
		store.On("Clawback", ctx, mock.Anything).Return(int64(50), nil)

		event := makeEvent(t, "evt_22", "charge.refunded", charge)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
	})

	t.Run("charge without matching credit acknowledged", func(t *testing.T) {
		store := new(MockLedgerStore)
		customers := new(MockBillingCustomerRepository)
		service := newWebhookService(store, customers)

		charge := stripe.Charge{
			ID:             "ch_4",
			Amount:         1000,
			AmountRefunded: 1000,
			PaymentIntent:  &stripe.PaymentIntent{ID: "pi_4"},
		}

		store.On("FindEntryByStripeEventID", ctx, "evt_23").Return(nil, shared.ErrNotFound)
		store.On("FindCreditByPaymentIntent", ctx, "pi_4").Return(nil, shared.ErrNotFound)

		event := makeEvent(t, "evt_23", "charge.refunded", charge)
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		store.AssertNotCalled(t, "Clawback")
	})
}

func TestStripeWebhookService_UnhandledEventTypes(t *testing.T) {
	ctx := context.Background()
	store := new(MockLedgerStore)
	customers := new(MockBillingCustomerRepository)
	service := newWebhookService(store, customers)

	store.On("FindEntryByStripeEventID", ctx, mock.Anything).Return(nil, shared.ErrNotFound)

	t.Run("subscription lifecycle acknowledged without ledger change", func(t *testing.T) {
		event := makeEvent(t, "evt_30", "customer.subscription.deleted", stripe.Subscription{ID: "sub_1"})
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		store.AssertNotCalled(t, "Credit")
	})

	t.Run("unknown type acknowledged", func(t *testing.T) {
		event := makeEvent(t, "evt_31", "payment_method.attached", struct{}{})
		result, err := service.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.Equal(t, "Event type not handled", result.Message)
	})
}
