package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/identity"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/domain/shared"
	infrabilling "github.com/soundfoundry/backend/internal/infrastructure/billing"
	"go.uber.org/zap"
)

// StripeGateway abstracts the Stripe API calls the checkout flow needs
type StripeGateway interface {
	CreateCustomer(ctx context.Context, input infrabilling.CreateCustomerInput) (*infrabilling.CreateCustomerOutput, error)
	CreateCheckoutSession(ctx context.Context, input infrabilling.CreateCheckoutSessionInput) (*infrabilling.CreateCheckoutSessionOutput, error)
	CreatePortalSession(ctx context.Context, input infrabilling.CreatePortalSessionInput) (*infrabilling.CreatePortalSessionOutput, error)
}

// TokenPackDTO describes a purchasable token grant
type TokenPackDTO struct {
	PriceID string `json:"price_id"`
	Tokens  int64  `json:"tokens"`
	Label   string `json:"label"`
}

// CheckoutSessionDTO is the redirect target returned to the frontend
type CheckoutSessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CheckoutService drives Stripe checkout and billing portal flows.
// The billing customer mapping is created lazily on first checkout.
type CheckoutService struct {
	gateway   StripeGateway
	customers ledger.BillingCustomerRepository
	users     identity.UserRepository
	config    *infrabilling.StripeConfig
	logger    *zap.Logger
}

// CheckoutServiceConfig contains configuration for CheckoutService
type CheckoutServiceConfig struct {
	Gateway   StripeGateway
	Customers ledger.BillingCustomerRepository
	Users     identity.UserRepository
	Config    *infrabilling.StripeConfig
	Logger    *zap.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(cfg CheckoutServiceConfig) *CheckoutService {
	return &CheckoutService{
		gateway:   cfg.Gateway,
		customers: cfg.Customers,
		users:     cfg.Users,
		config:    cfg.Config,
		logger:    cfg.Logger,
	}
}

// ListPacks returns the purchasable one-time token packs, cheapest first
func (s *CheckoutService) ListPacks() []TokenPackDTO {
	packs := make([]TokenPackDTO, 0, len(s.config.TokenPacks))
	for priceID, tokens := range s.config.TokenPacks {
		packs = append(packs, TokenPackDTO{
			PriceID: priceID,
			Tokens:  tokens,
			Label:   fmt.Sprintf("%d tokens", tokens),
		})
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Tokens < packs[j].Tokens })
	return packs
}

// ListSubscriptions returns the recurring token allotments, smallest first
func (s *CheckoutService) ListSubscriptions() []TokenPackDTO {
	subs := make([]TokenPackDTO, 0, len(s.config.SubscriptionGrants))
	for priceID, tokens := range s.config.SubscriptionGrants {
		subs = append(subs, TokenPackDTO{
			PriceID: priceID,
			Tokens:  tokens,
			Label:   fmt.Sprintf("%d tokens / month", tokens),
		})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Tokens < subs[j].Tokens })
	return subs
}

// CreateCheckoutSession starts a Stripe Checkout flow for the given price.
// The mode is derived from which catalog the price belongs to.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, priceID string) (*CheckoutSessionDTO, error) {
	var mode infrabilling.CheckoutMode
	if _, ok := s.config.PackTokens(priceID); ok {
		mode = infrabilling.CheckoutModePayment
	} else if _, ok := s.config.SubscriptionTokens(priceID); ok {
		mode = infrabilling.CheckoutModeSubscription
	} else {
		return nil, shared.NewDomainError("UNKNOWN_PRICE", "Unknown price ID")
	}

	customer, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.gateway.CreateCheckoutSession(ctx, infrabilling.CreateCheckoutSessionInput{
		UserID:     userID,
		CustomerID: customer.StripeCustomerID,
		PriceID:    priceID,
		Mode:       mode,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created checkout session",
		zap.String("user_id", userID.String()),
		zap.String("price_id", priceID),
		zap.String("session_id", out.SessionID))

	return &CheckoutSessionDTO{
		SessionID: out.SessionID,
		URL:       out.URL,
	}, nil
}

// CreatePortalSession opens the Stripe billing portal for an existing
// billing customer
func (s *CheckoutService) CreatePortalSession(ctx context.Context, userID uuid.UUID) (*CheckoutSessionDTO, error) {
	customer, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NO_BILLING_CUSTOMER", "No billing profile exists for this account")
		}
		return nil, err
	}

	out, err := s.gateway.CreatePortalSession(ctx, infrabilling.CreatePortalSessionInput{
		CustomerID: customer.StripeCustomerID,
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutSessionDTO{URL: out.URL}, nil
}

// ensureCustomer returns the user's billing customer mapping, creating
// the Stripe customer on first use
func (s *CheckoutService) ensureCustomer(ctx context.Context, userID uuid.UUID) (*ledger.BillingCustomer, error) {
	customer, err := s.customers.FindByUserID(ctx, userID)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.gateway.CreateCustomer(ctx, infrabilling.CreateCustomerInput{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create billing customer: %w", err)
	}

	customer, err = ledger.NewBillingCustomer(user.ID, out.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.customers.Upsert(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("Created billing customer",
		zap.String("user_id", user.ID.String()),
		zap.String("customer_id", out.CustomerID))

	return customer, nil
}
