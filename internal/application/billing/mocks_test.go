package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/identity"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	infrabilling "github.com/soundfoundry/backend/internal/infrastructure/billing"
	"github.com/stretchr/testify/mock"
)

// MockLedgerStore is a mock implementation of ledger.Store
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerStore) Credit(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerStore) Debit(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerStore) Clawback(ctx context.Context, entry *ledger.Entry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerStore) History(ctx context.Context, userID uuid.UUID, filter ledger.EntryFilter) ([]*ledger.Entry, int64, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*ledger.Entry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerStore) FindEntryByStripeEventID(ctx context.Context, eventID string) (*ledger.Entry, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerStore) FindCreditByPaymentIntent(ctx context.Context, paymentIntentID string) (*ledger.Entry, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerStore) SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockBillingCustomerRepository is a mock implementation of ledger.BillingCustomerRepository
type MockBillingCustomerRepository struct {
	mock.Mock
}

func (m *MockBillingCustomerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*ledger.BillingCustomer, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.BillingCustomer), args.Error(1)
}

func (m *MockBillingCustomerRepository) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*ledger.BillingCustomer, error) {
	args := m.Called(ctx, stripeCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.BillingCustomer), args.Error(1)
}

func (m *MockBillingCustomerRepository) Upsert(ctx context.Context, customer *ledger.BillingCustomer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockStripeGateway is a mock implementation of StripeGateway
type MockStripeGateway struct {
	mock.Mock
}

func (m *MockStripeGateway) CreateCustomer(ctx context.Context, input infrabilling.CreateCustomerInput) (*infrabilling.CreateCustomerOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infrabilling.CreateCustomerOutput), args.Error(1)
}

func (m *MockStripeGateway) CreateCheckoutSession(ctx context.Context, input infrabilling.CreateCheckoutSessionInput) (*infrabilling.CreateCheckoutSessionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infrabilling.CreateCheckoutSessionOutput), args.Error(1)
}

func (m *MockStripeGateway) CreatePortalSession(ctx context.Context, input infrabilling.CreatePortalSessionInput) (*infrabilling.CreatePortalSessionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infrabilling.CreatePortalSessionOutput), args.Error(1)
}
