package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/domain/shared"
	"github.com/soundfoundry/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBillingCustomerRepository implements ledger.BillingCustomerRepository using GORM
type GormBillingCustomerRepository struct {
	db *gorm.DB
}

// NewGormBillingCustomerRepository creates a new GormBillingCustomerRepository
func NewGormBillingCustomerRepository(db *gorm.DB) *GormBillingCustomerRepository {
	return &GormBillingCustomerRepository{db: db}
}

// FindByUserID finds the billing customer mapping for a user
func (r *GormBillingCustomerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*ledger.BillingCustomer, error) {
	var model models.BillingCustomerModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeCustomerID finds the mapping for a Stripe customer
func (r *GormBillingCustomerRepository) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*ledger.BillingCustomer, error) {
	var model models.BillingCustomerModel
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", stripeCustomerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert creates the mapping or refreshes the Stripe customer ID for the user
func (r *GormBillingCustomerRepository) Upsert(ctx context.Context, customer *ledger.BillingCustomer) error {
	model := models.BillingCustomerModelFromDomain(customer)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"stripe_customer_id": model.StripeCustomerID,
			"updated_at":         time.Now(),
		}),
	}).Create(model).Error
}
