package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/ledger"
)

// LedgerEntryModel is the persistence model for ledger.Entry
type LedgerEntryModel struct {
	BaseModel
	UserID        uuid.UUID `gorm:"type:uuid;not null;index:idx_token_ledger_user_created,priority:1"`
	Delta         int64     `gorm:"not null"`
	Reason        string    `gorm:"type:varchar(255);not null"`
	Source        string    `gorm:"type:varchar(20);not null;index"`
	StripeEventID *string   `gorm:"type:varchar(255);uniqueIndex:uniq_token_ledger_stripe_event"`
	Metadata      *string   `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "token_ledger"
}

// ToDomain converts the persistence model to a domain Entry
func (m *LedgerEntryModel) ToDomain() *ledger.Entry {
	entry := &ledger.Entry{
		BaseEntity:    m.BaseModel.ToDomain(),
		UserID:        m.UserID,
		Delta:         m.Delta,
		Reason:        m.Reason,
		Source:        ledger.EntrySource(m.Source),
		StripeEventID: m.StripeEventID,
	}
	if m.Metadata != nil && *m.Metadata != "" {
		// Metadata is opaque; a decode failure leaves it nil rather than
		// failing the read.
		_ = json.Unmarshal([]byte(*m.Metadata), &entry.Metadata)
	}
	return entry
}

// LedgerEntryModelFromDomain converts a domain Entry to a persistence model
func LedgerEntryModelFromDomain(entry *ledger.Entry) *LedgerEntryModel {
	model := &LedgerEntryModel{
		UserID:        entry.UserID,
		Delta:         entry.Delta,
		Reason:        entry.Reason,
		Source:        entry.Source.String(),
		StripeEventID: entry.StripeEventID,
	}
	model.FromDomainBaseEntity(entry.BaseEntity)
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			encoded := string(raw)
			model.Metadata = &encoded
		}
	}
	return model
}

// BalanceModel is the persistence model for the per-user balance row
type BalanceModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primary_key"`
	Balance   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BalanceModel) TableName() string {
	return "token_balances"
}

// ToDomain converts the persistence model to a domain Balance
func (m *BalanceModel) ToDomain() *ledger.Balance {
	return &ledger.Balance{
		UserID:    m.UserID,
		Balance:   m.Balance,
		UpdatedAt: m.UpdatedAt,
	}
}

// BillingCustomerModel is the persistence model for ledger.BillingCustomer
type BillingCustomerModel struct {
	BaseModel
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	StripeCustomerID string    `gorm:"type:varchar(255);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (BillingCustomerModel) TableName() string {
	return "billing_customers"
}

// ToDomain converts the persistence model to a domain BillingCustomer
func (m *BillingCustomerModel) ToDomain() *ledger.BillingCustomer {
	return &ledger.BillingCustomer{
		BaseEntity:       m.BaseModel.ToDomain(),
		UserID:           m.UserID,
		StripeCustomerID: m.StripeCustomerID,
	}
}

// BillingCustomerModelFromDomain converts a domain BillingCustomer to a persistence model
func BillingCustomerModelFromDomain(customer *ledger.BillingCustomer) *BillingCustomerModel {
	model := &BillingCustomerModel{
		UserID:           customer.UserID,
		StripeCustomerID: customer.StripeCustomerID,
	}
	model.FromDomainBaseEntity(customer.BaseEntity)
	return model
}
