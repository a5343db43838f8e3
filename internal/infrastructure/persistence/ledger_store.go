package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/domain/shared"
	"github.com/soundfoundry/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerStore implements ledger.Store using GORM. Every balance
// mutation runs the ledger insert and the balance change inside one
// transaction so the two can never diverge.
type GormLedgerStore struct {
	db *gorm.DB
}

// NewGormLedgerStore creates a new GormLedgerStore
func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

// GetBalance returns the current balance for a user, 0 if none exists
func (s *GormLedgerStore) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var model models.BalanceModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return model.Balance, nil
}

// Credit appends the entry and upserts the balance by entry.Delta in a
// single transaction. A duplicate StripeEventID returns
// shared.ErrDuplicateEvent with nothing written. Negative deltas, used by
// operator corrections, fail with shared.ErrInsufficientBalance when the
// balance does not cover them.
func (s *GormLedgerStore) Credit(ctx context.Context, entry *ledger.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if entry.Delta < 0 {
			balance, err := lockBalance(tx, entry.UserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return shared.ErrInsufficientBalance
				}
				return err
			}
			if balance.Balance+entry.Delta < 0 {
				return shared.ErrInsufficientBalance
			}
		}

		model := models.LedgerEntryModelFromDomain(entry)
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrDuplicateEvent
			}
			return err
		}
		return applyBalanceDelta(tx, entry.UserID, entry.Delta)
	})
}

// Debit appends the entry and decrements the balance, failing with
// shared.ErrInsufficientBalance and no side effects when the balance does
// not cover the amount. The balance row is locked for the duration of the
// transaction so concurrent debits serialize per user.
func (s *GormLedgerStore) Debit(ctx context.Context, entry *ledger.Entry) error {
	if entry.Delta >= 0 {
		return shared.NewDomainError("INVALID_DELTA", "Debit entries must have a negative delta")
	}
	amount := -entry.Delta

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := lockBalance(tx, entry.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrInsufficientBalance
			}
			return err
		}
		if balance.Balance < amount {
			return shared.ErrInsufficientBalance
		}

		model := models.LedgerEntryModelFromDomain(entry)
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrDuplicateEvent
			}
			return err
		}
		return decrementBalance(tx, entry.UserID, amount)
	})
}

// Clawback deducts up to -entry.Delta tokens, clamped so the balance never
// goes below zero, and returns the actually deducted amount. The recorded
// entry carries the clamped delta. Nothing is written when the balance is
// already zero.
func (s *GormLedgerStore) Clawback(ctx context.Context, entry *ledger.Entry) (int64, error) {
	if entry.Delta >= 0 {
		return 0, shared.NewDomainError("INVALID_DELTA", "Clawback entries must have a negative delta")
	}
	requested := -entry.Delta

	var deducted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := lockBalance(tx, entry.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				deducted = 0
				return nil
			}
			return err
		}

		deducted = min(requested, balance.Balance)
		if deducted == 0 {
			return nil
		}

		entry.Delta = -deducted
		model := models.LedgerEntryModelFromDomain(entry)
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrDuplicateEvent
			}
			return err
		}
		return decrementBalance(tx, entry.UserID, deducted)
	})
	if err != nil {
		return 0, err
	}
	return deducted, nil
}

// History returns ledger entries for a user, newest first, with total count
func (s *GormLedgerStore) History(ctx context.Context, userID uuid.UUID, filter ledger.EntryFilter) ([]*ledger.Entry, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("user_id = ?", userID)
	countQuery := s.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("user_id = ?", userID)
	if filter.Source != nil {
		query = query.Where("source = ?", filter.Source.String())
		countQuery = countQuery.Where("source = ?", filter.Source.String())
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var entryModels []models.LedgerEntryModel
	if err := query.Order("created_at DESC").Find(&entryModels).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*ledger.Entry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	return entries, total, nil
}

// FindEntryByStripeEventID looks up an entry by external event ID
func (s *GormLedgerStore) FindEntryByStripeEventID(ctx context.Context, eventID string) (*ledger.Entry, error) {
	var model models.LedgerEntryModel
	if err := s.db.WithContext(ctx).
		Where("stripe_event_id = ?", eventID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCreditByPaymentIntent looks up the oldest credit entry whose
// metadata records the given payment intent
func (s *GormLedgerStore) FindCreditByPaymentIntent(ctx context.Context, paymentIntentID string) (*ledger.Entry, error) {
	query := s.db.WithContext(ctx).Where("delta > 0")
	if s.db.Dialector.Name() == "postgres" {
		query = query.Where("metadata->>'payment_intent' = ?", paymentIntentID)
	} else {
		query = query.Where("json_extract(metadata, '$.payment_intent') = ?", paymentIntentID)
	}

	var model models.LedgerEntryModel
	if err := query.Order("created_at ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SumDeltas recomputes the balance from the ledger
func (s *GormLedgerStore) SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error) {
	var result struct {
		Total int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Select("COALESCE(SUM(delta), 0) as total").
		Where("user_id = ?", userID).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

// lockBalance fetches the balance row with FOR UPDATE where the dialect
// supports it. SQLite has no row locks but serializes writers anyway.
func lockBalance(tx *gorm.DB, userID uuid.UUID) (*models.BalanceModel, error) {
	query := tx.Where("user_id = ?", userID)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var balance models.BalanceModel
	if err := query.First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

// applyBalanceDelta upserts the balance row by delta, creating it on first credit
func applyBalanceDelta(tx *gorm.DB, userID uuid.UUID, delta int64) error {
	now := time.Now()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("token_balances.balance + ?", delta),
			"updated_at": now,
		}),
	}).Create(&models.BalanceModel{
		UserID:    userID,
		Balance:   delta,
		UpdatedAt: now,
	}).Error
}

// decrementBalance subtracts amount from an existing balance row
func decrementBalance(tx *gorm.DB, userID uuid.UUID, amount int64) error {
	result := tx.Model(&models.BalanceModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("balance row disappeared for user %s", userID)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
// Matched by message as well since not every driver translates the error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
