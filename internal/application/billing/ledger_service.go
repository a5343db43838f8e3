// Package billing contains the application services for the token ledger:
// balance reads, credits and debits, Stripe checkout, and webhook
// reconciliation.
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Tokens charged per 30 seconds of rendered audio
const renderCostWindowSeconds = 30

// RenderCost returns the token cost of a render of the given duration.
// Cost is one token per started 30-second window.
func RenderCost(durationSeconds int64) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return (durationSeconds + renderCostWindowSeconds - 1) / renderCostWindowSeconds
}

// LedgerService handles token balance reads and balance-changing operations
type LedgerService struct {
	store  ledger.Store
	logger *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(store ledger.Store, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		logger: logger,
	}
}

// CreditTokensInput contains input for crediting tokens
type CreditTokensInput struct {
	UserID        uuid.UUID
	Amount        int64
	Reason        string
	Source        ledger.EntrySource
	StripeEventID string
	Metadata      map[string]any
}

// ManualCreditInput contains input for an operator-initiated adjustment
type ManualCreditInput struct {
	UserID     uuid.UUID
	Amount     int64 // may be negative for corrections
	Reason     string
	OperatorID uuid.UUID
}

// DebitTokensInput contains input for spending tokens
type DebitTokensInput struct {
	UserID   uuid.UUID
	Amount   int64
	Reason   string
	Metadata map[string]any
}

// BalanceVerification reports the balance row against the ledger sum
type BalanceVerification struct {
	UserID     uuid.UUID `json:"user_id"`
	Balance    int64     `json:"balance"`
	LedgerSum  int64     `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}

// GetBalance returns the current token balance for a user
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.GetBalance(ctx, userID)
}

// CreditTokens appends a credit entry and updates the balance atomically
func (s *LedgerService) CreditTokens(ctx context.Context, input CreditTokensInput) (*ledger.Entry, error) {
	entry, err := ledger.NewEntry(input.UserID, input.Amount, input.Reason, input.Source)
	if err != nil {
		return nil, err
	}
	entry.WithStripeEventID(input.StripeEventID).WithMetadata(input.Metadata)

	if err := s.store.Credit(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Credited tokens",
		zap.String("user_id", input.UserID.String()),
		zap.Int64("amount", input.Amount),
		zap.String("source", input.Source.String()),
		zap.String("reason", input.Reason))

	return entry, nil
}

// RecordManualCredit records an operator-initiated balance adjustment.
// The operator identity is kept in the entry metadata for the audit trail.
func (s *LedgerService) RecordManualCredit(ctx context.Context, input ManualCreditInput) (*ledger.Entry, error) {
	if input.OperatorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OPERATOR", "Operator ID cannot be empty")
	}

	entry, err := ledger.NewEntry(input.UserID, input.Amount, input.Reason, ledger.EntrySourceManual)
	if err != nil {
		return nil, err
	}
	entry.WithMetadata(map[string]any{
		"operator_id": input.OperatorID.String(),
	})

	if err := s.store.Credit(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Recorded manual adjustment",
		zap.String("user_id", input.UserID.String()),
		zap.String("operator_id", input.OperatorID.String()),
		zap.Int64("amount", input.Amount))

	return entry, nil
}

// DebitTokens spends tokens, failing with shared.ErrInsufficientBalance
// when the balance does not cover the amount
func (s *LedgerService) DebitTokens(ctx context.Context, input DebitTokensInput) (*ledger.Entry, error) {
	entry, err := ledger.NewDebitEntry(input.UserID, input.Amount, input.Reason, ledger.EntrySourceConsume)
	if err != nil {
		return nil, err
	}
	entry.WithMetadata(input.Metadata)

	if err := s.store.Debit(ctx, entry); err != nil {
		if shared.IsDomainError(err, "INSUFFICIENT_BALANCE") {
			s.logger.Info("Debit rejected, insufficient balance",
				zap.String("user_id", input.UserID.String()),
				zap.Int64("amount", input.Amount))
		}
		return nil, err
	}

	s.logger.Info("Debited tokens",
		zap.String("user_id", input.UserID.String()),
		zap.Int64("amount", input.Amount),
		zap.String("reason", input.Reason))

	return entry, nil
}

// DebitForRender charges a user for a render of the given duration and
// returns the token cost charged
func (s *LedgerService) DebitForRender(ctx context.Context, userID uuid.UUID, renderID string, durationSeconds int64) (int64, error) {
	if renderID == "" {
		return 0, shared.NewDomainError("INVALID_RENDER", "Render ID cannot be empty")
	}
	cost := RenderCost(durationSeconds)
	if cost == 0 {
		return 0, shared.NewDomainError("INVALID_DURATION", "Render duration must be positive")
	}

	_, err := s.DebitTokens(ctx, DebitTokensInput{
		UserID: userID,
		Amount: cost,
		Reason: "track_generate",
		Metadata: map[string]any{
			"render_id":        renderID,
			"duration_seconds": durationSeconds,
		},
	})
	if err != nil {
		return 0, err
	}
	return cost, nil
}

// RefundFailedRender returns the tokens charged for a render that failed
func (s *LedgerService) RefundFailedRender(ctx context.Context, userID uuid.UUID, renderID string, tokens int64) (*ledger.Entry, error) {
	if renderID == "" {
		return nil, shared.NewDomainError("INVALID_RENDER", "Render ID cannot be empty")
	}
	if tokens <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Refund amount must be positive")
	}

	entry, err := ledger.NewEntry(userID, tokens, "refund_failure", ledger.EntrySourceRefund)
	if err != nil {
		return nil, err
	}
	entry.WithMetadata(map[string]any{
		"render_id": renderID,
	})

	if err := s.store.Credit(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Refunded failed render",
		zap.String("user_id", userID.String()),
		zap.String("render_id", renderID),
		zap.Int64("tokens", tokens))

	return entry, nil
}

// GetHistory returns the user's ledger entries, newest first
func (s *LedgerService) GetHistory(ctx context.Context, userID uuid.UUID, filter ledger.EntryFilter) ([]*ledger.Entry, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.store.History(ctx, userID, filter)
}

// VerifyBalance recomputes the balance from the ledger and compares it
// with the balance row
func (s *LedgerService) VerifyBalance(ctx context.Context, userID uuid.UUID) (*BalanceVerification, error) {
	balance, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	sum, err := s.store.SumDeltas(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	result := &BalanceVerification{
		UserID:     userID,
		Balance:    balance,
		LedgerSum:  sum,
		Consistent: balance == sum,
	}
	if !result.Consistent {
		s.logger.Warn("Balance diverged from ledger sum",
			zap.String("user_id", userID.String()),
			zap.Int64("balance", balance),
			zap.Int64("ledger_sum", sum))
	}
	return result, nil
}
