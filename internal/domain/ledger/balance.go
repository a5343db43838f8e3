package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Balance is the single authoritative token balance row for a user.
// It is created on first credit and mutated only inside the same storage
// transaction that appends the corresponding ledger entry.
type Balance struct {
	UserID    uuid.UUID
	Balance   int64
	UpdatedAt time.Time
}

// CanDebit returns true if the balance covers the requested amount
func (b *Balance) CanDebit(amount int64) bool {
	return amount > 0 && b.Balance >= amount
}
