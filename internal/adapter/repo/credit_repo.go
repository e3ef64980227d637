package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spriteforge/internal/domain"
)

// CreditLedgerPG implements domain.CreditLedger using PostgreSQL. Deduct is
// a single conditional UPDATE, so concurrent deductions can never drive a
// balance negative.
type CreditLedgerPG struct {
	pool *pgxpool.Pool
}

// NewCreditLedger constructs a new credit ledger instance.
func NewCreditLedger(pool *pgxpool.Pool) *CreditLedgerPG {
	return &CreditLedgerPG{pool: pool}
}

// Balance returns the user's current credit balance.
func (r *CreditLedgerPG) Balance(ctx context.Context, userID string) (int, error) {
	row := r.pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1;`, userID)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Deduct atomically subtracts amount from the balance, failing with
// domain.ErrInsufficientCredits when the balance cannot cover it.
func (r *CreditLedgerPG) Deduct(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return nil
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE users SET credits = credits - $2
WHERE id = $1 AND credits >= $2;
`, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

var _ domain.CreditLedger = (*CreditLedgerPG)(nil)
