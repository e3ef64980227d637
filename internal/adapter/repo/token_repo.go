package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spriteforge/internal/domain"
)

// TokenVerifierPG implements domain.TokenVerifier against an api_tokens
// table. Tokens are opaque; whatever issued them owns their lifecycle.
type TokenVerifierPG struct {
	pool *pgxpool.Pool
}

// NewTokenVerifier constructs a new token verifier instance.
func NewTokenVerifier(pool *pgxpool.Pool) *TokenVerifierPG {
	return &TokenVerifierPG{pool: pool}
}

// Verify exchanges a bearer token for the caller identity.
func (r *TokenVerifierPG) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	row := r.pool.QueryRow(ctx, `
SELECT u.id, u.email
FROM api_tokens t
JOIN users u ON u.id = t.user_id
WHERE t.token = $1 AND (t.expires_at IS NULL OR t.expires_at > now());
`, token)
	var identity domain.Identity
	if err := row.Scan(&identity.UserID, &identity.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return &identity, nil
}

var _ domain.TokenVerifier = (*TokenVerifierPG)(nil)
