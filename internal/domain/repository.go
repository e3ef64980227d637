package domain

import "context"

// AssetRepository persists generated asset records.
type AssetRepository interface {
	Create(ctx context.Context, asset *Asset) error
	GetByID(ctx context.Context, id string) (*Asset, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]Asset, error)
	SoftDelete(ctx context.Context, id, ownerID string) error
}

// ProjectRepository persists project records.
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Project, error)
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id, ownerID string) error
}

// CreditLedger reads and atomically decrements a user's credit balance.
// Deduction happens only after a successful generation and only when the
// caller did not bring their own provider key.
type CreditLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Deduct(ctx context.Context, userID string, amount int) error
}

// TokenVerifier exchanges an opaque bearer token for a caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// BlobStore writes bytes with a content type and returns a retrievable URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
