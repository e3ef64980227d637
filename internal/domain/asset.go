package domain

import "time"

// AssetKind enumerates persisted asset types.
type AssetKind string

const (
	AssetKindSprite      AssetKind = "sprite"
	AssetKindScene       AssetKind = "scene"
	AssetKindFrame       AssetKind = "frame"
	AssetKindSpritesheet AssetKind = "spritesheet"
)

// Asset is the persisted record for one generated artifact.
type Asset struct {
	ID        string
	OwnerID   string
	ProjectID string
	Kind      AssetKind
	URL       string
	MimeType  string
	Width     int
	Height    int
	Prompt    string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Project groups assets owned by one user.
type Project struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity is the caller identity resolved from a bearer token.
type Identity struct {
	UserID string
	Email  string
}
