package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository reads and writes identities and accounts. Finders return
// (nil, nil) when no row matches.
type Repository interface {
	FindIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Identity, error)
	FindIdentityByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Identity, error)
	ListActiveIdentities(ctx context.Context, db *gorm.DB) ([]Identity, error)
	InsertIdentity(ctx context.Context, db *gorm.DB, identity *Identity) error
	UpdateIdentity(ctx context.Context, db *gorm.DB, identity *Identity) error

	FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	UpdateAccount(ctx context.Context, db *gorm.DB, account *Account) error
}
