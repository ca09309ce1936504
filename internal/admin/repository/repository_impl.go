package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/admin/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Identity, error) {
	var identity domain.Identity
	err := db.WithContext(ctx).
		Raw(`SELECT id, user_id, role, assigned_countries, is_active, created_at, updated_at
			FROM admin_identities WHERE id = ?`, id).
		Take(&identity).Error
	return nilIfNotFound(&identity, err)
}

func (r *repo) FindIdentityByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Identity, error) {
	var identity domain.Identity
	err := db.WithContext(ctx).
		Raw(`SELECT id, user_id, role, assigned_countries, is_active, created_at, updated_at
			FROM admin_identities WHERE user_id = ?`, userID).
		Take(&identity).Error
	return nilIfNotFound(&identity, err)
}

func (r *repo) ListActiveIdentities(ctx context.Context, db *gorm.DB) ([]domain.Identity, error) {
	var identities []domain.Identity
	err := db.WithContext(ctx).
		Raw(`SELECT id, user_id, role, assigned_countries, is_active, created_at, updated_at
			FROM admin_identities WHERE is_active = ? ORDER BY id`, true).
		Scan(&identities).Error
	if err != nil {
		return nil, err
	}
	return identities, nil
}

func (r *repo) InsertIdentity(ctx context.Context, db *gorm.DB, identity *domain.Identity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO admin_identities (id, user_id, role, assigned_countries, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		identity.ID,
		identity.UserID,
		identity.Role,
		identity.AssignedCountries,
		identity.IsActive,
		identity.CreatedAt,
		identity.UpdatedAt,
	).Error
}

func (r *repo) UpdateIdentity(ctx context.Context, db *gorm.DB, identity *domain.Identity) error {
	return db.WithContext(ctx).Exec(
		`UPDATE admin_identities
		 SET role = ?, assigned_countries = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		identity.Role,
		identity.AssignedCountries,
		identity.IsActive,
		identity.UpdatedAt,
		identity.ID,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).
		Raw(`SELECT id, email, country_code, status, role, suspended_reason, created_at, updated_at
			FROM accounts WHERE id = ?`, id).
		Take(&account).Error
	return nilIfNotFound(&account, err)
}

func (r *repo) UpdateAccount(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET status = ?, role = ?, suspended_reason = ?, updated_at = ?
		 WHERE id = ?`,
		account.Status,
		account.Role,
		account.SuspendedReason,
		account.UpdatedAt,
		account.ID,
	).Error
}

func nilIfNotFound[T any](value *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}
