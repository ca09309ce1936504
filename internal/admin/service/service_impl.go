package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/admin/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("admin.service"),
		repo: p.Repo,
	}
}

func (s *Service) ActiveIdentity(ctx context.Context, id snowflake.ID) (*domain.Identity, error) {
	if id == 0 {
		return nil, domain.ErrIdentityNotFound
	}
	identity, err := s.repo.FindIdentity(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, domain.ErrIdentityNotFound
	}
	if !identity.IsActive {
		s.log.Debug("inactive admin identity", zap.String("admin_id", id.String()))
		return nil, domain.ErrIdentityInactive
	}
	identity.AssignedCountries = identity.Countries()
	return identity, nil
}

func (s *Service) ListActiveIdentities(ctx context.Context) ([]domain.Identity, error) {
	identities, err := s.repo.ListActiveIdentities(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range identities {
		identities[i].AssignedCountries = identities[i].Countries()
	}
	return identities, nil
}

func (s *Service) ContactEmail(ctx context.Context, recipientID snowflake.ID) (string, error) {
	accountID := recipientID
	identity, err := s.repo.FindIdentity(ctx, s.db, recipientID)
	if err != nil {
		return "", err
	}
	if identity != nil {
		accountID = identity.UserID
	}
	account, err := s.repo.FindAccount(ctx, s.db, accountID)
	if err != nil {
		return "", err
	}
	if account == nil || account.Email == "" || account.Status == domain.AccountStatusDeleted {
		return "", domain.ErrNoContact
	}
	return account.Email, nil
}
