package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/clock"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	"github.com/smallbiznis/adminwatch/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("snapshot.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Countries(ctx context.Context) ([]string, error) {
	return s.repo.ListCountries(ctx, s.db)
}

func (s *Service) ForCountry(ctx context.Context, countryCode string) ([]domain.Snapshot, error) {
	return s.repo.ListByCountry(ctx, s.db, strings.ToUpper(strings.TrimSpace(countryCode)))
}

func (s *Service) Ingest(ctx context.Context, snapshot domain.Snapshot) error {
	snapshot.CountryCode = strings.ToUpper(strings.TrimSpace(snapshot.CountryCode))
	if len(snapshot.CountryCode) != 2 {
		return domain.ErrInvalidCountry
	}
	if !snapshot.MetricType.Valid() {
		return domain.ErrInvalidMetricType
	}
	if !snapshot.Period.Valid() {
		return domain.ErrInvalidPeriod
	}
	if !finite(snapshot.CurrentValue) || !finite(snapshot.PriorValue) {
		return domain.ErrInvalidValue
	}
	if snapshot.ID == 0 {
		snapshot.ID = s.genID.Generate()
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = s.clock.Now()
	}
	snapshot.CapturedAt = snapshot.CapturedAt.UTC()

	if err := s.repo.Upsert(ctx, s.db, &snapshot); err != nil {
		return err
	}
	s.metrics.RecordSnapshotIngested(ctx, string(snapshot.MetricType))
	s.log.Debug("snapshot ingested",
		zap.String("country_code", snapshot.CountryCode),
		zap.String("metric_type", string(snapshot.MetricType)),
		zap.String("period", string(snapshot.Period)),
	)
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
