package access

import (
	"context"

	"github.com/bwmarrin/snowflake"
	admindomain "github.com/smallbiznis/adminwatch/internal/admin/domain"
	obsmetrics "github.com/smallbiznis/adminwatch/internal/observability/metrics"
	referencedomain "github.com/smallbiznis/adminwatch/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type CountriesView struct {
	Countries []referencedomain.Country `json:"data"`
	Scope     Scope                     `json:"scope"`
	Selection string                    `json:"selection"`
}

type SelectResult struct {
	Selection string `json:"selection"`
	Changed   bool   `json:"changed"`
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Identities admindomain.Service
	Catalog    referencedomain.Catalog
	Store      SelectionStore
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	identities admindomain.Service
	catalog    referencedomain.Catalog
	store      SelectionStore
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("access.service"),
		identities: p.Identities,
		catalog:    p.Catalog,
		store:      p.Store,
		metrics:    p.Metrics,
	}
}

// ScopeFor loads the current identity and computes its scope.
func (s *Service) ScopeFor(ctx context.Context, adminID snowflake.ID) (*admindomain.Identity, Scope, error) {
	identity, err := s.identities.ActiveIdentity(ctx, adminID)
	if err != nil {
		return nil, Scope{}, err
	}
	known, err := s.catalog.KnownCodes(ctx)
	if err != nil {
		return nil, Scope{}, err
	}
	return identity, NewScope(*identity, known), nil
}

// Known returns the known country codes.
func (s *Service) Known(ctx context.Context) ([]string, error) {
	return s.catalog.KnownCodes(ctx)
}

func (s *Service) Countries(ctx context.Context, adminID snowflake.ID) (CountriesView, error) {
	identity, scope, err := s.ScopeFor(ctx, adminID)
	if err != nil {
		return CountriesView{}, err
	}
	all, err := s.catalog.Countries(ctx)
	if err != nil {
		return CountriesView{}, err
	}

	accessible := make(map[string]struct{}, len(scope.Accessible))
	for _, code := range scope.Accessible {
		accessible[code] = struct{}{}
	}
	countries := make([]referencedomain.Country, 0, len(scope.Accessible))
	for _, c := range all {
		if _, ok := accessible[c.Code]; ok {
			countries = append(countries, c)
		}
	}

	current, err := s.store.Get(ctx, adminID)
	if err != nil {
		return CountriesView{}, err
	}
	known, err := s.catalog.KnownCodes(ctx)
	if err != nil {
		return CountriesView{}, err
	}
	selection := ResolveSelection(*identity, known, current, current)
	if selection != current {
		if err := s.store.Set(ctx, adminID, selection); err != nil {
			return CountriesView{}, err
		}
	}

	return CountriesView{Countries: countries, Scope: scope, Selection: selection}, nil
}

// Select resolves requested against the admin's scope. An out-of-scope request
// keeps the previous selection and reports Changed=false.
func (s *Service) Select(ctx context.Context, adminID snowflake.ID, requested string) (SelectResult, error) {
	identity, err := s.identities.ActiveIdentity(ctx, adminID)
	if err != nil {
		return SelectResult{}, err
	}
	known, err := s.catalog.KnownCodes(ctx)
	if err != nil {
		return SelectResult{}, err
	}
	current, err := s.store.Get(ctx, adminID)
	if err != nil {
		return SelectResult{}, err
	}

	selection := ResolveSelection(*identity, known, current, requested)
	if normalizeCode(requested) != selection {
		s.log.Info("country selection denied",
			zap.String("admin_id", adminID.String()),
			zap.String("requested", normalizeCode(requested)),
			zap.String("selection", selection),
		)
		s.metrics.RecordAccessDenied(ctx, "selection_out_of_scope")
	}
	if selection == current {
		return SelectResult{Selection: selection, Changed: false}, nil
	}
	if err := s.store.Set(ctx, adminID, selection); err != nil {
		return SelectResult{}, err
	}
	return SelectResult{Selection: selection, Changed: true}, nil
}
