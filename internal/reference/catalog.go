package reference

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smallbiznis/adminwatch/internal/cache"
	"github.com/smallbiznis/adminwatch/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed countries.toml
var defaultCountriesTOML []byte

const (
	catalogCacheKey = "countries"
	catalogTTL      = 5 * time.Minute
)

type catalogFile struct {
	Country []domain.Country `toml:"country"`
}

// LoadDefaultCountries decodes the embedded fallback catalog.
func LoadDefaultCountries() ([]domain.Country, error) {
	return decodeCountries(defaultCountriesTOML)
}

func decodeCountries(raw []byte) ([]domain.Country, error) {
	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode country catalog: %w", err)
	}
	return normalizeCountries(file.Country), nil
}

func normalizeCountries(in []domain.Country) []domain.Country {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Country, 0, len(in))
	for _, c := range in {
		code := domain.NormalizeCode(c.Code)
		if len(code) != 2 {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, domain.Country{Code: code, Name: c.Name, Flag: domain.FlagEmoji(code)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

type CatalogParams struct {
	fx.In

	Repo domain.Repository
	Log  *zap.Logger
}

type catalog struct {
	repo     domain.Repository
	log      *zap.Logger
	cache    cache.Cache[string, []domain.Country]
	fallback []domain.Country
}

func NewCatalog(p CatalogParams) (domain.Catalog, error) {
	fallback, err := LoadDefaultCountries()
	if err != nil {
		return nil, err
	}
	return &catalog{
		repo:     p.Repo,
		log:      p.Log.Named("reference.catalog"),
		cache:    cache.NewTTLCache[string, []domain.Country](time.Minute),
		fallback: fallback,
	}, nil
}

func (c *catalog) Countries(ctx context.Context) ([]domain.Country, error) {
	if cached, ok := c.cache.Get(catalogCacheKey); ok {
		return cached, nil
	}

	rows, err := c.repo.ListCountries(ctx)
	if err != nil {
		return nil, err
	}
	countries := normalizeCountries(rows)
	if len(countries) == 0 {
		c.log.Debug("countries table empty, using embedded catalog")
		countries = c.fallback
	}
	c.cache.Set(catalogCacheKey, countries, catalogTTL)
	return countries, nil
}

func (c *catalog) KnownCodes(ctx context.Context) ([]string, error) {
	countries, err := c.Countries(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(countries))
	for _, country := range countries {
		codes = append(codes, country.Code)
	}
	return codes, nil
}

func (c *catalog) Lookup(ctx context.Context, code string) (domain.Country, bool, error) {
	countries, err := c.Countries(ctx)
	if err != nil {
		return domain.Country{}, false, err
	}
	code = domain.NormalizeCode(code)
	for _, country := range countries {
		if country.Code == code {
			return country, true, nil
		}
	}
	return domain.Country{}, false, nil
}
