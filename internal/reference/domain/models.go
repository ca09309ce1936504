package domain

import (
	"context"
	"strings"
)

// Country is an entry of the known-country catalog.
type Country struct {
	Code string `json:"code" toml:"code"`
	Name string `json:"name" toml:"name"`
	Flag string `json:"flag" toml:"-"`
}

type Repository interface {
	ListCountries(ctx context.Context) ([]Country, error)
}

// Catalog resolves the set of countries the marketplace operates in.
type Catalog interface {
	Countries(ctx context.Context) ([]Country, error)
	KnownCodes(ctx context.Context) ([]string, error)
	Lookup(ctx context.Context, code string) (Country, bool, error)
}

// NormalizeCode upper-cases and trims an ISO-3166 alpha-2 code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FlagEmoji renders the regional-indicator pair for a two-letter code.
func FlagEmoji(code string) string {
	code = NormalizeCode(code)
	if len(code) != 2 {
		return ""
	}
	var b strings.Builder
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}
