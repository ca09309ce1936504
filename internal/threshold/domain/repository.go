package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	MetricType string
	ActiveOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *Rule) error
	Update(ctx context.Context, db *gorm.DB, rule *Rule) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rule, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Rule, error)
	// StrugglingRuleRefs returns the triggering rule ids of every struggling country.
	StrugglingRuleRefs(ctx context.Context, db *gorm.DB) ([]string, error)
}
