package reference

import (
	"context"

	"github.com/smallbiznis/adminwatch/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ListCountries(ctx context.Context) ([]domain.Country, error) {
	type row struct {
		Code string `gorm:"column:code"`
		Name string `gorm:"column:name"`
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, name FROM countries WHERE is_active = true ORDER BY code`).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	countries := make([]domain.Country, 0, len(rows))
	for _, item := range rows {
		countries = append(countries, domain.Country{
			Code: domain.NormalizeCode(item.Code),
			Name: item.Name,
		})
	}
	return countries, nil
}
