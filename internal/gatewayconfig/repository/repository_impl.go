package repository

import (
	"context"
	"time"

	"github.com/responsiv/pay/internal/gatewayconfig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, provider string) (*domain.GatewayConfig, error) {
	var item domain.GatewayConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, config, is_active, created_at, updated_at
		 FROM gateway_configs
		 WHERE provider = ?
		 LIMIT 1`,
		provider,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.GatewayConfig, error) {
	var items []domain.GatewayConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, config, is_active, created_at, updated_at
		 FROM gateway_configs
		 ORDER BY provider`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, config *domain.GatewayConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO gateway_configs (id, provider, config, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider) DO UPDATE
		 SET config = EXCLUDED.config,
		     is_active = EXCLUDED.is_active,
		     updated_at = EXCLUDED.updated_at`,
		config.ID,
		config.Provider,
		config.Config,
		config.IsActive,
		config.CreatedAt,
		config.UpdatedAt,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, provider string, isActive bool, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE gateway_configs
		 SET is_active = ?, updated_at = ?
		 WHERE provider = ?`,
		isActive,
		updatedAt,
		provider,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
