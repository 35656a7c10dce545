package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/profile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *domain.PaymentProfile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_profiles (
			id, customer_id, provider, gateway_token,
			masked_pan, brand, exp_month, exp_year,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.CustomerID,
		profile.Provider,
		profile.GatewayToken,
		profile.MaskedPAN,
		profile.Brand,
		profile.ExpMonth,
		profile.ExpYear,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentProfile, error) {
	var profile domain.PaymentProfile
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, provider, gateway_token,
		        masked_pan, brand, exp_month, exp_year,
		        created_at, updated_at, deleted_at
		 FROM payment_profiles
		 WHERE id = ? AND deleted_at IS NULL`,
		id,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.PaymentProfile, error) {
	var profiles []domain.PaymentProfile
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, provider, gateway_token,
		        masked_pan, brand, exp_month, exp_year,
		        created_at, updated_at, deleted_at
		 FROM payment_profiles
		 WHERE customer_id = ? AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC`,
		customerID,
	).Scan(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repo) ReplaceToken(ctx context.Context, db *gorm.DB, profile *domain.PaymentProfile) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_profiles
		 SET gateway_token = ?, masked_pan = ?, brand = ?,
		     exp_month = ?, exp_year = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		profile.GatewayToken,
		profile.MaskedPAN,
		profile.Brand,
		profile.ExpMonth,
		profile.ExpYear,
		profile.UpdatedAt,
		profile.ID,
	).Error
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, deletedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_profiles
		 SET deleted_at = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		deletedAt,
		deletedAt,
		id,
	).Error
}
