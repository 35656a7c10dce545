package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, class *taxdomain.TaxClass) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO tax_classes (
			id, name, code, tax_mode, rate, description, is_enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		class.ID,
		class.Name,
		class.Code,
		class.TaxMode,
		class.Rate,
		class.Description,
		class.IsEnabled,
		class.CreatedAt,
		class.UpdatedAt,
	).Error
}

func (r *repository) FindByCode(ctx context.Context, code string) (*taxdomain.TaxClass, error) {
	var class taxdomain.TaxClass
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, code, tax_mode, rate, description, is_enabled, created_at, updated_at
		 FROM tax_classes
		 WHERE code = ?
		 LIMIT 1`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&class).Error
	if err != nil {
		return nil, err
	}
	if class.ID == 0 {
		return nil, nil
	}
	return &class, nil
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*taxdomain.TaxClass, error) {
	var class taxdomain.TaxClass
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, code, tax_mode, rate, description, is_enabled, created_at, updated_at
		 FROM tax_classes
		 WHERE id = ?`,
		id,
	).Scan(&class).Error
	if err != nil {
		return nil, err
	}
	if class.ID == 0 {
		return nil, nil
	}
	return &class, nil
}

func (r *repository) List(ctx context.Context, filter taxdomain.ListFilter) ([]taxdomain.TaxClass, error) {
	var items []taxdomain.TaxClass
	stmt := r.db.WithContext(ctx).Model(&taxdomain.TaxClass{})

	if filter.Code != "" {
		stmt = stmt.Where("code = ?", filter.Code)
	}
	if filter.IsEnabled != nil {
		stmt = stmt.Where("is_enabled = ?", *filter.IsEnabled)
	}

	if err := stmt.Order("code asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Update(ctx context.Context, class *taxdomain.TaxClass) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE tax_classes
		 SET name = ?, tax_mode = ?, rate = ?, description = ?, is_enabled = ?, updated_at = ?
		 WHERE id = ?`,
		class.Name,
		class.TaxMode,
		class.Rate,
		class.Description,
		class.IsEnabled,
		class.UpdatedAt,
		class.ID,
	).Error
}
