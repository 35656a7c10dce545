package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"gorm.io/gorm"
)

func rate(v float64) *float64 { return &v }

func defaultTaxClasses() []taxdomain.TaxClass {
	return []taxdomain.TaxClass{
		{Name: "No tax", Code: taxdomain.TaxCodeNone, TaxMode: taxdomain.TaxModeExclusive},
		{Name: "US sales tax", Code: taxdomain.TaxCodeUSSalesTax, TaxMode: taxdomain.TaxModeExclusive, Rate: rate(0.0725)},
		{Name: "EU VAT standard", Code: taxdomain.TaxCodeEUVATStandard, TaxMode: taxdomain.TaxModeInclusive, Rate: rate(0.21)},
		{Name: "Singapore GST", Code: taxdomain.TaxCodeSGGST, TaxMode: taxdomain.TaxModeExclusive, Rate: rate(0.09)},
		{Name: "Japan consumption tax", Code: taxdomain.TaxCodeJPJCT, TaxMode: taxdomain.TaxModeInclusive, Rate: rate(0.10)},
	}
}

// EnsureDefaultTaxClasses seeds the built-in tax classes so a fresh
// install can price invoices without any admin setup. Existing rows
// are left untouched.
func EnsureDefaultTaxClasses(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, class := range defaultTaxClasses() {
			now := time.Now().UTC()
			class.ID = node.Generate()
			class.IsEnabled = true
			class.CreatedAt = now
			class.UpdatedAt = now

			err := tx.WithContext(ctx).Exec(`
				INSERT INTO tax_classes (id, name, code, tax_mode, rate, description, is_enabled, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (code) DO NOTHING
			`, class.ID, class.Name, class.Code, class.TaxMode, class.Rate, class.Description, class.IsEnabled, class.CreatedAt, class.UpdatedAt).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
