package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Well-known tax class codes. Codes are engine-facing identifiers;
// do not rename or repurpose once referenced by invoice items.
const (
	TaxCodeNone          = "NO_TAX"
	TaxCodeUSSalesTax    = "US_SALES_TAX"
	TaxCodeEUVATStandard = "EU_VAT_STANDARD"
	TaxCodeSGGST         = "SG_GST"
	TaxCodeJPJCT         = "JP_JCT"
)

// TaxMode represents how tax is applied to an amount.
type TaxMode string

const (
	TaxModeExclusive TaxMode = "exclusive" // amount + tax
	TaxModeInclusive TaxMode = "inclusive" // amount already includes tax
)

// TaxClass is a named tax policy referenced by invoice items.
// code is stable and immutable once created; name is editable.
type TaxClass struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	Name    string       `gorm:"type:text;not null" json:"name"`
	Code    string       `gorm:"type:text;not null;uniqueIndex:ux_tax_classes_code" json:"code"`
	TaxMode TaxMode      `gorm:"column:tax_mode;type:text;not null" json:"tax_mode"`
	// Rate is a fraction (0.2000 for 20%), nil for placeholder classes.
	Rate *float64 `gorm:"type:numeric(6,4)" json:"rate,omitempty"`

	Description *string `gorm:"type:text" json:"description,omitempty"`
	IsEnabled   bool    `gorm:"column:is_enabled;not null;default:true" json:"is_enabled"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TaxClass) TableName() string { return "tax_classes" }

func (t *TaxClass) Validate() error {
	if t.Code == "" {
		return ErrInvalidTaxCode
	}
	if t.TaxMode != TaxModeExclusive && t.TaxMode != TaxModeInclusive {
		return ErrInvalidTaxMode
	}
	if t.Rate != nil && *t.Rate < 0 {
		return ErrInvalidTaxRate
	}
	return nil
}
