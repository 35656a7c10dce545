// Package domain contains the stored payment profile model. The
// gateway token is opaque; only the issuing provider can interpret it.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	"gorm.io/gorm"
)

type PaymentProfile struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	Provider   string       `gorm:"type:text;not null" json:"provider"`
	// GatewayToken is replaced atomically on update; a failed update
	// leaves the prior token in place.
	GatewayToken string     `gorm:"type:text;not null" json:"-"`
	MaskedPAN    string     `gorm:"type:text" json:"masked_pan,omitempty"`
	Brand        string     `gorm:"type:text" json:"brand,omitempty"`
	ExpMonth     int        `gorm:"" json:"exp_month,omitempty"`
	ExpYear      int        `gorm:"" json:"exp_year,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt    *time.Time `gorm:"index" json:"-"`
}

func (PaymentProfile) TableName() string { return "payment_profiles" }

// Token converts the stored record into the adapter-facing token.
func (p *PaymentProfile) Token() gatewaydomain.ProfileToken {
	return gatewaydomain.ProfileToken{
		Token:     p.GatewayToken,
		MaskedPAN: p.MaskedPAN,
		Brand:     p.Brand,
		ExpMonth:  p.ExpMonth,
		ExpYear:   p.ExpYear,
	}
}

type CreateProfileRequest struct {
	Provider string
	Data     gatewaydomain.PaymentData
}

// FieldDescriptor describes one input of the hosted profile form.
type FieldDescriptor struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type Service interface {
	Create(ctx context.Context, callerID snowflake.ID, req CreateProfileRequest) (*PaymentProfile, error)

	// Update tokenizes the new payment data and swaps the stored
	// token. The prior token survives any failure.
	Update(ctx context.Context, callerID, profileID snowflake.ID, data gatewaydomain.PaymentData) (*PaymentProfile, error)

	// Delete always removes the local record for the owner. A failed
	// remote delete is logged, never surfaced.
	Delete(ctx context.Context, callerID, profileID snowflake.ID) error

	Get(ctx context.Context, profileID snowflake.ID) (*PaymentProfile, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]PaymentProfile, error)
	FormFields(ctx context.Context, profileID snowflake.ID) ([]FieldDescriptor, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *PaymentProfile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentProfile, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]PaymentProfile, error)
	ReplaceToken(ctx context.Context, db *gorm.DB, profile *PaymentProfile) error
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, deletedAt time.Time) error
}

var (
	ErrNotFound = errors.New("profile_not_found")
	ErrNotOwner = errors.New("not_profile_owner")
)
