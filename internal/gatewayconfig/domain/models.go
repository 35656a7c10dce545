// Package domain contains the stored gateway configuration model.
// Credentials are sealed with AES-GCM before they reach the database.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GatewayConfig struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider  string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_gateway_configs_provider"`
	Config    datatypes.JSON `json:"-" gorm:"type:jsonb;not null"`
	IsActive  bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (GatewayConfig) TableName() string { return "gateway_configs" }

// ProviderStatus is the admin-facing view of a configured provider.
type ProviderStatus struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
	IsActive   bool   `json:"is_active"`
}

type Service interface {
	Upsert(ctx context.Context, provider string, config map[string]any) error
	Resolve(ctx context.Context, provider string) (map[string]any, error)
	SetActive(ctx context.Context, provider string, active bool) error
	List(ctx context.Context, known []string) ([]ProviderStatus, error)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, provider string) (*GatewayConfig, error)
	List(ctx context.Context, db *gorm.DB) ([]GatewayConfig, error)
	Upsert(ctx context.Context, db *gorm.DB, config *GatewayConfig) error
	UpdateStatus(ctx context.Context, db *gorm.DB, provider string, isActive bool, updatedAt time.Time) (bool, error)
}

var (
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrNotFound             = errors.New("gateway_config_not_found")
	ErrNotActive            = errors.New("gateway_config_not_active")
)
