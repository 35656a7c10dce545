package service

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/config"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	"github.com/responsiv/pay/internal/gatewayconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Cfg   config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	// AES-GCM key derived from the config secret; nil disables storage.
	encKey []byte
}

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func NewService(p Params) domain.Service {
	secret := strings.TrimSpace(p.Cfg.GatewayConfigSecret)
	var key []byte
	if secret != "" {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}

	return &Service{
		db:     p.DB,
		log:    p.Log.Named("gatewayconfig.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		encKey: key,
	}
}

func (s *Service) Upsert(ctx context.Context, provider string, cfg map[string]any) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return gatewaydomain.ErrProviderNotFound
	}
	if len(cfg) == 0 {
		return gatewaydomain.ErrInvalidConfig
	}

	sealed, err := s.encrypt(cfg)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record := &domain.GatewayConfig{
		ID:        s.genID.Generate(),
		Provider:  provider,
		Config:    sealed,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.repo.Upsert(ctx, s.db, record)
}

func (s *Service) Resolve(ctx context.Context, provider string) (map[string]any, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	record, err := s.repo.Find(ctx, s.db, provider)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	if !record.IsActive {
		return nil, domain.ErrNotActive
	}
	return s.decrypt(record.Config)
}

func (s *Service) SetActive(ctx context.Context, provider string, active bool) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	updated, err := s.repo.UpdateStatus(ctx, s.db, provider, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, known []string) ([]domain.ProviderStatus, error) {
	records, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	byProvider := map[string]domain.GatewayConfig{}
	for _, record := range records {
		byProvider[record.Provider] = record
	}

	out := make([]domain.ProviderStatus, 0, len(known))
	for _, provider := range known {
		status := domain.ProviderStatus{Provider: provider}
		if record, ok := byProvider[provider]; ok {
			status.Configured = true
			status.IsActive = record.IsActive
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *Service) encrypt(cfg map[string]any) (datatypes.JSON, error) {
	if len(s.encKey) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}

	plain, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.encKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plain, nil)

	sealed, err := json.Marshal(encryptedPayload{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(sealed), nil
}

func (s *Service) decrypt(encrypted datatypes.JSON) (map[string]any, error) {
	if len(s.encKey) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}
	if len(encrypted) == 0 {
		return nil, gatewaydomain.ErrInvalidConfig
	}

	var payload encryptedPayload
	if err := json.Unmarshal(encrypted, &payload); err != nil {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	if payload.Version != 1 {
		return nil, gatewaydomain.ErrInvalidConfig
	}

	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, gatewaydomain.ErrInvalidConfig
	}

	block, err := aes.NewCipher(s.encKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, gatewaydomain.ErrInvalidConfig
	}

	var out map[string]any
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	if len(out) == 0 {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	return out, nil
}
