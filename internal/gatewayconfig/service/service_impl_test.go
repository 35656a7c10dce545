package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/config"
	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	"github.com/responsiv/pay/internal/gatewayconfig/domain"
	"github.com/responsiv/pay/internal/gatewayconfig/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupConfigService(t *testing.T, secret string) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.GatewayConfig{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Cfg:   config.Config{GatewayConfigSecret: secret},
	})
}

func TestUpsertAndResolveRoundTrip(t *testing.T) {
	svc := setupConfigService(t, "test-secret")
	ctx := context.Background()

	original := map[string]any{
		"secret_key":  "sk_test_abc",
		"environment": "sandbox",
	}
	require.NoError(t, svc.Upsert(ctx, "Stripe", original))

	resolved, err := svc.Resolve(ctx, "stripe")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_abc", resolved["secret_key"])
	assert.Equal(t, "sandbox", resolved["environment"])

	// Upsert replaces the stored credentials wholesale.
	require.NoError(t, svc.Upsert(ctx, "stripe", map[string]any{"secret_key": "sk_live_xyz"}))
	resolved, err = svc.Resolve(ctx, "stripe")
	require.NoError(t, err)
	assert.Equal(t, "sk_live_xyz", resolved["secret_key"])
	assert.NotContains(t, resolved, "environment")
}

func TestStoredConfigIsNotPlaintext(t *testing.T) {
	svc := setupConfigService(t, "test-secret")
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, "skrill", map[string]any{"secret_word": "hunter2"}))

	impl, ok := svc.(*Service)
	require.True(t, ok)
	record, err := impl.repo.Find(ctx, impl.db, "skrill")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.NotContains(t, string(record.Config), "hunter2")
}

func TestUpsertValidation(t *testing.T) {
	svc := setupConfigService(t, "test-secret")
	ctx := context.Background()

	err := svc.Upsert(ctx, "  ", map[string]any{"k": "v"})
	assert.ErrorIs(t, err, gatewaydomain.ErrProviderNotFound)

	err = svc.Upsert(ctx, "stripe", map[string]any{})
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidConfig)
}

func TestResolveUnknownAndInactive(t *testing.T) {
	svc := setupConfigService(t, "test-secret")
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "offline")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Upsert(ctx, "paypal-pro", map[string]any{"api_username": "u"}))
	require.NoError(t, svc.SetActive(ctx, "paypal-pro", false))

	_, err = svc.Resolve(ctx, "paypal-pro")
	assert.ErrorIs(t, err, domain.ErrNotActive)

	require.NoError(t, svc.SetActive(ctx, "paypal-pro", true))
	_, err = svc.Resolve(ctx, "paypal-pro")
	assert.NoError(t, err)

	err = svc.SetActive(ctx, "never-configured", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMissingEncryptionKey(t *testing.T) {
	svc := setupConfigService(t, "")

	err := svc.Upsert(context.Background(), "stripe", map[string]any{"k": "v"})
	assert.ErrorIs(t, err, domain.ErrEncryptionKeyMissing)
}

func TestListMergesKnownProviders(t *testing.T) {
	svc := setupConfigService(t, "test-secret")
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, "stripe", map[string]any{"secret_key": "sk"}))
	require.NoError(t, svc.Upsert(ctx, "skrill", map[string]any{"secret_word": "w"}))
	require.NoError(t, svc.SetActive(ctx, "skrill", false))

	statuses, err := svc.List(ctx, []string{"stripe", "skrill", "offline"})
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	byProvider := map[string]domain.ProviderStatus{}
	for _, st := range statuses {
		byProvider[st.Provider] = st
	}
	assert.True(t, byProvider["stripe"].Configured)
	assert.True(t, byProvider["stripe"].IsActive)
	assert.True(t, byProvider["skrill"].Configured)
	assert.False(t, byProvider["skrill"].IsActive)
	assert.False(t, byProvider["offline"].Configured)
}
