package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/responsiv/pay/internal/tax/domain"
	"github.com/responsiv/pay/internal/tax/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ptrRate(v float64) *float64 { return &v }

func TestComputeTaxExclusive(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		rate   *float64
		want   int64
	}{
		{"ten percent", 2000, ptrRate(0.10), 200},
		{"rounds half up", 1050, ptrRate(0.0725), 76},
		{"nil rate", 2000, nil, 0},
		{"zero rate", 2000, ptrRate(0), 0},
		{"zero amount", 0, ptrRate(0.10), 0},
		{"negative amount", -500, ptrRate(0.10), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeTaxExclusive(tc.amount, tc.rate))
		})
	}
}

func TestComputeTaxInclusive(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		rate   *float64
		want   int64
	}{
		// 1210 gross at 21% VAT carries 210 of tax.
		{"eu vat", 1210, ptrRate(0.21), 210},
		{"jp jct", 1100, ptrRate(0.10), 100},
		{"nil rate", 1210, nil, 0},
		{"zero amount", 0, ptrRate(0.21), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeTaxInclusive(tc.amount, tc.rate))
		})
	}
}

func setupTaxService(t *testing.T) (taxdomain.Service, taxdomain.Resolver) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&taxdomain.TaxClass{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.NewRepository(db)
	svc := NewService(managementParams{
		Log:        zap.NewNop(),
		GenID:      node,
		Repository: repo,
	})
	resolver := NewResolver(resolverParam{Repository: repo})
	return svc, resolver
}

func TestCreateTaxClass(t *testing.T) {
	svc, _ := setupTaxService(t)
	ctx := context.Background()

	class, err := svc.Create(ctx, taxdomain.CreateRequest{
		Name:    "UK VAT",
		Code:    "uk_vat",
		TaxMode: taxdomain.TaxModeInclusive,
		Rate:    ptrRate(0.20),
	})
	require.NoError(t, err)
	assert.Equal(t, "UK_VAT", class.Code)
	assert.True(t, class.IsEnabled)

	_, err = svc.Create(ctx, taxdomain.CreateRequest{
		Name:    "",
		Code:    "X",
		TaxMode: taxdomain.TaxModeExclusive,
	})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidName)

	_, err = svc.Create(ctx, taxdomain.CreateRequest{
		Name:    "Broken",
		Code:    "BROKEN",
		TaxMode: "sideways",
	})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidTaxMode)

	_, err = svc.Create(ctx, taxdomain.CreateRequest{
		Name:    "Negative",
		Code:    "NEG",
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    ptrRate(-0.1),
	})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidTaxRate)
}

func TestUpdateTaxClass(t *testing.T) {
	svc, _ := setupTaxService(t)
	ctx := context.Background()

	class, err := svc.Create(ctx, taxdomain.CreateRequest{
		Name:    "Sales Tax",
		Code:    "SALES",
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    ptrRate(0.05),
	})
	require.NoError(t, err)

	disabled := false
	updated, err := svc.Update(ctx, taxdomain.UpdateRequest{
		ID:        class.ID.String(),
		Rate:      ptrRate(0.07),
		IsEnabled: &disabled,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.07, *updated.Rate)
	assert.False(t, updated.IsEnabled)
	assert.Equal(t, "SALES", updated.Code)

	_, err = svc.Update(ctx, taxdomain.UpdateRequest{ID: "not-a-number"})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidID)

	_, err = svc.Update(ctx, taxdomain.UpdateRequest{ID: snowflake.ID(987654).String()})
	assert.ErrorIs(t, err, taxdomain.ErrNotFound)
}

func TestResolveClass(t *testing.T) {
	svc, resolver := setupTaxService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, taxdomain.CreateRequest{
		Name:    "GST",
		Code:    "SG_GST",
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    ptrRate(0.09),
	})
	require.NoError(t, err)

	class, err := resolver.ResolveClass(ctx, "sg_gst")
	require.NoError(t, err)
	require.NotNil(t, class)
	assert.Equal(t, created.ID, class.ID)

	// The no-tax sentinel and unknown codes both resolve to nil.
	class, err = resolver.ResolveClass(ctx, taxdomain.TaxCodeNone)
	require.NoError(t, err)
	assert.Nil(t, class)

	class, err = resolver.ResolveClass(ctx, "MISSING")
	require.NoError(t, err)
	assert.Nil(t, class)

	// Disabled classes stop applying.
	disabled := false
	_, err = svc.Update(ctx, taxdomain.UpdateRequest{ID: created.ID.String(), IsEnabled: &disabled})
	require.NoError(t, err)

	class, err = resolver.ResolveClass(ctx, "SG_GST")
	require.NoError(t, err)
	assert.Nil(t, class)
}
