package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/responsiv/pay/internal/customer/domain"
	"github.com/responsiv/pay/internal/customer/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCustomerService(t *testing.T) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestCreateCustomer(t *testing.T) {
	svc := setupCustomerService(t)
	ctx := context.Background()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:     "  Ada Lovelace  ",
		Email:    "ada@example.com",
		Currency: "usd",
	})
	require.NoError(t, err)
	assert.NotZero(t, customer.ID)
	assert.Equal(t, "Ada Lovelace", customer.Name)
	assert.Equal(t, "USD", customer.Currency)

	got, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: customer.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := setupCustomerService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "   ", Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Bob", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestGetCustomerErrors(t *testing.T) {
	svc := setupCustomerService(t)
	ctx := context.Background()

	_, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: "garbage"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.GetByID(ctx, domain.GetCustomerRequest{ID: snowflake.ID(424242).String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCustomersPagination(t *testing.T) {
	svc := setupCustomerService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{
			Name:     fmt.Sprintf("Customer %d", i),
			Email:    fmt.Sprintf("c%d@example.com", i),
			Currency: "EUR",
		})
		require.NoError(t, err)
		// Cursor ordering ties on created_at; keep timestamps distinct.
		time.Sleep(2 * time.Millisecond)
	}

	all, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, all.Customers, 5)
	assert.False(t, all.HasMore)

	// Newest first.
	assert.Equal(t, "Customer 4", all.Customers[0].Name)

	first, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, first.Customers, 3)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextPageToken)
}

func TestListCustomersFilter(t *testing.T) {
	svc := setupCustomerService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Grace", Email: "grace@example.com", Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Hedy", Email: "hedy@example.com", Currency: "EUR"})
	require.NoError(t, err)

	resp, err := svc.List(ctx, domain.ListCustomerRequest{Currency: "EUR"})
	require.NoError(t, err)
	require.Len(t, resp.Customers, 1)
	assert.Equal(t, "Hedy", resp.Customers[0].Name)

	resp, err = svc.List(ctx, domain.ListCustomerRequest{Email: "grace@example.com"})
	require.NoError(t, err)
	require.Len(t, resp.Customers, 1)
	assert.Equal(t, "Grace", resp.Customers[0].Name)
}
