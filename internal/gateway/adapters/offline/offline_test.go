package offline

import (
	"context"
	"testing"

	"github.com/responsiv/pay/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateReturnsConfiguredDetails(t *testing.T) {
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{Config: map[string]any{
		"payment_details": "Wire to IBAN DE89 3704 0044 0532 0130 00, reference the invoice number.",
	}})
	require.NoError(t, err)

	instruction, err := adapter.Initiate(context.Background(), domain.ChargeOrder{})
	require.NoError(t, err)
	assert.Equal(t, domain.InstructionManual, instruction.Kind)
	assert.Contains(t, instruction.Message, "DE89 3704 0044")
}

func TestInitiateFallsBackToDefaultMessage(t *testing.T) {
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{Config: map[string]any{}})
	require.NoError(t, err)

	instruction, err := adapter.Initiate(context.Background(), domain.ChargeOrder{})
	require.NoError(t, err)
	assert.NotEmpty(t, instruction.Message)
}

func TestCallbacksAreIgnored(t *testing.T) {
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{})
	require.NoError(t, err)

	_, err = adapter.HandleCallback(context.Background(), []byte("anything"), nil)
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}
