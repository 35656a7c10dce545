package domain

import "errors"

// Shared error taxonomy. Provider-specific failures are translated to
// these at the adapter boundary.
var (
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrGatewayRejected     = errors.New("gateway_rejected")
	ErrGatewayUnavailable  = errors.New("gateway_unavailable")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrInvalidEvent        = errors.New("invalid_event")
	ErrEventIgnored        = errors.New("event_ignored")
	ErrProviderNotFound    = errors.New("provider_not_found")
	ErrInvalidConfig       = errors.New("invalid_config")
	ErrProfilesUnsupported = errors.New("profiles_unsupported")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidAmount       = errors.New("invalid_amount")
)
