package domain

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to InvoiceStatus }{
		{InvoiceStatusDraft, InvoiceStatusPending},
		{InvoiceStatusDraft, InvoiceStatusCancelled},
		{InvoiceStatusPending, InvoiceStatusPaid},
		{InvoiceStatusPending, InvoiceStatusFailed},
		{InvoiceStatusPending, InvoiceStatusCancelled},
		{InvoiceStatusPaid, InvoiceStatusPartiallyRefunded},
		{InvoiceStatusPaid, InvoiceStatusRefunded},
		{InvoiceStatusPartiallyRefunded, InvoiceStatusPartiallyRefunded},
		{InvoiceStatusPartiallyRefunded, InvoiceStatusRefunded},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be allowed", tt.from, tt.to)
		}
	}

	forbidden := []struct{ from, to InvoiceStatus }{
		{InvoiceStatusDraft, InvoiceStatusPaid},
		{InvoiceStatusDraft, InvoiceStatusRefunded},
		{InvoiceStatusPaid, InvoiceStatusPending},
		{InvoiceStatusPaid, InvoiceStatusCancelled},
		{InvoiceStatusCancelled, InvoiceStatusPending},
		{InvoiceStatusFailed, InvoiceStatusPaid},
		{InvoiceStatusRefunded, InvoiceStatusPartiallyRefunded},
	}
	for _, tt := range forbidden {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be rejected", tt.from, tt.to)
		}
	}
}
