package domain

// allowedTransitions encodes the invoice lifecycle. Anything not
// listed is rejected with ErrInvalidStateTransition.
var allowedTransitions = map[InvoiceStatus]map[InvoiceStatus]bool{
	InvoiceStatusDraft: {
		InvoiceStatusPending:   true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusPending: {
		InvoiceStatusPaid:      true,
		InvoiceStatusFailed:    true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusPaid: {
		InvoiceStatusPartiallyRefunded: true,
		InvoiceStatusRefunded:          true,
	},
	InvoiceStatusPartiallyRefunded: {
		InvoiceStatusPartiallyRefunded: true,
		InvoiceStatusRefunded:          true,
	},
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another.
func CanTransition(from, to InvoiceStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}
