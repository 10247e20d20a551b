package payment

import (
	"context"
	"errors"
)

// IntentStatus mirrors the gateway's payment-intent lifecycle states.
type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentRequiresCapture       IntentStatus = "requires_capture"
	IntentCanceled              IntentStatus = "canceled"
)

// InFlight reports whether a payment attempt is actively progressing and must
// not be interfered with.
func (s IntentStatus) InFlight() bool {
	switch s {
	case IntentProcessing, IntentRequiresAction, IntentRequiresCapture:
		return true
	}
	return false
}

// Reusable reports whether an existing intent can still be completed by the
// customer, so a new one must not be created for the same order.
func (s IntentStatus) Reusable() bool {
	return s != IntentCanceled && s != IntentSucceeded
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	Amount       int64
}

const RefundSucceeded = "succeeded"

type Refund struct {
	ID     string
	Amount int64
	Status string
}

var ErrIntentNotFound = errors.New("payment intent not found")

// Gateway is the boundary to the external payment provider. Amounts are
// always in the smallest currency unit.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	UpdateIntentAmount(ctx context.Context, id string, amount int64) (*Intent, error)
	// CancelIntent is idempotent: cancelling an intent that has already
	// succeeded or is mid-flight returns its current state instead of erroring.
	CancelIntent(ctx context.Context, id string) (*Intent, error)
	ListRefunds(ctx context.Context, intentID string) ([]Refund, error)
	// FindIntentByOrder searches gateway-side metadata for an intent already
	// tagged with the order id. Returns (nil, nil) when there is none.
	FindIntentByOrder(ctx context.Context, orderID string) (*Intent, error)

	FindOrCreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateInvoice(ctx context.Context, customerID string) (string, error)
	AddInvoiceItem(ctx context.Context, customerID, invoiceID, description string, amount int64) error
	FinalizeInvoice(ctx context.Context, invoiceID string) error
	SendInvoice(ctx context.Context, invoiceID string) error
}
