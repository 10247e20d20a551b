package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/invoice"
	"github.com/stripe/stripe-go/v74/invoiceitem"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"

	"ms-ticketshop/internal/logger"
)

const metadataOrderID = "order_id"

// InitStripe initializes the Stripe API with the secret key.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	Currency string
	Logger   *logger.Logger
}

func NewStripeGateway(currency string, log *logger.Logger) *StripeGateway {
	return &StripeGateway{Currency: currency, Logger: log}
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       IntentStatus(pi.Status),
		Amount:       pi.Amount,
	}
}

func isMissing(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == 404
	}
	return false
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(g.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		g.Logger.Error("PAYMENT", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := paymentintent.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		if isMissing(err) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", id, err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) UpdateIntentAmount(ctx context.Context, id string, amount int64) (*Intent, error) {
	pi, err := paymentintent.Update(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
		Amount: stripe.Int64(amount),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update payment intent %s: %w", id, err)
	}
	return toIntent(pi), nil
}

// CancelIntent cancels an intent. When Stripe reports the intent is in a state
// that cannot be cancelled (already succeeded, mid-capture), the current
// intent is returned instead so callers can observe what raced ahead.
func (g *StripeGateway) CancelIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := paymentintent.Cancel(id, &stripe.PaymentIntentCancelParams{
		Params:             stripe.Params{Context: ctx},
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
			g.Logger.Warn("PAYMENT", fmt.Sprintf("Intent %s not cancelable, fetching current state", id))
			return g.RetrieveIntent(ctx, id)
		}
		if isMissing(err) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to cancel payment intent %s: %w", id, err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) ListRefunds(ctx context.Context, intentID string) ([]Refund, error) {
	params := &stripe.RefundListParams{
		ListParams:    stripe.ListParams{Context: ctx},
		PaymentIntent: stripe.String(intentID),
	}
	refunds := []Refund{}
	iter := refund.List(params)
	for iter.Next() {
		r := iter.Refund()
		refunds = append(refunds, Refund{ID: r.ID, Amount: r.Amount, Status: string(r.Status)})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list refunds for intent %s: %w", intentID, err)
	}
	return refunds, nil
}

func (g *StripeGateway) FindIntentByOrder(ctx context.Context, orderID string) (*Intent, error) {
	params := &stripe.PaymentIntentSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("metadata['%s']:'%s'", metadataOrderID, orderID),
		},
	}
	iter := paymentintent.Search(params)
	for iter.Next() {
		return toIntent(iter.PaymentIntent()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to search payment intents for order %s: %w", orderID, err)
	}
	return nil, nil
}

func (g *StripeGateway) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	listParams := &stripe.CustomerListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Email:      stripe.String(email),
	}
	iter := customer.List(listParams)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to list customers for %s: %w", email, err)
	}

	c, err := customer.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create customer for %s: %w", email, err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateInvoice(ctx context.Context, customerID string) (string, error) {
	inv, err := invoice.New(&stripe.InvoiceParams{
		Params:           stripe.Params{Context: ctx},
		Customer:         stripe.String(customerID),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:     stripe.Int64(30),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv.ID, nil
}

func (g *StripeGateway) AddInvoiceItem(ctx context.Context, customerID, invoiceID, description string, amount int64) error {
	_, err := invoiceitem.New(&stripe.InvoiceItemParams{
		Params:      stripe.Params{Context: ctx},
		Customer:    stripe.String(customerID),
		Invoice:     stripe.String(invoiceID),
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(g.Currency),
		Description: stripe.String(description),
	})
	if err != nil {
		return fmt.Errorf("failed to add invoice item: %w", err)
	}
	return nil
}

func (g *StripeGateway) FinalizeInvoice(ctx context.Context, invoiceID string) error {
	_, err := invoice.FinalizeInvoice(invoiceID, &stripe.InvoiceFinalizeInvoiceParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return fmt.Errorf("failed to finalize invoice %s: %w", invoiceID, err)
	}
	return nil
}

func (g *StripeGateway) SendInvoice(ctx context.Context, invoiceID string) error {
	_, err := invoice.SendInvoice(invoiceID, &stripe.InvoiceSendInvoiceParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return fmt.Errorf("failed to send invoice %s: %w", invoiceID, err)
	}
	return nil
}
