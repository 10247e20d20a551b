package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-ticketshop/internal/models"
	orderdb "ms-ticketshop/internal/order/db"
	"ms-ticketshop/internal/payment"
	ticketdb "ms-ticketshop/internal/tickets/db"
	"ms-ticketshop/internal/tickets/qrgen"
)

// SyncOrderPaymentStatus pulls the authoritative payment state from the
// gateway and maps it onto the local order. The local order is an eventually
// consistent projection: this runs on every read and is idempotent, so a
// stale gateway snapshot only delays convergence until the next read.
func (s *OrderService) SyncOrderPaymentStatus(ctx context.Context, ord *models.Order) (*models.Order, error) {
	if ord.PaymentIntentID == "" || ord.PaymentStatus == models.PaymentRefunded {
		return ord, nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
	defer cancel()

	intent, err := s.Gateway.RetrieveIntent(gctx, ord.PaymentIntentID)
	if err != nil {
		if errors.Is(err, payment.ErrIntentNotFound) {
			// The cleanup sweep owns the abandoned-order decision.
			s.Logger.Warn("RECONCILE", fmt.Sprintf("Intent %s for order %s no longer exists", ord.PaymentIntentID, ord.ID))
			return ord, nil
		}
		return ord, fmt.Errorf("failed to retrieve intent for order %s: %w", ord.ID, err)
	}

	refunds, err := s.Gateway.ListRefunds(gctx, intent.ID)
	if err != nil {
		return ord, fmt.Errorf("failed to list refunds for order %s: %w", ord.ID, err)
	}

	next := derivePaymentStatus(intent, refunds)
	if next == ord.PaymentStatus {
		return ord, nil
	}
	return s.applyPaymentTransition(ctx, ord, next)
}

// derivePaymentStatus maps gateway truth onto the local status. A full
// succeeded refund wins over whatever the raw intent status says.
func derivePaymentStatus(intent *payment.Intent, refunds []payment.Refund) models.PaymentStatus {
	for _, r := range refunds {
		if r.Status == payment.RefundSucceeded && r.Amount == intent.Amount {
			return models.PaymentRefunded
		}
	}
	switch intent.Status {
	case payment.IntentSucceeded:
		return models.PaymentPaid
	case payment.IntentProcessing,
		payment.IntentRequiresPaymentMethod,
		payment.IntentRequiresConfirmation,
		payment.IntentRequiresAction:
		return models.PaymentPending
	default:
		// canceled and anything unrecognized
		return models.PaymentFailed
	}
}

// applyPaymentTransition is the single place a payment status change lands,
// shared by the read-path reconciler and the cleanup sweep. The local write
// and the matching ticket transitions commit in one short transaction; the
// gateway read that justified them stays outside it.
func (s *OrderService) applyPaymentTransition(ctx context.Context, ord *models.Order, next models.PaymentStatus) (*models.Order, error) {
	updated := *ord
	updated.PaymentStatus = next

	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		orders := orderdb.New(tx)
		inv := ticketdb.New(tx)

		ids, err := orders.TicketIDsByOrder(ctx, updated.ID)
		if err != nil {
			return fmt.Errorf("failed to load ticket ids: %w", err)
		}
		switch next {
		case models.PaymentPaid:
			if _, err := inv.MarkSold(ctx, ids); err != nil {
				return fmt.Errorf("failed to mark tickets sold: %w", err)
			}
		case models.PaymentFailed, models.PaymentRefunded:
			if err := inv.MarkAvailable(ctx, ids); err != nil {
				return fmt.Errorf("failed to release tickets: %w", err)
			}
		}
		return orders.UpdatePaymentState(ctx, &updated)
	})
	if err != nil {
		return ord, fmt.Errorf("failed to apply %s transition for order %s: %w", next, ord.ID, err)
	}

	s.Logger.LogOrder("TRANSITION", updated.ID, fmt.Sprintf("%s -> %s", ord.PaymentStatus, next))

	switch next {
	case models.PaymentPaid:
		s.issueInvoice(ctx, &updated)
		s.generatePasses(ctx, &updated)
		if s.Publisher != nil {
			s.publish(updated, s.Publisher.PublishOrderPaid)
		}
	case models.PaymentFailed:
		if s.Publisher != nil {
			s.publish(updated, s.Publisher.PublishOrderFailed)
		}
	case models.PaymentRefunded:
		if s.Publisher != nil {
			s.publish(updated, s.Publisher.PublishOrderRefunded)
		}
	}
	return &updated, nil
}

// issueInvoice creates, finalizes and sends the gateway invoice for a paid
// order. Best effort by design: the money has already moved, so every failure
// here is logged and swallowed. The stored invoice id keeps it exactly-once.
func (s *OrderService) issueInvoice(ctx context.Context, ord *models.Order) {
	if ord.InvoiceID != "" {
		return
	}

	orders := orderdb.New(s.Bun)
	user, err := orders.UserByID(ctx, ord.UserID)
	if err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: failed to look up user %s: %v", ord.ID, ord.UserID, err))
		return
	}
	items, err := orders.GetOrderItems(ctx, ord.ID)
	if err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: failed to load items: %v", ord.ID, err))
		return
	}
	ticketIDs := make([]string, len(items))
	for i, item := range items {
		ticketIDs[i] = item.TicketID
	}
	tickets, err := ticketdb.New(s.Bun).GetTicketsByIDs(ctx, ticketIDs)
	if err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: failed to load tickets: %v", ord.ID, err))
		return
	}
	ticketByID := make(map[string]models.Ticket, len(tickets))
	for _, t := range tickets {
		ticketByID[t.ID] = t
	}

	gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
	defer cancel()

	customerID, err := s.Gateway.FindOrCreateCustomer(gctx, user.Email, user.FullName)
	if err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: customer lookup failed: %v", ord.ID, err))
		return
	}
	invoiceID, err := s.Gateway.CreateInvoice(gctx, customerID)
	if err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: invoice creation failed: %v", ord.ID, err))
		return
	}
	for _, item := range items {
		t := ticketByID[item.TicketID]
		description := fmt.Sprintf("Ticket %s #%s", t.Title, t.Number)
		if err := s.Gateway.AddInvoiceItem(gctx, customerID, invoiceID, description, MinorUnits(item.FinalPrice)); err != nil {
			s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: failed to add invoice item: %v", ord.ID, err))
			return
		}
	}
	if err := s.Gateway.FinalizeInvoice(gctx, invoiceID); err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: failed to finalize invoice %s: %v", ord.ID, invoiceID, err))
		return
	}
	if err := s.Gateway.SendInvoice(gctx, invoiceID); err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: failed to send invoice %s: %v", ord.ID, invoiceID, err))
		return
	}

	ord.InvoiceID = invoiceID
	if err := orders.UpdatePaymentState(ctx, ord); err != nil {
		s.Logger.Error("INVOICE", fmt.Sprintf("Order %s: failed to store invoice id %s: %v", ord.ID, invoiceID, err))
		return
	}
	s.Logger.LogOrder("INVOICE", ord.ID, fmt.Sprintf("invoice %s sent to %s", invoiceID, user.Email))
}

// generatePasses renders the QR entry pass for every sold ticket. Best effort:
// a failed pass can be regenerated later, it never blocks the payment.
func (s *OrderService) generatePasses(ctx context.Context, ord *models.Order) {
	if s.QR == nil {
		return
	}
	orders := orderdb.New(s.Bun)
	items, err := orders.GetOrderItems(ctx, ord.ID)
	if err != nil {
		s.Logger.Error("PASS", fmt.Sprintf("Order %s: failed to load items: %v", ord.ID, err))
		return
	}
	inv := ticketdb.New(s.Bun)
	for _, item := range items {
		if item.FileKey != "" {
			continue
		}
		ticket, err := inv.GetTicketByID(ctx, item.TicketID)
		if err != nil {
			s.Logger.Error("PASS", fmt.Sprintf("Order %s: failed to load ticket %s: %v", ord.ID, item.TicketID, err))
			continue
		}
		png, err := s.QR.GenerateTicketPass(ticket.ID, ord.ID, ticket.Number)
		if err != nil {
			s.Logger.Error("PASS", fmt.Sprintf("Order %s: failed to render pass for ticket %s: %v", ord.ID, ticket.ID, err))
			continue
		}
		key := qrgen.FileKey(ord.ID, ticket.ID)
		if err := orders.UpdateItemArtifact(ctx, item.ID, key, png); err != nil {
			s.Logger.Error("PASS", fmt.Sprintf("Order %s: failed to store pass %s: %v", ord.ID, key, err))
		}
	}
}
