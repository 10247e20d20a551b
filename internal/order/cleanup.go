package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-ticketshop/internal/logger"
	"ms-ticketshop/internal/models"
	orderdb "ms-ticketshop/internal/order/db"
	"ms-ticketshop/internal/payment"
)

// Scheduler periodically resolves orders stuck in PENDING past the expiration
// window, so abandoned checkouts release their tickets.
type Scheduler struct {
	Service  *OrderService
	Interval time.Duration
	Logger   *logger.Logger
}

func NewScheduler(svc *OrderService, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{Service: svc, Interval: interval, Logger: log}
}

// Run blocks until ctx is cancelled, sweeping on a fixed cadence.
func (c *Scheduler) Run(ctx context.Context) {
	c.Logger.Info("CLEANUP", fmt.Sprintf("Sweeping stuck orders every %s", c.Interval))
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("CLEANUP", "Scheduler stopped")
			return
		case <-ticker.C:
			resolved, err := c.Service.SweepExpiredOrders(ctx)
			if err != nil {
				c.Logger.Error("CLEANUP", fmt.Sprintf("Sweep failed: %v", err))
				continue
			}
			if resolved > 0 {
				c.Logger.Info("CLEANUP", fmt.Sprintf("Resolved %d expired orders", resolved))
			}
		}
	}
}

// SweepExpiredOrders resolves every PENDING order older than the expiration
// window. Orders are handled independently: one failure is logged and the
// sweep moves on.
func (s *OrderService) SweepExpiredOrders(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.expireAfter)
	expired, err := orderdb.New(s.Bun).FindExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired orders: %w", err)
	}

	resolved := 0
	for i := range expired {
		if err := s.resolveExpiredOrder(ctx, &expired[i]); err != nil {
			s.Logger.Error("CLEANUP", fmt.Sprintf("Order %s: %v", expired[i].ID, err))
			continue
		}
		resolved++
	}
	return resolved, nil
}

// resolveExpiredOrder decides what to do with one stuck order based on the
// gateway's view of its intent.
func (s *OrderService) resolveExpiredOrder(ctx context.Context, ord *models.Order) error {
	if ord.PaymentIntentID == "" {
		// Abandoned before payment even started.
		s.Logger.LogSweep(ord.ID, "no payment intent, failing abandoned order")
		_, err := s.applyPaymentTransition(ctx, ord, models.PaymentFailed)
		return err
	}

	gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
	defer cancel()

	intent, err := s.Gateway.RetrieveIntent(gctx, ord.PaymentIntentID)
	if err != nil {
		if errors.Is(err, payment.ErrIntentNotFound) {
			s.Logger.LogSweep(ord.ID, "intent gone from gateway, failing abandoned order")
			_, err := s.applyPaymentTransition(ctx, ord, models.PaymentFailed)
			return err
		}
		return fmt.Errorf("failed to retrieve intent %s: %w", ord.PaymentIntentID, err)
	}

	switch {
	case intent.Status == payment.IntentSucceeded:
		// Missed-webhook case: the customer paid but no read synced it.
		// Status sync, not double billing.
		s.Logger.LogSweep(ord.ID, "intent succeeded, syncing missed payment")
		_, err := s.applyPaymentTransition(ctx, ord, models.PaymentPaid)
		return err
	case intent.Status.InFlight():
		// Someone is actively paying; leave it for the next cycle.
		s.Logger.LogSweep(ord.ID, "payment in flight, skipping")
		return nil
	default:
		canceled, err := s.Gateway.CancelIntent(gctx, intent.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel intent %s: %w", intent.ID, err)
		}
		if canceled.Status == payment.IntentSucceeded || canceled.Status.InFlight() {
			// Another process raced ahead between retrieve and cancel.
			s.Logger.LogSweep(ord.ID, "intent became active during cancel, skipping")
			return nil
		}
		s.Logger.LogSweep(ord.ID, "cancelled stale intent, failing order")
		_, err = s.applyPaymentTransition(ctx, ord, models.PaymentFailed)
		return err
	}
}
