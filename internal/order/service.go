package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-ticketshop/internal/config"
	"ms-ticketshop/internal/logger"
	"ms-ticketshop/internal/models"
	orderdb "ms-ticketshop/internal/order/db"
	"ms-ticketshop/internal/payment"
	"ms-ticketshop/internal/promo"
	ticketdb "ms-ticketshop/internal/tickets/db"
	"ms-ticketshop/internal/tickets/qrgen"
)

type Publisher interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderPaid(order models.Order) error
	PublishOrderFailed(order models.Order) error
	PublishOrderRefunded(order models.Order) error
}

// OrderService is the transactional core: it reserves inventory, prices and
// persists orders, and converges local payment state with the gateway.
type OrderService struct {
	Bun       *bun.DB
	Gateway   payment.Gateway
	Publisher Publisher
	QR        *qrgen.QRGenerator
	Logger    *logger.Logger

	txTimeout   time.Duration
	gwTimeout   time.Duration
	expireAfter time.Duration
}

func NewOrderService(bunDB *bun.DB, gateway payment.Gateway, publisher Publisher, qr *qrgen.QRGenerator, log *logger.Logger, orderCfg config.OrderConfig, cleanupCfg config.CleanupConfig) *OrderService {
	return &OrderService{
		Bun:         bunDB,
		Gateway:     gateway,
		Publisher:   publisher,
		QR:          qr,
		Logger:      log,
		txTimeout:   orderCfg.TxTimeout,
		gwTimeout:   orderCfg.GatewayTimeout,
		expireAfter: cleanupCfg.ExpireAfter,
	}
}

// CreateOrder runs the whole reservation in a single transaction: select the
// cheapest available tickets per line, reserve them with one conditional
// update, validate the promo code, price everything and persist the order with
// its items. Any error rolls the transaction back, reservations included.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req models.OrderRequest) (*models.OrderWithItems, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 || line.TicketTitle == "" {
			return nil, ErrNoItems
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var result *models.OrderWithItems
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		inv := ticketdb.New(tx)
		orders := orderdb.New(tx)

		var selected []models.Ticket
		for _, line := range req.Items {
			tickets, err := inv.FindAvailable(ctx, req.EventID, line.TicketTitle, line.Quantity)
			if err != nil {
				return fmt.Errorf("failed to select tickets: %w", err)
			}
			if len(tickets) < line.Quantity {
				return &InsufficientInventoryError{
					TicketTitle: line.TicketTitle,
					Requested:   line.Quantity,
					Available:   len(tickets),
				}
			}
			selected = append(selected, tickets...)
		}
		if len(selected) == 0 {
			return ErrNoItems
		}

		ids := make([]string, len(selected))
		for i, t := range selected {
			ids[i] = t.ID
		}
		reserved, err := inv.Reserve(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to reserve tickets: %w", err)
		}
		if reserved != int64(len(ids)) {
			// A competing order claimed some of these tickets between
			// selection and reservation. Roll everything back.
			return ErrReservationConflict
		}

		multiplier := decimal.NewFromInt(1)
		promoID := ""
		if req.PromoCode != "" {
			res, err := promo.NewValidator(tx).Validate(ctx, req.EventID, req.PromoCode, true)
			if err != nil {
				return err
			}
			multiplier = DiscountMultiplier(res.PromoCode.DiscountPercent)
			promoID = res.PromoCode.ID
		}

		ord := &models.Order{
			ID:            uuid.NewString(),
			UserID:        userID,
			PromoCodeID:   promoID,
			PaymentStatus: models.PaymentPending,
			PaymentMethod: req.PaymentMethod,
			CreatedAt:     time.Now(),
		}
		items := make([]models.OrderItem, 0, len(selected))
		total := decimal.Zero
		for _, t := range selected {
			final := FinalPrice(t.Price, multiplier)
			total = total.Add(final)
			items = append(items, models.OrderItem{
				ID:           uuid.NewString(),
				OrderID:      ord.ID,
				TicketID:     t.ID,
				InitialPrice: t.Price,
				FinalPrice:   final.InexactFloat64(),
			})
		}
		ord.TotalAmount = total.InexactFloat64()

		if err := orders.CreateOrderWithItems(ctx, ord, items); err != nil {
			return fmt.Errorf("failed to persist order: %w", err)
		}
		result = &models.OrderWithItems{Order: *ord, Items: items}
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, err
		}
		s.Logger.Error("ORDER", fmt.Sprintf("CreateOrder failed: %v", err))
		return nil, ErrInternal
	}

	s.Logger.LogOrder("CREATED", result.Order.ID, fmt.Sprintf("%d tickets, total %.2f", len(result.Items), result.Order.TotalAmount))
	if s.Publisher != nil {
		s.publish(result.Order, s.Publisher.PublishOrderCreated)
	}
	return result, nil
}

// CreatePaymentIntent ensures the order has a live payment intent at the
// gateway. Idempotency rides on gateway-side metadata: an intent already
// tagged with the order id is reused (amount corrected if needed) instead of
// creating a second charge.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, orderID, userID string) (*payment.Intent, error) {
	orders := orderdb.New(s.Bun)
	ord, err := orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to load order %s: %v", orderID, err))
		return nil, ErrInternal
	}
	if userID != "" && ord.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if ord.PaymentStatus != models.PaymentPending {
		return nil, ErrOrderNotPending
	}

	gctx, cancel := context.WithTimeout(ctx, s.gwTimeout)
	defer cancel()

	amount := MinorUnits(ord.TotalAmount)

	intent, err := s.Gateway.FindIntentByOrder(gctx, ord.ID)
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Intent search failed for order %s: %v", ord.ID, err))
		return nil, ErrGatewayUnavailable
	}
	switch {
	case intent != nil && intent.Status.Reusable():
		if intent.Amount != amount {
			intent, err = s.Gateway.UpdateIntentAmount(gctx, intent.ID, amount)
			if err != nil {
				s.Logger.Error("PAYMENT", fmt.Sprintf("Intent amount update failed for order %s: %v", ord.ID, err))
				return nil, ErrGatewayUnavailable
			}
		}
	default:
		intent, err = s.Gateway.CreateIntent(gctx, amount, map[string]string{"order_id": ord.ID})
		if err != nil {
			s.Logger.Error("PAYMENT", fmt.Sprintf("Intent creation failed for order %s: %v", ord.ID, err))
			return nil, ErrGatewayUnavailable
		}
	}

	if ord.PaymentIntentID != intent.ID {
		ord.PaymentIntentID = intent.ID
		if err := orders.UpdatePaymentState(ctx, ord); err != nil {
			s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to store intent id for order %s: %v", ord.ID, err))
			return nil, ErrInternal
		}
	}

	s.Logger.LogOrder("INTENT", ord.ID, fmt.Sprintf("payment intent %s (%d minor units)", intent.ID, amount))
	return intent, nil
}

// GetOrder is the read-path reconciliation trigger: every read re-derives the
// payment status from the gateway before returning. A gateway failure
// degrades to the stored (possibly stale) state rather than failing the read.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*models.OrderWithItems, error) {
	orders := orderdb.New(s.Bun)
	ord, err := orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.Logger.Error("ORDER", fmt.Sprintf("Failed to load order %s: %v", orderID, err))
		return nil, ErrInternal
	}
	if userID != "" && ord.UserID != userID {
		return nil, ErrOrderNotFound
	}

	synced, err := s.SyncOrderPaymentStatus(ctx, ord)
	if err != nil {
		s.Logger.Warn("RECONCILE", fmt.Sprintf("Sync failed for order %s, serving stored state: %v", orderID, err))
		synced = ord
	}

	items, err := orders.GetOrderItems(ctx, orderID)
	if err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Failed to load items for order %s: %v", orderID, err))
		return nil, ErrInternal
	}
	return &models.OrderWithItems{Order: *synced, Items: items}, nil
}

func isBusinessError(err error) bool {
	var inventoryErr *InsufficientInventoryError
	return errors.Is(err, ErrNoItems) ||
		errors.Is(err, ErrReservationConflict) ||
		errors.Is(err, promo.ErrNotFound) ||
		errors.Is(err, promo.ErrInactive) ||
		errors.As(err, &inventoryErr)
}

// publish sends an order event, treating failures as log-only: messaging is a
// side effect and never fails the mutation that triggered it.
func (s *OrderService) publish(ord models.Order, fn func(models.Order) error) {
	if err := fn(ord); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish event for order %s: %v", ord.ID, err))
	}
}
