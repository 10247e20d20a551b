package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-ticketshop/internal/models"
)

// DB is the order store. It binds to bun.IDB so the same methods run both on
// the pool and inside a transaction.
type DB struct {
	Bun bun.IDB
}

func New(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

// CreateOrderWithItems inserts an order and all its items. Callers run this
// inside the reservation transaction so either everything lands or nothing.
func (d *DB) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if _, err := d.Bun.NewInsert().Model(order).Exec(ctx); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&items).Exec(ctx)
	return err
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// TicketIDsByOrder returns the ids of all tickets reserved by an order.
func (d *DB) TicketIDsByOrder(ctx context.Context, orderID string) ([]string, error) {
	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.OrderItem)(nil)).
		Column("ticket_id").
		Where("order_id = ?", orderID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdatePaymentState persists the fields the reconciler and cleanup job own:
// payment status, intent id and invoice id. Everything else on an order is
// immutable after creation.
func (d *DB) UpdatePaymentState(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(order).
		Column("payment_status", "payment_intent_id", "invoice_id", "updated_at").
		Where("id = ?", order.ID).
		Exec(ctx)
	return err
}

// UpdateItemArtifact stores the generated pass for one order item.
func (d *DB) UpdateItemArtifact(ctx context.Context, itemID, fileKey string, qr []byte) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.OrderItem)(nil)).
		Set("file_key = ?", fileKey).
		Set("qr_code = ?", qr).
		Where("id = ?", itemID).
		Exec(ctx)
	return err
}

// FindExpiredPending returns orders still PENDING that were created before the
// cutoff, oldest first.
func (d *DB) FindExpiredPending(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("payment_status = ?", models.PaymentPending).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
