package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-ticketshop/internal/models"
)

// DB is the ticket inventory store. It binds to bun.IDB so the same methods
// run both on the pool and inside a transaction.
type DB struct {
	Bun bun.IDB
}

func New(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

// FindAvailable returns up to limit AVAILABLE tickets for the event/title,
// cheapest first so that repeated selections price deterministically.
func (d *DB) FindAvailable(ctx context.Context, eventID, title string, limit int) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Where("title = ?", title).
		Where("status = ?", models.TicketAvailable).
		Order("price ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// Reserve transitions AVAILABLE -> RESERVED for the subset of ids that are
// still AVAILABLE, as one conditional update. The returned count is the number
// of rows that actually transitioned; a caller racing another reservation for
// the same tickets sees a short count and must abort.
func (d *DB) Reserve(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketReserved).
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(ids)).
		Where("status = ?", models.TicketAvailable).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Release rolls RESERVED tickets back to AVAILABLE.
func (d *DB) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketAvailable).
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(ids)).
		Where("status = ?", models.TicketReserved).
		Exec(ctx)
	return err
}

// MarkSold finalizes RESERVED tickets after a successful payment.
func (d *DB) MarkSold(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketSold).
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(ids)).
		Where("status = ?", models.TicketReserved).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkAvailable returns tickets to the pool, used by payment reconciliation
// when a charge fails or is refunded. Unlike Release it also covers SOLD
// tickets, since a refund lands after the sale was finalized.
func (d *DB) MarkAvailable(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketAvailable).
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(ids)).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketReserved, models.TicketSold})).
		Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByIDs(ctx context.Context, ids []string) ([]models.Ticket, error) {
	if len(ids) == 0 {
		return []models.Ticket{}, nil
	}
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("id IN (?)", bun.In(ids)).
		Order("price ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// CountAvailable returns per-title AVAILABLE counts for an event.
func (d *DB) CountAvailable(ctx context.Context, eventID string) ([]models.TicketAvailability, error) {
	var counts []models.TicketAvailability
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("title").
		ColumnExpr("count(*) AS available").
		Where("event_id = ?", eventID).
		Where("status = ?", models.TicketAvailable).
		Group("title").
		Order("title ASC").
		Scan(ctx, &counts)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// EventExists checks whether an event row exists.
func (d *DB) EventExists(ctx context.Context, eventID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID).
		Exists(ctx)
}
