package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-ticketshop/internal/models"
)

// CreateSchema creates every table this service reads or writes. Production
// schemas come from the SQL migrations; this bootstrap exists for tests and
// local sqlite runs.
func CreateSchema(ctx context.Context, bunDB *bun.DB) error {
	schemaModels := []interface{}{
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.PromoCode)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
	}
	for _, model := range schemaModels {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			return err
		}
	}
	return nil
}
