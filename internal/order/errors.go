package order

import (
	"errors"
	"fmt"
)

var (
	ErrNoItems             = errors.New("order has no items")
	ErrReservationConflict = errors.New("tickets were claimed by a concurrent order")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotPending     = errors.New("order is not pending")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	// ErrInternal is what callers see when something unexpected broke; the
	// cause is logged server-side only.
	ErrInternal = errors.New("internal error")
)

// InsufficientInventoryError reports which ticket type ran short so the client
// can correct the request.
type InsufficientInventoryError struct {
	TicketTitle string
	Requested   int
	Available   int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %q: requested %d, available %d",
		e.TicketTitle, e.Requested, e.Available)
}
