package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketAvailable   TicketStatus = "AVAILABLE"
	TicketReserved    TicketStatus = "RESERVED"
	TicketSold        TicketStatus = "SOLD"
	TicketUnavailable TicketStatus = "UNAVAILABLE"
)

// Ticket is one sellable unit of inventory. Status only ever moves
// AVAILABLE -> RESERVED -> SOLD, with RESERVED -> AVAILABLE as the rollback edge.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID        string       `bun:"id,pk" json:"id"`
	EventID   string       `bun:"event_id,notnull" json:"event_id"`
	Title     string       `bun:"title,notnull" json:"title"`
	Number    string       `bun:"number,unique,notnull" json:"number"`
	Price     float64      `bun:"price,notnull" json:"price"`
	Status    TicketStatus `bun:"status,notnull" json:"status"`
	CreatedAt time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time    `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// TicketAvailability is the per-title AVAILABLE count shown by the
// inventory-display layer.
type TicketAvailability struct {
	Title     string `bun:"title" json:"title"`
	Available int    `bun:"available" json:"available"`
}
