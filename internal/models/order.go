package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string        `bun:"id,pk" json:"id"`
	UserID          string        `bun:"user_id,notnull" json:"user_id"`
	PromoCodeID     string        `bun:"promo_code_id,nullzero" json:"promo_code_id,omitempty"`
	PaymentStatus   PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	PaymentMethod   string        `bun:"payment_method,notnull" json:"payment_method"`
	PaymentIntentID string        `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	InvoiceID       string        `bun:"invoice_id,nullzero" json:"invoice_id,omitempty"`
	TotalAmount     float64       `bun:"total_amount,notnull" json:"total_amount"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// OrderItem ties one reserved ticket to its order. Prices are frozen at
// selection time; only the generated file fields change afterwards.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID           string  `bun:"id,pk" json:"id"`
	OrderID      string  `bun:"order_id,notnull" json:"order_id"`
	TicketID     string  `bun:"ticket_id,unique,notnull" json:"ticket_id"`
	FileKey      string  `bun:"file_key,nullzero" json:"file_key,omitempty"`
	QRCode       []byte  `bun:"qr_code,nullzero" json:"-"`
	InitialPrice float64 `bun:"initial_price,notnull" json:"initial_price"`
	FinalPrice   float64 `bun:"final_price,notnull" json:"final_price"`
}

// OrderWithItems is the read-path shape returned to clients.
type OrderWithItems struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

type OrderItemRequest struct {
	TicketTitle string `json:"ticket_title"`
	Quantity    int    `json:"quantity"`
}

type OrderRequest struct {
	EventID       string             `json:"event_id"`
	Items         []OrderItemRequest `json:"items"`
	PromoCode     string             `json:"promo_code,omitempty"`
	PaymentMethod string             `json:"payment_method"`
}

type OrderResponse struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalAmount   float64       `json:"total_amount"`
	Items         []OrderItem   `json:"items"`
}

type PaymentIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}
