package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-ticketshop/internal/models"
)

const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventOrderFailed   = "order.failed"
	EventOrderRefunded = "order.refunded"
)

// OrderEvent is the envelope published for every order state change. The
// notification service downstream turns these into customer emails.
type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   float64              `json:"total_amount"`
	Timestamp     time.Time            `json:"timestamp"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(eventType string, order models.Order) error {
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		Timestamp:     time.Now(),
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(order.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(EventOrderCreated, order)
}

func (p *Producer) PublishOrderPaid(order models.Order) error {
	return p.publish(EventOrderPaid, order)
}

func (p *Producer) PublishOrderFailed(order models.Order) error {
	return p.publish(EventOrderFailed, order)
}

func (p *Producer) PublishOrderRefunded(order models.Order) error {
	return p.publish(EventOrderRefunded, order)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
