package order_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-ticketshop/internal/config"
	"ms-ticketshop/internal/logger"
	"ms-ticketshop/internal/models"
	"ms-ticketshop/internal/order"
	orderdb "ms-ticketshop/internal/order/db"
	"ms-ticketshop/internal/payment"
	"ms-ticketshop/internal/promo"
	"ms-ticketshop/internal/tickets/qrgen"
)

// fakeGateway implements payment.Gateway in memory, with per-call failure
// injection and call counters for the side-effect assertions.
type fakeGateway struct {
	intents map[string]*payment.Intent
	byOrder map[string]*payment.Intent
	refunds map[string][]payment.Refund

	retrieveErr   map[string]error
	createErr     error
	findOrderErr  error
	cancelErr     error
	cancelResult  map[string]payment.IntentStatus
	invoiceErr    error

	createCalls   int
	updateCalls   int
	cancelCalls   []string
	invoiceCalls  int
	itemCalls     int
	finalizeCalls int
	sendCalls     int

	nextIntent int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		intents:      map[string]*payment.Intent{},
		byOrder:      map[string]*payment.Intent{},
		refunds:      map[string][]payment.Refund{},
		retrieveErr:  map[string]error{},
		cancelResult: map[string]payment.IntentStatus{},
	}
}

func (g *fakeGateway) addIntent(id string, status payment.IntentStatus, amount int64) *payment.Intent {
	intent := &payment.Intent{ID: id, ClientSecret: id + "_secret", Status: status, Amount: amount}
	g.intents[id] = intent
	return intent
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (*payment.Intent, error) {
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextIntent++
	intent := g.addIntent(fmt.Sprintf("pi_%d", g.nextIntent), payment.IntentRequiresPaymentMethod, amount)
	if orderID := metadata["order_id"]; orderID != "" {
		g.byOrder[orderID] = intent
	}
	return intent, nil
}

func (g *fakeGateway) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	if err := g.retrieveErr[id]; err != nil {
		return nil, err
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	return intent, nil
}

func (g *fakeGateway) UpdateIntentAmount(ctx context.Context, id string, amount int64) (*payment.Intent, error) {
	g.updateCalls++
	intent, ok := g.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	intent.Amount = amount
	return intent, nil
}

func (g *fakeGateway) CancelIntent(ctx context.Context, id string) (*payment.Intent, error) {
	g.cancelCalls = append(g.cancelCalls, id)
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	if status, ok := g.cancelResult[id]; ok {
		intent.Status = status
	} else {
		intent.Status = payment.IntentCanceled
	}
	return intent, nil
}

func (g *fakeGateway) ListRefunds(ctx context.Context, intentID string) ([]payment.Refund, error) {
	return g.refunds[intentID], nil
}

func (g *fakeGateway) FindIntentByOrder(ctx context.Context, orderID string) (*payment.Intent, error) {
	if g.findOrderErr != nil {
		return nil, g.findOrderErr
	}
	return g.byOrder[orderID], nil
}

func (g *fakeGateway) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	if g.invoiceErr != nil {
		return "", g.invoiceErr
	}
	return "cus_test", nil
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, customerID string) (string, error) {
	if g.invoiceErr != nil {
		return "", g.invoiceErr
	}
	g.invoiceCalls++
	return fmt.Sprintf("in_%d", g.invoiceCalls), nil
}

func (g *fakeGateway) AddInvoiceItem(ctx context.Context, customerID, invoiceID, description string, amount int64) error {
	g.itemCalls++
	return nil
}

func (g *fakeGateway) FinalizeInvoice(ctx context.Context, invoiceID string) error {
	g.finalizeCalls++
	return nil
}

func (g *fakeGateway) SendInvoice(ctx context.Context, invoiceID string) error {
	g.sendCalls++
	return nil
}

type fakePublisher struct {
	events []string
}

func (p *fakePublisher) record(event string) error {
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishOrderCreated(models.Order) error  { return p.record("order.created") }
func (p *fakePublisher) PublishOrderPaid(models.Order) error     { return p.record("order.paid") }
func (p *fakePublisher) PublishOrderFailed(models.Order) error   { return p.record("order.failed") }
func (p *fakePublisher) PublishOrderRefunded(models.Order) error { return p.record("order.refunded") }

func (p *fakePublisher) count(event string) int {
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}
	return n
}

type testEnv struct {
	bun       *bun.DB
	service   *order.OrderService
	gateway   *fakeGateway
	publisher *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, orderdb.CreateSchema(context.Background(), bunDB))

	gateway := newFakeGateway()
	publisher := &fakePublisher{}
	svc := order.NewOrderService(
		bunDB, gateway, publisher,
		qrgen.NewQRGenerator("test-secret"),
		logger.NewLogger(),
		config.OrderConfig{TxTimeout: 5 * time.Second, GatewayTimeout: 2 * time.Second},
		config.CleanupConfig{Interval: 5 * time.Minute, ExpireAfter: 20 * time.Minute},
	)
	return &testEnv{bun: bunDB, service: svc, gateway: gateway, publisher: publisher}
}

// seedInventory loads the fixture everything in this package works against:
// one event with three 100.00 VIP tickets and two 50.00 Regular tickets, one
// buyer, one active 10% promo code and one inactive code.
func (e *testEnv) seedInventory(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	event := models.Event{ID: "e1", Name: "Summer Fest", StartDate: time.Now().Add(24 * time.Hour), EndDate: time.Now().Add(48 * time.Hour), CreatedAt: time.Now()}
	_, err := e.bun.NewInsert().Model(&event).Exec(ctx)
	require.NoError(t, err)

	user := models.User{ID: "u1", Email: "buyer@example.com", FullName: "Test Buyer", CreatedAt: time.Now()}
	_, err = e.bun.NewInsert().Model(&user).Exec(ctx)
	require.NoError(t, err)

	tickets := []models.Ticket{
		{ID: "vip1", EventID: "e1", Title: "VIP", Number: "V-001", Price: 100, Status: models.TicketAvailable, CreatedAt: time.Now()},
		{ID: "vip2", EventID: "e1", Title: "VIP", Number: "V-002", Price: 100, Status: models.TicketAvailable, CreatedAt: time.Now()},
		{ID: "vip3", EventID: "e1", Title: "VIP", Number: "V-003", Price: 100, Status: models.TicketAvailable, CreatedAt: time.Now()},
		{ID: "reg1", EventID: "e1", Title: "Regular", Number: "R-001", Price: 50, Status: models.TicketAvailable, CreatedAt: time.Now()},
		{ID: "reg2", EventID: "e1", Title: "Regular", Number: "R-002", Price: 50, Status: models.TicketAvailable, CreatedAt: time.Now()},
	}
	_, err = e.bun.NewInsert().Model(&tickets).Exec(ctx)
	require.NoError(t, err)

	promos := []models.PromoCode{
		{ID: "p1", EventID: "e1", Title: "Early Bird", CodeHash: promo.HashCode("EARLY10"), DiscountPercent: 0.10, IsActive: true, CreatedAt: time.Now()},
		{ID: "p2", EventID: "e1", Title: "Last Year", CodeHash: promo.HashCode("OLD20"), DiscountPercent: 0.20, IsActive: false, CreatedAt: time.Now()},
	}
	_, err = e.bun.NewInsert().Model(&promos).Exec(ctx)
	require.NoError(t, err)
}

func (e *testEnv) ticketStatus(t *testing.T, id string) models.TicketStatus {
	t.Helper()
	var ticket models.Ticket
	err := e.bun.NewSelect().Model(&ticket).Where("id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return ticket.Status
}

func (e *testEnv) loadOrder(t *testing.T, id string) *models.Order {
	t.Helper()
	ord, err := orderdb.New(e.bun).GetOrderByID(context.Background(), id)
	require.NoError(t, err)
	return ord
}

// backdate pushes an order's creation time into the past so the cleanup sweep
// considers it expired.
func (e *testEnv) backdate(t *testing.T, orderID string, age time.Duration) {
	t.Helper()
	_, err := e.bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("created_at = ?", time.Now().Add(-age)).
		Where("id = ?", orderID).
		Exec(context.Background())
	require.NoError(t, err)
}

// attachIntent wires a gateway intent onto a stored order the way
// CreatePaymentIntent would.
func (e *testEnv) attachIntent(t *testing.T, orderID, intentID string) {
	t.Helper()
	_, err := e.bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_intent_id = ?", intentID).
		Where("id = ?", orderID).
		Exec(context.Background())
	require.NoError(t, err)
}

func (e *testEnv) createPendingOrder(t *testing.T, items []models.OrderItemRequest, promoCode string) *models.OrderWithItems {
	t.Helper()
	result, err := e.service.CreateOrder(context.Background(), "u1", models.OrderRequest{
		EventID:       "e1",
		Items:         items,
		PromoCode:     promoCode,
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	return result
}
