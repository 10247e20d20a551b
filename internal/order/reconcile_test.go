package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticketshop/internal/models"
	"ms-ticketshop/internal/payment"
)

func TestSyncSkipsOrdersWithoutIntent(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "Regular", Quantity: 1}}, "")

	ord := env.loadOrder(t, result.Order.ID)
	synced, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, synced.PaymentStatus)
}

func TestSyncMarksOrderFailed(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "VIP", Quantity: 1}}, "")

	env.gateway.addIntent("pi_1", payment.IntentCanceled, 10000)
	env.attachIntent(t, result.Order.ID, "pi_1")

	ord := env.loadOrder(t, result.Order.ID)
	synced, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, synced.PaymentStatus)
	assert.Equal(t, models.TicketAvailable, env.ticketStatus(t, result.Items[0].TicketID))
	assert.Equal(t, 1, env.publisher.count("order.failed"))
}

func TestSyncLeavesPendingStatusesAlone(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "VIP", Quantity: 1}}, "")

	for _, status := range []payment.IntentStatus{
		payment.IntentProcessing,
		payment.IntentRequiresPaymentMethod,
		payment.IntentRequiresConfirmation,
		payment.IntentRequiresAction,
	} {
		env.gateway.addIntent("pi_1", status, 10000)
		env.attachIntent(t, result.Order.ID, "pi_1")

		ord := env.loadOrder(t, result.Order.ID)
		synced, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, synced.PaymentStatus, "status %s", status)
		assert.Equal(t, models.TicketReserved, env.ticketStatus(t, result.Items[0].TicketID))
	}
	assert.Zero(t, env.publisher.count("order.failed"))
}

func TestSyncFullRefundWinsOverSucceeded(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "VIP", Quantity: 2}}, "")

	env.gateway.addIntent("pi_1", payment.IntentSucceeded, 20000)
	env.gateway.refunds["pi_1"] = []payment.Refund{
		{ID: "re_1", Amount: 20000, Status: payment.RefundSucceeded},
	}
	env.attachIntent(t, result.Order.ID, "pi_1")

	ord := env.loadOrder(t, result.Order.ID)
	synced, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, synced.PaymentStatus)
	for _, item := range result.Items {
		assert.Equal(t, models.TicketAvailable, env.ticketStatus(t, item.TicketID))
	}
	assert.Equal(t, 1, env.publisher.count("order.refunded"))
}

func TestSyncPartialRefundStaysPaid(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "VIP", Quantity: 2}}, "")

	env.gateway.addIntent("pi_1", payment.IntentSucceeded, 20000)
	env.gateway.refunds["pi_1"] = []payment.Refund{
		{ID: "re_1", Amount: 5000, Status: payment.RefundSucceeded},
	}
	env.attachIntent(t, result.Order.ID, "pi_1")

	ord := env.loadOrder(t, result.Order.ID)
	synced, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, synced.PaymentStatus)
	for _, item := range result.Items {
		assert.Equal(t, models.TicketSold, env.ticketStatus(t, item.TicketID))
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "VIP", Quantity: 2}}, "EARLY10")

	env.gateway.addIntent("pi_1", payment.IntentSucceeded, 18000)
	env.attachIntent(t, result.Order.ID, "pi_1")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ord := env.loadOrder(t, result.Order.ID)
		synced, err := env.service.SyncOrderPaymentStatus(ctx, ord)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPaid, synced.PaymentStatus)
	}

	// Repeated syncs must not repeat the side effects.
	assert.Equal(t, 1, env.publisher.count("order.paid"))
	assert.Equal(t, 1, env.gateway.invoiceCalls)
	assert.Equal(t, 1, env.gateway.finalizeCalls)
	assert.Equal(t, 1, env.gateway.sendCalls)
}

func TestPaidTransitionIssuesInvoiceAndPasses(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "VIP", Quantity: 2}}, "EARLY10")

	env.gateway.addIntent("pi_1", payment.IntentSucceeded, 18000)
	env.attachIntent(t, result.Order.ID, "pi_1")

	ord := env.loadOrder(t, result.Order.ID)
	_, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
	require.NoError(t, err)

	stored := env.loadOrder(t, result.Order.ID)
	assert.NotEmpty(t, stored.InvoiceID)
	assert.Equal(t, 2, env.gateway.itemCalls)

	items, err := env.service.GetOrder(context.Background(), result.Order.ID, "u1")
	require.NoError(t, err)
	for _, item := range items.Items {
		assert.NotEmpty(t, item.FileKey)
		assert.NotEmpty(t, item.QRCode)
	}
}

func TestPaidSurvivesInvoiceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "Regular", Quantity: 1}}, "")

	env.gateway.addIntent("pi_1", payment.IntentSucceeded, 5000)
	env.attachIntent(t, result.Order.ID, "pi_1")
	env.gateway.invoiceErr = assert.AnError

	ord := env.loadOrder(t, result.Order.ID)
	synced, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
	require.NoError(t, err)

	// Invoicing is best effort; the payment state still lands.
	assert.Equal(t, models.PaymentPaid, synced.PaymentStatus)
	stored := env.loadOrder(t, result.Order.ID)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Empty(t, stored.InvoiceID)
}

func TestSyncIgnoresMissingIntent(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "Regular", Quantity: 1}}, "")

	// Intent id is stored locally but the gateway has never heard of it.
	env.attachIntent(t, result.Order.ID, "pi_ghost")

	ord := env.loadOrder(t, result.Order.ID)
	synced, err := env.service.SyncOrderPaymentStatus(context.Background(), ord)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, synced.PaymentStatus)
}

func TestRefundedOrdersAreTerminal(t *testing.T) {
	env := newTestEnv(t)
	env.seedInventory(t)
	result := env.createPendingOrder(t, []models.OrderItemRequest{{TicketTitle: "Regular", Quantity: 1}}, "")

	env.gateway.addIntent("pi_1", payment.IntentSucceeded, 5000)
	env.gateway.refunds["pi_1"] = []payment.Refund{
		{ID: "re_1", Amount: 5000, Status: payment.RefundSucceeded},
	}
	env.attachIntent(t, result.Order.ID, "pi_1")

	ctx := context.Background()
	ord := env.loadOrder(t, result.Order.ID)
	_, err := env.service.SyncOrderPaymentStatus(ctx, ord)
	require.NoError(t, err)

	// Once refunded, later syncs never touch the gateway again.
	env.gateway.retrieveErr["pi_1"] = assert.AnError
	ord = env.loadOrder(t, result.Order.ID)
	synced, err := env.service.SyncOrderPaymentStatus(ctx, ord)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, synced.PaymentStatus)
}
