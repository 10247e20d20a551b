package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-ticketshop/internal/auth"
	"ms-ticketshop/internal/logger"
	"ms-ticketshop/internal/models"
	"ms-ticketshop/internal/order"
	"ms-ticketshop/internal/promo"
	tickets "ms-ticketshop/internal/tickets/service"
	"ms-ticketshop/internal/utils"
)

type Handler struct {
	OrderService  *order.OrderService
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(orderService *order.OrderService, ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:  orderService,
		TicketService: ticketService,
		Logger:        log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/orders", h.CreateOrder)
	r.Get("/api/v1/orders/{orderId}", h.GetOrder)
	r.Post("/api/v1/orders/{orderId}/payment-intent", h.CreatePaymentIntent)
	r.Get("/api/v1/events/{eventId}/availability", h.GetAvailability)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return
	}

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.EventID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "event_id is required"))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateOrder: user=%s event=%s lines=%d", userID, req.EventID, len(req.Items)))

	result, err := h.OrderService.CreateOrder(r.Context(), userID, req)
	if err != nil {
		h.writeOrderError(w, "CreateOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", models.OrderResponse{
		OrderID:       result.Order.ID,
		UserID:        result.Order.UserID,
		PaymentStatus: result.Order.PaymentStatus,
		TotalAmount:   result.Order.TotalAmount,
		Items:         result.Items,
	}))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return
	}
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s user=%s", orderID, userID))

	result, err := h.OrderService.GetOrder(r.Context(), orderID, userID)
	if err != nil {
		h.writeOrderError(w, "GetOrder", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", result))
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return
	}
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("CreatePaymentIntent: orderId=%s user=%s", orderID, userID))

	intent, err := h.OrderService.CreatePaymentIntent(r.Context(), orderID, userID)
	if err != nil {
		h.writeOrderError(w, "CreatePaymentIntent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment intent ready", models.PaymentIntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}))
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	h.Logger.Debug("API", fmt.Sprintf("GetAvailability: eventId=%s", eventID))

	counts, err := h.TicketService.Availability(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, tickets.ErrEventNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Event not found", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetAvailability: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", "internal error"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability", counts))
}

// writeOrderError maps service errors onto HTTP statuses. Business-rule
// violations carry detail; everything else stays opaque.
func (h *Handler) writeOrderError(w http.ResponseWriter, op string, err error) {
	var inventoryErr *order.InsufficientInventoryError
	switch {
	case errors.As(err, &inventoryErr):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Insufficient inventory", inventoryErr.Error()))
	case errors.Is(err, order.ErrReservationConflict):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Reservation conflict, please retry", err.Error()))
	case errors.Is(err, order.ErrNoItems):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid order", err.Error()))
	case errors.Is(err, promo.ErrNotFound):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid promo code", err.Error()))
	case errors.Is(err, promo.ErrInactive):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid promo code", err.Error()))
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
	case errors.Is(err, order.ErrOrderNotPending):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Order is not pending", err.Error()))
	case errors.Is(err, order.ErrGatewayUnavailable):
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Payment gateway unavailable", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", "internal error"))
	}
}
