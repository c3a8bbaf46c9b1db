package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/middleware"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
	log          *slog.Logger
}

func NewOrderHandler(orderService *service.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, log: log}
}

// CreateOrder accepts guest checkouts; an authenticated caller becomes the
// order owner.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, invoice, err := h.orderService.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		Actor:           middleware.GetActor(c),
		Customer:        req.Contact(),
		Items:           req.StockLines(),
		ShippingAddress: req.ShippingAddress.Model(),
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	resp := dto.CreateOrderResponse{Order: dto.ToOrderResponse(order)}
	if invoice != nil {
		inv := dto.ToInvoiceResponse(invoice)
		resp.Invoice = &inv
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.orderService.List(c.Request.Context(), actorOf(c), req.All, model.OrderStatus(req.Status), req.Params)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, pagination.Map(page, func(o model.Order) dto.OrderResponse {
		return dto.ToOrderResponse(&o)
	}))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), actorOf(c), orderID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.OrderEnvelope{Order: dto.ToOrderResponse(order)})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.orderService.TransitionStatus(c.Request.Context(), actorOf(c), orderID, req.Status, req.Note)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.OrderEnvelope{Order: dto.ToOrderResponse(order)})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	// The body is optional.
	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	order, refund, err := h.orderService.Cancel(c.Request.Context(), actorOf(c), orderID, req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.CancelOrderResponse{RefundAmount: refund, Order: dto.ToOrderResponse(order)})
}

func (h *OrderHandler) UpdatePayment(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	var req dto.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.orderService.UpdatePaymentStatus(c.Request.Context(), actorOf(c), orderID, req.PaymentStatus)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.OrderEnvelope{Order: dto.ToOrderResponse(order)})
}

// actorOf returns the caller on routes that sit behind AuthMiddleware.
func actorOf(c *gin.Context) service.Actor {
	if actor := middleware.GetActor(c); actor != nil {
		return *actor
	}
	return service.Actor{}
}
