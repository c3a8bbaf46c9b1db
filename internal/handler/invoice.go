package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
)

type InvoiceHandler struct {
	invoiceService *service.InvoiceService
	log            *slog.Logger
}

func NewInvoiceHandler(invoiceService *service.InvoiceService, log *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, log: log}
}

// Verify is the public target of invoice QR codes.
func (h *InvoiceHandler) Verify(c *gin.Context) {
	invoice, err := h.invoiceService.Verify(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceVerification(invoice))
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "invoice")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.GetByID(c.Request.Context(), actorOf(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}

func (h *InvoiceHandler) GetByOrder(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.GetByOrderID(c.Request.Context(), actorOf(c), orderID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}

func (h *InvoiceHandler) List(c *gin.Context) {
	var params pagination.Params
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, err.Error())
		return
	}
	page, err := h.invoiceService.ListByUser(c.Request.Context(), actorOf(c), params)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, func(inv model.Invoice) dto.InvoiceResponse {
		return dto.ToInvoiceResponse(&inv)
	}))
}

func (h *InvoiceHandler) RegenerateQR(c *gin.Context) {
	id, ok := paramID(c, "invoice")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.RegenerateQR(c.Request.Context(), actorOf(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}
