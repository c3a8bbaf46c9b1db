package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/middleware"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
)

type ProductHandler struct {
	productService *service.ProductService
	log            *slog.Logger
}

func NewProductHandler(productService *service.ProductService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, log: log}
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.productService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "product")
	if !ok {
		return
	}

	resp, err := h.productService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			notFound(c, "product not found")
			return
		}
		respondError(c, h.log, err)
		return
	}
	// Deactivated products are only visible to admins.
	if !resp.Active {
		if actor := middleware.GetActor(c); actor == nil || !actor.IsAdmin() {
			notFound(c, "product not found")
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// List serves the public catalog. Admins may add all=true to include
// deactivated products.
func (h *ProductHandler) List(c *gin.Context) {
	var req dto.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if req.All {
		if actor := middleware.GetActor(c); actor == nil || !actor.IsAdmin() {
			respondError(c, h.log, service.ErrAccessDenied)
			return
		}
	}

	resp, err := h.productService.List(c.Request.Context(), req, req.All)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "product")
	if !ok {
		return
	}

	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.productService.Update(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			notFound(c, "product not found")
			return
		}
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "product")
	if !ok {
		return
	}

	if err := h.productService.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			notFound(c, "product not found")
			return
		}
		respondError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}
