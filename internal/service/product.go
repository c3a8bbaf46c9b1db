package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

const productCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
	log         *slog.Logger
}

// NewProductService accepts a nil redisClient, which disables caching.
func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client, log *slog.Logger) *ProductService {
	return &ProductService{productRepo: productRepo, redisClient: redisClient, log: log}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	product := &model.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Active:      req.Active == nil || *req.Active,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, unavailable("create product", err)
	}
	resp := dto.ToProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := productCacheKey(id)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get product", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := dto.ToProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}

	return &resp, nil
}

// List shows active products only unless includeInactive is set.
func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest, includeInactive bool) (pagination.Page[dto.ProductResponse], error) {
	category := model.Category(req.Category)
	if category != "" && !category.IsValid() {
		return pagination.Page[dto.ProductResponse]{}, validationError("unknown category %q", req.Category)
	}
	filter := model.ProductFilter{
		Search:     strings.TrimSpace(req.Search),
		Category:   category,
		ActiveOnly: !includeInactive,
		Sort:       req.Sort,
		Order:      req.Order,
	}
	products, total, err := s.productRepo.List(ctx, filter, req.Params)
	if err != nil {
		return pagination.Page[dto.ProductResponse]{}, unavailable("list products", err)
	}
	page := pagination.NewPage(products, total, req.Params)
	return pagination.Map(page, func(p model.Product) dto.ProductResponse {
		return dto.ToProductResponse(&p)
	}), nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get product", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, unavailable("update product", err)
	}
	// Stock is written on its own so a concurrent reservation made since the
	// read above is not rolled back by the catalog write.
	if req.Stock != nil {
		if err := s.productRepo.SetStock(ctx, id, *req.Stock); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, unavailable("set stock", err)
		}
	}
	s.InvalidateCache(ctx, id)

	current, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get product", err)
	}
	if current == nil {
		return nil, ErrProductNotFound
	}
	resp := dto.ToProductResponse(current)
	return &resp, nil
}

// Deactivate hides the product from the catalog. Products are never removed
// because orders keep referencing them.
func (s *ProductService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return unavailable("deactivate product", err)
	}
	s.InvalidateCache(ctx, id)
	return nil
}

func (s *ProductService) InvalidateCache(ctx context.Context, ids ...uuid.UUID) {
	if s.redisClient == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productCacheKey(id))
	}
	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn("invalidate product cache", "error", err)
	}
}

func productCacheKey(id uuid.UUID) string { return "product:" + id.String() }

func validateProduct(p *model.Product) error {
	switch {
	case p.Name == "":
		return validationError("product name is required")
	case p.Price.IsNegative():
		return validationError("price must not be negative")
	case p.Stock < 0:
		return validationError("stock must not be negative")
	case !p.Category.IsValid():
		return validationError("unknown category %q", p.Category)
	}
	return nil
}

