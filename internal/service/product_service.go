package service

import (
	"context"
	"io"

	"apparel-service/internal/apperr"
	"apparel-service/internal/imagestore"
	"apparel-service/internal/models"
	"apparel-service/internal/store"
	"apparel-service/internal/util"

	"go.uber.org/zap"
)

// ProductStore is the slice of the store the product service needs
type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	ProductDuplicateExists(ctx context.Context, teamName, category, size, typ string, excludeID int64) (bool, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	UpdateProductImages(ctx context.Context, id int64, images []string) error
	SoftDeleteProduct(ctx context.Context, id int64) error
	LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error)
}

// ProductService handles catalog business logic. Quantity changes never
// go through Update; they run through the inventory ledger so the
// conditional-update guarantee holds everywhere.
type ProductService struct {
	store  ProductStore
	ledger *InventoryLedger
	images imagestore.ImageStore
	logger *zap.Logger
}

// NewProductService creates a new product service. images may be nil
// when no bucket is configured.
func NewProductService(st ProductStore, ledger *InventoryLedger, images imagestore.ImageStore) *ProductService {
	return &ProductService{
		store:  st,
		ledger: ledger,
		images: images,
		logger: util.GetLogger(),
	}
}

// ProductInput carries the writable product fields
type ProductInput struct {
	Name        string `json:"name" binding:"required"`
	TeamName    string `json:"team_name" binding:"required"`
	Category    string `json:"category,omitempty"`
	Type        string `json:"type,omitempty"`
	Size        string `json:"size" binding:"required"`
	Color       string `json:"color,omitempty"`
	Season      string `json:"season,omitempty"`
	Supplier    string `json:"supplier,omitempty"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity" binding:"min=0"`
	Price       int64  `json:"price" binding:"min=0"`
}

// AdjustDirection selects how AdjustQuantity moves the ledger
type AdjustDirection string

const (
	AdjustAdd      AdjustDirection = "add"
	AdjustSubtract AdjustDirection = "subtract"
)

// ListProducts lists active products with optional filters
func (s *ProductService) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	return s.store.ListProducts(ctx, f)
}

// GetProduct retrieves a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.store.GetProductByID(ctx, id)
}

// CreateProduct creates a product, rejecting duplicates on
// (team, category, size, type)
func (s *ProductService) CreateProduct(ctx context.Context, in *ProductInput) (*models.Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	exists, err := s.store.ProductDuplicateExists(ctx, in.TeamName, in.Category, in.Size, in.Type, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Validation("a product for %s %s size %s %s already exists",
			in.TeamName, in.Category, in.Size, in.Type)
	}

	product := &models.Product{
		Name:        in.Name,
		TeamName:    in.TeamName,
		Category:    in.Category,
		Type:        in.Type,
		Size:        in.Size,
		Color:       in.Color,
		Season:      in.Season,
		Supplier:    in.Supplier,
		Description: in.Description,
		Quantity:    in.Quantity,
		Price:       in.Price,
		Images:      []string{},
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("team", product.TeamName),
		zap.String("size", product.Size))
	return product, nil
}

// UpdateProduct updates a product's descriptor fields. Quantity is
// deliberately not updatable here; use AdjustQuantity.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, in *ProductInput) (*models.Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.ProductDuplicateExists(ctx, in.TeamName, in.Category, in.Size, in.Type, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Validation("a product for %s %s size %s %s already exists",
			in.TeamName, in.Category, in.Size, in.Type)
	}

	product.Name = in.Name
	product.TeamName = in.TeamName
	product.Category = in.Category
	product.Type = in.Type
	product.Size = in.Size
	product.Color = in.Color
	product.Season = in.Season
	product.Supplier = in.Supplier
	product.Description = in.Description
	product.Price = in.Price

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return s.store.GetProductByID(ctx, id)
}

// AddImage uploads an image and appends its URL to the product
func (s *ProductService) AddImage(ctx context.Context, id int64, filename, contentType string, r io.Reader) (*models.Product, error) {
	if s.images == nil {
		return nil, apperr.Validation("image storage is not configured")
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.images.Upload(ctx, filename, contentType, r)
	if err != nil {
		return nil, err
	}

	images := append([]string(product.Images), url)
	if err := s.store.UpdateProductImages(ctx, id, images); err != nil {
		// the row update failed; drop the orphaned object
		if delErr := s.images.Delete(ctx, url); delErr != nil {
			s.logger.Warn("failed to delete orphaned image", zap.String("url", url), zap.Error(delErr))
		}
		return nil, err
	}
	return s.store.GetProductByID(ctx, id)
}

// RemoveImage detaches an image URL from the product and deletes the
// stored object best-effort
func (s *ProductService) RemoveImage(ctx context.Context, id int64, imageURL string) (*models.Product, error) {
	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(product.Images))
	found := false
	for _, img := range product.Images {
		if img == imageURL {
			found = true
			continue
		}
		images = append(images, img)
	}
	if !found {
		return nil, apperr.NotFoundMsg("image %s not found on product %d", imageURL, id)
	}

	if err := s.store.UpdateProductImages(ctx, id, images); err != nil {
		return nil, err
	}

	s.deleteImage(ctx, imageURL)
	return s.store.GetProductByID(ctx, id)
}

// DeleteProduct soft-deletes a product and cleans up its images
// best-effort. Existing order item snapshots keep their copies.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.SoftDeleteProduct(ctx, id); err != nil {
		return err
	}

	for _, img := range product.Images {
		s.deleteImage(ctx, img)
	}

	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// AdjustQuantity moves the ledger by qty in the given direction.
// Subtracting more than is available fails with InsufficientStock and
// changes nothing.
func (s *ProductService) AdjustQuantity(ctx context.Context, id int64, qty int, direction AdjustDirection) (*models.Product, error) {
	if qty <= 0 {
		return nil, apperr.Validation("adjustment quantity must be positive, got %d", qty)
	}

	switch direction {
	case AdjustAdd:
		if _, err := s.ledger.Release(ctx, id, qty, "manual_adjustment"); err != nil {
			return nil, err
		}
	case AdjustSubtract:
		if _, err := s.ledger.Reserve(ctx, id, qty, "manual_adjustment"); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Validation("invalid adjustment direction: %s", direction)
	}

	return s.store.GetProductByID(ctx, id)
}

// LowStock lists active products at or below the threshold
func (s *ProductService) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	if threshold < 0 {
		return nil, apperr.Validation("threshold must not be negative")
	}
	return s.store.LowStockProducts(ctx, threshold)
}

// CheckAvailability reports whether a product can cover the quantity
func (s *ProductService) CheckAvailability(ctx context.Context, id int64, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be positive, got %d", qty)
	}
	return s.ledger.Check(ctx, id, qty)
}

func (s *ProductService) deleteImage(ctx context.Context, url string) {
	if s.images == nil || url == "" {
		return
	}
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("failed to delete image", zap.String("url", url), zap.Error(err))
	}
}

func validateProductInput(in *ProductInput) error {
	if in.Name == "" || in.TeamName == "" || in.Size == "" {
		return apperr.Validation("name, team_name and size are required")
	}
	if in.Quantity < 0 {
		return apperr.Validation("quantity must not be negative")
	}
	if in.Price < 0 {
		return apperr.Validation("price must not be negative")
	}
	return nil
}
