package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// ProductFilter narrows product listings
type ProductFilter struct {
	TeamName string
	Category string
	Size     string
	Search   string
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves active products matching the filter, newest first
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query := "SELECT * FROM products WHERE is_active"
	args := []interface{}{}

	if f.TeamName != "" {
		args = append(args, "%"+f.TeamName+"%")
		query += fmt.Sprintf(" AND team_name ILIKE $%d", len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.Size != "" {
		args = append(args, f.Size)
		query += fmt.Sprintf(" AND size = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(" AND (team_name ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	query += " ORDER BY created_at DESC"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ProductDuplicateExists checks the (team, category, size, type) uniqueness guard
func (s *Store) ProductDuplicateExists(ctx context.Context, teamName, category, size, typ string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(
			SELECT 1 FROM products
			WHERE team_name = $1 AND category = $2 AND size = $3 AND type = $4 AND id <> $5
		)`,
		teamName, category, size, typ, excludeID)
	return exists, err
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, team_name, category, type, size, color, season, supplier, description, quantity, price, images, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
		RETURNING id, is_active, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.Name, p.TeamName, p.Category, p.Type, p.Size, p.Color, p.Season,
		p.Supplier, p.Description, p.Quantity, p.Price, p.Images)
}

// UpdateProduct updates descriptor fields. Quantity is deliberately not
// part of the statement: the ledger's atomic stock operations are the
// only writers of the stock balance.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, team_name = $3, category = $4, type = $5, size = $6,
		    color = $7, season = $8, supplier = $9, description = $10,
		    price = $11, images = $12, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.TeamName, p.Category, p.Type, p.Size, p.Color,
		p.Season, p.Supplier, p.Description, p.Price, p.Images)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("product", p.ID)
	}
	return nil
}

// UpdateProductImages replaces the image URL list
func (s *Store) UpdateProductImages(ctx context.Context, id int64, images []string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET images = $2, updated_at = NOW() WHERE id = $1",
		id, pq.Array(images))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

// SoftDeleteProduct marks a product inactive, keeping historical linkage
func (s *Store) SoftDeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

// LowStockProducts retrieves active products at or below the threshold
func (s *Store) LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE is_active AND quantity <= $1 ORDER BY quantity ASC",
		threshold)
	return products, err
}

// StockAdjustment reports one committed quantity change so callers can
// mirror it and publish the corresponding event after the transaction.
type StockAdjustment struct {
	ProductID int64
	Delta     int
	Remaining int
}

// CheckAvailability verifies a product can cover the required quantity.
// Pure read: callers must not treat a passing check as a hold, the
// conditional update in ReserveStock is the only authority.
func (s *Store) CheckAvailability(ctx context.Context, productID int64, required int) error {
	return checkAvailability(ctx, s.db, productID, required)
}

// ReserveStock atomically decrements a product's quantity by qty, failing
// if the product is missing, inactive, or short on stock. The check and
// the decrement are a single conditional UPDATE, so two concurrent
// reservations can never jointly oversell. Returns the remaining quantity.
func (s *Store) ReserveStock(ctx context.Context, productID int64, qty int) (int, error) {
	return reserveStock(ctx, s.db, productID, qty)
}

// ReleaseStock atomically increments a product's quantity by qty,
// returning previously reserved stock. No upper bound is enforced: the
// ledger tracks a running balance, not per-order holds. Returns the
// remaining quantity.
func (s *Store) ReleaseStock(ctx context.Context, productID int64, qty int) (int, error) {
	return releaseStock(ctx, s.db, productID, qty)
}

// productQuantity reads a product's balance, reporting NotFound or
// Inactive as typed errors
func productQuantity(ctx context.Context, q sqlx.QueryerContext, productID int64) (int, error) {
	var row struct {
		Quantity int  `db:"quantity"`
		IsActive bool `db:"is_active"`
	}
	err := sqlx.GetContext(ctx, q, &row,
		"SELECT quantity, is_active FROM products WHERE id = $1", productID)
	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("product", productID)
	}
	if err != nil {
		return 0, err
	}
	if !row.IsActive {
		return 0, apperr.Inactive(productID)
	}
	return row.Quantity, nil
}

// checkAvailability runs the availability read against db or an open tx
func checkAvailability(ctx context.Context, q sqlx.QueryerContext, productID int64, required int) error {
	quantity, err := productQuantity(ctx, q, productID)
	if err != nil {
		return err
	}
	if quantity < required {
		return apperr.InsufficientStock(productID, quantity, required)
	}
	return nil
}

const reserveQuery = `
	UPDATE products
	SET quantity = quantity - $2, updated_at = NOW()
	WHERE id = $1 AND is_active AND quantity >= $2
	RETURNING quantity`

// reserveStock is the shared conditional decrement, usable inside a
// transaction so multi-item workflows commit or roll back as one.
func reserveStock(ctx context.Context, ext sqlx.ExtContext, productID int64, qty int) (int, error) {
	var remaining int
	err := sqlx.GetContext(ctx, ext, &remaining, reserveQuery, productID, qty)
	if err == nil {
		return remaining, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}

	// The conditional update matched nothing; read the row to report why.
	available, err := productQuantity(ctx, ext, productID)
	if err != nil {
		return 0, err
	}
	if available < qty {
		return 0, apperr.InsufficientStock(productID, available, qty)
	}

	// The row qualified on re-read, so a concurrent writer interleaved
	// between the update and the read. One more attempt settles it.
	err = sqlx.GetContext(ctx, ext, &remaining, reserveQuery, productID, qty)
	if err == nil {
		return remaining, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}
	return 0, apperr.InsufficientStock(productID, available, qty)
}

// releaseStock is the shared unconditional increment
func releaseStock(ctx context.Context, ext sqlx.ExtContext, productID int64, qty int) (int, error) {
	var remaining int
	err := sqlx.GetContext(ctx, ext, &remaining, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING quantity`,
		productID, qty)
	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("product", productID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to release stock for product %d: %w", productID, err)
	}
	return remaining, nil
}
