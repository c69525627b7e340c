package store

import (
	"context"
	"database/sql"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
)

// GetCustomerByID retrieves an active customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT * FROM customers WHERE id = $1 AND is_active", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListCustomers retrieves active customers, optionally filtered by a
// name/phone search term, newest first
func (s *Store) ListCustomers(ctx context.Context, search string) ([]models.Customer, error) {
	customers := []models.Customer{}
	if search == "" {
		err := s.db.SelectContext(ctx, &customers,
			"SELECT * FROM customers WHERE is_active ORDER BY created_at DESC")
		return customers, err
	}
	err := s.db.SelectContext(ctx, &customers, `
		SELECT * FROM customers
		WHERE is_active AND (name ILIKE $1 OR phone ILIKE $1)
		ORDER BY created_at DESC`,
		"%"+search+"%")
	return customers, err
}

// GetCustomerByPhone retrieves an active customer by exact phone number
func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT * FROM customers WHERE phone = $1 AND is_active", phone)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundMsg("customer not found for phone %s", phone)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// PhoneExists checks phone uniqueness among active customers, excluding
// the given customer (pass 0 on create)
func (s *Store) PhoneExists(ctx context.Context, phone string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM customers WHERE phone = $1 AND is_active AND id <> $2)",
		phone, excludeID)
	return exists, err
}

// CreateCustomer inserts a new customer
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (name, phone, address, notes, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at, updated_at`

	return s.db.GetContext(ctx, c, query, c.Name, c.Phone, c.Address, c.Notes)
}

// UpdateCustomer updates an active customer's fields
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, address = $4, notes = $5, updated_at = NOW()
		WHERE id = $1 AND is_active`,
		c.ID, c.Name, c.Phone, c.Address, c.Notes)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("customer", c.ID)
	}
	return nil
}

// SoftDeleteCustomer marks a customer inactive
func (s *Store) SoftDeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active",
		id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("customer", id)
	}
	return nil
}
