package service

import (
	"context"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
	"apparel-service/internal/util"

	"go.uber.org/zap"
)

// CustomerStore is the slice of the store the customer service needs
type CustomerStore interface {
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	ListCustomers(ctx context.Context, search string) ([]models.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	PhoneExists(ctx context.Context, phone string, excludeID int64) (bool, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	SoftDeleteCustomer(ctx context.Context, id int64) error

	ListOrdersByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]models.Order, error)
	CountOrdersByCustomer(ctx context.Context, customerID int64) (int, error)
}

// CustomerService handles customer business logic
type CustomerService struct {
	store  CustomerStore
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(st CustomerStore) *CustomerService {
	return &CustomerService{store: st, logger: util.GetLogger()}
}

// CustomerInput carries the writable customer fields
type CustomerInput struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// PurchaseHistory is one page of a customer's orders
type PurchaseHistory struct {
	Customer   *models.Customer `json:"customer"`
	Orders     []models.Order   `json:"orders"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
}

// ListCustomers lists active customers, optionally matching name or phone
func (s *CustomerService) ListCustomers(ctx context.Context, search string) ([]models.Customer, error) {
	return s.store.ListCustomers(ctx, search)
}

// GetCustomer retrieves a customer by ID
func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.store.GetCustomerByID(ctx, id)
}

// GetCustomerByPhone retrieves an active customer by exact phone number
func (s *CustomerService) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	if phone == "" {
		return nil, apperr.Validation("phone must not be empty")
	}
	return s.store.GetCustomerByPhone(ctx, phone)
}

// CreateCustomer creates a customer; phone numbers are unique among
// active customers
func (s *CustomerService) CreateCustomer(ctx context.Context, in *CustomerInput) (*models.Customer, error) {
	if in.Name == "" || in.Phone == "" {
		return nil, apperr.Validation("name and phone are required")
	}

	exists, err := s.store.PhoneExists(ctx, in.Phone, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Validation("a customer with phone %s already exists", in.Phone)
	}

	customer := &models.Customer{
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
		Notes:   in.Notes,
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("customer created", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// UpdateCustomer updates a customer's fields, keeping phone uniqueness
func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, in *CustomerInput) (*models.Customer, error) {
	if in.Name == "" || in.Phone == "" {
		return nil, apperr.Validation("name and phone are required")
	}

	customer, err := s.store.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.PhoneExists(ctx, in.Phone, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Validation("a customer with phone %s already exists", in.Phone)
	}

	customer.Name = in.Name
	customer.Phone = in.Phone
	customer.Address = in.Address
	customer.Notes = in.Notes

	if err := s.store.UpdateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return s.store.GetCustomerByID(ctx, id)
}

// DeleteCustomer soft-deletes a customer; their orders remain
func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := s.store.GetCustomerByID(ctx, id); err != nil {
		return err
	}
	if err := s.store.SoftDeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", zap.Int64("customer_id", id))
	return nil
}

// GetPurchaseHistory returns one page of a customer's orders, newest first
func (s *CustomerService) GetPurchaseHistory(ctx context.Context, customerID int64, page, limit int) (*PurchaseHistory, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	total, err := s.store.CountOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListOrdersByCustomer(ctx, customerID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	return &PurchaseHistory{
		Customer:   customer,
		Orders:     orders,
		TotalCount: total,
		Page:       page,
		Limit:      limit,
	}, nil
}
