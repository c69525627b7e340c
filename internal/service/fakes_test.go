package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
	"apparel-service/internal/store"
)

// fakeStore is an in-memory stand-in for store.Store with the same
// semantics the services rely on: conditional decrement under a mutex
// and all-or-nothing multi-item transactions.
type fakeStore struct {
	mu sync.Mutex

	customers map[int64]*models.Customer
	products  map[int64]*models.Product
	orders    map[int64]*models.Order
	preOrders map[int64]*models.PreOrder
	invoices  map[int64]*models.Invoice

	nextID      int64
	preOrderSeq int64
	invoiceSeq  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: map[int64]*models.Customer{},
		products:  map[int64]*models.Product{},
		orders:    map[int64]*models.Order{},
		preOrders: map[int64]*models.PreOrder{},
		invoices:  map[int64]*models.Invoice{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) seedCustomer(name, phone string) *models.Customer {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Customer{ID: f.id(), Name: name, Phone: phone, IsActive: true}
	f.customers[c.ID] = c
	return c
}

func (f *fakeStore) seedProduct(name string, quantity int, price int64) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Product{
		ID: f.id(), Name: name, TeamName: name, Size: "M",
		Quantity: quantity, Price: price, IsActive: true,
	}
	f.products[p.ID] = p
	return p
}

func (f *fakeStore) quantity(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].Quantity
}

// --- customers ---

func (f *fakeStore) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok || !c.IsActive {
		return nil, apperr.NotFound("customer", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListCustomers(ctx context.Context, search string) ([]models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Customer{}
	for _, c := range f.customers {
		if !c.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) &&
			!strings.Contains(c.Phone, search) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.IsActive && c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundMsg("customer with phone %s not found", phone)
}

func (f *fakeStore) PhoneExists(ctx context.Context, phone string, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.IsActive && c.Phone == phone && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	c.IsActive = true
	c.CreatedAt = time.Now()
	cp := *c
	f.customers[c.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.customers[c.ID]; !ok {
		return apperr.NotFound("customer", c.ID)
	}
	cp := *c
	f.customers[c.ID] = &cp
	return nil
}

func (f *fakeStore) SoftDeleteCustomer(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok || !c.IsActive {
		return apperr.NotFound("customer", id)
	}
	c.IsActive = false
	return nil
}

// --- products ---

func (f *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.products {
		if !p.IsActive {
			continue
		}
		if filter.TeamName != "" && p.TeamName != filter.TeamName {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Size != "" && p.Size != filter.Size {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ProductDuplicateExists(ctx context.Context, teamName, category, size, typ string, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.IsActive && p.ID != excludeID &&
			p.TeamName == teamName && p.Category == category && p.Size == size && p.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	p.IsActive = true
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.products[p.ID]
	if !ok || !existing.IsActive {
		return apperr.NotFound("product", p.ID)
	}
	// quantity never moves through a plain update
	cp := *p
	cp.Quantity = existing.Quantity
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateProductImages(ctx context.Context, id int64, images []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return apperr.NotFound("product", id)
	}
	p.Images = images
	return nil
}

func (f *fakeStore) SoftDeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || !p.IsActive {
		return apperr.NotFound("product", id)
	}
	p.IsActive = false
	return nil
}

func (f *fakeStore) LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.products {
		if p.IsActive && p.Quantity <= threshold {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out, nil
}

// --- stock primitives ---

func (f *fakeStore) CheckAvailability(ctx context.Context, productID int64, required int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkLocked(productID, required)
}

func (f *fakeStore) checkLocked(productID int64, required int) error {
	p, ok := f.products[productID]
	if !ok {
		return apperr.NotFound("product", productID)
	}
	if !p.IsActive {
		return apperr.Inactive(productID)
	}
	if p.Quantity < required {
		return apperr.InsufficientStock(productID, p.Quantity, required)
	}
	return nil
}

func (f *fakeStore) ReserveStock(ctx context.Context, productID int64, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserveLocked(productID, qty)
}

func (f *fakeStore) reserveLocked(productID int64, qty int) (int, error) {
	if err := f.checkLocked(productID, qty); err != nil {
		return 0, err
	}
	p := f.products[productID]
	p.Quantity -= qty
	return p.Quantity, nil
}

func (f *fakeStore) ReleaseStock(ctx context.Context, productID int64, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseLocked(productID, qty)
}

func (f *fakeStore) releaseLocked(productID int64, qty int) (int, error) {
	p, ok := f.products[productID]
	if !ok {
		return 0, apperr.NotFound("product", productID)
	}
	p.Quantity += qty
	return p.Quantity, nil
}

// snapshotQuantities captures all quantities so a failed multi-item
// transaction can roll back
func (f *fakeStore) snapshotQuantities() map[int64]int {
	snap := make(map[int64]int, len(f.products))
	for id, p := range f.products {
		snap[id] = p.Quantity
	}
	return snap
}

func (f *fakeStore) restoreQuantities(snap map[int64]int) {
	for id, q := range snap {
		if p, ok := f.products[id]; ok {
			p.Quantity = q
		}
	}
}

// --- orders ---

func (f *fakeStore) CreateOrderTx(ctx context.Context, order *models.Order) ([]store.StockAdjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.snapshotQuantities()
	adjustments := make([]store.StockAdjustment, 0, len(order.Items))
	for i := range order.Items {
		remaining, err := f.reserveLocked(order.Items[i].ProductID, order.Items[i].Quantity)
		if err != nil {
			f.restoreQuantities(snap)
			return nil, err
		}
		adjustments = append(adjustments, store.StockAdjustment{
			ProductID: order.Items[i].ProductID,
			Delta:     -order.Items[i].Quantity,
			Remaining: remaining,
		})
	}

	order.ID = f.id()
	order.OrderDate = time.Now()
	for i := range order.Items {
		order.Items[i].ID = f.id()
		order.Items[i].OrderID = order.ID
	}
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &cp
	return adjustments, nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrderLocked(id)
}

func (f *fakeStore) getOrderLocked(id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.IsDeleted {
		return nil, apperr.NotFound("order", id)
	}
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (f *fakeStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if !o.IsDeleted {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) SearchOrders(ctx context.Context, query string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if o.IsDeleted {
			continue
		}
		c := f.customers[o.CustomerID]
		if strings.Contains(strings.ToLower(o.Notes), strings.ToLower(query)) ||
			(c != nil && strings.Contains(strings.ToLower(c.Name), strings.ToLower(query))) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	orders, err := f.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (f *fakeStore) ListOrdersByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if !o.IsDeleted && o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []models.Order{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountOrdersByCustomer(ctx context.Context, customerID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, o := range f.orders {
		if !o.IsDeleted && o.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateOrderFields(ctx context.Context, id int64, u store.OrderFieldUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.IsDeleted {
		return apperr.NotFound("order", id)
	}
	if u.Notes != nil {
		o.Notes = *u.Notes
	}
	if u.PaymentMethod != nil {
		o.PaymentMethod = *u.PaymentMethod
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	return nil
}

// lockedOrder mirrors the store's row-lock guard: the order must exist,
// be live, and still carry the status the caller observed.
func (f *fakeStore) lockedOrder(orderID int64, expected models.OrderStatus) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok || o.IsDeleted {
		return nil, apperr.NotFound("order", orderID)
	}
	if o.Status != expected {
		return nil, apperr.InvalidState("order %d is %s, expected %s", orderID, o.Status, expected)
	}
	return o, nil
}

func (f *fakeStore) ReplaceOrderItemsTx(ctx context.Context, orderID int64, expected models.OrderStatus, newItems []models.OrderItem, totalAmount int64) ([]store.StockAdjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, err := f.lockedOrder(orderID, expected)
	if err != nil {
		return nil, err
	}

	snap := f.snapshotQuantities()
	oldItems := o.Items
	adjustments := make([]store.StockAdjustment, 0, len(oldItems)+len(newItems))
	for _, item := range oldItems {
		remaining, err := f.releaseLocked(item.ProductID, item.Quantity)
		if err != nil {
			f.restoreQuantities(snap)
			return nil, err
		}
		adjustments = append(adjustments, store.StockAdjustment{ProductID: item.ProductID, Delta: item.Quantity, Remaining: remaining})
	}
	for i := range newItems {
		remaining, err := f.reserveLocked(newItems[i].ProductID, newItems[i].Quantity)
		if err != nil {
			f.restoreQuantities(snap)
			return nil, err
		}
		newItems[i].ID = f.id()
		newItems[i].OrderID = orderID
		adjustments = append(adjustments, store.StockAdjustment{ProductID: newItems[i].ProductID, Delta: -newItems[i].Quantity, Remaining: remaining})
	}

	o.Items = append([]models.OrderItem(nil), newItems...)
	o.TotalAmount = totalAmount
	return adjustments, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.IsDeleted {
		return apperr.NotFound("order", id)
	}
	o.Status = status
	return nil
}

func (f *fakeStore) CancelOrderTx(ctx context.Context, orderID int64, expected models.OrderStatus) ([]store.StockAdjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.lockedOrder(orderID, expected)
	if err != nil {
		return nil, err
	}

	adjustments := make([]store.StockAdjustment, 0, len(o.Items))
	for _, item := range o.Items {
		remaining, err := f.releaseLocked(item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, store.StockAdjustment{ProductID: item.ProductID, Delta: item.Quantity, Remaining: remaining})
	}
	o.Status = models.OrderStatusCancelled
	return adjustments, nil
}

func (f *fakeStore) DeleteOrderTx(ctx context.Context, orderID int64, expected models.OrderStatus) ([]store.StockAdjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.lockedOrder(orderID, expected)
	if err != nil {
		return nil, err
	}

	var adjustments []store.StockAdjustment
	if expected != models.OrderStatusCancelled {
		for _, item := range o.Items {
			remaining, err := f.releaseLocked(item.ProductID, item.Quantity)
			if err != nil {
				return nil, err
			}
			adjustments = append(adjustments, store.StockAdjustment{ProductID: item.ProductID, Delta: item.Quantity, Remaining: remaining})
		}
	}
	o.Status = models.OrderStatusCancelled
	o.IsDeleted = true
	return adjustments, nil
}

func (f *fakeStore) OrderStatistics(ctx context.Context, from, to *time.Time) (*models.OrderStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.OrderStatistics{ByStatus: map[models.OrderStatus]models.StatusStat{}}
	for _, o := range f.orders {
		if o.IsDeleted {
			continue
		}
		stats.TotalOrders++
		stats.TotalRevenue += o.TotalAmount
		s := stats.ByStatus[o.Status]
		s.Count++
		s.Revenue += o.TotalAmount
		stats.ByStatus[o.Status] = s
	}
	if stats.TotalOrders > 0 {
		stats.AvgOrderValue = float64(stats.TotalRevenue) / float64(stats.TotalOrders)
	}
	return stats, nil
}

// --- pre-orders ---

func (f *fakeStore) CreatePreOrderTx(ctx context.Context, po *models.PreOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preOrderSeq++
	po.ID = f.id()
	po.Code = fmt.Sprintf("PRE%06d", f.preOrderSeq)
	po.OrderDate = time.Now()
	for i := range po.Items {
		po.Items[i].ID = f.id()
		po.Items[i].PreOrderID = po.ID
	}
	cp := *po
	cp.Items = append([]models.PreOrderItem(nil), po.Items...)
	f.preOrders[po.ID] = &cp
	return nil
}

func (f *fakeStore) GetPreOrderByID(ctx context.Context, id int64) (*models.PreOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	po, ok := f.preOrders[id]
	if !ok {
		return nil, apperr.NotFound("pre-order", id)
	}
	cp := *po
	cp.Items = append([]models.PreOrderItem(nil), po.Items...)
	return &cp, nil
}

func (f *fakeStore) ListPreOrders(ctx context.Context, filter store.PreOrderFilter) ([]models.PreOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.PreOrder{}
	for _, po := range f.preOrders {
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		out = append(out, *po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) PreOrdersByCustomer(ctx context.Context, customerID int64) ([]models.PreOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.PreOrder{}
	for _, po := range f.preOrders {
		if po.CustomerID == customerID {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (f *fakeStore) OverduePreOrders(ctx context.Context, now time.Time) ([]models.PreOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.PreOrder{}
	for _, po := range f.preOrders {
		if po.Status == models.PreOrderStatusWaiting && po.ExpectedDate != nil && po.ExpectedDate.Before(now) {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdatePreOrderTx(ctx context.Context, po *models.PreOrder, replaceItems bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.preOrders[po.ID]
	if !ok {
		return apperr.NotFound("pre-order", po.ID)
	}
	existing.Deposit = po.Deposit
	existing.ExpectedDate = po.ExpectedDate
	existing.Notes = po.Notes
	if replaceItems {
		existing.Items = append([]models.PreOrderItem(nil), po.Items...)
		existing.TotalEstimatedAmount = po.TotalEstimatedAmount
	}
	return nil
}

func (f *fakeStore) UpdatePreOrderStatus(ctx context.Context, id int64, status models.PreOrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	po, ok := f.preOrders[id]
	if !ok {
		return apperr.NotFound("pre-order", id)
	}
	po.Status = status
	return nil
}

func (f *fakeStore) ConvertPreOrderTx(ctx context.Context, preOrderID int64, order *models.Order) ([]store.StockAdjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	po, ok := f.preOrders[preOrderID]
	if !ok {
		return nil, apperr.NotFound("pre-order", preOrderID)
	}
	if po.ConvertedToOrderID != nil {
		return nil, apperr.AlreadyConverted(preOrderID)
	}
	if po.Status != models.PreOrderStatusAvailable {
		return nil, apperr.InvalidState("pre-order %d must be %s to convert, current status is %s",
			preOrderID, models.PreOrderStatusAvailable, po.Status)
	}

	snap := f.snapshotQuantities()
	adjustments := make([]store.StockAdjustment, 0, len(order.Items))
	for i := range order.Items {
		remaining, err := f.reserveLocked(order.Items[i].ProductID, order.Items[i].Quantity)
		if err != nil {
			f.restoreQuantities(snap)
			return nil, err
		}
		adjustments = append(adjustments, store.StockAdjustment{
			ProductID: order.Items[i].ProductID,
			Delta:     -order.Items[i].Quantity,
			Remaining: remaining,
		})
	}

	order.ID = f.id()
	order.OrderDate = time.Now()
	for i := range order.Items {
		order.Items[i].ID = f.id()
		order.Items[i].OrderID = order.ID
	}
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &cp

	po.Status = models.PreOrderStatusDelivered
	orderID := order.ID
	po.ConvertedToOrderID = &orderID
	return adjustments, nil
}

func (f *fakeStore) PreOrderStatistics(ctx context.Context, from, to *time.Time) (*models.PreOrderStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.PreOrderStatistics{ByStatus: map[models.PreOrderStatus]models.PreOrderStatusStat{}}
	for _, po := range f.preOrders {
		stats.TotalPreOrders++
		stats.TotalEstimatedRevenue += po.TotalEstimatedAmount
		stats.TotalDeposits += po.Deposit
		s := stats.ByStatus[po.Status]
		s.Count++
		s.EstimatedRevenue += po.TotalEstimatedAmount
		s.Deposits += po.Deposit
		stats.ByStatus[po.Status] = s
	}
	return stats, nil
}

// --- invoices ---

func (f *fakeStore) CreateInvoiceTx(ctx context.Context, inv *models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiceSeq++
	inv.ID = f.id()
	inv.Code = fmt.Sprintf("INV%06d", f.invoiceSeq)
	inv.IssueDate = time.Now()
	cp := *inv
	f.invoices[inv.ID] = &cp
	return nil
}

func (f *fakeStore) GetInvoiceByID(ctx context.Context, id int64) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice", id)
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeStore) GetInvoiceByCode(ctx context.Context, code string) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invoices {
		if inv.Code == code {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, apperr.NotFoundMsg("invoice %s not found", code)
}

func (f *fakeStore) InvoiceExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invoices {
		if inv.OrderID == orderID && inv.Status != models.InvoiceStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListInvoices(ctx context.Context, filter store.InvoiceFilter) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Invoice{}
	for _, inv := range f.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) RecentInvoices(ctx context.Context, limit int) ([]models.Invoice, error) {
	invoices, err := f.ListInvoices(ctx, store.InvoiceFilter{})
	if err != nil {
		return nil, err
	}
	if len(invoices) > limit {
		invoices = invoices[:limit]
	}
	return invoices, nil
}

func (f *fakeStore) MarkInvoicePaidTx(ctx context.Context, invoiceID, orderID int64, method *models.PaymentMethod, paymentNotes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return apperr.NotFound("invoice", invoiceID)
	}
	o, ok := f.orders[orderID]
	if !ok || o.IsDeleted {
		return apperr.NotFound("order", orderID)
	}
	inv.Status = models.InvoiceStatusPaid
	if method != nil {
		inv.PaymentMethod = *method
		o.PaymentMethod = *method
	}
	if paymentNotes != "" {
		inv.PaymentNotes = paymentNotes
	}
	o.PaymentStatus = models.PaymentStatusPaid
	return nil
}

func (f *fakeStore) UpdateInvoiceStatus(ctx context.Context, id int64, status models.InvoiceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return apperr.NotFound("invoice", id)
	}
	inv.Status = status
	return nil
}

func (f *fakeStore) InvoiceStatistics(ctx context.Context, from, to *time.Time) (*models.InvoiceStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.InvoiceStatistics{ByStatus: map[models.InvoiceStatus]models.StatusStat{}}
	for _, inv := range f.invoices {
		stats.TotalInvoices++
		stats.TotalAmount += inv.TotalAmount
		s := stats.ByStatus[inv.Status]
		s.Count++
		s.Revenue += inv.TotalAmount
		stats.ByStatus[inv.Status] = s
	}
	return stats, nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *fakePublisher) record(e interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	return p.record(e)
}
func (p *fakePublisher) PublishOrderUpdated(ctx context.Context, e *models.OrderUpdatedEvent) error {
	return p.record(e)
}
func (p *fakePublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	return p.record(e)
}
func (p *fakePublisher) PublishOrderCancelled(ctx context.Context, e *models.OrderCancelledEvent) error {
	return p.record(e)
}
func (p *fakePublisher) PublishPreOrderConverted(ctx context.Context, e *models.PreOrderConvertedEvent) error {
	return p.record(e)
}
func (p *fakePublisher) PublishStockAdjusted(ctx context.Context, e *models.StockAdjustedEvent) error {
	return p.record(e)
}

func (p *fakePublisher) stockAdjusted() []*models.StockAdjustedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []*models.StockAdjustedEvent{}
	for _, e := range p.events {
		if se, ok := e.(*models.StockAdjustedEvent); ok {
			out = append(out, se)
		}
	}
	return out
}

// fakeIdempotency is an in-memory idempotency key store
type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) ClaimIdempotencyKey(ctx context.Context, key, value string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.keys[key]; ok {
		return false, existing, nil
	}
	f.keys[key] = value
	return true, "", nil
}

func (f *fakeIdempotency) StoreIdempotencyResult(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = value
	return nil
}

func (f *fakeIdempotency) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}
