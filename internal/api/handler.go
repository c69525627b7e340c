package api

import (
	"net/http"
	"strconv"
	"time"

	"apparel-service/internal/service"
	"apparel-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	customers *service.CustomerService
	products  *service.ProductService
	orders    *service.OrderService
	preOrders *service.PreOrderService
	invoices  *service.InvoiceService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	customers *service.CustomerService,
	products *service.ProductService,
	orders *service.OrderService,
	preOrders *service.PreOrderService,
	invoices *service.InvoiceService,
) *Handler {
	return &Handler{
		customers: customers,
		products:  products,
		orders:    orders,
		preOrders: preOrders,
		invoices:  invoices,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/customers", h.listCustomers)
		v1.POST("/customers", h.createCustomer)
		v1.GET("/customers/:id", h.getCustomer)
		v1.PUT("/customers/:id", h.updateCustomer)
		v1.DELETE("/customers/:id", h.deleteCustomer)
		v1.GET("/customers/:id/history", h.getPurchaseHistory)
		v1.GET("/customers/:id/pre-orders", h.preOrdersByCustomer)

		v1.GET("/products", h.listProducts)
		v1.POST("/products", h.createProduct)
		v1.GET("/products/low-stock", h.lowStockProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.POST("/products/:id/quantity", h.adjustQuantity)
		v1.GET("/products/:id/availability", h.checkAvailability)
		v1.POST("/products/:id/images", h.addProductImage)
		v1.DELETE("/products/:id/images", h.removeProductImage)

		v1.GET("/orders", h.listOrders)
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/search", h.searchOrders)
		v1.GET("/orders/recent", h.recentOrders)
		v1.GET("/orders/statistics", h.orderStatistics)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.updateOrder)
		v1.DELETE("/orders/:id", h.deleteOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.PATCH("/orders/:id/payment", h.updateOrderPayment)

		v1.GET("/pre-orders", h.listPreOrders)
		v1.POST("/pre-orders", h.createPreOrder)
		v1.GET("/pre-orders/overdue", h.overduePreOrders)
		v1.GET("/pre-orders/statistics", h.preOrderStatistics)
		v1.GET("/pre-orders/:id", h.getPreOrder)
		v1.PUT("/pre-orders/:id", h.updatePreOrder)
		v1.DELETE("/pre-orders/:id", h.deletePreOrder)
		v1.PATCH("/pre-orders/:id/status", h.updatePreOrderStatus)
		v1.POST("/pre-orders/:id/convert", h.convertPreOrder)

		v1.GET("/invoices", h.listInvoices)
		v1.POST("/invoices", h.createInvoice)
		v1.GET("/invoices/recent", h.recentInvoices)
		v1.GET("/invoices/statistics", h.invoiceStatistics)
		v1.GET("/invoices/code/:code", h.getInvoiceByCode)
		v1.GET("/invoices/:id", h.getInvoice)
		v1.POST("/invoices/:id/pay", h.markInvoicePaid)
		v1.POST("/invoices/:id/overdue", h.markInvoiceOverdue)
		v1.DELETE("/invoices/:id", h.deleteInvoice)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// pathID parses the :id path parameter, responding 400 on garbage
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// dateRange parses optional from/to query parameters (RFC 3339 or date only)
func dateRange(c *gin.Context) (from, to *time.Time, ok bool) {
	parse := func(raw string) (*time.Time, error) {
		if raw == "" {
			return nil, nil
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return &t, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}

	from, err := parse(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
		return nil, nil, false
	}
	to, err = parse(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
		return nil, nil, false
	}
	return from, to, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
