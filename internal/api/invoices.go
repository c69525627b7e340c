package api

import (
	"net/http"
	"strconv"

	"apparel-service/internal/models"
	"apparel-service/internal/service"
	"apparel-service/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}

	invoice, err := h.invoices.CreateInvoice(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) getInvoiceByCode(c *gin.Context) {
	invoice, err := h.invoices.GetInvoiceByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) listInvoices(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}

	filter := store.InvoiceFilter{
		Status:        models.InvoiceStatus(c.Query("status")),
		PaymentMethod: models.PaymentMethod(c.Query("payment_method")),
		CustomerName:  c.Query("customer"),
		Code:          c.Query("code"),
		StartDate:     from,
		EndDate:       to,
	}

	invoices, err := h.invoices.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices)})
}

func (h *Handler) recentInvoices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	invoices, err := h.invoices.RecentInvoices(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices)})
}

func (h *Handler) invoiceStatistics(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}

	stats, err := h.invoices.Statistics(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) markInvoicePaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}

	invoice, err := h.invoices.MarkPaid(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) markInvoiceOverdue(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := h.invoices.MarkOverdue(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) deleteInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.invoices.DeleteInvoice(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invoice cancelled"})
}
