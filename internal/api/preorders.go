package api

import (
	"net/http"

	"apparel-service/internal/models"
	"apparel-service/internal/service"
	"apparel-service/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createPreOrder(c *gin.Context) {
	var req service.CreatePreOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}

	po, err := h.preOrders.CreatePreOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, po)
}

func (h *Handler) getPreOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	po, err := h.preOrders.GetPreOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) listPreOrders(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}

	filter := store.PreOrderFilter{
		Status:       models.PreOrderStatus(c.Query("status")),
		CustomerName: c.Query("customer"),
		StartDate:    from,
		EndDate:      to,
	}

	preOrders, err := h.preOrders.ListPreOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pre_orders": preOrders, "count": len(preOrders)})
}

func (h *Handler) preOrdersByCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	preOrders, err := h.preOrders.PreOrdersByCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pre_orders": preOrders, "count": len(preOrders)})
}

func (h *Handler) overduePreOrders(c *gin.Context) {
	preOrders, err := h.preOrders.OverduePreOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pre_orders": preOrders, "count": len(preOrders)})
}

func (h *Handler) preOrderStatistics(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}

	stats, err := h.preOrders.Statistics(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) updatePreOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdatePreOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}

	po, err := h.preOrders.UpdatePreOrder(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) updatePreOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status models.PreOrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}

	po, err := h.preOrders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) convertPreOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err)
		return
	}

	order, err := h.preOrders.ConvertToOrder(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) deletePreOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.preOrders.DeletePreOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pre-order cancelled"})
}
