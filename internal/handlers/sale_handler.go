package handlers

import (
	"net/http"
	"strconv"

	"go-pos-backend/internal/sales"

	"github.com/gin-gonic/gin"
)

const defaultSalesPage = 100

// CreateSale runs a checkout. The cashier is always the caller.
func (h *Handler) CreateSale(c *gin.Context) {
	var req sales.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	req.CashierID = callerID(c)

	sale, err := h.Sales.Execute(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sales.NewView(sale))
}

type quoteRequest struct {
	Items []sales.Line `json:"items" binding:"required"`
}

// QuoteSale prices a cart so the till can show the total before payment.
func (h *Handler) QuoteSale(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	items, total, err := h.Sales.Quote(c.Request.Context(), req.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	lines := make([]sales.ItemView, 0, len(items))
	for i := range items {
		lines = append(lines, sales.NewItemView(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": lines, "total_amount": total})
}

func (h *Handler) ListSales(c *gin.Context) {
	cashierID, ok := uintQuery(c, "cashier_id")
	if !ok {
		return
	}
	limit, offset := defaultSalesPage, 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	list, err := h.Sales.List(c.Request.Context(), sales.ListFilter{CashierID: cashierID, Limit: limit, Offset: offset})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sales.NewViews(list))
}

func (h *Handler) GetSale(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sale, err := h.Sales.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sales.NewView(sale))
}

type restockRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

func (h *Handler) Restock(c *gin.Context) {
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing product_id or quantity")
		return
	}
	entry, stock, err := h.Inventory.Restock(c.Request.Context(), req.ProductID, req.Quantity, callerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Stock updated successfully",
		"stock":      stock,
		"restock_id": entry.ID,
	})
}

func (h *Handler) RestockHistory(c *gin.Context) {
	productID, ok := uintQuery(c, "product_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.Inventory.History(c.Request.Context(), productID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
