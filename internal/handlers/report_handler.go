package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go-pos-backend/internal/reporting"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportFilter reads start_date, end_date, cashier_id and product_id. A caller
// that is neither manager nor admin and names no cashier sees only their own sales.
func (h *Handler) reportFilter(c *gin.Context) (reporting.Filter, bool) {
	var f reporting.Filter
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &f.Start}, {"end_date", &f.End}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		day, err := h.Reports.ParseDay(raw)
		if err != nil {
			badRequest(c, "Invalid "+p.name+" format")
			return f, false
		}
		*p.dst = &day
	}

	var ok bool
	if f.CashierID, ok = uintQuery(c, "cashier_id"); !ok {
		return f, false
	}
	if f.ProductID, ok = uintQuery(c, "product_id"); !ok {
		return f, false
	}
	if f.CashierID == nil && !isManager(c) {
		f.CashierID = callerID(c)
	}
	return f, true
}

// --- GET: /api/sales-report ---
func (h *Handler) SalesReport(c *gin.Context) {
	f, ok := h.reportFilter(c)
	if !ok {
		return
	}
	rep, err := h.Reports.SalesReport(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// --- GET: /api/sales-report/export ---
func (h *Handler) ExportSalesReport(c *gin.Context) {
	f, ok := h.reportFilter(c)
	if !ok {
		return
	}
	rep, err := h.Reports.SalesReport(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := reporting.ExportXLSX(rep, &buf); err != nil {
		h.fail(c, err)
		return
	}
	name := fmt.Sprintf("sales-report-%s.xlsx", time.Now().Format(reporting.DateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// StoreTodaySales is the dashboard card: every sale today. It answers 200
// even when the numbers could not be computed.
func (h *Handler) StoreTodaySales(c *gin.Context) {
	c.JSON(http.StatusOK, h.Reports.TodayStats(c.Request.Context(), nil))
}

// UserTodayPerformance is the caller's own sales today.
func (h *Handler) UserTodayPerformance(c *gin.Context) {
	id := callerID(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, h.Reports.TodayStats(c.Request.Context(), id))
}

// --- GET: /api/reports/valuation ---
func (h *Handler) StockValuation(c *gin.Context) {
	val, err := h.Reports.StockValuation(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, val)
}

// --- GET: /api/reports/top-selling ---
func (h *Handler) TopSelling(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	top, err := h.Reports.TopSelling(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}
