package handlers

import (
	"net/http"
	"strings"

	"go-pos-backend/internal/customers"
	"go-pos-backend/internal/models"

	"github.com/gin-gonic/gin"
)

// --- Customers ---

func (h *Handler) ListCustomers(c *gin.Context) {
	list, err := h.Customers.List(c.Request.Context(), customers.Filter{
		Phone: strings.TrimSpace(c.Query("phone")),
		Name:  strings.TrimSpace(c.Query("name")),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	cust, err := h.Customers.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var in customers.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	cust, err := h.Customers.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in customers.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	cust, err := h.Customers.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Customers.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CustomerTransactions lists points history; without customer_id the list is empty.
func (h *Handler) CustomerTransactions(c *gin.Context) {
	customerID, ok := uintQuery(c, "customer_id")
	if !ok {
		return
	}
	if customerID == nil {
		c.JSON(http.StatusOK, []models.CustomerTransaction{})
		return
	}
	rows, err := h.Loyalty.Transactions(c.Request.Context(), *customerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type redeemRequest struct {
	CustomerID     uint `json:"customer_id" binding:"required"`
	PointsToRedeem int  `json:"points_to_redeem" binding:"required"`
}

func (h *Handler) RedeemPoints(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing customer_id or points_to_redeem")
		return
	}
	res, err := h.Loyalty.Redeem(c.Request.Context(), req.CustomerID, req.PointsToRedeem, callerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Points redeemed successfully",
		"points_redeemed":  res.PointsRedeemed,
		"discount_amount":  res.DiscountAmount,
		"remaining_points": res.RemainingPoints,
	})
}

// --- Loyalty settings ---

func (h *Handler) ListLoyaltySettings(c *gin.Context) {
	rows, err := h.Loyalty.ListSettings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) GetLoyaltySettings(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s, err := h.Loyalty.GetSettings(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) CreateLoyaltySettings(c *gin.Context) {
	var in models.LoyaltySettings
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	in.ID = 0
	if err := h.Loyalty.SaveSettings(c.Request.Context(), &in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, in)
}

func (h *Handler) UpdateLoyaltySettings(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in models.LoyaltySettings
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	in.ID = id
	if err := h.Loyalty.SaveSettings(c.Request.Context(), &in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *Handler) DeleteLoyaltySettings(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Loyalty.DeleteSettings(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
