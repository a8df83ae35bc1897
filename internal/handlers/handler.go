// Package handlers holds the gin endpoints. Each handler binds input, calls
// one domain service and maps the error kind to a status.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/auth"
	"go-pos-backend/internal/catalog"
	"go-pos-backend/internal/customers"
	"go-pos-backend/internal/inventory"
	"go-pos-backend/internal/loyalty"
	"go-pos-backend/internal/middleware"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/reporting"
	"go-pos-backend/internal/sales"
	"go-pos-backend/internal/staff"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Assistant answers free-text questions from an admin.
type Assistant interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Deps are the services the endpoints need. Assistant may be nil.
type Deps struct {
	Catalog   catalog.Catalog
	Inventory *inventory.Ledger
	Loyalty   *loyalty.Ledger
	Sales     *sales.Engine
	Reports   *reporting.Reporter
	Customers *customers.Store
	Staff     *staff.Directory
	Issuer    *auth.Issuer
	Assistant Assistant
	Log       *zap.Logger
}

type Handler struct {
	Deps
	log *zap.Logger
}

func New(d Deps) *Handler {
	return &Handler{Deps: d, log: d.Log.Named("handlers")}
}

// fail writes the error with the status its kind maps to. Field errors are
// reported per field; server errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	var fields apperr.FieldErrors
	switch {
	case errors.As(err, &fields):
		c.JSON(status, gin.H{"error": "validation failed", "fields": fields})
	case status == http.StatusInternalServerError:
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("requestID")),
			zap.Error(err))
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// idParam reads a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// uintQuery reads an optional positive numeric query value.
func uintQuery(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		badRequest(c, "Invalid "+name)
		return nil, false
	}
	id := uint(v)
	return &id, true
}

func callerID(c *gin.Context) *uint {
	id, ok := middleware.UserID(c)
	if !ok {
		return nil
	}
	return &id
}

func isManager(c *gin.Context) bool {
	role := middleware.Role(c)
	return role == models.RoleManager || role == models.RoleAdmin
}
