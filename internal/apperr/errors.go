// Package apperr holds the error kinds shared by the ledgers, the sale engine and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCart        = errors.New("invalid cart")
	ErrAmountMismatch     = errors.New("amount mismatch")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrLoyaltyInactive    = errors.New("loyalty program is not active")
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("permission denied")
	ErrConflict           = errors.New("conflict")
)

// InsufficientStockError names the product and the quantities involved.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientPointsError carries the balance and the requested redemption.
type InsufficientPointsError struct {
	CustomerID uint
	Available  int
	Requested  int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("Insufficient loyalty points: have %d, need %d", e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// FieldErrors maps a field name to its first validation message.
type FieldErrors map[string]string

// Add keeps the first message recorded for a field.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f FieldErrors) Empty() bool { return len(f) == 0 }

// Err returns nil when no field failed.
func (f FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	return f
}

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (f FieldErrors) Unwrap() error { return ErrValidation }

// NotFound wraps ErrNotFound with the entity and id.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v not found: %w", entity, id, ErrNotFound)
}

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidCart),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInsufficientPoints),
		errors.Is(err, ErrLoyaltyInactive):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
