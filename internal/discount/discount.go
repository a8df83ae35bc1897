// Package discount evaluates bulk discounts for a single cart line.
//
// When several discounts on a product qualify for the same line, the one with the
// largest amount wins and ties go to the lowest discount ID. A line's discount never
// exceeds its gross value (unit price × quantity).
package discount

import (
	"fmt"
	"strings"
	"time"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// Result is the discount chosen for one line.
type Result struct {
	DiscountID uint
	Name       string
	Amount     decimal.Decimal
}

// Amount computes the raw discount for quantity units at unitPrice. It is zero
// below the minimum quantity.
func Amount(d *models.BulkDiscount, quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	if d.MinimumQuantity <= 0 || quantity < d.MinimumQuantity {
		return decimal.Zero
	}
	qty := decimal.NewFromInt(int64(quantity))

	var amount decimal.Decimal
	switch d.DiscountType {
	case models.DiscountPercentage:
		amount = unitPrice.Mul(qty).Mul(d.DiscountValue).Div(hundred)
	case models.DiscountFixed:
		amount = d.DiscountValue
	case models.DiscountBundle:
		// buy minimum_quantity, get discount_value units free, per complete bundle
		bundles := decimal.NewFromInt(int64(quantity / d.MinimumQuantity))
		amount = bundles.Mul(d.DiscountValue).Mul(unitPrice)
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Applicable reports whether d can be used for quantity units at now.
func Applicable(d *models.BulkDiscount, quantity int, now time.Time) bool {
	if !d.IsActive || quantity < d.MinimumQuantity {
		return false
	}
	if now.Before(d.StartDate) {
		return false
	}
	if d.EndDate != nil && !now.Before(*d.EndDate) {
		return false
	}
	return true
}

// Best picks the discount for a line. ok is false when nothing positive applies.
func Best(discounts []models.BulkDiscount, quantity int, unitPrice decimal.Decimal, now time.Time) (res Result, ok bool) {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))

	for i := range discounts {
		d := &discounts[i]
		if !Applicable(d, quantity, now) {
			continue
		}
		amount := Amount(d, quantity, unitPrice)
		if amount.GreaterThan(gross) {
			amount = gross
		}
		if !amount.IsPositive() {
			continue
		}
		if !ok || amount.GreaterThan(res.Amount) || (amount.Equal(res.Amount) && d.ID < res.DiscountID) {
			res = Result{DiscountID: d.ID, Name: d.Name, Amount: amount}
			ok = true
		}
	}
	return res, ok
}

// LoadActive returns the active discounts of each product, keyed by product ID.
func LoadActive(db *gorm.DB, productIDs []uint) (map[uint][]models.BulkDiscount, error) {
	out := make(map[uint][]models.BulkDiscount, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.BulkDiscount
	err := db.Where("product_id IN ? AND is_active = ?", productIDs, true).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load bulk discounts: %w", err)
	}
	for _, d := range rows {
		out[d.ProductID] = append(out[d.ProductID], d)
	}
	return out, nil
}

// Validate checks a discount before it is written.
func Validate(d *models.BulkDiscount) error {
	errs := apperr.FieldErrors{}

	d.Name = strings.TrimSpace(d.Name)
	if len(d.Name) < 2 {
		errs.Add("name", "Discount name must be at least 2 characters long")
	}
	switch d.DiscountType {
	case models.DiscountPercentage, models.DiscountFixed, models.DiscountBundle:
	default:
		errs.Add("discount_type", "Discount type must be one of percentage, fixed, bundle")
	}
	if d.MinimumQuantity <= 0 {
		errs.Add("minimum_quantity", "Minimum quantity must be positive")
	} else if d.MinimumQuantity > 10000 {
		errs.Add("minimum_quantity", "Minimum quantity too high")
	}
	if !d.DiscountValue.IsPositive() {
		errs.Add("discount_value", "Discount value must be positive")
	} else if d.DiscountType == models.DiscountPercentage && d.DiscountValue.GreaterThan(hundred) {
		errs.Add("discount_value", "Percentage discount must be between 0 and 100")
	}
	if d.ProductID == 0 {
		errs.Add("product", "Product is required")
	}
	if d.StartDate.IsZero() {
		errs.Add("start_date", "Start date is required")
	}
	if d.EndDate != nil && !d.EndDate.After(d.StartDate) {
		errs.Add("end_date", "End date must be after start date")
	}
	return errs.Err()
}
