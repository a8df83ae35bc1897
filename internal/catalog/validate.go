package catalog

import (
	"strings"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	maxPrice = decimal.NewFromInt(1_000_000)

	// rejected outright in category names
	forbiddenNameTokens = []string{";", "--", "/*", "*/", "xp_"}
)

const maxStock = 100_000

// ValidateCategory trims the name and checks it.
func ValidateCategory(c *models.Category) error {
	errs := apperr.FieldErrors{}
	c.Name = strings.TrimSpace(c.Name)
	if len(c.Name) < 2 {
		errs.Add("name", "Category name must be at least 2 characters long")
	}
	for _, tok := range forbiddenNameTokens {
		if strings.Contains(c.Name, tok) {
			errs.Add("name", "Invalid characters in category name")
			break
		}
	}
	if len(c.Name) > 100 {
		errs.Add("name", "Category name too long")
	}
	return errs.Err()
}

// ValidateProduct normalises money fields to two places and checks ranges.
func ValidateProduct(p *models.Product) error {
	errs := apperr.FieldErrors{}

	p.Name = strings.TrimSpace(p.Name)
	if len(p.Name) < 2 {
		errs.Add("name", "Product name must be at least 2 characters long")
	}

	switch {
	case !p.Price.IsPositive():
		errs.Add("price", "Price must be positive")
	case p.Price.GreaterThan(maxPrice):
		errs.Add("price", "Price too high")
	}
	p.Price = p.Price.Round(2)

	switch {
	case p.CostPrice.IsNegative():
		errs.Add("cost_price", "Cost price cannot be negative")
	case p.CostPrice.GreaterThan(maxPrice):
		errs.Add("cost_price", "Cost price too high")
	}
	p.CostPrice = p.CostPrice.Round(2)

	switch {
	case p.Stock < 0:
		errs.Add("stock", "Stock cannot be negative")
	case p.Stock > maxStock:
		errs.Add("stock", "Stock quantity too high")
	}

	p.Barcode = strings.TrimSpace(p.Barcode)
	switch {
	case p.Barcode == "":
		errs.Add("barcode", "Barcode is required")
	case len(p.Barcode) > 100:
		errs.Add("barcode", "Barcode too long")
	}

	if p.BulkQuantity < 1 {
		errs.Add("bulk_quantity", "Bulk quantity must be at least 1")
	}
	if p.BulkPrice != nil {
		if !p.BulkPrice.IsPositive() {
			errs.Add("bulk_price", "Bulk price must be positive")
		} else {
			v := p.BulkPrice.Round(2)
			p.BulkPrice = &v
		}
	}
	if p.IsBulkProduct && p.BulkQuantity > 1 && p.BulkPrice == nil {
		errs.Add("bulk_price", "Bulk price is required for bulk products")
	}

	if p.UnitOfMeasure = strings.TrimSpace(p.UnitOfMeasure); p.UnitOfMeasure == "" {
		p.UnitOfMeasure = "units"
	}
	return errs.Err()
}
