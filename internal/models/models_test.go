package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProductPrices(t *testing.T) {
	pack := dec("600")
	tests := []struct {
		name    string
		p       Product
		unit    string
		display string
	}{
		{"single", Product{Price: dec("150"), BulkQuantity: 1, UnitOfMeasure: "units"}, "150", "₦150.00 per units"},
		{"bulk pack", Product{Price: dec("120"), IsBulkProduct: true, BulkQuantity: 6, BulkPrice: &pack, UnitOfMeasure: "bottles"}, "100", "₦600.00 per 6 bottles"},
		{"bulk flag without price", Product{Price: dec("120"), IsBulkProduct: true, BulkQuantity: 6, UnitOfMeasure: "bottles"}, "120", "₦120.00 per bottles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.UnitPrice(); !got.Equal(dec(tt.unit)) {
				t.Errorf("UnitPrice() = %s, want %s", got, tt.unit)
			}
			if got := tt.p.DisplayPrice(); got != tt.display {
				t.Errorf("DisplayPrice() = %q, want %q", got, tt.display)
			}
		})
	}
}

func TestStaffRole(t *testing.T) {
	tests := []struct {
		s    Staff
		want string
	}{
		{Staff{IsAdmin: true, IsCashier: true}, RoleAdmin},
		{Staff{IsManager: true, IsCashier: true}, RoleManager},
		{Staff{IsCashier: true}, RoleCashier},
		{Staff{}, RoleStaff},
	}
	for _, tt := range tests {
		if got := tt.s.Role(); got != tt.want {
			t.Errorf("Role() = %s, want %s for %+v", got, tt.want, tt.s)
		}
	}
}

func TestSaleItemLineTotal(t *testing.T) {
	it := SaleItem{Quantity: 3, PriceAtSale: dec("9.67")}
	if got := it.LineTotal(); !got.Equal(dec("29.01")) {
		t.Errorf("LineTotal() = %s, want 29.01", got)
	}
}
