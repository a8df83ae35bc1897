package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category - Groups products on the shelf and in valuation reports
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

// Product - The Inventory
type Product struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:200;not null" json:"name"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Category   *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`

	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CostPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"cost_price"`
	Stock     int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Barcode   string          `gorm:"uniqueIndex;size:100;not null" json:"barcode"`
	CreatedAt time.Time       `json:"created_at"`

	// Bulk pricing
	IsBulkProduct bool             `gorm:"not null;default:false" json:"is_bulk_product"`
	BulkQuantity  int              `gorm:"not null;default:1" json:"bulk_quantity"`
	BulkPrice     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"bulk_price"`
	UnitOfMeasure string           `gorm:"size:20;not null;default:'units'" json:"unit_of_measure"`

	BulkDiscounts []BulkDiscount `gorm:"constraint:OnDelete:CASCADE;" json:"bulk_discounts,omitempty"`
}

// UnitPrice is the per-unit price after normalising a bulk pack.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.IsBulkProduct && p.BulkQuantity > 1 && p.BulkPrice != nil && p.BulkPrice.IsPositive() {
		return p.BulkPrice.Div(decimal.NewFromInt(int64(p.BulkQuantity)))
	}
	return p.Price
}

// DisplayPrice renders the shelf label price.
func (p *Product) DisplayPrice() string {
	if p.IsBulkProduct && p.BulkQuantity > 1 && p.BulkPrice != nil {
		return fmt.Sprintf("₦%s per %d %s", p.BulkPrice.StringFixed(2), p.BulkQuantity, p.UnitOfMeasure)
	}
	return fmt.Sprintf("₦%s per %s", p.Price.StringFixed(2), p.UnitOfMeasure)
}

// Discount types
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
	DiscountBundle     = "bundle"
)

// BulkDiscount - A quantity based price rule owned by one product
type BulkDiscount struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	DiscountType    string          `gorm:"size:20;not null" json:"discount_type"`
	MinimumQuantity int             `gorm:"not null" json:"minimum_quantity"`
	DiscountValue   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discount_value"`
	ProductID       uint            `gorm:"index;not null" json:"product"`
	IsActive        bool            `gorm:"not null" json:"is_active"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         *time.Time      `json:"end_date"`
}

// SaleTransaction - The Transaction Header
type SaleTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CashierID   *uint           `gorm:"index" json:"cashier_id"`
	Cashier     *Staff          `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	CustomerID  *uint           `gorm:"index" json:"customer_id"`
	Customer    *Customer       `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaidAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid_amount"`
	ChangeGiven decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"change_given"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	Items       []SaleItem      `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE;" json:"items"`
}

// SaleItem - The specific items in a cart
type SaleItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TransactionID  uint            `gorm:"index;not null" json:"transaction_id"`
	ProductID      uint            `gorm:"index;not null" json:"product_id"`
	Product        *Product        `gorm:"constraint:OnDelete:RESTRICT;" json:"product,omitempty"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	PriceAtSale    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_at_sale"` // Snapshot of price at time of sale
	DiscountAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"discount_amount"`
	BulkDiscountID *uint           `json:"bulk_discount_id"`
}

// LineTotal is what the line contributes to the transaction total.
func (i *SaleItem) LineTotal() decimal.Decimal {
	return i.PriceAtSale.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Restock - Append-only log of stock added to a product
type Restock struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProductID     uint      `gorm:"index;not null" json:"product_id"`
	Product       *Product  `gorm:"constraint:OnDelete:CASCADE;" json:"product,omitempty"`
	QuantityAdded int       `gorm:"not null" json:"quantity_added"`
	RestockedByID *uint     `json:"restocked_by_id"`
	RestockedBy   *Staff    `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	RestockedAt   time.Time `gorm:"autoCreateTime;index" json:"restocked_at"`
}
