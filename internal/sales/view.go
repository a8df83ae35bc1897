package sales

import (
	"time"

	"go-pos-backend/internal/models"

	"github.com/shopspring/decimal"
)

// ItemView is a sale line as returned by the API.
type ItemView struct {
	ID             uint            `json:"id"`
	ProductID      uint            `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	PriceAtSale    decimal.Decimal `json:"price_at_sale"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	BulkDiscountID *uint           `json:"bulk_discount_id"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// View is a sale as returned by the API, with the cashier's username and
// the customer's name resolved.
type View struct {
	ID           uint            `json:"id"`
	Cashier      string          `json:"cashier"`
	CashierID    *uint           `json:"cashier_id"`
	CustomerID   *uint           `json:"customer_id"`
	CustomerName *string         `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	ChangeGiven  decimal.Decimal `json:"change_given"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []ItemView      `json:"items"`
}

func NewView(s *models.SaleTransaction) View {
	v := View{
		ID:          s.ID,
		CashierID:   s.CashierID,
		CustomerID:  s.CustomerID,
		TotalAmount: s.TotalAmount,
		PaidAmount:  s.PaidAmount,
		ChangeGiven: s.ChangeGiven,
		CreatedAt:   s.CreatedAt,
		Items:       make([]ItemView, 0, len(s.Items)),
	}
	if s.Cashier != nil {
		v.Cashier = s.Cashier.Username
	}
	if s.Customer != nil {
		name := s.Customer.Name
		v.CustomerName = &name
	}
	for i := range s.Items {
		v.Items = append(v.Items, NewItemView(&s.Items[i]))
	}
	return v
}

func NewItemView(it *models.SaleItem) ItemView {
	iv := ItemView{
		ID:             it.ID,
		ProductID:      it.ProductID,
		Quantity:       it.Quantity,
		PriceAtSale:    it.PriceAtSale,
		DiscountAmount: it.DiscountAmount,
		BulkDiscountID: it.BulkDiscountID,
		LineTotal:      it.LineTotal().Round(2),
	}
	if it.Product != nil {
		iv.ProductName = it.Product.Name
	}
	return iv
}

func NewViews(list []models.SaleTransaction) []View {
	out := make([]View, 0, len(list))
	for i := range list {
		out = append(out, NewView(&list[i]))
	}
	return out
}
