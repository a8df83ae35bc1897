// Package sales turns a cart into a committed sale: stock deduction, price
// snapshots, discounts and loyalty accrual happen in one database transaction
// or not at all.
package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/discount"
	"go-pos-backend/internal/inventory"
	"go-pos-backend/internal/lock"
	"go-pos-backend/internal/loyalty"
	"go-pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxLineQuantity = 1000

var (
	tolerance = decimal.RequireFromString("0.01")
	maxAmount = decimal.NewFromInt(10_000_000)
	maxChange = decimal.NewFromInt(1_000_000)
)

// Line is one cart entry.
type Line struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// Request is a cart submitted at the till. CashierID comes from the
// authenticated caller, never from the body.
type Request struct {
	CashierID   *uint           `json:"-"`
	CustomerID  *uint           `json:"customer_id"`
	Items       []Line          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	ChangeGiven decimal.Decimal `json:"change_given"`
}

// Validate runs every check that needs no database access.
func (r *Request) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: sale must contain at least one item", apperr.ErrInvalidCart)
	}
	for i, l := range r.Items {
		if l.ProductID == 0 {
			return fmt.Errorf("%w: line %d has no product", apperr.ErrInvalidCart, i+1)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", apperr.ErrInvalidCart, i+1)
		}
		if l.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: line %d quantity too high", apperr.ErrInvalidCart, i+1)
		}
	}

	errs := apperr.FieldErrors{}
	switch {
	case !r.TotalAmount.IsPositive():
		errs.Add("total_amount", "Total amount must be positive")
	case r.TotalAmount.GreaterThan(maxAmount):
		errs.Add("total_amount", "Total amount too high")
	}
	switch {
	case !r.PaidAmount.IsPositive():
		errs.Add("paid_amount", "Paid amount must be positive")
	case r.PaidAmount.GreaterThan(maxAmount):
		errs.Add("paid_amount", "Paid amount too high")
	}
	switch {
	case r.ChangeGiven.IsNegative():
		errs.Add("change_given", "Change given cannot be negative")
	case r.ChangeGiven.GreaterThan(maxChange):
		errs.Add("change_given", "Change amount too high")
	}
	if err := errs.Err(); err != nil {
		return err
	}

	r.TotalAmount = r.TotalAmount.Round(2)
	r.PaidAmount = r.PaidAmount.Round(2)
	r.ChangeGiven = r.ChangeGiven.Round(2)

	if r.PaidAmount.LessThan(r.TotalAmount) {
		return fmt.Errorf("%w: paid amount must be greater than or equal to total amount", apperr.ErrAmountMismatch)
	}
	expected := r.PaidAmount.Sub(r.TotalAmount)
	if expected.Sub(r.ChangeGiven).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: change given should be %s", apperr.ErrAmountMismatch, expected.StringFixed(2))
	}
	return nil
}

// demand sums quantities per product; a product may appear on several lines.
func (r *Request) demand() (map[uint]int, []uint) {
	out := make(map[uint]int, len(r.Items))
	for _, l := range r.Items {
		out[l.ProductID] += l.Quantity
	}
	ids := make([]uint, 0, len(out))
	for id := range out {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return out, ids
}

// Engine executes sales.
type Engine struct {
	db       *gorm.DB
	locks    *lock.Manager
	log      *zap.Logger
	observer inventory.StockObserver
	now      func() time.Time
}

func NewEngine(db *gorm.DB, locks *lock.Manager, log *zap.Logger, observer inventory.StockObserver) *Engine {
	if observer == nil {
		observer = inventory.NoopObserver
	}
	return &Engine{db: db, locks: locks, log: log.Named("sales"), observer: observer, now: time.Now}
}

// Execute validates the cart, then deducts stock, snapshots prices, records
// the sale and credits the customer in a single transaction.
func (e *Engine) Execute(ctx context.Context, req Request) (*models.SaleTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	demand, ids := req.demand()

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, lock.ProductKey(id))
	}
	if req.CustomerID != nil {
		keys = append(keys, lock.CustomerKey(*req.CustomerID))
	}
	release := e.locks.Acquire(keys...)
	defer release()

	now := e.now()
	var (
		sale     *models.SaleTransaction
		products map[uint]*models.Product
		points   int
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		products, err = loadProducts(tx, ids)
		if err != nil {
			return err
		}

		if req.CustomerID != nil {
			var n int64
			if err := tx.Model(&models.Customer{}).Where("id = ?", *req.CustomerID).Count(&n).Error; err != nil {
				return fmt.Errorf("check customer: %w", err)
			}
			if n == 0 {
				return apperr.NotFound("customer", *req.CustomerID)
			}
		}

		for _, id := range ids {
			p := products[id]
			if p.Stock < demand[id] {
				return &apperr.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.Stock,
					Requested:   demand[id],
				}
			}
		}

		discounts, err := discount.LoadActive(tx, ids)
		if err != nil {
			return err
		}
		items, computed := priceLines(req.Items, products, discounts, now)
		if computed.Sub(req.TotalAmount).Abs().GreaterThan(tolerance) {
			return fmt.Errorf("%w: total amount should be %s", apperr.ErrAmountMismatch, computed.StringFixed(2))
		}

		for _, id := range ids {
			if _, err := inventory.Deduct(tx, id, demand[id]); err != nil {
				return err
			}
		}

		sale = &models.SaleTransaction{
			CashierID:   req.CashierID,
			CustomerID:  req.CustomerID,
			TotalAmount: req.TotalAmount,
			PaidAmount:  req.PaidAmount,
			ChangeGiven: req.ChangeGiven,
			CreatedAt:   now,
			Items:       items,
		}
		if err := tx.Omit(clause.Associations).Create(sale).Error; err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		for i := range sale.Items {
			sale.Items[i].TransactionID = sale.ID
		}
		if err := tx.Create(&sale.Items).Error; err != nil {
			return fmt.Errorf("create sale items: %w", err)
		}

		if req.CustomerID != nil {
			points, err = loyalty.Accrue(tx, *req.CustomerID, sale.TotalAmount)
			if err != nil {
				return err
			}
			link := &models.CustomerTransaction{
				CustomerID:   *req.CustomerID,
				SaleID:       sale.ID,
				PointsEarned: points,
				CreatedAt:    now,
			}
			if err := tx.Create(link).Error; err != nil {
				return fmt.Errorf("record customer transaction: %w", err)
			}
		}
		return loadParties(tx, sale)
	})
	if err != nil {
		e.log.Warn("sale rejected", zap.Error(err), zap.Int("lines", len(req.Items)))
		return nil, err
	}

	for i := range sale.Items {
		p := *products[sale.Items[i].ProductID]
		p.Stock -= demand[p.ID]
		sale.Items[i].Product = &p
	}
	e.observer.StockChanged(ctx, ids...)

	fields := []zap.Field{
		zap.Uint("sale_id", sale.ID),
		zap.String("total", sale.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(sale.Items)),
	}
	if req.CashierID != nil {
		fields = append(fields, zap.Uint("cashier_id", *req.CashierID))
	}
	if req.CustomerID != nil {
		fields = append(fields, zap.Uint("customer_id", *req.CustomerID), zap.Int("points_earned", points))
	}
	e.log.Info("sale completed", fields...)
	return sale, nil
}

// loadParties attaches the cashier and the customer, as they stand after the
// sale, so the receipt matches what Get returns.
func loadParties(tx *gorm.DB, sale *models.SaleTransaction) error {
	if sale.CashierID != nil {
		var cashier models.Staff
		if err := tx.First(&cashier, *sale.CashierID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("staff", *sale.CashierID)
			}
			return fmt.Errorf("load cashier %d: %w", *sale.CashierID, err)
		}
		sale.Cashier = &cashier
	}
	if sale.CustomerID != nil {
		var customer models.Customer
		if err := tx.First(&customer, *sale.CustomerID).Error; err != nil {
			return fmt.Errorf("load customer %d: %w", *sale.CustomerID, err)
		}
		sale.Customer = &customer
	}
	return nil
}

func loadProducts(tx *gorm.DB, ids []uint) (map[uint]*models.Product, error) {
	var rows []models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make(map[uint]*models.Product, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, apperr.NotFound("product", id)
		}
	}
	return out, nil
}

// priceLines snapshots price_at_sale for each line and returns the total
// implied by those snapshots.
func priceLines(lines []Line, products map[uint]*models.Product, discounts map[uint][]models.BulkDiscount, now time.Time) ([]models.SaleItem, decimal.Decimal) {
	items := make([]models.SaleItem, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		p := products[l.ProductID]
		qty := decimal.NewFromInt(int64(l.Quantity))
		unit := p.UnitPrice()

		item := models.SaleItem{
			ProductID:      p.ID,
			Quantity:       l.Quantity,
			DiscountAmount: decimal.Zero,
		}
		net := unit.Mul(qty)
		if best, ok := discount.Best(discounts[p.ID], l.Quantity, unit, now); ok {
			net = net.Sub(best.Amount)
			item.DiscountAmount = best.Amount.Round(2)
			id := best.DiscountID
			item.BulkDiscountID = &id
		}
		item.PriceAtSale = net.Div(qty).Round(2)
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, total
}

// Quote prices a cart without touching stock. The till uses it to show the
// total it must submit.
func (e *Engine) Quote(ctx context.Context, lines []Line) ([]models.SaleItem, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: sale must contain at least one item", apperr.ErrInvalidCart)
	}
	r := Request{Items: lines}
	for i, l := range lines {
		if l.Quantity <= 0 || l.Quantity > MaxLineQuantity {
			return nil, decimal.Zero, fmt.Errorf("%w: line %d quantity out of range", apperr.ErrInvalidCart, i+1)
		}
	}
	_, ids := r.demand()

	db := e.db.WithContext(ctx)
	var rows []models.Product
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, decimal.Zero, fmt.Errorf("load products: %w", err)
	}
	products := make(map[uint]*models.Product, len(rows))
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, decimal.Zero, apperr.NotFound("product", id)
		}
	}
	discounts, err := discount.LoadActive(db, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}
	items, total := priceLines(lines, products, discounts, e.now())
	for i := range items {
		items[i].Product = products[items[i].ProductID]
	}
	return items, total, nil
}

// Get loads one sale with its lines, products, cashier and customer.
func (e *Engine) Get(ctx context.Context, id uint) (*models.SaleTransaction, error) {
	var sale models.SaleTransaction
	err := e.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		Preload("Cashier").
		Preload("Customer").
		First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("sale", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load sale %d: %w", id, err)
	}
	return &sale, nil
}

// ListFilter narrows List. Zero values mean no restriction.
type ListFilter struct {
	CashierID *uint
	Limit     int
	Offset    int
}

// List returns sales newest first.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]models.SaleTransaction, error) {
	q := e.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		Preload("Cashier").
		Preload("Customer").
		Order("created_at desc, id desc")
	if f.CashierID != nil {
		q = q.Where("cashier_id = ?", *f.CashierID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var sales []models.SaleTransaction
	if err := q.Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}
