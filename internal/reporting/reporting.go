// Package reporting is the read side: sales reports, dashboard rollups,
// best sellers and stock valuation. Nothing here takes locks.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go-pos-backend/internal/models"
	"go-pos-backend/internal/sales"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

// Dashboard scopes.
const (
	ScopeStore = "store_total"
	ScopeUser  = "user_individual"
)

type Reporter struct {
	db  *gorm.DB
	log *zap.Logger
	loc *time.Location
	now func() time.Time
}

func NewReporter(db *gorm.DB, log *zap.Logger) *Reporter {
	return &Reporter{db: db, log: log.Named("reporting"), loc: time.Local, now: time.Now}
}

// Filter selects transactions for SalesReport. Start and End are calendar
// days in the store's time zone, both inclusive.
type Filter struct {
	Start     *time.Time
	End       *time.Time
	CashierID *uint
	ProductID *uint
}

// DaySummary is one row of the per-day rollup.
type DaySummary struct {
	Day         string          `json:"day"`
	TotalSales  int64           `json:"total_sales"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type SalesReport struct {
	Sales        []sales.View `json:"sales"`
	DailySummary []DaySummary `json:"daily_summary"`
}

func (r *Reporter) dayStart(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

// ParseDay reads a YYYY-MM-DD query value in the store's time zone.
func (r *Reporter) ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, r.loc)
}

func (r *Reporter) SalesReport(ctx context.Context, f Filter) (*SalesReport, error) {
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		Preload("Cashier").
		Preload("Customer").
		Order("created_at desc, id desc")
	if f.Start != nil {
		q = q.Where("created_at >= ?", r.dayStart(*f.Start))
	}
	if f.End != nil {
		q = q.Where("created_at < ?", r.dayStart(*f.End).AddDate(0, 0, 1))
	}
	if f.CashierID != nil {
		q = q.Where("cashier_id = ?", *f.CashierID)
	}
	if f.ProductID != nil {
		q = q.Where("id IN (?)", r.db.Model(&models.SaleItem{}).Select("transaction_id").Where("product_id = ?", *f.ProductID))
	}

	var rows []models.SaleTransaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sales report: %w", err)
	}
	return &SalesReport{
		Sales:        sales.NewViews(rows),
		DailySummary: r.daily(rows),
	}, nil
}

// daily groups by local calendar day, ordered by day.
func (r *Reporter) daily(rows []models.SaleTransaction) []DaySummary {
	byDay := map[string]*DaySummary{}
	for _, s := range rows {
		day := s.CreatedAt.In(r.loc).Format(DateLayout)
		d, ok := byDay[day]
		if !ok {
			d = &DaySummary{Day: day, TotalAmount: decimal.Zero}
			byDay[day] = d
		}
		d.TotalSales++
		d.TotalAmount = d.TotalAmount.Add(s.TotalAmount)
	}
	out := make([]DaySummary, 0, len(byDay))
	for _, d := range byDay {
		d.TotalAmount = d.TotalAmount.Round(2)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// Stats is a dashboard rollup. Error is set only when the numbers were
// replaced by zeros because the query failed.
type Stats struct {
	TotalSales       decimal.Decimal `json:"total_sales"`
	TransactionCount int64           `json:"transaction_count"`
	AverageSale      decimal.Decimal `json:"average_sale"`
	Scope            string          `json:"scope"`
	Error            string          `json:"error,omitempty"`
}

// RangeTotals is revenue and transaction count for [start, end).
type RangeTotals struct {
	Revenue decimal.Decimal `json:"revenue"`
	Count   int64           `json:"count"`
}

func (r *Reporter) totals(ctx context.Context, start, end time.Time, cashierID *uint) (RangeTotals, error) {
	q := r.db.WithContext(ctx).
		Model(&models.SaleTransaction{}).
		Select("id", "total_amount").
		Where("created_at >= ? AND created_at < ?", start, end)
	if cashierID != nil {
		q = q.Where("cashier_id = ?", *cashierID)
	}
	var rows []models.SaleTransaction
	if err := q.Find(&rows).Error; err != nil {
		return RangeTotals{}, err
	}
	out := RangeTotals{Revenue: decimal.Zero, Count: int64(len(rows))}
	for _, s := range rows {
		out.Revenue = out.Revenue.Add(s.TotalAmount)
	}
	out.Revenue = out.Revenue.Round(2)
	return out, nil
}

// RangeTotals sums sales created in [start, end).
func (r *Reporter) RangeTotals(ctx context.Context, start, end time.Time) (RangeTotals, error) {
	t, err := r.totals(ctx, start, end, nil)
	if err != nil {
		return RangeTotals{}, fmt.Errorf("range totals: %w", err)
	}
	return t, nil
}

// TodayStats rolls up today's sales for the whole store, or for one cashier
// when cashierID is set. It never fails: a query error yields zeros and a note.
func (r *Reporter) TodayStats(ctx context.Context, cashierID *uint) Stats {
	scope := ScopeStore
	if cashierID != nil {
		scope = ScopeUser
	}
	start := r.dayStart(r.now())
	t, err := r.totals(ctx, start, start.AddDate(0, 0, 1), cashierID)
	if err != nil {
		r.log.Error("today stats failed", zap.String("scope", scope), zap.Error(err))
		return Stats{TotalSales: decimal.Zero, AverageSale: decimal.Zero, Scope: scope, Error: err.Error()}
	}

	avg := decimal.Zero
	if t.Count > 0 {
		avg = t.Revenue.Div(decimal.NewFromInt(t.Count)).Round(2)
	}
	return Stats{
		TotalSales:       t.Revenue,
		TransactionCount: t.Count,
		AverageSale:      avg,
		Scope:            scope,
	}
}

// TopSeller is a product ranked by units sold.
type TopSeller struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Sold        int64           `json:"sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

func (r *Reporter) TopSelling(ctx context.Context, limit int) ([]TopSeller, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []TopSeller
	err := r.db.WithContext(ctx).Table("sale_items").
		Select("sale_items.product_id as product_id, products.name as product_name, SUM(sale_items.quantity) as sold, SUM(sale_items.quantity * sale_items.price_at_sale) as revenue").
		Joins("JOIN products ON sale_items.product_id = products.id").
		Group("sale_items.product_id, products.name").
		Order("sold desc, product_id").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("top selling: %w", err)
	}
	for i := range out {
		out[i].Revenue = out[i].Revenue.Round(2)
	}
	return out, nil
}

// ValuationItem is one product's stock at cost.
type ValuationItem struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// CategoryGroup is every product of one category with its subtotal.
type CategoryGroup struct {
	CategoryName string          `json:"category_name"`
	Items        []ValuationItem `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type Valuation struct {
	Categories []CategoryGroup `json:"categories"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// StockValuation values stock on hand at cost, grouped by category.
func (r *Reporter) StockValuation(ctx context.Context) (*Valuation, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Preload("Category").Order("name, id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("stock valuation: %w", err)
	}

	grand := decimal.Zero
	groups := map[string]*CategoryGroup{}
	for _, p := range products {
		name := "Uncategorized"
		if p.Category != nil && p.Category.Name != "" {
			name = p.Category.Name
		}
		g, ok := groups[name]
		if !ok {
			g = &CategoryGroup{CategoryName: name, Items: []ValuationItem{}, Subtotal: decimal.Zero}
			groups[name] = g
		}
		total := p.CostPrice.Mul(decimal.NewFromInt(int64(p.Stock))).Round(2)
		g.Items = append(g.Items, ValuationItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  p.Stock,
			CostPrice: p.CostPrice,
			TotalCost: total,
		})
		g.Subtotal = g.Subtotal.Add(total)
		grand = grand.Add(total)
	}

	out := &Valuation{Categories: make([]CategoryGroup, 0, len(groups)), GrandTotal: grand}
	for _, g := range groups {
		out.Categories = append(out.Categories, *g)
	}
	sort.Slice(out.Categories, func(i, j int) bool {
		return out.Categories[i].CategoryName < out.Categories[j].CategoryName
	})
	return out, nil
}
