package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go-pos-backend/internal/catalog"
	"go-pos-backend/internal/inventory"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/reporting"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultLowStock = 5

// Toolbox executes the functions the model may call. Every tool goes through
// the same services as the HTTP API, so validation and cache invalidation apply.
type Toolbox struct {
	catalog   catalog.Catalog
	inventory *inventory.Ledger
	reports   *reporting.Reporter
	log       *zap.Logger
}

func NewToolbox(c catalog.Catalog, inv *inventory.Ledger, rep *reporting.Reporter, log *zap.Logger) *Toolbox {
	return &Toolbox{catalog: c, inventory: inv, reports: rep, log: log.Named("ai.tools")}
}

// Declarations describes the tools to the model.
func (t *Toolbox) Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "check_inventory",
			Description: "Get the full inventory list. Use this to find ANY product details like ID, Name, Price, Cost, Barcode or Stock.",
		},
		{
			Name:        "low_stock",
			Description: "List products whose stock is at or below a threshold, emptiest first.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"threshold": {Type: genai.TypeInteger, Description: "Stock level to compare against (default 5)"},
				},
			},
		},
		{
			Name:        "update_product_price",
			Description: "Update the price of a specific product using its ID",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"product_id": {Type: genai.TypeInteger, Description: "ID of the product"},
					"new_price":  {Type: genai.TypeNumber, Description: "New price"},
				},
				Required: []string{"product_id", "new_price"},
			},
		},
		{
			Name:        "get_sales_report",
			Description: "Get total sales revenue and transaction count for a date range, both days inclusive.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
					"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
				},
				Required: []string{"start_date", "end_date"},
			},
		},
		{
			Name:        "get_today_stats",
			Description: "Get today's store total sales, transaction count and average sale.",
		},
	}
}

type inventoryRow struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
	Stock   int    `json:"stock"`
	Price   string `json:"price"`
	Cost    string `json:"cost"`
}

func rowOf(p *models.Product) inventoryRow {
	return inventoryRow{
		ID:      p.ID,
		Name:    p.Name,
		Barcode: p.Barcode,
		Stock:   p.Stock,
		Price:   p.Price.StringFixed(2),
		Cost:    p.CostPrice.StringFixed(2),
	}
}

// Call runs one tool and returns its result as JSON text.
func (t *Toolbox) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	t.log.Debug("tool call", zap.String("tool", name), zap.Any("args", args))
	var (
		out any
		err error
	)
	switch name {
	case "check_inventory":
		out, err = t.checkInventory(ctx)
	case "low_stock":
		threshold := defaultLowStock
		if v, ok := args["threshold"]; ok {
			if threshold, err = toInt(v); err != nil {
				return "", fmt.Errorf("threshold: %w", err)
			}
		}
		out, err = t.lowStock(ctx, threshold)
	case "update_product_price":
		out, err = t.updatePrice(ctx, args)
	case "get_sales_report":
		out, err = t.salesReport(ctx, args)
	case "get_today_stats":
		out = t.reports.TodayStats(ctx, nil)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *Toolbox) checkInventory(ctx context.Context) ([]inventoryRow, error) {
	products, err := t.catalog.ListProducts(ctx, catalog.ProductFilter{})
	if err != nil {
		return nil, err
	}
	rows := make([]inventoryRow, 0, len(products))
	for i := range products {
		rows = append(rows, rowOf(&products[i].Product))
	}
	return rows, nil
}

func (t *Toolbox) lowStock(ctx context.Context, threshold int) ([]inventoryRow, error) {
	products, err := t.inventory.LowStock(ctx, threshold)
	if err != nil {
		return nil, err
	}
	rows := make([]inventoryRow, 0, len(products))
	for i := range products {
		rows = append(rows, rowOf(&products[i]))
	}
	return rows, nil
}

func (t *Toolbox) updatePrice(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := toInt(args["product_id"])
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("product_id: invalid value %v", args["product_id"])
	}
	price, err := toDecimal(args["new_price"])
	if err != nil {
		return nil, fmt.Errorf("new_price: %w", err)
	}
	p, err := t.catalog.UpdateProduct(ctx, uint(id), catalog.ProductInput{Price: &price})
	if err != nil {
		// Validation failures go back to the model as a status it can relay.
		return map[string]any{"status": err.Error()}, nil
	}
	t.log.Info("price updated by assistant", zap.Uint("product_id", p.ID), zap.String("price", p.Price.String()))
	return map[string]any{"status": "Success", "product": p.Name, "new_price": p.Price.StringFixed(2)}, nil
}

func (t *Toolbox) salesReport(ctx context.Context, args map[string]any) (map[string]any, error) {
	startStr, _ := args["start_date"].(string)
	endStr, _ := args["end_date"].(string)
	start, err1 := t.reports.ParseDay(startStr)
	end, err2 := t.reports.ParseDay(endStr)
	if err1 != nil || err2 != nil {
		return map[string]any{"status": "Error: Dates must be in YYYY-MM-DD format."}, nil
	}
	totals, err := t.reports.RangeTotals(ctx, start, end.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"revenue":     totals.Revenue.StringFixed(2),
		"sales_count": totals.Count,
	}, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("not a number: %v", v)
	}
}
