package ai

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go-pos-backend/internal/catalog"
	"go-pos-backend/internal/inventory"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/reporting"
	"go-pos-backend/internal/testutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newToolbox(t *testing.T) (*Toolbox, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	return NewToolbox(catalog.NewStore(db, log), inventory.NewLedger(db, log, nil), reporting.NewReporter(db, log), log), db
}

func TestToolbox_Inventory(t *testing.T) {
	tb, db := newToolbox(t)
	testutil.Product(t, db, "Banana", "2.50", 3)
	testutil.Product(t, db, "Apple", "1.00", 40)

	out, err := tb.Call(context.Background(), "check_inventory", nil)
	if err != nil {
		t.Fatalf("check_inventory: %v", err)
	}
	var rows []inventoryRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	out, err = tb.Call(context.Background(), "low_stock", map[string]any{"threshold": float64(5)})
	if err != nil {
		t.Fatalf("low_stock: %v", err)
	}
	if !strings.Contains(out, "Banana") || strings.Contains(out, "Apple") {
		t.Errorf("unexpected low stock list: %s", out)
	}
}

func TestToolbox_UpdatePrice(t *testing.T) {
	tb, db := newToolbox(t)
	p := testutil.Product(t, db, "Banana", "2.50", 3)

	out, err := tb.Call(context.Background(), "update_product_price", map[string]any{
		"product_id": float64(p.ID),
		"new_price":  3.75,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(out, `"status":"Success"`) {
		t.Errorf("unexpected result: %s", out)
	}
	var got models.Product
	db.First(&got, p.ID)
	if !got.Price.Equal(testutil.D("3.75")) {
		t.Errorf("price = %s, want 3.75", got.Price)
	}

	// a rejected price is reported to the model, not raised
	out, err = tb.Call(context.Background(), "update_product_price", map[string]any{"product_id": float64(p.ID), "new_price": -1.0})
	if err != nil {
		t.Fatalf("negative price should not error: %v", err)
	}
	if strings.Contains(out, "Success") {
		t.Errorf("negative price accepted: %s", out)
	}
}

func TestToolbox_SalesReport(t *testing.T) {
	tb, db := newToolbox(t)
	yesterday := time.Now().AddDate(0, 0, -1)
	db.Create(&models.SaleTransaction{TotalAmount: testutil.D("12.50"), PaidAmount: testutil.D("12.50"), ChangeGiven: testutil.D("0"), CreatedAt: yesterday})

	day := yesterday.Format(reporting.DateLayout)
	out, err := tb.Call(context.Background(), "get_sales_report", map[string]any{"start_date": day, "end_date": day})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, `"revenue":"12.50"`) || !strings.Contains(out, `"sales_count":1`) {
		t.Errorf("unexpected report: %s", out)
	}

	out, _ = tb.Call(context.Background(), "get_sales_report", map[string]any{"start_date": "yesterday", "end_date": day})
	if !strings.Contains(out, "YYYY-MM-DD") {
		t.Errorf("bad date not reported: %s", out)
	}

	if _, err := tb.Call(context.Background(), "drop_tables", nil); err == nil {
		t.Error("unknown tool accepted")
	}
}
