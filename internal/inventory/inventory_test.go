package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/testutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingObserver struct {
	mu  sync.Mutex
	ids []uint
}

func (r *recordingObserver) StockChanged(_ context.Context, ids ...uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func stockOf(t *testing.T, l *Ledger, id uint) int {
	t.Helper()
	var p models.Product
	if err := l.db.First(&p, id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.Stock
}

// deduct runs Deduct in its own transaction, the way a single sale line would.
func deduct(l *Ledger, productID uint, qty int) (int, error) {
	var stock int
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		stock, err = Deduct(tx, productID, qty)
		return err
	})
	return stock, err
}

func TestDeduct_InsufficientLeavesStockUntouched(t *testing.T) {
	db := testutil.NewDB(t)
	l := NewLedger(db, zap.NewNop(), nil)
	p := testutil.Product(t, db, "Rice", "12.00", 10)

	_, err := deduct(l, p.ID, 15)
	var stockErr *apperr.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 10 || stockErr.Requested != 15 || stockErr.ProductName != "Rice" {
		t.Errorf("unexpected error context: %+v", stockErr)
	}
	if got := stockOf(t, l, p.ID); got != 10 {
		t.Errorf("stock = %d, want 10", got)
	}
}

func TestDeduct_Validation(t *testing.T) {
	db := testutil.NewDB(t)
	l := NewLedger(db, zap.NewNop(), nil)
	p := testutil.Product(t, db, "Beans", "3.00", 5)

	if _, err := deduct(l, p.ID, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero quantity: expected validation error, got %v", err)
	}
	if _, err := deduct(l, 9999, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown product: expected not found, got %v", err)
	}
}

func TestRestock_AppendsLogAndIncrements(t *testing.T) {
	db := testutil.NewDB(t)
	obs := &recordingObserver{}
	l := NewLedger(db, zap.NewNop(), obs)
	p := testutil.Product(t, db, "Sugar", "5.00", 2)
	staff := testutil.Staff(t, db, "clerk", true, false, false)

	entry, stock, err := l.Restock(context.Background(), p.ID, 8, &staff.ID)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if stock != 10 {
		t.Errorf("stock = %d, want 10", stock)
	}
	if entry.ID == 0 || entry.QuantityAdded != 8 {
		t.Errorf("unexpected restock entry: %+v", entry)
	}
	if len(obs.ids) != 1 || obs.ids[0] != p.ID {
		t.Errorf("observer not notified: %v", obs.ids)
	}

	history, err := l.History(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
	if history[0].ProductName != "Sugar" || history[0].RestockedByUsername != "clerk" {
		t.Errorf("unexpected history row: %+v", history[0])
	}
}

func TestRestock_Errors(t *testing.T) {
	db := testutil.NewDB(t)
	l := NewLedger(db, zap.NewNop(), nil)
	p := testutil.Product(t, db, "Salt", "1.00", 0)

	tests := []struct {
		name string
		id   uint
		qty  int
		want error
	}{
		{"zero", p.ID, 0, apperr.ErrValidation},
		{"too many", p.ID, MaxRestockQuantity + 1, apperr.ErrValidation},
		{"unknown product", 424242, 3, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := l.Restock(context.Background(), tt.id, tt.qty, nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	var count int64
	db.Model(&models.Restock{}).Count(&count)
	if count != 0 {
		t.Errorf("failed restocks must not be logged, found %d rows", count)
	}
}

func TestStockConservation(t *testing.T) {
	db := testutil.NewDB(t)
	l := NewLedger(db, zap.NewNop(), nil)
	p := testutil.Product(t, db, "Oil", "20.00", 5)
	ctx := context.Background()

	sold, restocked := 0, 0
	ops := []struct {
		restock bool
		qty     int
	}{
		{false, 3}, {true, 4}, {false, 7}, {false, 1}, {true, 2}, {false, 5},
	}
	for _, op := range ops {
		if op.restock {
			if _, _, err := l.Restock(ctx, p.ID, op.qty, nil); err != nil {
				t.Fatalf("restock: %v", err)
			}
			restocked += op.qty
			continue
		}
		if _, err := deduct(l, p.ID, op.qty); err == nil {
			sold += op.qty
		} else if !errors.Is(err, apperr.ErrInsufficientStock) {
			t.Fatalf("deduct: %v", err)
		}
	}

	got := stockOf(t, l, p.ID)
	if want := 5 - sold + restocked; got != want {
		t.Errorf("stock = %d, want %d", got, want)
	}
	if got < 0 {
		t.Errorf("stock went negative: %d", got)
	}
}

func TestDeduct_ConcurrentLastUnit(t *testing.T) {
	db := testutil.NewDB(t)
	l := NewLedger(db, zap.NewNop(), nil)
	p := testutil.Product(t, db, "Last Loaf", "2.50", 1)

	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		shortages int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := deduct(l, p.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrInsufficientStock):
				shortages++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || shortages != n-1 {
		t.Errorf("successes=%d shortages=%d, want 1 and %d", successes, shortages, n-1)
	}
	if got := stockOf(t, l, p.ID); got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}
}

func TestLowStock(t *testing.T) {
	db := testutil.NewDB(t)
	l := NewLedger(db, zap.NewNop(), nil)
	testutil.Product(t, db, "Plenty", "1.00", 50)
	testutil.Product(t, db, "Few", "1.00", 3)
	testutil.Product(t, db, "None", "1.00", 0)

	low, err := l.LowStock(context.Background(), 5)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 2 || low[0].Name != "None" || low[1].Name != "Few" {
		t.Errorf("unexpected low stock list: %+v", low)
	}
}
