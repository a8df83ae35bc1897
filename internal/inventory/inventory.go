// Package inventory owns product stock counts and the restock audit log.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxRestockQuantity bounds a single restock entry.
const MaxRestockQuantity = 10000

// StockObserver is told which products changed stock after a commit.
type StockObserver interface {
	StockChanged(ctx context.Context, productIDs ...uint)
}

type noopObserver struct{}

func (noopObserver) StockChanged(context.Context, ...uint) {}

// NoopObserver ignores stock changes.
var NoopObserver StockObserver = noopObserver{}

// Ledger performs stock mutations.
type Ledger struct {
	db       *gorm.DB
	log      *zap.Logger
	observer StockObserver
}

func NewLedger(db *gorm.DB, log *zap.Logger, observer StockObserver) *Ledger {
	if observer == nil {
		observer = NoopObserver
	}
	return &Ledger{db: db, log: log.Named("inventory"), observer: observer}
}

// Deduct removes qty units from a product inside tx. The update only matches
// while enough stock remains, so stock can never go negative even if another
// writer slipped in after the caller's read.
func Deduct(tx *gorm.DB, productID uint, qty int) (newStock int, err error) {
	if qty <= 0 {
		return 0, apperr.FieldErrors{"quantity": "Quantity must be positive"}
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return 0, fmt.Errorf("deduct stock for product %d: %w", productID, res.Error)
	}

	var p models.Product
	if err := tx.Select("id", "name", "stock").First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.NotFound("product", productID)
		}
		return 0, fmt.Errorf("read stock for product %d: %w", productID, err)
	}

	if res.RowsAffected == 0 {
		return p.Stock, &apperr.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.Stock,
			Requested:   qty,
		}
	}
	return p.Stock, nil
}

// Restock adds qty units and appends the audit row in one transaction.
func (l *Ledger) Restock(ctx context.Context, productID uint, qty int, staffID *uint) (*models.Restock, int, error) {
	if qty <= 0 {
		return nil, 0, apperr.FieldErrors{"quantity": "Quantity added must be positive"}
	}
	if qty > MaxRestockQuantity {
		return nil, 0, apperr.FieldErrors{"quantity": "Quantity too high"}
	}

	var (
		entry *models.Restock
		stock int
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ?", productID).
			UpdateColumn("stock", gorm.Expr("stock + ?", qty))
		if res.Error != nil {
			return fmt.Errorf("increment stock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("product", productID)
		}

		entry = &models.Restock{
			ProductID:     productID,
			QuantityAdded: qty,
			RestockedByID: staffID,
			RestockedAt:   time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("record restock: %w", err)
		}

		var p models.Product
		if err := tx.Select("stock").First(&p, productID).Error; err != nil {
			return fmt.Errorf("read stock: %w", err)
		}
		stock = p.Stock
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	l.log.Info("product restocked",
		zap.Uint("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("stock", stock))
	l.observer.StockChanged(ctx, productID)
	return entry, stock, nil
}

// HistoryEntry is one row of the restock log as shown to staff.
type HistoryEntry struct {
	ID                  uint      `json:"id"`
	ProductID           uint      `json:"product_id"`
	ProductName         string    `json:"product_name"`
	QuantityAdded       int       `json:"quantity_added"`
	RestockedByUsername string    `json:"restocked_by_username"`
	RestockedAt         time.Time `json:"restocked_at"`
}

// History lists restocks newest first. limit <= 0 returns everything.
func (l *Ledger) History(ctx context.Context, productID *uint, limit int) ([]HistoryEntry, error) {
	q := l.db.WithContext(ctx).
		Preload("Product").
		Preload("RestockedBy").
		Order("restocked_at desc, id desc")
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []models.Restock
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list restocks: %w", err)
	}

	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		e := HistoryEntry{
			ID:            r.ID,
			ProductID:     r.ProductID,
			QuantityAdded: r.QuantityAdded,
			RestockedAt:   r.RestockedAt,
		}
		if r.Product != nil {
			e.ProductName = r.Product.Name
		}
		if r.RestockedBy != nil {
			e.RestockedByUsername = r.RestockedBy.Username
		}
		out = append(out, e)
	}
	return out, nil
}

// LowStock returns products at or below threshold, emptiest first.
func (l *Ledger) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	var products []models.Product
	err := l.db.WithContext(ctx).
		Where("stock <= ?", threshold).
		Order("stock asc, name asc").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("low stock query: %w", err)
	}
	return products, nil
}
