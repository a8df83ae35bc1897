// Package testutil opens throwaway sqlite databases and seeds fixtures for package tests.
package testutil

import (
	"strings"
	"testing"
	"time"

	"go-pos-backend/internal/database"
	"go-pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a unique in-memory database per test and migrates every model.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	return OpenDB(t, t.Name())
}

// OpenDB is NewDB with an explicit database name, for suites that need
// several databases inside one test (one per godog scenario).
func OpenDB(t testing.TB, name string) *gorm.DB {
	t.Helper()
	name = strings.NewReplacer("/", "_", " ", "_", "#", "_", "?", "_", "&", "_").Replace(name)
	dsn := "file:" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// D parses a decimal literal and fails loudly on typos.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DP is D returning a pointer.
func DP(s string) *decimal.Decimal {
	d := D(s)
	return &d
}

func Product(t testing.TB, db *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		Price:         D(price),
		CostPrice:     D(price).Div(decimal.NewFromInt(2)).Round(2),
		Stock:         stock,
		Barcode:       "BC-" + strings.ReplaceAll(strings.ToUpper(name), " ", "-"),
		BulkQuantity:  1,
		UnitOfMeasure: "units",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func Staff(t testing.TB, db *gorm.DB, username string, cashier, manager, admin bool) *models.Staff {
	t.Helper()
	s := &models.Staff{
		Username:     username,
		PasswordHash: "x",
		IsCashier:    cashier,
		IsManager:    manager,
		IsAdmin:      admin,
		IsActive:     true,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create staff %s: %v", username, err)
	}
	return s
}

func Customer(t testing.TB, db *gorm.DB, name, phone string, points int) *models.Customer {
	t.Helper()
	c := &models.Customer{Name: name, Phone: phone, LoyaltyPoints: points, TotalSpent: decimal.Zero}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create customer %s: %v", name, err)
	}
	return c
}

func LoyaltySettings(t testing.TB, db *gorm.DB, pointsPerAmount, redemptionRate string) *models.LoyaltySettings {
	t.Helper()
	s := &models.LoyaltySettings{
		PointsPerAmount: D(pointsPerAmount),
		RedemptionRate:  D(redemptionRate),
		IsActive:        true,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create loyalty settings: %v", err)
	}
	return s
}

func Discount(t testing.TB, db *gorm.DB, productID uint, kind string, minQty int, value string) *models.BulkDiscount {
	t.Helper()
	d := &models.BulkDiscount{
		Name:            kind + " deal",
		DiscountType:    kind,
		MinimumQuantity: minQty,
		DiscountValue:   D(value),
		ProductID:       productID,
		IsActive:        true,
		StartDate:       time.Now().Add(-time.Hour),
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("create discount: %v", err)
	}
	return d
}
