package loyalty

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/lock"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/testutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewLedger(db, zap.NewNop(), lock.NewManager()), db
}

func accrue(t *testing.T, db *gorm.DB, customerID uint, total string) (int, error) {
	t.Helper()
	var points int
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		points, err = Accrue(tx, customerID, testutil.D(total))
		return err
	})
	return points, err
}

func reload(t *testing.T, db *gorm.DB, id uint) models.Customer {
	t.Helper()
	var c models.Customer
	if err := db.First(&c, id).Error; err != nil {
		t.Fatalf("load customer: %v", err)
	}
	return c
}

func TestPoints(t *testing.T) {
	s := &models.LoyaltySettings{PointsPerAmount: testutil.D("100")}
	tests := []struct {
		total string
		want  int
	}{
		{"0", 0},
		{"99.99", 0},
		{"100", 1},
		{"250.00", 2},
		{"1999.99", 19},
	}
	for _, tt := range tests {
		if got := Points(testutil.D(tt.total), s); got != tt.want {
			t.Errorf("Points(%s) = %d, want %d", tt.total, got, tt.want)
		}
	}
	if got := Points(testutil.D("500"), nil); got != 0 {
		t.Errorf("nil settings should earn nothing, got %d", got)
	}
}

func TestRedeem(t *testing.T) {
	l, db := newLedger(t)
	testutil.LoyaltySettings(t, db, "100", "100")
	c := testutil.Customer(t, db, "Ada", "08030000001", 50)

	r, err := l.Redeem(context.Background(), c.ID, 20, nil)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !r.DiscountAmount.Equal(testutil.D("20")) {
		t.Errorf("discount = %s, want 20", r.DiscountAmount)
	}
	if r.RemainingPoints != 30 {
		t.Errorf("remaining = %d, want 30", r.RemainingPoints)
	}
	if got := reload(t, db, c.ID).LoyaltyPoints; got != 30 {
		t.Errorf("stored points = %d, want 30", got)
	}

	var audits int64
	db.Model(&models.LoyaltyRedemption{}).Where("customer_id = ?", c.ID).Count(&audits)
	if audits != 1 {
		t.Errorf("expected one redemption audit row, got %d", audits)
	}
}

func TestRedeem_Failures(t *testing.T) {
	l, db := newLedger(t)
	c := testutil.Customer(t, db, "Bola", "08030000002", 10)

	if _, err := l.Redeem(context.Background(), c.ID, 5, nil); !errors.Is(err, apperr.ErrLoyaltyInactive) {
		t.Fatalf("expected loyalty inactive, got %v", err)
	}

	testutil.LoyaltySettings(t, db, "100", "50")

	tests := []struct {
		name     string
		customer uint
		points   int
		want     error
	}{
		{"unknown customer", 9999, 1, apperr.ErrNotFound},
		{"more than balance", c.ID, 11, apperr.ErrInsufficientPoints},
		{"non-positive", c.ID, 0, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Redeem(context.Background(), tt.customer, tt.points, nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if got := reload(t, db, c.ID).LoyaltyPoints; got != 10 {
		t.Errorf("failed redemptions must not change the balance, got %d", got)
	}
}

func TestAccrueThenRedeemRoundTrip(t *testing.T) {
	l, db := newLedger(t)
	testutil.LoyaltySettings(t, db, "10", "100")
	c := testutil.Customer(t, db, "Chidi", "08030000003", 7)
	ctx := context.Background()

	earned, err := accrue(t, db, c.ID, "125.50")
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if earned != 12 {
		t.Fatalf("earned = %d, want 12", earned)
	}
	if _, err := l.Redeem(ctx, c.ID, earned, nil); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	got := reload(t, db, c.ID)
	if got.LoyaltyPoints != 7 {
		t.Errorf("points = %d, want pre-accrual balance 7", got.LoyaltyPoints)
	}
	if got.TotalVisits != 1 || !got.TotalSpent.Equal(testutil.D("125.50")) {
		t.Errorf("aggregates not updated: visits=%d spent=%s", got.TotalVisits, got.TotalSpent)
	}
}

func TestAccrue_InactiveStillCountsVisit(t *testing.T) {
	_, db := newLedger(t)
	c := testutil.Customer(t, db, "Dayo", "08030000004", 0)

	earned, err := accrue(t, db, c.ID, "900")
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if earned != 0 {
		t.Errorf("earned = %d, want 0 with no active settings", earned)
	}
	got := reload(t, db, c.ID)
	if got.TotalVisits != 1 || !got.TotalSpent.Equal(testutil.D("900")) {
		t.Errorf("aggregates not updated: visits=%d spent=%s", got.TotalVisits, got.TotalSpent)
	}
}

func TestSaveSettings_SingleActive(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	first := &models.LoyaltySettings{PointsPerAmount: testutil.D("100"), RedemptionRate: testutil.D("100"), IsActive: true}
	if err := l.SaveSettings(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	second := &models.LoyaltySettings{PointsPerAmount: testutil.D("50"), RedemptionRate: testutil.D("80"), IsActive: true}
	if err := l.SaveSettings(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	rows, err := l.ListSettings(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, r := range rows {
		if r.IsActive {
			active++
			if r.ID != second.ID {
				t.Errorf("expected the latest save to be active, got #%d", r.ID)
			}
		}
	}
	if active != 1 {
		t.Errorf("active rows = %d, want 1", active)
	}

	bad := &models.LoyaltySettings{PointsPerAmount: testutil.D("0"), RedemptionRate: testutil.D("-1")}
	if err := l.SaveSettings(ctx, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	if err := l.DeleteSettings(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ActiveSettings(l.db); !errors.Is(err, apperr.ErrLoyaltyInactive) {
		t.Errorf("expected inactive after deleting the active row, got %v", err)
	}
	if err := l.DeleteSettings(ctx, second.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestSaveSettings_ConcurrentActivations(t *testing.T) {
	l, db := newLedger(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := &models.LoyaltySettings{
				PointsPerAmount: testutil.D("100"),
				RedemptionRate:  testutil.D("100"),
				IsActive:        true,
			}
			if err := l.SaveSettings(ctx, s); err != nil {
				t.Errorf("save %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	var active int64
	db.Model(&models.LoyaltySettings{}).Where("is_active = ?", true).Count(&active)
	if active != 1 {
		t.Errorf("active rows = %d, want 1", active)
	}
}

func TestGetSettings(t *testing.T) {
	l, db := newLedger(t)
	ctx := context.Background()
	saved := testutil.LoyaltySettings(t, db, "10", "100")

	got, err := l.GetSettings(ctx, saved.ID)
	if err != nil || got.ID != saved.ID {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := l.GetSettings(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()
	got, err = l.GetSettings(ctx, saved.ID)
	if err == nil || got != nil {
		t.Errorf("closed database: expected nil settings and an error, got %+v %v", got, err)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("closed database reported as not found: %v", err)
	}
}
