// Package loyalty keeps customer point balances, spend aggregates and the
// program settings that govern accrual and redemption.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/lock"
	"go-pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var hundred = decimal.NewFromInt(100)

// Ledger mutates customer balances.
type Ledger struct {
	db    *gorm.DB
	log   *zap.Logger
	locks *lock.Manager
}

func NewLedger(db *gorm.DB, log *zap.Logger, locks *lock.Manager) *Ledger {
	return &Ledger{db: db, log: log.Named("loyalty"), locks: locks}
}

// ActiveSettings returns the most recently updated active settings row.
func ActiveSettings(db *gorm.DB) (*models.LoyaltySettings, error) {
	var s models.LoyaltySettings
	err := db.Where("is_active = ?", true).
		Order("updated_at desc, id desc").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrLoyaltyInactive
	}
	if err != nil {
		return nil, fmt.Errorf("load loyalty settings: %w", err)
	}
	return &s, nil
}

// Points is floor(total / points_per_amount).
func Points(total decimal.Decimal, s *models.LoyaltySettings) int {
	if s == nil || !s.PointsPerAmount.IsPositive() || !total.IsPositive() {
		return 0
	}
	return int(total.Div(s.PointsPerAmount).Floor().IntPart())
}

// Discount converts points into currency at the redemption rate.
func Discount(points int, s *models.LoyaltySettings) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Mul(s.RedemptionRate).Div(hundred).Round(2)
}

// Accrue credits a sale to the customer inside tx and returns the points earned.
// Spend and visit counts grow even while the program is inactive; points do not.
func Accrue(tx *gorm.DB, customerID uint, saleTotal decimal.Decimal) (int, error) {
	var customer models.Customer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&customer, customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("customer", customerID)
	}
	if err != nil {
		return 0, fmt.Errorf("load customer %d: %w", customerID, err)
	}

	points := 0
	settings, err := ActiveSettings(tx)
	switch {
	case err == nil:
		points = Points(saleTotal, settings)
	case !errors.Is(err, apperr.ErrLoyaltyInactive):
		return 0, err
	}

	res := tx.Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]interface{}{
			"loyalty_points": gorm.Expr("loyalty_points + ?", points),
			"total_spent":    gorm.Expr("total_spent + ?", saleTotal.Round(2)),
			"total_visits":   gorm.Expr("total_visits + ?", 1),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("update customer %d aggregates: %w", customerID, res.Error)
	}
	return points, nil
}

// Redemption is the outcome of converting points into a discount.
type Redemption struct {
	CustomerID      uint            `json:"customer_id"`
	PointsRedeemed  int             `json:"points_redeemed"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	RemainingPoints int             `json:"remaining_points"`
}

// Redeem converts points into a discount amount and debits the balance.
func (l *Ledger) Redeem(ctx context.Context, customerID uint, points int, staffID *uint) (*Redemption, error) {
	if points <= 0 {
		return nil, apperr.FieldErrors{"points_to_redeem": "Points to redeem must be positive"}
	}

	release := l.locks.Acquire(lock.CustomerKey(customerID))
	defer release()

	var out *Redemption
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&customer, customerID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("customer", customerID)
		}
		if err != nil {
			return fmt.Errorf("load customer %d: %w", customerID, err)
		}

		settings, err := ActiveSettings(tx)
		if err != nil {
			return err
		}

		if customer.LoyaltyPoints < points {
			return &apperr.InsufficientPointsError{CustomerID: customerID, Available: customer.LoyaltyPoints, Requested: points}
		}

		res := tx.Model(&models.Customer{}).
			Where("id = ? AND loyalty_points >= ?", customerID, points).
			UpdateColumn("loyalty_points", gorm.Expr("loyalty_points - ?", points))
		if res.Error != nil {
			return fmt.Errorf("debit points: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &apperr.InsufficientPointsError{CustomerID: customerID, Available: customer.LoyaltyPoints, Requested: points}
		}

		discount := Discount(points, settings)
		if err := tx.Create(&models.LoyaltyRedemption{
			CustomerID:     customerID,
			Points:         points,
			DiscountAmount: discount,
			RedeemedByID:   staffID,
			CreatedAt:      time.Now(),
		}).Error; err != nil {
			return fmt.Errorf("record redemption: %w", err)
		}

		out = &Redemption{
			CustomerID:      customerID,
			PointsRedeemed:  points,
			DiscountAmount:  discount,
			RemainingPoints: customer.LoyaltyPoints - points,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("loyalty points redeemed",
		zap.Uint("customer_id", customerID),
		zap.Int("points", points),
		zap.String("discount", out.DiscountAmount.StringFixed(2)))
	return out, nil
}

// ValidateSettings checks rates before a write.
func ValidateSettings(s *models.LoyaltySettings) error {
	errs := apperr.FieldErrors{}
	if !s.PointsPerAmount.IsPositive() {
		errs.Add("points_per_amount", "Points per amount must be positive")
	}
	if !s.RedemptionRate.IsPositive() {
		errs.Add("redemption_rate", "Redemption rate must be positive")
	}
	return errs.Err()
}

// SaveSettings creates or updates a settings row. Saving an active row
// deactivates every other row in the same transaction. Writers are
// serialized so two concurrent activations cannot both survive.
func (l *Ledger) SaveSettings(ctx context.Context, s *models.LoyaltySettings) error {
	if err := ValidateSettings(s); err != nil {
		return err
	}
	s.PointsPerAmount = s.PointsPerAmount.Round(2)
	s.RedemptionRate = s.RedemptionRate.Round(2)

	release := l.locks.Acquire(lock.SettingsKey)
	defer release()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.ID != 0 {
			var existing models.LoyaltySettings
			if err := tx.First(&existing, s.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("loyalty settings", s.ID)
				}
				return err
			}
			s.CreatedAt = existing.CreatedAt
		}
		if s.IsActive {
			err := tx.Model(&models.LoyaltySettings{}).
				Where("is_active = ? AND id <> ?", true, s.ID).
				Update("is_active", false).Error
			if err != nil {
				return fmt.Errorf("deactivate previous settings: %w", err)
			}
		}
		if err := tx.Save(s).Error; err != nil {
			return fmt.Errorf("save loyalty settings: %w", err)
		}
		return nil
	})
}

func (l *Ledger) ListSettings(ctx context.Context) ([]models.LoyaltySettings, error) {
	var rows []models.LoyaltySettings
	if err := l.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list loyalty settings: %w", err)
	}
	return rows, nil
}

func (l *Ledger) GetSettings(ctx context.Context, id uint) (*models.LoyaltySettings, error) {
	var s models.LoyaltySettings
	err := l.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("loyalty settings", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load loyalty settings %d: %w", id, err)
	}
	return &s, nil
}

func (l *Ledger) DeleteSettings(ctx context.Context, id uint) error {
	res := l.db.WithContext(ctx).Delete(&models.LoyaltySettings{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete loyalty settings: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("loyalty settings", id)
	}
	return nil
}

// Transactions lists a customer's per-sale points history, newest first.
func (l *Ledger) Transactions(ctx context.Context, customerID uint) ([]models.CustomerTransaction, error) {
	var rows []models.CustomerTransaction
	err := l.db.WithContext(ctx).
		Preload("Sale").
		Preload("Sale.Items").
		Where("customer_id = ?", customerID).
		Order("created_at desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list customer transactions: %w", err)
	}
	return rows, nil
}
