package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer - A loyalty card holder
type Customer struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Phone         string          `gorm:"uniqueIndex;size:15;not null" json:"phone"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Email         string          `gorm:"size:254" json:"email"`
	LoyaltyPoints int             `gorm:"not null;default:0" json:"loyalty_points"`
	TotalSpent    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_spent"`
	TotalVisits   int             `gorm:"not null;default:0" json:"total_visits"`
	CreatedAt     time.Time       `json:"created_at"`
	Notes         string          `gorm:"type:text" json:"notes"`
}

// CustomerTransaction - Points movement recorded against one sale
type CustomerTransaction struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	CustomerID     uint             `gorm:"uniqueIndex:idx_customer_sale;not null" json:"customer"`
	Customer       *Customer        `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	SaleID         uint             `gorm:"uniqueIndex:idx_customer_sale;not null" json:"sale"`
	Sale           *SaleTransaction `gorm:"constraint:OnDelete:CASCADE;" json:"sale_details,omitempty"`
	PointsEarned   int              `gorm:"not null;default:0" json:"points_earned"`
	PointsRedeemed int              `gorm:"not null;default:0" json:"points_redeemed"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LoyaltySettings - Accrual and redemption rates. Only one row is active.
type LoyaltySettings struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PointsPerAmount decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"points_per_amount"`
	RedemptionRate  decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"redemption_rate"`
	IsActive        bool            `gorm:"not null;index" json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LoyaltyRedemption - Audit row for every points redemption
type LoyaltyRedemption struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CustomerID     uint            `gorm:"index;not null" json:"customer_id"`
	Customer       *Customer       `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Points         int             `gorm:"not null" json:"points"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	RedeemedByID   *uint           `json:"redeemed_by_id"`
	RedeemedBy     *Staff          `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Category{},
		&Product{},
		&BulkDiscount{},
		&Staff{},
		&Customer{},
		&SaleTransaction{},
		&SaleItem{},
		&Restock{},
		&CustomerTransaction{},
		&LoyaltySettings{},
		&LoyaltyRedemption{},
	}
}
