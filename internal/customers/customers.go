// Package customers manages loyalty card holders.
package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/lock"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Input is what staff may set on a customer. Points and totals are owned by
// the loyalty ledger and never written from here.
type Input struct {
	Phone string `json:"phone" validate:"required,phone"`
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"omitempty,max=254,shopemail"`
	Notes string `json:"notes"`
}

func (in *Input) normalize() {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
}

// Filter matches phone and name case-insensitively by substring.
type Filter struct {
	Phone string
	Name  string
}

type Store struct {
	db    *gorm.DB
	locks *lock.Manager
	log   *zap.Logger
}

func NewStore(db *gorm.DB, locks *lock.Manager, log *zap.Logger) *Store {
	return &Store{db: db, locks: locks, log: log.Named("customers")}
}

func (s *Store) List(ctx context.Context, f Filter) ([]models.Customer, error) {
	q := s.db.WithContext(ctx).Order("created_at desc, id desc")
	if f.Phone != "" {
		q = q.Where("LOWER(phone) LIKE ?", "%"+strings.ToLower(f.Phone)+"%")
	}
	if f.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
	}
	var out []models.Customer
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("customer", id)
		}
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return &c, nil
}

func (s *Store) Create(ctx context.Context, in Input) (*models.Customer, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	c := &models.Customer{
		Phone:      in.Phone,
		Name:       in.Name,
		Email:      in.Email,
		Notes:      in.Notes,
		TotalSpent: decimal.Zero,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniquePhone(tx, in.Phone, 0); err != nil {
			return err
		}
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("customer created", zap.Uint("customer_id", c.ID))
	return c, nil
}

// Update rewrites the contact fields. It takes the customer lock so it cannot
// interleave with a sale or redemption touching the same row.
func (s *Store) Update(ctx context.Context, id uint, in Input) (*models.Customer, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	release := s.locks.Acquire(lock.CustomerKey(id))
	defer release()

	var c models.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("customer", id)
			}
			return err
		}
		if err := uniquePhone(tx, in.Phone, id); err != nil {
			return err
		}
		c.Phone, c.Name, c.Email, c.Notes = in.Phone, in.Name, in.Email, in.Notes
		return tx.Model(&c).Select("phone", "name", "email", "notes").Updates(&c).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes the customer with its points history. Past sales stay and
// lose the customer reference.
func (s *Store) Delete(ctx context.Context, id uint) error {
	release := s.locks.Acquire(lock.CustomerKey(id))
	defer release()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("customer_id = ?", id).Delete(&models.CustomerTransaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("customer_id = ?", id).Delete(&models.LoyaltyRedemption{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SaleTransaction{}).Where("customer_id = ?", id).Update("customer_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Customer{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("customer", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("customer deleted", zap.Uint("customer_id", id))
	return nil
}

func uniquePhone(tx *gorm.DB, phone string, exceptID uint) error {
	var n int64
	if err := tx.Model(&models.Customer{}).Where("phone = ? AND id <> ?", phone, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("customer with phone %s already exists: %w", phone, apperr.ErrConflict)
	}
	return nil
}
