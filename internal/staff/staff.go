// Package staff handles till accounts: sign-in, registration and the
// manager-facing directory.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/auth"
	"go-pos-backend/internal/models"
	"go-pos-backend/internal/validation"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrBadCredentials = errors.New("invalid credentials")

type Registration struct {
	Username  string `json:"username" validate:"required,min=3,max=150,username"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Email     string `json:"email" validate:"omitempty,max=254,shopemail"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type Directory struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDirectory(db *gorm.DB, log *zap.Logger) *Directory {
	return &Directory{db: db, log: log.Named("staff")}
}

// Authenticate returns the active account matching the credentials. Unknown
// users, inactive users and wrong passwords all yield ErrBadCredentials.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*models.Staff, error) {
	var s models.Staff
	err := d.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("look up %s: %w", username, err)
	}
	if !s.IsActive || !auth.CheckPassword(s.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return &s, nil
}

// Register creates an account. The very first account becomes the admin;
// later ones are cashiers until a manager changes them.
func (d *Directory) Register(ctx context.Context, in Registration) (*models.Staff, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s := &models.Staff{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
	}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total, taken int64
		if err := tx.Model(&models.Staff{}).Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Staff{}).Where("username = ?", in.Username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("username %s is taken: %w", in.Username, apperr.ErrConflict)
		}
		if total == 0 {
			s.IsAdmin = true
		} else {
			s.IsCashier = true
		}
		return tx.Create(s).Error
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("staff registered", zap.String("username", s.Username), zap.String("role", s.Role()))
	return s, nil
}

func (d *Directory) List(ctx context.Context) ([]models.Staff, error) {
	var out []models.Staff
	if err := d.db.WithContext(ctx).Order("username").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return out, nil
}

func (d *Directory) Get(ctx context.Context, id uint) (*models.Staff, error) {
	var s models.Staff
	if err := d.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("staff", id)
		}
		return nil, fmt.Errorf("get staff %d: %w", id, err)
	}
	return &s, nil
}

// Delete removes an account. Sales, restocks and redemptions it recorded
// keep their rows with the staff reference cleared.
func (d *Directory) Delete(ctx context.Context, id uint) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SaleTransaction{}).Where("cashier_id = ?", id).Update("cashier_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Restock{}).Where("restocked_by_id = ?", id).Update("restocked_by_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.LoyaltyRedemption{}).Where("redeemed_by_id = ?", id).Update("redeemed_by_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Staff{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("staff", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.log.Info("staff deleted", zap.Uint("staff_id", id))
	return nil
}
