// Package catalog manages categories, products and their bulk discounts.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pos-backend/internal/apperr"
	"go-pos-backend/internal/discount"
	"go-pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the product surface used by the HTTP layer and the assistant.
// Store talks to the database; CachedStore puts redis in front of it.
type Catalog interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id uint) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, id uint, c *models.Category) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uint) error

	ListProducts(ctx context.Context, f ProductFilter) ([]ProductView, error)
	GetProduct(ctx context.Context, id uint) (*ProductView, error)
	ProductByBarcode(ctx context.Context, barcode string) (*ProductView, error)
	CreateProduct(ctx context.Context, in ProductInput) (*ProductView, error)
	UpdateProduct(ctx context.Context, id uint, in ProductInput) (*ProductView, error)
	DeleteProduct(ctx context.Context, id uint) error

	ListDiscounts(ctx context.Context, productID *uint) ([]models.BulkDiscount, error)
	GetDiscount(ctx context.Context, id uint) (*models.BulkDiscount, error)
	CreateDiscount(ctx context.Context, d *models.BulkDiscount) error
	UpdateDiscount(ctx context.Context, id uint, d *models.BulkDiscount) (*models.BulkDiscount, error)
	DeleteDiscount(ctx context.Context, id uint) error
}

// ProductView is a product as the till sees it: active discounts embedded,
// per-unit and shelf-label prices resolved.
type ProductView struct {
	models.Product
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DisplayPrice string          `json:"display_price"`
}

func newProductView(p models.Product) ProductView {
	active := make([]models.BulkDiscount, 0, len(p.BulkDiscounts))
	for _, d := range p.BulkDiscounts {
		if d.IsActive {
			active = append(active, d)
		}
	}
	p.BulkDiscounts = active
	return ProductView{
		Product:      p,
		UnitPrice:    p.UnitPrice().Round(2),
		DisplayPrice: p.DisplayPrice(),
	}
}

// ProductFilter narrows ListProducts. Search matches name or barcode.
type ProductFilter struct {
	Search     string
	CategoryID *uint
}

func (f ProductFilter) empty() bool {
	return f.Search == "" && f.CategoryID == nil
}

// ProductInput carries a create or a partial update. Nil fields are left alone.
type ProductInput struct {
	Name          *string          `json:"name"`
	CategoryID    *uint            `json:"category_id"`
	Price         *decimal.Decimal `json:"price"`
	CostPrice     *decimal.Decimal `json:"cost_price"`
	Stock         *int             `json:"stock"`
	Barcode       *string          `json:"barcode"`
	IsBulkProduct *bool            `json:"is_bulk_product"`
	BulkQuantity  *int             `json:"bulk_quantity"`
	BulkPrice     *decimal.Decimal `json:"bulk_price"`
	UnitOfMeasure *string          `json:"unit_of_measure"`
}

func (in ProductInput) apply(p *models.Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.CategoryID != nil {
		id := *in.CategoryID
		p.CategoryID = &id
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.CostPrice != nil {
		p.CostPrice = *in.CostPrice
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Barcode != nil {
		p.Barcode = *in.Barcode
	}
	if in.IsBulkProduct != nil {
		p.IsBulkProduct = *in.IsBulkProduct
	}
	if in.BulkQuantity != nil {
		p.BulkQuantity = *in.BulkQuantity
	}
	if in.BulkPrice != nil {
		v := *in.BulkPrice
		p.BulkPrice = &v
	}
	if in.UnitOfMeasure != nil {
		p.UnitOfMeasure = *in.UnitOfMeasure
	}
}

// Store is the database-backed Catalog.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log.Named("catalog")}
}

// --- Categories ---

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load category %d: %w", id, err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	if err := ValidateCategory(c); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueName(tx, c.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateCategory(ctx context.Context, id uint, in *models.Category) (*models.Category, error) {
	if err := ValidateCategory(in); err != nil {
		return nil, err
	}
	var out models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("category", id)
			}
			return err
		}
		if err := uniqueName(tx, in.Name, id); err != nil {
			return err
		}
		out.Name = in.Name
		out.Description = in.Description
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCategory detaches the category's products before removing it.
func (s *Store) DeleteCategory(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).
			Where("category_id = ?", id).
			UpdateColumn("category_id", nil).Error; err != nil {
			return fmt.Errorf("detach products: %w", err)
		}
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete category: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("category", id)
		}
		return nil
	})
}

func uniqueName(tx *gorm.DB, name string, exceptID uint) error {
	var n int64
	if err := tx.Model(&models.Category{}).Where("name = ? AND id <> ?", name, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("category %q already exists: %w", name, apperr.ErrConflict)
	}
	return nil
}

// --- Products ---

func (s *Store) productQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Category").
		Preload("BulkDiscounts", "is_active = ?", true)
}

func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]ProductView, error) {
	q := s.productQuery(ctx).Order("name, id")
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR barcode LIKE ?", like, "%"+term+"%")
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}

	var rows []models.Product
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]ProductView, 0, len(rows))
	for _, p := range rows {
		out = append(out, newProductView(p))
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id uint) (*ProductView, error) {
	var p models.Product
	err := s.productQuery(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	v := newProductView(p)
	return &v, nil
}

func (s *Store) ProductByBarcode(ctx context.Context, barcode string) (*ProductView, error) {
	var p models.Product
	err := s.productQuery(ctx).Where("barcode = ?", barcode).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product with barcode", barcode)
	}
	if err != nil {
		return nil, fmt.Errorf("scan barcode %s: %w", barcode, err)
	}
	v := newProductView(p)
	return &v, nil
}

func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*ProductView, error) {
	p := models.Product{BulkQuantity: 1, UnitOfMeasure: "units"}
	in.apply(&p)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkProduct(tx, &p); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("product created", zap.Uint("product_id", p.ID), zap.String("barcode", p.Barcode))
	return s.GetProduct(ctx, p.ID)
}

func (s *Store) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*ProductView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product", id)
			}
			return err
		}
		in.apply(&p)
		if err := s.checkProduct(tx, &p); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&p).Error; err != nil {
			return fmt.Errorf("update product %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) checkProduct(tx *gorm.DB, p *models.Product) error {
	if err := ValidateProduct(p); err != nil {
		return err
	}
	if p.CategoryID != nil {
		var n int64
		if err := tx.Model(&models.Category{}).Where("id = ?", *p.CategoryID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.FieldErrors{"category_id": fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *p.CategoryID)}
		}
	}
	var dup int64
	if err := tx.Model(&models.Product{}).Where("barcode = ? AND id <> ?", p.Barcode, p.ID).Count(&dup).Error; err != nil {
		return err
	}
	if dup > 0 {
		return fmt.Errorf("barcode %s already in use: %w", p.Barcode, apperr.ErrConflict)
	}
	return nil
}

// DeleteProduct refuses while sale history references the product.
func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sold int64
		if err := tx.Model(&models.SaleItem{}).Where("product_id = ?", id).Count(&sold).Error; err != nil {
			return err
		}
		if sold > 0 {
			return fmt.Errorf("product %d has sales history and cannot be deleted: %w", id, apperr.ErrConflict)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.BulkDiscount{}).Error; err != nil {
			return fmt.Errorf("delete discounts: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Restock{}).Error; err != nil {
			return fmt.Errorf("delete restocks: %w", err)
		}
		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("product", id)
		}
		return nil
	})
}

// --- Bulk discounts ---

func (s *Store) ListDiscounts(ctx context.Context, productID *uint) ([]models.BulkDiscount, error) {
	q := s.db.WithContext(ctx).Order("product_id, minimum_quantity, id")
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	var out []models.BulkDiscount
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return out, nil
}

func (s *Store) GetDiscount(ctx context.Context, id uint) (*models.BulkDiscount, error) {
	var d models.BulkDiscount
	err := s.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("bulk discount", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load discount %d: %w", id, err)
	}
	return &d, nil
}

func (s *Store) CreateDiscount(ctx context.Context, d *models.BulkDiscount) error {
	if d.StartDate.IsZero() {
		d.StartDate = time.Now()
	}
	if err := discount.Validate(d); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := productExists(tx, d.ProductID); err != nil {
			return err
		}
		if err := tx.Create(d).Error; err != nil {
			return fmt.Errorf("create discount: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateDiscount(ctx context.Context, id uint, in *models.BulkDiscount) (*models.BulkDiscount, error) {
	if err := discount.Validate(in); err != nil {
		return nil, err
	}
	var out models.BulkDiscount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("bulk discount", id)
			}
			return err
		}
		if err := productExists(tx, in.ProductID); err != nil {
			return err
		}
		in.ID = id
		out = *in
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteDiscount(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.BulkDiscount{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete discount: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("bulk discount", id)
	}
	return nil
}

func productExists(tx *gorm.DB, id uint) error {
	var n int64
	if err := tx.Model(&models.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.FieldErrors{"product": fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)}
	}
	return nil
}
