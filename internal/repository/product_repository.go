package repository

import (
	"context"

	"gorm.io/gorm"

	"localmart/internal/domain/product"
)

type PostgresProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &PostgresProductRepository{db: db}
}

func (r *PostgresProductRepository) ListLowStock(ctx context.Context, threshold int) ([]product.Product, error) {
	var products []product.Product
	err := r.db.WithContext(ctx).
		Where("stock <= ?", threshold).
		Order("shop_id, stock ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
