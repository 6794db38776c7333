package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID            uint64          `gorm:"primaryKey;column:id" json:"-"`
	ProductID     string          `gorm:"size:32;uniqueIndex:ux_products_product_id" json:"product_id"`
	Name          string          `gorm:"size:128" json:"name"`
	MaxLoanAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"max_loan_amount"`
	MinTenor      int             `json:"min_tenor"`
	MaxTenor      int             `json:"max_tenor"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// AcceptsTenor reports whether tenor (months) is inside the product bounds.
// Zero bounds are open.
func (p *Product) AcceptsTenor(tenor int) bool {
	if tenor <= 0 {
		return false
	}
	if p.MinTenor > 0 && tenor < p.MinTenor {
		return false
	}
	if p.MaxTenor > 0 && tenor > p.MaxTenor {
		return false
	}
	return true
}
