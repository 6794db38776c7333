package mysql

import (
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/approval"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/product"

	"gorm.io/gorm"
)

// Migrate creates or updates the loans, approval_histories and products tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&loan.Loan{}, &approval.History{}, &product.Product{})
}
