package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentNumberSeries hands out per-module document numbers (SO-000123).
// NextDocumentNumber takes a row lock so two concurrent documents in the
// same module never share a number.
type DocumentNumberSeries struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ModuleName string    `gorm:"size:50;uniqueIndex;not null" json:"module_name"`
	Prefix     string    `gorm:"size:10;not null" json:"prefix"`
	NextNumber int       `gorm:"not null;default:1" json:"next_number"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	ModuleSalesOrder   = "SALES_ORDER"
	ModuleQuotation    = "QUOTATION"
	ModuleSalesInvoice = "SALES_INVOICE"
)

var defaultSeriesPrefixes = map[string]string{
	ModuleSalesOrder:   "SO-",
	ModuleQuotation:    "QT-",
	ModuleSalesInvoice: "INV-",
}

// NextDocumentNumber allocates the next number for a module inside the
// caller's transaction, seeding the series row on first use.
func NextDocumentNumber(tx *gorm.DB, moduleName string) (string, error) {
	var series DocumentNumberSeries
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("module_name = ?", moduleName).
		First(&series).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return "", err
		}
		prefix, ok := defaultSeriesPrefixes[moduleName]
		if !ok {
			return "", fmt.Errorf("unknown document module %q", moduleName)
		}
		series = DocumentNumberSeries{
			ModuleName: moduleName,
			Prefix:     prefix,
			NextNumber: 1,
		}
		if err := tx.Create(&series).Error; err != nil {
			return "", err
		}
	}

	number := fmt.Sprintf("%s%06d", series.Prefix, series.NextNumber)
	err = tx.Model(&series).Update("NextNumber", series.NextNumber+1).Error
	if err != nil {
		return "", err
	}
	return number, nil
}
