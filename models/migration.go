package models

import (
	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// MigrateTable auto-migrates every engine table. Order matters for FK-ish
// lookups in tests: catalogs first, then documents and ledgers.
func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&Warehouse{},
		&Product{},
		&Distributor{},
		&Account{},
		&Lead{},
		&Setting{},
		&DocumentNumberSeries{},
		&StockItem{},
		&StockMovement{},
		&CreditLedgerEntry{},
		&SalesOrder{},
		&SalesOrderDetail{},
		&Quotation{},
		&QuotationDetail{},
		&SalesInvoice{},
		&SalesInvoiceDetail{},
		&NotificationRecord{},
	)
	utils.ErrorPanic(err)
}
