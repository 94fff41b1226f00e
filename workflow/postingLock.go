package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireImportLock serializes bulk stock imports across instances using a
// MySQL advisory lock.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the import transaction.
func AcquireImportLock(tx *gorm.DB, warehouseId int) error {
	lockName := fmt.Sprintf("stock-import:%d", warehouseId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire import lock for warehouse_id=%d", warehouseId)
	}
	return nil
}

func ReleaseImportLock(tx *gorm.DB, warehouseId int) {
	lockName := fmt.Sprintf("stock-import:%d", warehouseId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
