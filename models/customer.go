package models

import (
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"gorm.io/gorm"
)

// CustomerRef is the tagged union identifying who a sales document belongs
// to: a distributor, a plain account, or a lead-derived prospect. Documents
// embed it instead of carrying three nullable foreign keys.
type CustomerRef struct {
	CustomerKind CustomerKind `gorm:"type:enum('DISTRIBUTOR','ACCOUNT','LEAD');not null" json:"customer_kind"`
	CustomerId   int          `gorm:"not null;index" json:"customer_id"`
}

// Validate checks the referenced record exists and is active.
func (c CustomerRef) Validate(tx *gorm.DB) error {
	if c.CustomerId <= 0 {
		return utils.NewValidationError("customer id is required")
	}
	var count int64
	var err error
	switch c.CustomerKind {
	case CustomerKindDistributor:
		err = tx.Model(&Distributor{}).Where("id = ? AND is_active = ?", c.CustomerId, true).Count(&count).Error
	case CustomerKindAccount:
		err = tx.Model(&Account{}).Where("id = ? AND is_active = ?", c.CustomerId, true).Count(&count).Error
	case CustomerKindLead:
		err = tx.Model(&Lead{}).Where("id = ? AND is_active = ?", c.CustomerId, true).Count(&count).Error
	default:
		return utils.NewValidationError("invalid customer kind")
	}
	if err != nil {
		return err
	}
	if count <= 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// AsCreditBearing resolves the capability: only distributor customers carry
// a credit line. Returns (nil, false, nil) for accounts and leads.
func (c CustomerRef) AsCreditBearing(tx *gorm.DB) (*Distributor, bool, error) {
	if c.CustomerKind != CustomerKindDistributor {
		return nil, false, nil
	}
	var distributor Distributor
	err := tx.First(&distributor, c.CustomerId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, utils.ErrorRecordNotFound
		}
		return nil, false, err
	}
	return &distributor, true, nil
}

// DisplayName fetches the customer's name for events and documents.
func (c CustomerRef) DisplayName(tx *gorm.DB) (string, error) {
	var name string
	var err error
	switch c.CustomerKind {
	case CustomerKindDistributor:
		err = tx.Model(&Distributor{}).Where("id = ?", c.CustomerId).Select("name").Scan(&name).Error
	case CustomerKindAccount:
		err = tx.Model(&Account{}).Where("id = ?", c.CustomerId).Select("name").Scan(&name).Error
	case CustomerKindLead:
		err = tx.Model(&Lead{}).Where("id = ?", c.CustomerId).Select("name").Scan(&name).Error
	}
	return name, err
}
