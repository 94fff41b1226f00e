package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Distributor is a credit-bearing customer. Credit fields are mutated only
// through the credit policy functions in workflow/, each mutation paired
// with exactly one CreditLedgerEntry in the same transaction.
type Distributor struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Name              string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email             string          `gorm:"size:100" json:"email"`
	Phone             string          `gorm:"size:20" json:"phone"`
	Mobile            string          `gorm:"size:20" json:"mobile"`
	Address           string          `gorm:"type:text" json:"address"`
	CreditLimit       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"credit_limit"`
	CurrentCreditUsed decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"current_credit_used"`
	CreditStatus      CreditStatus    `gorm:"type:enum('ACTIVE','SUSPENDED');default:'ACTIVE'" json:"credit_status"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// AvailableCredit is limit minus used. Can be negative after an explicit
// override or a limit decrease; normal admission never drives it below zero.
func (d *Distributor) AvailableCredit() decimal.Decimal {
	return d.CreditLimit.Sub(d.CurrentCreditUsed)
}

// UtilizationPct is used/limit*100, zero when no limit is set.
func (d *Distributor) UtilizationPct() decimal.Decimal {
	if d.CreditLimit.IsZero() {
		return decimal.Zero
	}
	return d.CurrentCreditUsed.Div(d.CreditLimit).Mul(decimal.NewFromInt(100))
}

type NewDistributor struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewDistributor) validate(ctx context.Context, id int) error {
	// name
	if err := utils.ValidateUnique[Distributor](ctx, "name", input.Name, id); err != nil {
		return err
	}
	// email
	if len(strings.TrimSpace(input.Email)) > 0 && !utils.IsValidEmail(input.Email) {
		return utils.NewValidationError("email is not valid")
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return utils.NewValidationError("phone number is not valid")
		}
	}
	// mobile
	if len(strings.TrimSpace(input.Mobile)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Mobile, utils.CountryCode); err != nil {
			return utils.NewValidationError("mobile number is not valid")
		}
	}
	return nil
}

func CreateDistributor(ctx context.Context, input *NewDistributor) (*Distributor, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	distributor := Distributor{
		Name:              input.Name,
		Email:             input.Email,
		Phone:             input.Phone,
		Mobile:            input.Mobile,
		Address:           input.Address,
		CreditLimit:       decimal.Zero,
		CurrentCreditUsed: decimal.Zero,
		CreditStatus:      CreditStatusActive,
		IsActive:          utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&distributor).Error
	if err != nil {
		return nil, err
	}
	return &distributor, nil
}

func UpdateDistributor(ctx context.Context, id int, input *NewDistributor) (*Distributor, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	distributor, err := utils.FetchModel[Distributor](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&distributor).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Email":   input.Email,
		"Phone":   input.Phone,
		"Mobile":  input.Mobile,
		"Address": input.Address,
	}).Error
	if err != nil {
		return nil, err
	}

	return distributor, nil
}

// Distributors are never hard-deleted; credit history must survive.
func DeactivateDistributor(ctx context.Context, id int) (*Distributor, error) {

	distributor, err := utils.FetchModel[Distributor](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&distributor).Update("IsActive", false).Error
	if err != nil {
		return nil, err
	}
	return distributor, nil
}

func SuspendDistributorCredit(ctx context.Context, id int) (*Distributor, error) {
	return setDistributorCreditStatus(ctx, id, CreditStatusSuspended)
}

func ResumeDistributorCredit(ctx context.Context, id int) (*Distributor, error) {
	return setDistributorCreditStatus(ctx, id, CreditStatusActive)
}

func setDistributorCreditStatus(ctx context.Context, id int, status CreditStatus) (*Distributor, error) {
	distributor, err := utils.FetchModel[Distributor](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&distributor).Update("CreditStatus", status).Error
	if err != nil {
		return nil, err
	}
	return distributor, nil
}

func GetDistributor(ctx context.Context, id int) (*Distributor, error) {
	return utils.FetchModel[Distributor](ctx, id)
}

func GetDistributors(ctx context.Context) ([]*Distributor, error) {
	db := config.GetDB()
	var distributors []*Distributor
	err := db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&distributors).Error
	if err != nil {
		return nil, err
	}
	return distributors, nil
}

// GetActiveCreditDistributors returns ACTIVE distributors with a limit set,
// the population the credit monitor scans.
func GetActiveCreditDistributors(tx *gorm.DB) ([]*Distributor, error) {
	var distributors []*Distributor
	err := tx.
		Where("is_active = ? AND credit_status = ? AND credit_limit > 0", true, CreditStatusActive).
		Order("id ASC").
		Find(&distributors).Error
	if err != nil {
		return nil, err
	}
	return distributors, nil
}
