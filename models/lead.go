package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// Lead is a prospect that can receive quotations before becoming an account.
// A lead-derived customer is never credit-bearing.
type Lead struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Source    string    `gorm:"size:100" json:"source"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLead struct {
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
}

func CreateLead(ctx context.Context, input *NewLead) (*Lead, error) {

	lead := Lead{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Source:   input.Source,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func GetLead(ctx context.Context, id int) (*Lead, error) {
	return utils.FetchModel[Lead](ctx, id)
}
