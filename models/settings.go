package models

import (
	"context"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Setting is one key/value row of business-level configuration.
type Setting struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Key       string    `gorm:"column:setting_key;size:100;uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedBy string    `gorm:"size:100" json:"updated_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	SettingKeyCreditCheckEnabled = "credit_check_enabled"
	SettingKeyAlertThresholdPct  = "credit_alert_threshold_pct"
	SettingKeyOverdueDays        = "credit_overdue_days"
	SettingKeySettlementCurrency = "settlement_currency"
	settingsCacheKeyPrefix       = "setting:"
	settingsCacheTTL             = 5 * time.Minute
)

// OrderSettings is the settings snapshot resolved once per transaction and
// passed down, so the policy engine's behavior is a function of explicit
// inputs instead of per-call lookups scattered through handlers.
type OrderSettings struct {
	CreditCheckEnabled bool
	AlertThresholdPct  decimal.Decimal
	OverdueDays        int
	SettlementCurrency string
}

func DefaultOrderSettings() OrderSettings {
	return OrderSettings{
		CreditCheckEnabled: true,
		AlertThresholdPct:  decimal.NewFromInt(80),
		OverdueDays:        30,
		SettlementCurrency: "MMK",
	}
}

// ResolveOrderSettings reads all engine settings in one query at the start
// of a transaction. Missing or malformed rows fall back to defaults.
func ResolveOrderSettings(tx *gorm.DB) (OrderSettings, error) {
	settings := DefaultOrderSettings()

	var rows []Setting
	err := tx.Where("setting_key IN ?", []string{
		SettingKeyCreditCheckEnabled,
		SettingKeyAlertThresholdPct,
		SettingKeyOverdueDays,
		SettingKeySettlementCurrency,
	}).Find(&rows).Error
	if err != nil {
		return settings, err
	}

	for _, row := range rows {
		settings.apply(row.Key, row.Value)
	}
	return settings, nil
}

func (s *OrderSettings) apply(key string, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch key {
	case SettingKeyCreditCheckEnabled:
		s.CreditCheckEnabled = parseBoolSetting(value, s.CreditCheckEnabled)
	case SettingKeyAlertThresholdPct:
		if pct, err := decimal.NewFromString(value); err == nil && pct.IsPositive() {
			s.AlertThresholdPct = pct
		}
	case SettingKeyOverdueDays:
		if days, err := strconv.Atoi(value); err == nil && days > 0 {
			s.OverdueDays = days
		}
	case SettingKeySettlementCurrency:
		s.SettlementCurrency = strings.ToUpper(value)
	}
}

func parseBoolSetting(value string, def bool) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

// GetSetting returns the raw value for a key, redis-cached.
func GetSetting(ctx context.Context, key string) (string, bool, error) {
	cacheKey := settingsCacheKeyPrefix + key
	if val, found, err := config.GetRedisValue(cacheKey); err == nil && found {
		return val, true, nil
	}

	db := config.GetDB()
	var setting Setting
	err := db.WithContext(ctx).Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	_ = config.SetRedisValue(cacheKey, setting.Value, settingsCacheTTL)
	return setting.Value, true, nil
}

// SetSetting upserts a key and invalidates its cache entry.
func SetSetting(ctx context.Context, key string, value string) (*Setting, error) {
	if strings.TrimSpace(key) == "" {
		return nil, utils.NewValidationError("setting key is required")
	}

	db := config.GetDB()
	var setting Setting
	err := db.WithContext(ctx).Where("setting_key = ?", key).First(&setting).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	setting.Key = key
	setting.Value = value
	setting.UpdatedBy = utils.ActorFromContext(ctx)

	if err := db.WithContext(ctx).Save(&setting).Error; err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(settingsCacheKeyPrefix + key)
	return &setting, nil
}
