package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderSettingsApply(t *testing.T) {
	settings := DefaultOrderSettings()

	settings.apply(SettingKeyCreditCheckEnabled, "off")
	settings.apply(SettingKeyAlertThresholdPct, "90")
	settings.apply(SettingKeyOverdueDays, "45")
	settings.apply(SettingKeySettlementCurrency, " usd ")

	if settings.CreditCheckEnabled {
		t.Fatalf("credit check should be disabled")
	}
	if !settings.AlertThresholdPct.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("threshold = %s, want 90", settings.AlertThresholdPct)
	}
	if settings.OverdueDays != 45 {
		t.Fatalf("overdue days = %d, want 45", settings.OverdueDays)
	}
	if settings.SettlementCurrency != "USD" {
		t.Fatalf("currency = %q, want USD", settings.SettlementCurrency)
	}
}

func TestOrderSettingsApplyKeepsDefaultsOnBadValues(t *testing.T) {
	settings := DefaultOrderSettings()

	settings.apply(SettingKeyCreditCheckEnabled, "maybe")
	settings.apply(SettingKeyAlertThresholdPct, "-5")
	settings.apply(SettingKeyOverdueDays, "soon")
	settings.apply(SettingKeySettlementCurrency, "")

	want := DefaultOrderSettings()
	if settings.CreditCheckEnabled != want.CreditCheckEnabled {
		t.Fatalf("credit check flag changed on unparseable value")
	}
	if !settings.AlertThresholdPct.Equal(want.AlertThresholdPct) {
		t.Fatalf("threshold = %s, want default %s", settings.AlertThresholdPct, want.AlertThresholdPct)
	}
	if settings.OverdueDays != want.OverdueDays {
		t.Fatalf("overdue days = %d, want default %d", settings.OverdueDays, want.OverdueDays)
	}
	if settings.SettlementCurrency != want.SettlementCurrency {
		t.Fatalf("currency = %q, want default %q", settings.SettlementCurrency, want.SettlementCurrency)
	}
}

func TestParseBoolSetting(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y", "On"} {
		if !parseBoolSetting(v, false) {
			t.Errorf("parseBoolSetting(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"0", "false", "NO", "n", "Off"} {
		if parseBoolSetting(v, true) {
			t.Errorf("parseBoolSetting(%q) = true, want false", v)
		}
	}
	if !parseBoolSetting("garbage", true) || parseBoolSetting("garbage", false) {
		t.Errorf("unknown value should keep the default")
	}
}
