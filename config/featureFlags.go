package config

import (
	"os"
	"strconv"
	"strings"
)

// CreditAlertCooldownMinutes controls optional dedup of repeated credit alerts.
//
// The monitor historically re-emits an alert on every scan while a distributor
// stays over threshold. That behavior is the default. Setting a cooldown
// suppresses re-emission for the same distributor+alert within the window.
//
// Set via env:
// - CREDIT_ALERT_COOLDOWN_MINUTES=60
//
// Unset or 0 keeps re-emission on every scan.
func CreditAlertCooldownMinutes() int {
	v := strings.TrimSpace(os.Getenv("CREDIT_ALERT_COOLDOWN_MINUTES"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// AllowPartialAllocation lets non-checkout flows keep a partial stock
// allocation instead of failing the whole document on shortfall.
// Checkout always requires full satisfaction regardless of this flag.
//
// Set via env:
// - ALLOW_PARTIAL_ALLOCATION=true
func AllowPartialAllocation() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_PARTIAL_ALLOCATION")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
