package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are charged by the processor in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"UGX": true,
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// ToMinorUnits converts a major-unit amount to the processor's integer unit.
func ToMinorUnits(amount float64, currency string) int64 {
	d := decimal.NewFromFloat(amount)
	if !zeroDecimalCurrencies[strings.ToUpper(currency)] {
		d = d.Shift(2)
	}
	return d.Round(0).IntPart()
}

// FromMinorUnits converts a processor integer amount back to major units.
func FromMinorUnits(amount int64, currency string) float64 {
	d := decimal.NewFromInt(amount)
	if !zeroDecimalCurrencies[strings.ToUpper(currency)] {
		d = d.Shift(-2)
	}
	return d.InexactFloat64()
}
