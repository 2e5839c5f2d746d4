package services

import (
	"math"
	"strings"
)

// Round2 rounds a major-unit amount to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// zeroDecimalCurrencies have no minor unit on provider wires and must not be
// scaled by 100.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// MinorUnits converts a major-unit amount to the provider's minor currency
// unit. Amounts are stored in major units everywhere; this conversion happens
// only at the provider adapter boundary.
func MinorUnits(amount float64, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}
