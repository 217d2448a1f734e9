package utils

import (
	"math"
	"strconv"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// RoundMoney rounds an amount to two decimal places, the precision prices are
// stored with.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ToMinorUnits converts a decimal price into the smallest currency unit
// (cents, piastres) as expected by the payment provider.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
