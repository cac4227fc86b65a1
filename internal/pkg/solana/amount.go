// Package solana provides SOL amount calculation utilities.
package solana

import "github.com/shopspring/decimal"

// SOL carries 9 decimal places (lamports).
const lamportDecimals = 9

// RoundAmount truncates a SOL amount to lamport precision. Sizing math is
// done in decimals so repeated percentage trims do not accumulate float
// noise into the executed amounts.
func RoundAmount(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	out, _ := decimal.NewFromFloat(amount).RoundDown(lamportDecimals).Float64()
	return out
}

// TrimAmount computes value*pct truncated to lamport precision and capped at
// the position's full value. A non-positive pct yields 0.
func TrimAmount(valueSol, pct float64) float64 {
	if valueSol <= 0 || pct <= 0 {
		return 0
	}
	amount := decimal.NewFromFloat(valueSol).Mul(decimal.NewFromFloat(pct))
	limit := decimal.NewFromFloat(valueSol)
	if amount.GreaterThan(limit) {
		amount = limit
	}
	out, _ := amount.RoundDown(lamportDecimals).Float64()
	return out
}

// DeployableAmount returns how much of available can be deployed while
// keeping reserve untouched. Never negative.
func DeployableAmount(availableSol, reserveSol float64) float64 {
	out, _ := decimal.NewFromFloat(availableSol).
		Sub(decimal.NewFromFloat(reserveSol)).
		RoundDown(lamportDecimals).Float64()
	if out < 0 {
		return 0
	}
	return out
}
