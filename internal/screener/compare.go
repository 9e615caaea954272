// Package screener evaluates filter conditions against candle frames and
// orchestrates multi-symbol scans.
package screener

import (
	"math"
	"strings"

	"stock-screener/internal/models"
)

// compareNumeric applies a comparison operator. NaN on either side fails the
// condition outright: an undefined warm-up value never matches. Equality
// uses an absolute tolerance of 0.01 to absorb float noise in price data.
func compareNumeric(current, compare float64, operator string) bool {
	if math.IsNaN(current) || math.IsNaN(compare) {
		return false
	}
	switch operator {
	case models.OpGT, ">":
		return current > compare
	case models.OpGTE, ">=":
		return current >= compare
	case models.OpLT, "<":
		return current < compare
	case models.OpLTE, "<=":
		return current <= compare
	case models.OpEQ, "==":
		return math.Abs(current-compare) < 0.01
	case models.OpNEQ, "!=":
		return math.Abs(current-compare) >= 0.01
	}
	return false
}

// compareBetween is inclusive on both bounds.
func compareBetween(current float64, bounds [2]float64) bool {
	if math.IsNaN(current) {
		return false
	}
	return bounds[0] <= current && current <= bounds[1]
}

// crossedAbove: previous LHS at or below previous RHS, current LHS strictly
// above current RHS.
func crossedAbove(current, compare, previous, previousCompare float64) bool {
	if math.IsNaN(current) || math.IsNaN(compare) ||
		math.IsNaN(previous) || math.IsNaN(previousCompare) {
		return false
	}
	return previous <= previousCompare && current > compare
}

func crossedBelow(current, compare, previous, previousCompare float64) bool {
	if math.IsNaN(current) || math.IsNaN(compare) ||
		math.IsNaN(previous) || math.IsNaN(previousCompare) {
		return false
	}
	return previous >= previousCompare && current < compare
}

func isCrossOperator(op string) bool {
	switch op {
	case models.OpCrossedAbove, models.OpCrossedBelow,
		"crosses_above", "crosses_below":
		return true
	}
	return false
}

func isCrossAbove(op string) bool {
	return op == models.OpCrossedAbove || op == "crosses_above"
}

// pctChange returns the percentage change from previous to current, 0 when
// the base is 0.
func pctChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// compareStrings covers the non-numeric LHS path: only equality and
// containment make sense for strings.
func compareStrings(current, compare, operator string) bool {
	switch operator {
	case models.OpEQ, "==":
		return current == compare
	case models.OpNEQ, "!=":
		return current != compare
	case models.OpContains:
		return strings.Contains(strings.ToLower(current), strings.ToLower(compare))
	}
	return false
}
