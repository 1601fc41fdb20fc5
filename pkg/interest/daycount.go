// Package interest implements the day-count conventions used to accrue
// interest on a principal over a date range.
package interest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/models"
)

var (
	hundred = decimal.NewFromInt(100)
)

// AccruedInterest returns principal × rate% × days ÷ baseDays for the range
// [from, to] under the given method. A nil from starts the range at the
// beginning of to's year, a nil to ends it on Dec 31 of from's year. If both
// are nil the result is a full year of interest. The result is not rounded.
func AccruedInterest(from, to *time.Time, principal, ratePercent decimal.Decimal, method models.InterestMethod) decimal.Decimal {
	if principal.IsZero() || ratePercent.IsZero() {
		return decimal.Zero
	}
	if from == nil && to == nil {
		return FullYear(principal, ratePercent)
	}

	var start, end time.Time
	switch {
	case from == nil:
		end = Date(*to)
		start = StartOfYear(end.Year())
	case to == nil:
		start = Date(*from)
		end = EndOfYear(start.Year())
	default:
		start, end = Date(*from), Date(*to)
	}
	if end.Before(start) {
		return decimal.Zero
	}

	days := Days(start, end, method.Basis, from == nil, to == nil)
	if days <= 0 {
		return decimal.Zero
	}

	return principal.
		Mul(ratePercent).
		Div(hundred).
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(int64(BaseDays(end, method.Basis))))
}

// FullYear is one year of interest on principal at ratePercent.
func FullYear(principal, ratePercent decimal.Decimal) decimal.Decimal {
	return principal.Mul(ratePercent).Div(hundred)
}

// Days counts the days between start and end under the given basis.
// openStart and openEnd mark bounds that were defaulted to the year
// boundaries rather than supplied by the caller.
func Days(start, end time.Time, basis models.DayCountBasis, openStart, openEnd bool) int {
	if basis == models.BasisEuro360 {
		return euro360Days(start, end, openStart, openEnd)
	}
	return ActualDays(start, end)
}

// euro360Days counts days in 30-day months. A range ending on an implicit
// year end counts one day less, and one more day less when it also starts on
// an implicit year start.
func euro360Days(start, end time.Time, openStart, openEnd bool) int {
	if start.Year() == end.Year() && start.Month() == end.Month() {
		return end.Day() - start.Day()
	}

	first := 30 - min(start.Day(), 30)
	between := monthIndex(end) - monthIndex(start) - 1
	last := min(end.Day(), 30)

	days := first + 30*between + last
	if openEnd {
		days--
		if openStart {
			days--
		}
	}
	return days
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// BaseDays is the yearly denominator: the length of end's calendar year for
// ACT/ACT, otherwise the number in the basis name. It panics on a basis
// that did not come through models.ParseInterestMethod.
func BaseDays(end time.Time, basis models.DayCountBasis) int {
	switch basis {
	case models.BasisActAct:
		return DaysInYear(end.Year())
	case models.BasisAct365:
		return 365
	case models.BasisEuro360, models.BasisAct360:
		return 360
	}
	panic(fmt.Sprintf("interest: unknown day-count basis %q", basis))
}
