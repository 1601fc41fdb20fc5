// Package accrual computes loan balances, interest and status from a loan's
// terms and its transaction ledger. Every function is pure: inputs are never
// mutated and results are built fresh on each call.
package accrual

import (
	"errors"

	"github.com/soudis/soliloan/pkg/models"
)

// ErrMissingInterestMethod is returned when a loan has no interest method of
// its own and no project default was supplied.
var ErrMissingInterestMethod = errors.New("no interest method configured")

// ResolveInterestMethod returns the loan's own method, falling back to the
// project default.
func ResolveInterestMethod(loan models.Loan, defaultMethod *models.InterestMethod) (models.InterestMethod, error) {
	if loan.AltInterestMethod != nil {
		return *loan.AltInterestMethod, nil
	}
	if defaultMethod != nil {
		return *defaultMethod, nil
	}
	return models.InterestMethod{}, ErrMissingInterestMethod
}
