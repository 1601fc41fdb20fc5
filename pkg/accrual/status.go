package accrual

import (
	"time"

	"github.com/soudis/soliloan/pkg/interest"
	"github.com/soudis/soliloan/pkg/models"
)

// Status derives the lifecycle state of a loan as of the given date.
func Status(loan models.Loan, asOf time.Time) models.LoanStatus {
	asOf = interest.Date(asOf)
	sorted := SortTransactions(loan.Transactions)
	if len(until(sorted, asOf)) == 0 {
		return models.LoanStatusNotFunded
	}
	if repaidDate(sorted, asOf) != nil {
		return models.LoanStatusRepaid
	}
	if loan.TerminationType == models.TerminationTypeNoticePeriod && loan.TerminationDate != nil {
		return models.LoanStatusTerminated
	}
	return models.LoanStatusActive
}

// RepaidDate returns the date of the closing transaction if the loan is
// repaid as of the given date, nil otherwise.
func RepaidDate(loan models.Loan, asOf time.Time) *time.Time {
	return repaidDate(SortTransactions(loan.Transactions), interest.Date(asOf))
}

// repaidDate expects sorted transactions. A loan counts as repaid once its
// latest transaction on or before asOf closes it, and it has at least one
// other transaction before that.
func repaidDate(sorted []models.Transaction, asOf time.Time) *time.Time {
	seen := until(sorted, asOf)
	if len(seen) < 2 {
		return nil
	}
	last := seen[len(seen)-1]
	switch last.Type {
	case models.TransactionTypeTermination, models.TransactionTypeNonReclaim:
		d := interest.Date(last.Date)
		return &d
	}
	return nil
}

// RepayDate is the contractual or expected repayment date of the loan. It is
// nil for notice-period loans that have not been given notice yet.
func RepayDate(loan models.Loan) *time.Time {
	var d time.Time
	switch loan.TerminationType {
	case models.TerminationTypeEndDate:
		if loan.EndDate == nil {
			return nil
		}
		d = *loan.EndDate
	case models.TerminationTypeFixedDuration:
		d = addPeriod(loan.SignDate, loan.Duration, loan.DurationUnit)
	case models.TerminationTypeNoticePeriod:
		if loan.TerminationDate == nil {
			return nil
		}
		d = addPeriod(*loan.TerminationDate, loan.NoticePeriod, loan.NoticeUnit)
	default:
		return nil
	}
	d = interest.Date(d)
	return &d
}

func addPeriod(t time.Time, n int, unit models.PeriodUnit) time.Time {
	if unit == models.PeriodUnitYears {
		return t.AddDate(n, 0, 0)
	}
	return t.AddDate(0, n, 0)
}

// until returns the prefix of sorted dated on or before asOf.
func until(sorted []models.Transaction, asOf time.Time) []models.Transaction {
	n := 0
	for n < len(sorted) && !interest.Date(sorted[n].Date).After(asOf) {
		n++
	}
	return sorted[:n]
}
