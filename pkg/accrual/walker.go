package accrual

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/interest"
	"github.com/soudis/soliloan/pkg/models"
)

// clearedThreshold is the balance at or below which a loan counts as paid
// out. The interest base drops to zero from that point until money comes in
// again.
var clearedThreshold = decimal.NewFromInt(1)

// contribution is an amount that entered the interest base on a given date.
type contribution struct {
	date   time.Time
	amount decimal.Decimal
}

// AccrualByYear walks the loan's transactions one calendar year at a time
// and returns a ledger entry per year, from the year of the first
// transaction up to the year of asOf (or of repayment, if earlier).
// Transactions dated after asOf, and the one with excludeID if set, are
// ignored. A loan without transactions yields an empty sequence.
func AccrualByYear(loan models.Loan, defaultMethod *models.InterestMethod, asOf time.Time, excludeID uuid.UUID) ([]models.YearAccrualEntry, error) {
	method, err := ResolveInterestMethod(loan, defaultMethod)
	if err != nil {
		return nil, err
	}

	asOf = interest.Date(asOf)
	txs := until(withoutTransaction(SortTransactions(loan.Transactions), excludeID), asOf)
	if len(txs) == 0 {
		return nil, nil
	}

	end := asOf
	repaid := repaidDate(txs, asOf)
	if repaid != nil && repaid.Before(end) {
		end = *repaid
	}

	var (
		entries []models.YearAccrualEntry
		balance = decimal.Zero
		base    = decimal.Zero
		settled = false
		next    = 0
	)
	for year := interest.Date(txs[0].Date).Year(); year <= end.Year(); year++ {
		final := year == end.Year()
		entry := models.YearAccrualEntry{
			Year:          year,
			Begin:         balance,
			Deposits:      decimal.Zero,
			Withdrawals:   decimal.Zero,
			NotReclaimed:  decimal.Zero,
			InterestPaid:  decimal.Zero,
			InterestError: decimal.Zero,
		}

		// nil stop means the end of the year
		var stop *time.Time
		if final {
			stop = &end
		}

		var (
			accrued       = decimal.Zero
			openBase      = base
			contributions []contribution
			clearedInYear bool
		)
		// accrue closes the running segment at the given date.
		accrue := func(to *time.Time) {
			accrued = accrued.Add(interest.AccruedInterest(nil, to, openBase, loan.InterestRate, method))
			for _, c := range contributions {
				accrued = accrued.Add(interest.AccruedInterest(&c.date, to, c.amount, loan.InterestRate, method))
			}
			openBase = decimal.Zero
			contributions = nil
		}

		for ; next < len(txs) && interest.Date(txs[next].Date).Year() == year; next++ {
			t := txs[next]
			d := interest.Date(t.Date)
			balance = balance.Add(t.Amount)
			if method.IsCompound() || t.Type != models.TransactionTypeInterestPayment {
				base = base.Add(t.Amount)
				contributions = append(contributions, contribution{date: d, amount: t.Amount})
			}
			bucket(&entry, t)

			cleared := balance.LessThanOrEqual(clearedThreshold)
			switch {
			case cleared && !settled:
				accrue(&d)
				settled = true
			case !cleared && settled:
				settled = false
			}
			if settled {
				base = decimal.Zero
				contributions = nil
			}
			clearedInYear = clearedInYear || cleared
		}
		accrue(stop)

		entry.Interest = accrued.Round(2)
		entry.InterestBaseAmount = base
		entry.End = balance.Add(entry.Interest)

		if final && repaid != nil && clearedInYear && !entry.End.IsZero() {
			entry.InterestError = entry.End
			entry.Interest = entry.Interest.Sub(entry.End)
			entry.End = decimal.Zero
		}

		entries = append(entries, entry)
		balance = entry.End
		if method.IsCompound() && !settled {
			base = base.Add(entry.Interest)
		}
	}

	return entries, nil
}

// BalanceAt is the loan balance as of the given date, leaving out the
// transaction with excludeID. It answers "how much could be withdrawn if this
// pending transaction did not exist".
func BalanceAt(loan models.Loan, defaultMethod *models.InterestMethod, asOf time.Time, excludeID uuid.UUID) (decimal.Decimal, error) {
	entries, err := AccrualByYear(loan, defaultMethod, asOf, excludeID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(entries) == 0 {
		return decimal.Zero, nil
	}
	return entries[len(entries)-1].End, nil
}

func bucket(entry *models.YearAccrualEntry, t models.Transaction) {
	switch t.Type {
	case models.TransactionTypeDeposit:
		entry.Deposits = entry.Deposits.Add(t.Amount)
	case models.TransactionTypeWithdrawal, models.TransactionTypeTermination:
		entry.Withdrawals = entry.Withdrawals.Add(t.Amount)
	case models.TransactionTypePartialNonReclaim, models.TransactionTypeNonReclaim:
		entry.NotReclaimed = entry.NotReclaimed.Add(t.Amount)
	case models.TransactionTypeInterestPayment:
		entry.InterestPaid = entry.InterestPaid.Add(t.Amount)
	}
}

func withoutTransaction(txs []models.Transaction, id uuid.UUID) []models.Transaction {
	if id == uuid.Nil {
		return txs
	}
	kept := txs[:0:0]
	for _, t := range txs {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return kept
}
