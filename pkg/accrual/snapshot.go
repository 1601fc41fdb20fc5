package accrual

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/interest"
	"github.com/soudis/soliloan/pkg/models"
)

type SnapshotOptions struct {
	// InterestYear selects the year reported as InterestOfYear. Zero means
	// the year before asOf.
	InterestYear int
	// Client hides non-public notes and files and strips file contents.
	Client bool
}

// BuildSnapshot reduces the per-year ledger of the loan into its state as of
// the given date.
func BuildSnapshot(loan models.Loan, defaultMethod *models.InterestMethod, asOf time.Time, opts SnapshotOptions) (models.LoanSnapshot, error) {
	asOf = interest.Date(asOf)
	method, err := ResolveInterestMethod(loan, defaultMethod)
	if err != nil {
		return models.LoanSnapshot{}, err
	}
	years, err := AccrualByYear(loan, &method, asOf, uuid.Nil)
	if err != nil {
		return models.LoanSnapshot{}, err
	}

	interestYear := opts.InterestYear
	if interestYear == 0 {
		interestYear = asOf.Year() - 1
	}

	snap := models.LoanSnapshot{
		LoanID:         loan.ID,
		LenderID:       loan.LenderID,
		AsOf:           asOf,
		Amount:         loan.Amount,
		InterestRate:   loan.InterestRate,
		InterestMethod: method,
		Balance:        decimal.Zero,
		Interest:       decimal.Zero,
		InterestYear:   interestYear,
		InterestOfYear: decimal.Zero,
		Deposits:       decimal.Zero,
		Withdrawals:    decimal.Zero,
		NotReclaimed:   decimal.Zero,
		InterestPaid:   decimal.Zero,
		InterestError:  decimal.Zero,
		Status:         Status(loan, asOf),
		RepaidDate:     RepaidDate(loan, asOf),
		RepayDate:      RepayDate(loan),
		Years:          years,
	}

	txs := make([]models.Transaction, 0, len(loan.Transactions)+len(years))
	txs = append(txs, loan.Transactions...)
	for _, y := range years {
		snap.Interest = snap.Interest.Add(y.Interest)
		snap.Deposits = snap.Deposits.Add(y.Deposits)
		snap.Withdrawals = snap.Withdrawals.Add(y.Withdrawals)
		snap.NotReclaimed = snap.NotReclaimed.Add(y.NotReclaimed)
		snap.InterestPaid = snap.InterestPaid.Add(y.InterestPaid)
		snap.InterestError = snap.InterestError.Add(y.InterestError)
		if y.Year == interestYear {
			snap.InterestOfYear = y.Interest
		}
		if y.Interest.IsPositive() {
			txs = append(txs, interestTransaction(loan.ID, y, asOf, snap.RepaidDate))
		}
	}
	if len(years) > 0 {
		snap.Balance = years[len(years)-1].End
	}
	snap.Transactions = SortTransactions(txs)
	snap.Notes, snap.Files = attachments(loan, opts.Client)

	return snap, nil
}

// interestTransaction is the virtual ledger line showing a year's interest.
// Its ID is derived from the loan and the year so repeated snapshots agree.
func interestTransaction(loanID uuid.UUID, y models.YearAccrualEntry, asOf time.Time, repaid *time.Time) models.Transaction {
	yearEnd := interest.EndOfYear(y.Year)
	return models.Transaction{
		ID:     uuid.NewSHA1(loanID, []byte(fmt.Sprintf("interest-%d", y.Year))),
		LoanID: loanID,
		Type:   models.TransactionTypeInterest,
		Date:   interest.MinDate(asOf, repaid, &yearEnd),
		Amount: y.Interest,
	}
}

func attachments(loan models.Loan, client bool) ([]models.Note, []models.File) {
	var notes []models.Note
	for _, n := range loan.Notes {
		if client && !n.Public {
			continue
		}
		notes = append(notes, n)
	}
	var files []models.File
	for _, f := range loan.Files {
		if client {
			if !f.Public {
				continue
			}
			f.Data = nil
		}
		files = append(files, f)
	}
	return notes, files
}
