package accrual

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/models"
)

// AggregateLender sums the snapshots of one lender's loans and computes the
// amount- and balance-weighted average interest rates.
func AggregateLender(lenderID uuid.UUID, snapshots []models.LoanSnapshot) models.LenderTotals {
	totals := models.LenderTotals{
		LenderID:               lenderID,
		Amount:                 decimal.Zero,
		Balance:                decimal.Zero,
		Interest:               decimal.Zero,
		Deposits:               decimal.Zero,
		Withdrawals:            decimal.Zero,
		NotReclaimed:           decimal.Zero,
		InterestPaid:           decimal.Zero,
		InterestError:          decimal.Zero,
		AvgInterestRate:        decimal.Zero,
		AvgBalanceInterestRate: decimal.Zero,
	}

	rateByAmount := decimal.Zero
	rateByBalance := decimal.Zero
	for _, s := range snapshots {
		totals.Amount = totals.Amount.Add(s.Amount)
		totals.Balance = totals.Balance.Add(s.Balance)
		totals.Interest = totals.Interest.Add(s.Interest)
		totals.Deposits = totals.Deposits.Add(s.Deposits)
		totals.Withdrawals = totals.Withdrawals.Add(s.Withdrawals)
		totals.NotReclaimed = totals.NotReclaimed.Add(s.NotReclaimed)
		totals.InterestPaid = totals.InterestPaid.Add(s.InterestPaid)
		totals.InterestError = totals.InterestError.Add(s.InterestError)
		totals.TotalLoans++
		if s.Status == models.LoanStatusActive {
			totals.ActiveLoans++
		}
		rateByAmount = rateByAmount.Add(s.InterestRate.Mul(s.Amount))
		rateByBalance = rateByBalance.Add(s.InterestRate.Mul(s.Balance))
	}

	if !totals.Amount.IsZero() {
		totals.AvgInterestRate = rateByAmount.Div(totals.Amount)
	}
	if !totals.Balance.IsZero() {
		totals.AvgBalanceInterestRate = rateByBalance.Div(totals.Balance)
	}
	return totals
}
