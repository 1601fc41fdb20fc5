package accrual

import (
	"testing"
	"time"

	"github.com/soudis/soliloan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	deposit := tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000")
	termination := tx(models.TransactionTypeTermination, day(2025, 1, 1), "-10500")
	nonReclaim := tx(models.TransactionTypeNonReclaim, day(2025, 1, 1), "-10500")
	withdrawal := tx(models.TransactionTypeWithdrawal, day(2025, 1, 1), "-10500")
	notice := day(2024, 9, 1)

	tests := []struct {
		name     string
		txs      []models.Transaction
		notice   *time.Time
		asOf     time.Time
		expected models.LoanStatus
	}{
		{"no transactions", nil, nil, day(2025, 1, 1), models.LoanStatusNotFunded},
		{"only future transactions", []models.Transaction{deposit}, nil, day(2023, 6, 1), models.LoanStatusNotFunded},
		{"funded", []models.Transaction{deposit}, nil, day(2024, 6, 1), models.LoanStatusActive},
		{"terminated by notice", []models.Transaction{deposit}, &notice, day(2024, 10, 1), models.LoanStatusTerminated},
		{"repaid by termination", []models.Transaction{deposit, termination}, &notice, day(2025, 1, 1), models.LoanStatusRepaid},
		{"repaid by non-reclaim", []models.Transaction{deposit, nonReclaim}, nil, day(2025, 2, 1), models.LoanStatusRepaid},
		{"withdrawal does not repay", []models.Transaction{deposit, withdrawal}, nil, day(2025, 2, 1), models.LoanStatusActive},
		{"termination not reached yet", []models.Transaction{deposit, termination}, nil, day(2024, 12, 31), models.LoanStatusActive},
		{"single termination", []models.Transaction{termination}, nil, day(2025, 2, 1), models.LoanStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newLoan(tt.txs...)
			loan.TerminationDate = tt.notice
			assert.Equal(t, tt.expected, Status(loan, tt.asOf))
		})
	}
}

func TestStatus_TerminationSortsLastOnSameDay(t *testing.T) {
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"),
		tx(models.TransactionTypeTermination, day(2025, 1, 1), "-10500"),
		tx(models.TransactionTypeInterestPayment, day(2025, 1, 1), "-0.01"),
	)
	assert.Equal(t, models.LoanStatusRepaid, Status(loan, day(2025, 1, 1)))
}

func TestRepayDate(t *testing.T) {
	end := day(2030, 6, 30)
	notice := day(2024, 11, 15)

	tests := []struct {
		name     string
		mutate   func(*models.Loan)
		expected *time.Time
	}{
		{"end date", func(l *models.Loan) {
			l.TerminationType = models.TerminationTypeEndDate
			l.EndDate = &end
		}, &end},
		{"fixed duration in years", func(l *models.Loan) {
			l.TerminationType = models.TerminationTypeFixedDuration
			l.SignDate = day(2020, 3, 15)
			l.Duration = 5
			l.DurationUnit = models.PeriodUnitYears
		}, ptr(day(2025, 3, 15))},
		{"fixed duration in months", func(l *models.Loan) {
			l.TerminationType = models.TerminationTypeFixedDuration
			l.SignDate = day(2020, 3, 15)
			l.Duration = 18
			l.DurationUnit = models.PeriodUnitMonths
		}, ptr(day(2021, 9, 15))},
		{"notice given", func(l *models.Loan) {
			l.TerminationDate = &notice
			l.NoticePeriod = 3
			l.NoticeUnit = models.PeriodUnitMonths
		}, ptr(day(2025, 2, 15))},
		{"notice not given", func(l *models.Loan) {}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newLoan()
			tt.mutate(&loan)
			got := RepayDate(loan)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func ptr(t time.Time) *time.Time {
	return &t
}
