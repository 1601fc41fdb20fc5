package accrual

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/soudis/soliloan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccrualByYear_NoTransactions(t *testing.T) {
	loan := newLoan()

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2025, 1, 1), uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, models.LoanStatusNotFunded, Status(loan, day(2025, 1, 1)))
}

func TestAccrualByYear_MissingInterestMethod(t *testing.T) {
	loan := newLoan(tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"))

	_, err := AccrualByYear(loan, nil, day(2025, 1, 1), uuid.Nil)
	assert.True(t, errors.Is(err, ErrMissingInterestMethod))

	_, err = BuildSnapshot(loan, nil, day(2025, 1, 1), SnapshotOptions{})
	assert.True(t, errors.Is(err, ErrMissingInterestMethod))
}

func TestAccrualByYear_FullYearDeposit(t *testing.T) {
	loan := newLoan(tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"))

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2025, 1, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	y2024 := entries[0]
	assert.Equal(t, 2024, y2024.Year)
	assertDecimal(t, "0", y2024.Begin)
	assertDecimal(t, "10000", y2024.Deposits)
	assertDecimal(t, "500.00", y2024.Interest)
	assertDecimal(t, "10000", y2024.InterestBaseAmount)
	assertDecimal(t, "10500.00", y2024.End)

	y2025 := entries[1]
	assert.Equal(t, 2025, y2025.Year)
	assertDecimal(t, "10500.00", y2025.Begin)
	assertDecimal(t, "0", y2025.Interest)
	assertDecimal(t, "10500.00", y2025.End)

	assert.Equal(t, models.LoanStatusActive, Status(loan, day(2025, 1, 1)))
}

func TestAccrualByYear_Termination(t *testing.T) {
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"),
		tx(models.TransactionTypeTermination, day(2025, 1, 1), "-10500.00"),
	)

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2025, 1, 2), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	last := entries[1]
	assertDecimal(t, "-10500", last.Withdrawals)
	assertDecimal(t, "0", last.Interest)
	assertDecimal(t, "0", last.InterestError)
	assert.True(t, last.End.IsZero(), "end balance %s", last.End)
	assert.Equal(t, models.LoanStatusRepaid, Status(loan, day(2025, 1, 2)))
}

func TestAccrualByYear_ResidualCorrection(t *testing.T) {
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"),
		tx(models.TransactionTypeTermination, day(2025, 1, 1), "-10499.99"),
	)

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2025, 3, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	last := entries[1]
	assert.True(t, last.End.IsZero(), "end balance %s", last.End)
	assertDecimal(t, "0.01", last.InterestError)
	assertDecimal(t, "-0.01", last.Interest)
}

func TestAccrualByYear_MidYearTermination(t *testing.T) {
	// 10000 × 5% × 92/365 = 126.027...
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2024, 3, 1), "10000"),
		tx(models.TransactionTypeTermination, day(2024, 6, 1), "-10126.03"),
	)

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2024, 12, 31), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assertDecimal(t, "126.03", entries[0].Interest)
	assertDecimal(t, "0", entries[0].InterestError)
	assert.True(t, entries[0].End.IsZero(), "end balance %s", entries[0].End)
}

func TestAccrualByYear_RepaymentStopsTheWalk(t *testing.T) {
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2022, 5, 1), "5000"),
		tx(models.TransactionTypeNonReclaim, day(2023, 2, 1), "-5300"),
	)

	entries, err := AccrualByYear(loan, &act365Compound, day(2026, 1, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no entries after the repayment year")
	assert.Equal(t, 2023, entries[1].Year)
	assert.True(t, entries[1].End.IsZero())
	assertDecimal(t, "-5300", entries[1].NotReclaimed)
}

func TestAccrualByYear_ZeroBalanceStopsInterest(t *testing.T) {
	// 10000 × 5% × 182/365 = 249.315...
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"),
		tx(models.TransactionTypeWithdrawal, day(2024, 7, 1), "-9999.20"),
	)

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2025, 6, 30), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assertDecimal(t, "249.32", entries[0].Interest)
	assertDecimal(t, "0", entries[0].InterestBaseAmount)
	assertDecimal(t, "250.12", entries[0].End)

	assertDecimal(t, "0", entries[1].Interest)
	assertDecimal(t, "250.12", entries[1].End)
	assertDecimal(t, "0", entries[1].InterestError, "not repaid, so no residual correction")
}

func TestAccrualByYear_RedepositAfterZeroBalance(t *testing.T) {
	// 10000 × 5% × 60/365 = 82.191... until the withdrawal,
	// then 10000 × 5% × 213/365 = 291.780... from the new deposit.
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"),
		tx(models.TransactionTypeWithdrawal, day(2024, 3, 1), "-10000"),
		tx(models.TransactionTypeDeposit, day(2024, 6, 1), "10000"),
	)

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2025, 6, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assertDecimal(t, "373.97", entries[0].Interest)
	assertDecimal(t, "10000", entries[0].InterestBaseAmount)
	assertDecimal(t, "10373.97", entries[0].End)

	// 10000 × 5% × 151/365 = 206.849...
	assertDecimal(t, "206.85", entries[1].Interest)
	assertDecimal(t, "10580.82", entries[1].End)
	assert.Equal(t, models.LoanStatusActive, Status(loan, day(2025, 6, 1)))
}

func TestAccrualByYear_NoCompoundInterestPaymentKeepsBase(t *testing.T) {
	// 2023: 10000 × 5% × 364/365 = 498.63
	txs := []models.Transaction{
		tx(models.TransactionTypeDeposit, day(2023, 1, 1), "10000"),
		tx(models.TransactionTypeInterestPayment, day(2024, 1, 15), "-498.63"),
	}

	entries, err := AccrualByYear(newLoan(txs...), &act365NoCompound, day(2025, 1, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assertDecimal(t, "498.63", entries[0].Interest)
	assertDecimal(t, "10000", entries[0].InterestBaseAmount)

	assertDecimal(t, "-498.63", entries[1].InterestPaid)
	assertDecimal(t, "10000", entries[1].InterestBaseAmount)
	assertDecimal(t, "500.00", entries[1].Interest)
	assertDecimal(t, "10500.00", entries[1].End)

	for _, e := range entries {
		assert.True(t, e.InterestBaseAmount.LessThanOrEqual(dec("10000")), "year %d base %s", e.Year, e.InterestBaseAmount)
	}
}

func TestAccrualByYear_CompoundInterestPaymentReducesBase(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TransactionTypeDeposit, day(2023, 1, 1), "10000"),
		tx(models.TransactionTypeInterestPayment, day(2024, 1, 15), "-498.63"),
	}

	entries, err := AccrualByYear(newLoan(txs...), &act365Compound, day(2025, 1, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// 10498.63 × 5% for the year, less 498.63 × 5% × 351/365
	assertDecimal(t, "10000", entries[1].InterestBaseAmount)
	assertDecimal(t, "500.96", entries[1].Interest)
	assertDecimal(t, "10500.96", entries[1].End)
	assertDecimal(t, "10500.96", entries[2].InterestBaseAmount)
}

func TestAccrualByYear_CompoundingCarriesInterest(t *testing.T) {
	loan := newLoan(tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"))

	entries, err := AccrualByYear(loan, &act365Compound, day(2026, 1, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assertDecimal(t, "500.00", entries[0].Interest)
	assertDecimal(t, "525.00", entries[1].Interest)
	assertDecimal(t, "11025.00", entries[1].End)
	assertDecimal(t, "11025.00", entries[2].Begin)
}

func TestAccrualByYear_NoCompoundDoesNotCarryInterest(t *testing.T) {
	loan := newLoan(tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"))

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2026, 1, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assertDecimal(t, "500.00", entries[1].Interest)
	assertDecimal(t, "11000.00", entries[1].End)
}

func TestAccrualByYear_LoanMethodOverridesDefault(t *testing.T) {
	loan := newLoan(tx(models.TransactionTypeDeposit, day(2024, 1, 15), "10000"))
	loan.AltInterestMethod = &euro360Compound

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2024, 2, 15), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	// 30 days of 360
	assertDecimal(t, "41.67", entries[0].Interest)

	loan.AltInterestMethod = nil
	entries, err = AccrualByYear(loan, &act365NoCompound, day(2024, 2, 15), uuid.Nil)
	require.NoError(t, err)
	// 31 days of 365
	assertDecimal(t, "42.47", entries[0].Interest)
}

func TestAccrualByYear_IgnoresFutureTransactions(t *testing.T) {
	loan := newLoan(
		tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"),
		tx(models.TransactionTypeDeposit, day(2026, 1, 1), "5000"),
	)

	entries, err := AccrualByYear(loan, &act365NoCompound, day(2025, 1, 1), uuid.Nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assertDecimal(t, "10500.00", entries[1].End)
}

func TestBalanceAt_ExcludesTransaction(t *testing.T) {
	withdrawal := tx(models.TransactionTypeWithdrawal, day(2024, 7, 1), "-2000")
	loan := newLoan(tx(models.TransactionTypeDeposit, day(2024, 1, 1), "10000"), withdrawal)

	with, err := BalanceAt(loan, &act365NoCompound, day(2024, 7, 1), uuid.Nil)
	require.NoError(t, err)
	assertDecimal(t, "8249.32", with)

	without, err := BalanceAt(loan, &act365NoCompound, day(2024, 7, 1), withdrawal.ID)
	require.NoError(t, err)
	assertDecimal(t, "10249.32", without)

	assert.Len(t, loan.Transactions, 2, "input must not be modified")
}

func TestBalanceAt_Unfunded(t *testing.T) {
	balance, err := BalanceAt(newLoan(), &act365NoCompound, day(2024, 7, 1), uuid.Nil)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}
