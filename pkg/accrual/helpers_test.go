package accrual

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/models"
	"github.com/stretchr/testify/assert"
)

var (
	act365NoCompound = models.InterestMethod{Basis: models.BasisAct365, Compounding: models.NoCompound}
	act365Compound   = models.InterestMethod{Basis: models.BasisAct365, Compounding: models.Compound}
	euro360Compound  = models.InterestMethod{Basis: models.BasisEuro360, Compounding: models.Compound}
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tx(txType models.TransactionType, date time.Time, amount string) models.Transaction {
	return models.Transaction{
		ID:     uuid.New(),
		Type:   txType,
		Date:   date,
		Amount: dec(amount),
	}
}

func newLoan(txs ...models.Transaction) models.Loan {
	return models.Loan{
		ID:              uuid.New(),
		LenderID:        uuid.New(),
		Amount:          dec("10000"),
		InterestRate:    dec("5"),
		SignDate:        day(2023, 12, 1),
		TerminationType: models.TerminationTypeNoticePeriod,
		NoticePeriod:    6,
		NoticeUnit:      models.PeriodUnitMonths,
		Transactions:    txs,
	}
}

func assertDecimal(t *testing.T, expected string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	want := dec(expected)
	if !assert.True(t, want.Equal(got), msgAndArgs...) {
		t.Logf("expected %s, got %s", want, got)
	}
}
