package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLoan() models.Loan {
	return models.Loan{
		ID:              uuid.New(),
		LenderID:        uuid.New(),
		Amount:          decimal.NewFromInt(10000),
		InterestRate:    decimal.RequireFromString("1.5"),
		SignDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TerminationType: models.TerminationTypeNoticePeriod,
		NoticePeriod:    6,
		NoticeUnit:      models.PeriodUnitMonths,
	}
}

func TestValidator_Loan(t *testing.T) {
	end := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	bad := models.InterestMethod{Basis: "ACT/999", Compounding: models.Compound}

	tests := []struct {
		name   string
		mutate func(*models.Loan)
		field  string
	}{
		{"valid", func(l *models.Loan) {}, ""},
		{"missing lender", func(l *models.Loan) { l.LenderID = uuid.Nil }, "lender_id"},
		{"zero amount", func(l *models.Loan) { l.Amount = decimal.Zero }, "amount"},
		{"negative rate", func(l *models.Loan) { l.InterestRate = decimal.NewFromInt(-1) }, "interest_rate"},
		{"unknown termination type", func(l *models.Loan) { l.TerminationType = "NEVER" }, "termination_type"},
		{"notice period without unit", func(l *models.Loan) { l.NoticeUnit = "" }, "notice_unit"},
		{"notice period of zero", func(l *models.Loan) { l.NoticePeriod = 0 }, "notice_period"},
		{"bad period unit", func(l *models.Loan) { l.NoticeUnit = "WEEKS" }, "notice_unit"},
		{"end date missing", func(l *models.Loan) { l.TerminationType = models.TerminationTypeEndDate }, "end_date"},
		{"end date before signing", func(l *models.Loan) {
			l.TerminationType = models.TerminationTypeEndDate
			l.EndDate = &early
		}, "end_date"},
		{"end date", func(l *models.Loan) {
			l.TerminationType = models.TerminationTypeEndDate
			l.EndDate = &end
		}, ""},
		{"fixed duration without duration", func(l *models.Loan) {
			l.TerminationType = models.TerminationTypeFixedDuration
			l.DurationUnit = models.PeriodUnitYears
		}, "duration"},
		{"notice before signing", func(l *models.Loan) { l.TerminationDate = &early }, "termination_date"},
		{"bad interest method", func(l *models.Loan) { l.AltInterestMethod = &bad }, "alt_interest_method"},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := validLoan()
			tt.mutate(&loan)
			err := v.Struct(loan)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, FormatErrors(err)[0], tt.field)
		})
	}
}

func TestValidator_Transaction(t *testing.T) {
	tests := []struct {
		typ    models.TransactionType
		amount string
		valid  bool
	}{
		{models.TransactionTypeDeposit, "100", true},
		{models.TransactionTypeDeposit, "-100", false},
		{models.TransactionTypeWithdrawal, "-100", true},
		{models.TransactionTypeWithdrawal, "100", false},
		{models.TransactionTypeTermination, "-100", true},
		{models.TransactionTypeInterestPayment, "-1.50", true},
		{models.TransactionTypePartialNonReclaim, "-5", true},
		{models.TransactionTypeNonReclaim, "0", false},
		{models.TransactionTypeInterest, "10", false},
		{"REFUND", "-10", false},
	}

	v := GetValidator()
	for _, tt := range tests {
		t.Run(string(tt.typ)+" "+tt.amount, func(t *testing.T) {
			err := v.Struct(models.Transaction{
				ID:     uuid.New(),
				LoanID: uuid.New(),
				Type:   tt.typ,
				Date:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				Amount: decimal.RequireFromString(tt.amount),
			})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := GetValidator()
	assert.NoError(t, v.Var("ACT/365_compound", "interest_method"))
	assert.NoError(t, v.Var("30e/360_NO_COMPOUND", "interest_method"))
	assert.Error(t, v.Var("ACT/365", "interest_method"))
	assert.Error(t, v.Var("daily_compound", "interest_method"))
}

func TestFormatErrors(t *testing.T) {
	err := GetValidator().Struct(models.Note{})
	require.Error(t, err)
	assert.Equal(t, []string{"text: is required"}, FormatErrors(err))
}
