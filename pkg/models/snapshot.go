package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusNotFunded  LoanStatus = "NOT_FUNDED"
	LoanStatusActive     LoanStatus = "ACTIVE"
	LoanStatusTerminated LoanStatus = "TERMINATED"
	LoanStatusRepaid     LoanStatus = "REPAID"
)

// YearAccrualEntry is the begin/end ledger of one calendar year.
type YearAccrualEntry struct {
	Year               int             `json:"year"`
	Begin              decimal.Decimal `json:"begin"`
	Deposits           decimal.Decimal `json:"deposits"`
	Withdrawals        decimal.Decimal `json:"withdrawals"`
	NotReclaimed       decimal.Decimal `json:"not_reclaimed"`
	InterestPaid       decimal.Decimal `json:"interest_paid"`
	Interest           decimal.Decimal `json:"interest"`
	InterestBaseAmount decimal.Decimal `json:"interest_base_amount"`
	End                decimal.Decimal `json:"end"`
	InterestError      decimal.Decimal `json:"interest_error"`
}

type LoanSnapshot struct {
	LoanID         uuid.UUID          `json:"loan_id"`
	LenderID       uuid.UUID          `json:"lender_id"`
	AsOf           time.Time          `json:"as_of"`
	Amount         decimal.Decimal    `json:"amount"`
	InterestRate   decimal.Decimal    `json:"interest_rate"`
	InterestMethod InterestMethod     `json:"interest_method"`
	Balance        decimal.Decimal    `json:"balance"`
	Interest       decimal.Decimal    `json:"interest"`
	InterestYear   int                `json:"interest_year"`
	InterestOfYear decimal.Decimal    `json:"interest_of_year"`
	Deposits       decimal.Decimal    `json:"deposits"`
	Withdrawals    decimal.Decimal    `json:"withdrawals"`
	NotReclaimed   decimal.Decimal    `json:"not_reclaimed"`
	InterestPaid   decimal.Decimal    `json:"interest_paid"`
	InterestError  decimal.Decimal    `json:"interest_error"`
	Status         LoanStatus         `json:"status"`
	RepaidDate     *time.Time         `json:"repaid_date,omitempty"`
	RepayDate      *time.Time         `json:"repay_date,omitempty"`
	Years          []YearAccrualEntry `json:"years"`
	Transactions   []Transaction      `json:"transactions"`
	Notes          []Note             `json:"notes,omitempty"`
	Files          []File             `json:"files,omitempty"`
}

// LenderTotals sums the snapshots of all loans of one lender.
type LenderTotals struct {
	LenderID               uuid.UUID       `json:"lender_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Balance                decimal.Decimal `json:"balance"`
	Interest               decimal.Decimal `json:"interest"`
	Deposits               decimal.Decimal `json:"deposits"`
	Withdrawals            decimal.Decimal `json:"withdrawals"`
	NotReclaimed           decimal.Decimal `json:"not_reclaimed"`
	InterestPaid           decimal.Decimal `json:"interest_paid"`
	InterestError          decimal.Decimal `json:"interest_error"`
	TotalLoans             int             `json:"total_loans"`
	ActiveLoans            int             `json:"active_loans"`
	AvgInterestRate        decimal.Decimal `json:"avg_interest_rate"`
	AvgBalanceInterestRate decimal.Decimal `json:"avg_balance_interest_rate"`
}
