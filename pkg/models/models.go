package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type TerminationType string

const (
	TerminationTypeEndDate       TerminationType = "END_DATE"
	TerminationTypeNoticePeriod  TerminationType = "NOTICE_PERIOD"
	TerminationTypeFixedDuration TerminationType = "FIXED_DURATION"
)

type PeriodUnit string

const (
	PeriodUnitMonths PeriodUnit = "MONTHS"
	PeriodUnitYears  PeriodUnit = "YEARS"
)

type Loan struct {
	ID                uuid.UUID       `json:"id"`
	LenderID          uuid.UUID       `json:"lender_id" validate:"required"`
	Amount            decimal.Decimal `json:"amount" validate:"positive_decimal"`
	InterestRate      decimal.Decimal `json:"interest_rate" validate:"non_negative_decimal"` // percent, e.g. 1.5
	SignDate          time.Time       `json:"sign_date" validate:"required"`
	TerminationType   TerminationType `json:"termination_type" validate:"termination_type"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	NoticePeriod      int             `json:"notice_period,omitempty" validate:"gte=0"`
	NoticeUnit        PeriodUnit      `json:"notice_unit,omitempty" validate:"omitempty,period_unit"`
	Duration          int             `json:"duration,omitempty" validate:"gte=0"`
	DurationUnit      PeriodUnit      `json:"duration_unit,omitempty" validate:"omitempty,period_unit"`
	TerminationDate   *time.Time      `json:"termination_date,omitempty"` // date notice was given
	AltInterestMethod *InterestMethod `json:"alt_interest_method,omitempty"`
	Transactions      []Transaction   `json:"transactions"`
	Notes             []Note          `json:"notes,omitempty"`
	Files             []File          `json:"files,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeDeposit           TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal        TransactionType = "WITHDRAWAL"
	TransactionTypeTermination       TransactionType = "TERMINATION"
	TransactionTypeInterestPayment   TransactionType = "INTEREST_PAYMENT"
	TransactionTypePartialNonReclaim TransactionType = "PARTIAL_NON_RECLAIM"
	TransactionTypeNonReclaim        TransactionType = "NON_RECLAIM"
	// TransactionTypeInterest is never stored; snapshots synthesize one per year.
	TransactionTypeInterest TransactionType = "INTEREST"
)

type PaymentType string

const (
	PaymentTypeBank  PaymentType = "BANK"
	PaymentTypeCash  PaymentType = "CASH"
	PaymentTypeOther PaymentType = "OTHER"
)

type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	LoanID      uuid.UUID       `json:"loan_id"`
	Type        TransactionType `json:"type" validate:"transaction_type"`
	Date        time.Time       `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"` // signed: deposits positive, everything else negative
	PaymentType PaymentType     `json:"payment_type,omitempty" validate:"omitempty,oneof=BANK CASH OTHER"`
}

type Note struct {
	ID        uuid.UUID `json:"id"`
	LoanID    uuid.UUID `json:"loan_id"`
	Text      string    `json:"text" validate:"required"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
}

type File struct {
	ID        uuid.UUID `json:"id"`
	LoanID    uuid.UUID `json:"loan_id"`
	Name      string    `json:"name" validate:"required"`
	MimeType  string    `json:"mime_type"`
	Public    bool      `json:"public"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
