package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/models"
)

// Validator wraps the go-playground validator with the loan ledger rules.
type Validator struct {
	validate *validator.Validate
}

var instance *Validator

// GetValidator returns the shared validator instance.
func GetValidator() *Validator {
	if instance == nil {
		instance = NewValidator()
	}
	return instance
}

// NewValidator creates a validator with custom tags, struct rules and
// json field naming.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	_ = v.RegisterValidation("positive_decimal", validatePositiveDecimal)
	_ = v.RegisterValidation("non_negative_decimal", validateNonNegativeDecimal)
	_ = v.RegisterValidation("termination_type", validateTerminationType)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
	_ = v.RegisterValidation("period_unit", validatePeriodUnit)
	_ = v.RegisterValidation("interest_method", validateInterestMethod)

	v.RegisterStructValidation(loanStructLevel, models.Loan{})
	v.RegisterStructValidation(transactionStructLevel, models.Transaction{})
	v.RegisterStructValidation(interestMethodStructLevel, models.InterestMethod{})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates s and returns validator.ValidationErrors on failure.
func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// Var validates a single value against a tag list.
func (v *Validator) Var(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// FormatErrors turns validation errors into "field: message" strings.
func FormatErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: %s", fe.Field(), message(fe)))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "positive_decimal":
		return "must be greater than 0"
	case "non_negative_decimal":
		return "must not be negative"
	case "termination_type":
		return "must be one of END_DATE, NOTICE_PERIOD, FIXED_DURATION"
	case "transaction_type":
		return "must be a storable transaction type"
	case "period_unit":
		return "must be MONTHS or YEARS"
	case "interest_method":
		return "must be <basis>_<compounding>, e.g. ACT/365_compound"
	case "amount_sign":
		return "sign does not match the transaction type"
	case "after_sign_date":
		return "must be after the sign date"
	case "required_for_termination_type":
		return fmt.Sprintf("is required when termination_type is %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation for '%s'", fe.Tag())
	}
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func parseDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func validatePositiveDecimal(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && d.IsPositive()
}

func validateNonNegativeDecimal(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && !d.IsNegative()
}

func validateTerminationType(fl validator.FieldLevel) bool {
	switch models.TerminationType(fl.Field().String()) {
	case models.TerminationTypeEndDate, models.TerminationTypeNoticePeriod, models.TerminationTypeFixedDuration:
		return true
	}
	return false
}

// INTEREST rows only exist in snapshots and cannot be recorded.
func validateTransactionType(fl validator.FieldLevel) bool {
	switch models.TransactionType(fl.Field().String()) {
	case models.TransactionTypeDeposit,
		models.TransactionTypeWithdrawal,
		models.TransactionTypeTermination,
		models.TransactionTypeInterestPayment,
		models.TransactionTypePartialNonReclaim,
		models.TransactionTypeNonReclaim:
		return true
	}
	return false
}

func validatePeriodUnit(fl validator.FieldLevel) bool {
	switch models.PeriodUnit(fl.Field().String()) {
	case models.PeriodUnitMonths, models.PeriodUnitYears:
		return true
	}
	return false
}

func validateInterestMethod(fl validator.FieldLevel) bool {
	_, err := models.ParseInterestMethod(fl.Field().String())
	return err == nil
}

func transactionStructLevel(sl validator.StructLevel) {
	t := sl.Current().Interface().(models.Transaction)
	if !SignMatchesType(t.Type, t.Amount) {
		sl.ReportError(t.Amount, "amount", "Amount", "amount_sign", string(t.Type))
	}
}

// SignMatchesType reports whether amount carries the sign its type requires:
// deposits are positive, everything else that moves money is negative.
func SignMatchesType(typ models.TransactionType, amount decimal.Decimal) bool {
	switch typ {
	case models.TransactionTypeDeposit:
		return amount.IsPositive()
	case models.TransactionTypeInterest:
		return true
	default:
		return amount.IsNegative()
	}
}

func loanStructLevel(sl validator.StructLevel) {
	loan := sl.Current().Interface().(models.Loan)
	param := string(loan.TerminationType)

	switch loan.TerminationType {
	case models.TerminationTypeEndDate:
		if loan.EndDate == nil {
			sl.ReportError(loan.EndDate, "end_date", "EndDate", "required_for_termination_type", param)
		} else if !loan.EndDate.After(loan.SignDate) {
			sl.ReportError(loan.EndDate, "end_date", "EndDate", "after_sign_date", "")
		}
	case models.TerminationTypeNoticePeriod:
		if loan.NoticePeriod <= 0 {
			sl.ReportError(loan.NoticePeriod, "notice_period", "NoticePeriod", "required_for_termination_type", param)
		}
		if loan.NoticeUnit == "" {
			sl.ReportError(loan.NoticeUnit, "notice_unit", "NoticeUnit", "required_for_termination_type", param)
		}
	case models.TerminationTypeFixedDuration:
		if loan.Duration <= 0 {
			sl.ReportError(loan.Duration, "duration", "Duration", "required_for_termination_type", param)
		}
		if loan.DurationUnit == "" {
			sl.ReportError(loan.DurationUnit, "duration_unit", "DurationUnit", "required_for_termination_type", param)
		}
	}

	if loan.TerminationDate != nil && loan.TerminationDate.Before(loan.SignDate) {
		sl.ReportError(loan.TerminationDate, "termination_date", "TerminationDate", "after_sign_date", "")
	}
}

func interestMethodStructLevel(sl validator.StructLevel) {
	m := sl.Current().Interface().(models.InterestMethod)
	if _, err := models.ParseInterestMethod(m.String()); err != nil {
		sl.ReportError(m, "alt_interest_method", "AltInterestMethod", "interest_method", "")
	}
}
