package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/accrual"
	"github.com/soudis/soliloan/pkg/interest"
	"github.com/soudis/soliloan/pkg/models"
	"github.com/soudis/soliloan/pkg/store"
	"github.com/soudis/soliloan/pkg/validation"
	"go.uber.org/zap"
)

var (
	// ErrValidation wraps every input rejected by the validation rules.
	ErrValidation = errors.New("validation failed")
	// ErrWithdrawalExceedsBalance is returned when an outflow is larger than
	// the loan balance on its date.
	ErrWithdrawalExceedsBalance = errors.New("amount exceeds loan balance")
)

// Ledger handles the business logic for loans and transactions.
type Ledger struct {
	storage       store.Storage
	defaultMethod *models.InterestMethod
	validator     *validation.Validator
	logger        *zap.Logger
	metrics       MetricsRecorder
	now           func() time.Time
}

// NewLedger creates a Ledger over s. defaultMethod applies to loans without
// their own interest method and may be nil. A nil logger or metrics recorder
// disables that output.
func NewLedger(s store.Storage, defaultMethod *models.InterestMethod, logger *zap.Logger, metrics MetricsRecorder) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &Ledger{
		storage:       s,
		defaultMethod: defaultMethod,
		validator:     validation.GetValidator(),
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// CreateLoan validates the loan terms and stores them. Transactions are
// recorded separately.
func (l *Ledger) CreateLoan(ctx context.Context, loan *models.Loan) (*models.Loan, error) {
	const op = "create_loan"
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	normalizeLoan(loan)
	loan.Transactions, loan.Notes, loan.Files = nil, nil, nil
	now := l.now()
	loan.CreatedAt, loan.UpdatedAt = now, now

	if err := l.validate(loan); err != nil {
		return nil, l.fail(op, err)
	}
	if err := l.storage.CreateLoan(ctx, loan); err != nil {
		return nil, l.fail(op, fmt.Errorf("failed to store loan: %w", err))
	}

	l.succeed(op)
	l.logger.Info("loan created",
		zap.String("op", op),
		zap.String("loan_id", loan.ID.String()),
		zap.String("lender_id", loan.LenderID.String()),
		zap.String("amount", loan.Amount.String()))
	return loan, nil
}

// GetLoan retrieves a loan with its transactions, notes and files.
func (l *Ledger) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(ctx, id)
}

// GetAllLoans retrieves all loans without their transactions.
func (l *Ledger) GetAllLoans(ctx context.Context) ([]*models.Loan, error) {
	return l.storage.GetAllLoans(ctx)
}

// UpdateLoan replaces the terms of an existing loan.
func (l *Ledger) UpdateLoan(ctx context.Context, loan *models.Loan) (*models.Loan, error) {
	const op = "update_loan"
	existing, err := l.storage.GetLoan(ctx, loan.ID)
	if err != nil {
		return nil, l.fail(op, err)
	}

	normalizeLoan(loan)
	loan.CreatedAt = existing.CreatedAt
	loan.UpdatedAt = l.now()
	if err := l.validate(loan); err != nil {
		return nil, l.fail(op, err)
	}
	if err := l.storage.UpdateLoan(ctx, loan); err != nil {
		return nil, l.fail(op, err)
	}

	loan.Transactions, loan.Notes, loan.Files = existing.Transactions, existing.Notes, existing.Files
	l.succeed(op)
	l.logger.Info("loan updated", zap.String("op", op), zap.String("loan_id", loan.ID.String()))
	return loan, nil
}

// DeleteLoan deletes a loan and everything attached to it.
func (l *Ledger) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	const op = "delete_loan"
	if err := l.storage.DeleteLoan(ctx, id); err != nil {
		return l.fail(op, err)
	}
	l.succeed(op)
	l.logger.Info("loan deleted", zap.String("op", op), zap.String("loan_id", id.String()))
	return nil
}

// RecordTransaction books a transaction on a loan. Outflows may not exceed
// the balance as of their date.
func (l *Ledger) RecordTransaction(ctx context.Context, loanID uuid.UUID, tx models.Transaction) (*models.Transaction, error) {
	const op = "record_transaction"
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.LoanID = loanID
	tx.Date = interest.Date(tx.Date)

	if err := l.validate(tx); err != nil {
		return nil, l.fail(op, err)
	}
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(op, err)
	}
	if err := l.checkOutflow(*loan, tx, uuid.Nil); err != nil {
		return nil, l.fail(op, err)
	}
	if err := l.storage.CreateTransaction(ctx, &tx); err != nil {
		return nil, l.fail(op, fmt.Errorf("failed to store transaction: %w", err))
	}

	l.succeed(op)
	l.logger.Info("transaction recorded",
		zap.String("op", op),
		zap.String("loan_id", loanID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()))
	return &tx, nil
}

// UpdateTransaction replaces a stored transaction. The balance check ignores
// the version being replaced.
func (l *Ledger) UpdateTransaction(ctx context.Context, loanID uuid.UUID, tx models.Transaction) (*models.Transaction, error) {
	const op = "update_transaction"
	tx.LoanID = loanID
	tx.Date = interest.Date(tx.Date)

	if err := l.validate(tx); err != nil {
		return nil, l.fail(op, err)
	}
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(op, err)
	}
	if !hasTransaction(loan.Transactions, tx.ID) {
		return nil, l.fail(op, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound))
	}
	if err := l.checkOutflow(*loan, tx, tx.ID); err != nil {
		return nil, l.fail(op, err)
	}
	if err := l.storage.UpdateTransaction(ctx, &tx); err != nil {
		return nil, l.fail(op, err)
	}

	l.succeed(op)
	l.logger.Info("transaction updated",
		zap.String("op", op),
		zap.String("loan_id", loanID.String()),
		zap.String("transaction_id", tx.ID.String()))
	return &tx, nil
}

// DeleteTransaction removes a transaction from a loan.
func (l *Ledger) DeleteTransaction(ctx context.Context, loanID, id uuid.UUID) error {
	const op = "delete_transaction"
	if err := l.storage.DeleteTransaction(ctx, loanID, id); err != nil {
		return l.fail(op, err)
	}
	l.succeed(op)
	l.logger.Info("transaction deleted",
		zap.String("op", op),
		zap.String("loan_id", loanID.String()),
		zap.String("transaction_id", id.String()))
	return nil
}

// AddNote attaches a note to a loan.
func (l *Ledger) AddNote(ctx context.Context, loanID uuid.UUID, note models.Note) (*models.Note, error) {
	const op = "add_note"
	note.ID, note.LoanID, note.CreatedAt = uuid.New(), loanID, l.now()
	if err := l.validate(note); err != nil {
		return nil, l.fail(op, err)
	}
	if _, err := l.storage.GetLoan(ctx, loanID); err != nil {
		return nil, l.fail(op, err)
	}
	if err := l.storage.CreateNote(ctx, &note); err != nil {
		return nil, l.fail(op, err)
	}
	l.succeed(op)
	return &note, nil
}

// AddFile attaches a file to a loan.
func (l *Ledger) AddFile(ctx context.Context, loanID uuid.UUID, file models.File) (*models.File, error) {
	const op = "add_file"
	file.ID, file.LoanID, file.CreatedAt = uuid.New(), loanID, l.now()
	if err := l.validate(file); err != nil {
		return nil, l.fail(op, err)
	}
	if _, err := l.storage.GetLoan(ctx, loanID); err != nil {
		return nil, l.fail(op, err)
	}
	if err := l.storage.CreateFile(ctx, &file); err != nil {
		return nil, l.fail(op, err)
	}
	l.succeed(op)
	return &file, nil
}

// Snapshot loads a loan and computes its state as of asOf.
func (l *Ledger) Snapshot(ctx context.Context, loanID uuid.UUID, asOf time.Time, opts accrual.SnapshotOptions) (*models.LoanSnapshot, error) {
	const op = "snapshot"
	start := time.Now()
	defer func() { l.metrics.RecordProcessingTime("ledger.snapshot", time.Since(start)) }()

	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, l.fail(op, err)
	}
	snap, err := accrual.BuildSnapshot(*loan, l.defaultMethod, asOf, opts)
	if err != nil {
		return nil, l.fail(op, fmt.Errorf("loan %s: %w", loanID, err))
	}

	l.succeed(op)
	l.logger.Debug("snapshot computed",
		zap.String("op", op),
		zap.String("loan_id", loanID.String()),
		zap.String("as_of", snap.AsOf.Format(models.DateLayout)),
		zap.String("status", string(snap.Status)),
		zap.String("balance", snap.Balance.String()))
	return &snap, nil
}

// LenderTotals aggregates the snapshots of every loan of a lender.
func (l *Ledger) LenderTotals(ctx context.Context, lenderID uuid.UUID, asOf time.Time) (*models.LenderTotals, error) {
	const op = "lender_totals"
	loans, err := l.storage.GetLoansForLender(ctx, lenderID)
	if err != nil {
		return nil, l.fail(op, err)
	}

	snapshots := make([]models.LoanSnapshot, 0, len(loans))
	for _, loan := range loans {
		snap, err := accrual.BuildSnapshot(*loan, l.defaultMethod, asOf, accrual.SnapshotOptions{})
		if err != nil {
			return nil, l.fail(op, fmt.Errorf("loan %s: %w", loan.ID, err))
		}
		snapshots = append(snapshots, snap)
	}

	totals := accrual.AggregateLender(lenderID, snapshots)
	l.succeed(op)
	return &totals, nil
}

// MaxWithdrawal returns the largest outflow the loan can take on date,
// ignoring excludeID. It is never negative.
func (l *Ledger) MaxWithdrawal(ctx context.Context, loanID uuid.UUID, date time.Time, excludeID uuid.UUID) (decimal.Decimal, error) {
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}
	return l.maxWithdrawal(*loan, date, excludeID)
}

// RefreshPortfolio recomputes every loan as of asOf and publishes the
// portfolio gauges. Loans that fail are logged and skipped.
func (l *Ledger) RefreshPortfolio(ctx context.Context, asOf time.Time) error {
	const op = "refresh_portfolio"
	start := time.Now()
	defer func() { l.metrics.RecordProcessingTime("ledger.portfolio", time.Since(start)) }()

	loans, err := l.storage.GetAllLoans(ctx)
	if err != nil {
		return l.fail(op, err)
	}

	counts := map[models.LoanStatus]int{
		models.LoanStatusNotFunded:  0,
		models.LoanStatusActive:     0,
		models.LoanStatusTerminated: 0,
		models.LoanStatusRepaid:     0,
	}
	balance, interestOfYear := decimal.Zero, decimal.Zero
	for _, loan := range loans {
		if loan.Transactions, err = l.storage.GetTransactionsForLoan(ctx, loan.ID); err != nil {
			return l.fail(op, err)
		}
		snap, err := accrual.BuildSnapshot(*loan, l.defaultMethod, asOf, accrual.SnapshotOptions{})
		if err != nil {
			l.logger.Warn("skipping loan in portfolio refresh",
				zap.String("op", op),
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err))
			continue
		}
		counts[snap.Status]++
		balance = balance.Add(snap.Balance)
		interestOfYear = interestOfYear.Add(snap.InterestOfYear)
	}

	for status, n := range counts {
		l.metrics.RecordGauge("portfolio.loans", float64(n), map[string]string{"status": string(status)})
	}
	l.metrics.RecordGauge("portfolio.balance", balance.InexactFloat64(), nil)
	l.metrics.RecordGauge("portfolio.interest_of_year", interestOfYear.InexactFloat64(), nil)

	l.succeed(op)
	l.logger.Info("portfolio refreshed",
		zap.String("op", op),
		zap.Int("loans", len(loans)),
		zap.String("balance", balance.StringFixed(2)))
	return nil
}

func (l *Ledger) maxWithdrawal(loan models.Loan, date time.Time, excludeID uuid.UUID) (decimal.Decimal, error) {
	balance, err := accrual.BalanceAt(loan, l.defaultMethod, date, excludeID)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.IsNegative() {
		return decimal.Zero, nil
	}
	return balance, nil
}

func (l *Ledger) checkOutflow(loan models.Loan, tx models.Transaction, excludeID uuid.UUID) error {
	if !isOutflow(tx.Type) {
		return nil
	}
	limit, err := l.maxWithdrawal(loan, tx.Date, excludeID)
	if err != nil {
		return err
	}
	if tx.Amount.Neg().GreaterThan(limit) {
		l.metrics.IncrementCounter("ledger.outflow.rejected", map[string]string{"type": string(tx.Type)})
		return fmt.Errorf("%w: %s of %s on %s, balance %s", ErrWithdrawalExceedsBalance,
			tx.Type, tx.Amount.Neg().StringFixed(2), tx.Date.Format(models.DateLayout), limit.StringFixed(2))
	}
	return nil
}

func (l *Ledger) validate(v interface{}) error {
	if err := l.validator.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(validation.FormatErrors(err), "; "))
	}
	return nil
}

func (l *Ledger) succeed(op string) {
	l.metrics.IncrementCounter("ledger.operation.success", map[string]string{"operation": op})
}

func (l *Ledger) fail(op string, err error) error {
	l.metrics.IncrementCounter("ledger.operation.failed", map[string]string{"operation": op})
	l.logger.Warn("ledger operation failed", zap.String("op", op), zap.Error(err))
	return err
}

func isOutflow(t models.TransactionType) bool {
	switch t {
	case models.TransactionTypeWithdrawal,
		models.TransactionTypeTermination,
		models.TransactionTypeInterestPayment,
		models.TransactionTypePartialNonReclaim,
		models.TransactionTypeNonReclaim:
		return true
	}
	return false
}

func hasTransaction(txs []models.Transaction, id uuid.UUID) bool {
	for _, t := range txs {
		if t.ID == id {
			return true
		}
	}
	return false
}

func normalizeLoan(loan *models.Loan) {
	loan.SignDate = interest.Date(loan.SignDate)
	for _, d := range []**time.Time{&loan.EndDate, &loan.TerminationDate} {
		if *d != nil {
			t := interest.Date(**d)
			*d = &t
		}
	}
}
