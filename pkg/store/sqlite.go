package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soudis/soliloan/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dataSourceName and initializes the schema.
func NewSQLiteStore(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := NewStore(db)
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// NewStore wraps an already opened database whose schema is in place.
func NewStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// initSchema creates the tables if they don't already exist and adds columns
// introduced after the first release.
// Decimals are stored as TEXT and calendar dates as YYYY-MM-DD so no precision is lost.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		lender_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		sign_date TEXT NOT NULL,
		termination_type TEXT NOT NULL,
		end_date TEXT,
		notice_period INTEGER NOT NULL DEFAULT 0,
		notice_unit TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL DEFAULT 0,
		duration_unit TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_lender ON loans(lender_id);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		type TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		text TEXT NOT NULL,
		public INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		name TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		public INTEGER NOT NULL DEFAULT 0,
		data BLOB,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	columns := []string{
		"termination_date TEXT",
		"alt_interest_method TEXT",
	}
	for _, col := range columns {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE loans ADD COLUMN %s", col))
		if err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("failed to add column %s: %w", col, err)
		}
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "duplicate column name")
}

const loanColumns = `id, lender_id, amount, interest_rate, sign_date, termination_type, end_date, notice_period, notice_unit, duration, duration_unit, termination_date, alt_interest_method, created_at, updated_at`

// CreateLoan inserts a new loan. Transactions, notes and files are stored separately.
func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.LenderID.String(), loan.Amount, loan.InterestRate, formatDate(loan.SignDate),
		string(loan.TerminationType), nullDate(loan.EndDate), loan.NoticePeriod, string(loan.NoticeUnit),
		loan.Duration, string(loan.DurationUnit), nullDate(loan.TerminationDate), nullMethod(loan.AltInterestMethod),
		loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID together with its transactions, notes and files.
func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	if loan.Transactions, err = s.GetTransactionsForLoan(ctx, id); err != nil {
		return nil, err
	}
	if loan.Notes, err = s.getNotes(ctx, id); err != nil {
		return nil, err
	}
	if loan.Files, err = s.getFiles(ctx, id); err != nil {
		return nil, err
	}
	return loan, nil
}

// UpdateLoan updates the terms of an existing loan.
func (s *SQLiteStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE loans SET lender_id = ?, amount = ?, interest_rate = ?, sign_date = ?, termination_type = ?, end_date = ?, notice_period = ?, notice_unit = ?, duration = ?, duration_unit = ?, termination_date = ?, alt_interest_method = ?, updated_at = ? WHERE id = ?`,
		loan.LenderID.String(), loan.Amount, loan.InterestRate, formatDate(loan.SignDate), string(loan.TerminationType),
		nullDate(loan.EndDate), loan.NoticePeriod, string(loan.NoticeUnit), loan.Duration, string(loan.DurationUnit),
		nullDate(loan.TerminationDate), nullMethod(loan.AltInterestMethod), loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return expectOneRow(result, "loan", loan.ID)
}

// DeleteLoan removes a loan and everything attached to it within a transaction.
func (s *SQLiteStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "notes", "files"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE loan_id = ?`, id.String()); err != nil {
			return fmt.Errorf("failed to delete associated %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if err := expectOneRow(result, "loan", id); err != nil {
		return err
	}

	return tx.Commit()
}

// GetAllLoans retrieves all loans without their transactions.
func (s *SQLiteStore) GetAllLoans(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY sign_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetLoansForLender retrieves a lender's loans with their transactions.
func (s *SQLiteStore) GetLoansForLender(ctx context.Context, lenderID uuid.UUID) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE lender_id = ? ORDER BY sign_date, id`, lenderID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for lender %s: %w", lenderID, err)
	}
	loans, err := scanLoans(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for _, loan := range loans {
		if loan.Transactions, err = s.GetTransactionsForLoan(ctx, loan.ID); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (*models.Loan, error) {
	var loan models.Loan
	var idStr, lenderStr, signDate, terminationType, noticeUnit, durationUnit string
	var endDate, terminationDate, alt sql.NullString
	err := row.Scan(&idStr, &lenderStr, &loan.Amount, &loan.InterestRate, &signDate, &terminationType,
		&endDate, &loan.NoticePeriod, &noticeUnit, &loan.Duration, &durationUnit, &terminationDate, &alt,
		&loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if loan.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid loan id %q: %w", idStr, err)
	}
	if loan.LenderID, err = uuid.Parse(lenderStr); err != nil {
		return nil, fmt.Errorf("invalid lender id %q: %w", lenderStr, err)
	}
	if loan.SignDate, err = time.Parse(models.DateLayout, signDate); err != nil {
		return nil, fmt.Errorf("invalid sign date %q: %w", signDate, err)
	}
	if loan.EndDate, err = parseNullDate(endDate); err != nil {
		return nil, err
	}
	if loan.TerminationDate, err = parseNullDate(terminationDate); err != nil {
		return nil, err
	}
	if alt.Valid && alt.String != "" {
		m, err := models.ParseInterestMethod(alt.String)
		if err != nil {
			return nil, err
		}
		loan.AltInterestMethod = &m
	}
	loan.TerminationType = models.TerminationType(terminationType)
	loan.NoticeUnit = models.PeriodUnit(noticeUnit)
	loan.DurationUnit = models.PeriodUnit(durationUnit)
	return &loan, nil
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreateTransaction inserts a new transaction.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, loan_id, type, date, amount, payment_type) VALUES (?, ?, ?, ?, ?, ?)`,
		transaction.ID.String(), transaction.LoanID.String(), string(transaction.Type),
		formatDate(transaction.Date), transaction.Amount, string(transaction.PaymentType),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// UpdateTransaction rewrites a transaction of the same loan.
func (s *SQLiteStore) UpdateTransaction(ctx context.Context, transaction *models.Transaction) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET type = ?, date = ?, amount = ?, payment_type = ? WHERE id = ? AND loan_id = ?`,
		string(transaction.Type), formatDate(transaction.Date), transaction.Amount,
		string(transaction.PaymentType), transaction.ID.String(), transaction.LoanID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectOneRow(result, "transaction", transaction.ID)
}

// DeleteTransaction removes a transaction of the given loan.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, loanID, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND loan_id = ?`, id.String(), loanID.String())
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOneRow(result, "transaction", id)
}

// GetTransactionsForLoan retrieves all transactions for a given loan ID in date order.
func (s *SQLiteStore) GetTransactionsForLoan(ctx context.Context, loanID uuid.UUID) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, loan_id, type, date, amount, payment_type FROM transactions WHERE loan_id = ? ORDER BY date ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var transaction models.Transaction
		var txIDStr, loanIDStr, typ, date, payment string
		if err := rows.Scan(&txIDStr, &loanIDStr, &typ, &date, &transaction.Amount, &payment); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		if transaction.ID, err = uuid.Parse(txIDStr); err != nil {
			return nil, fmt.Errorf("invalid transaction id %q: %w", txIDStr, err)
		}
		if transaction.LoanID, err = uuid.Parse(loanIDStr); err != nil {
			return nil, fmt.Errorf("invalid loan id %q: %w", loanIDStr, err)
		}
		if transaction.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid transaction date %q: %w", date, err)
		}
		transaction.Type = models.TransactionType(typ)
		transaction.PaymentType = models.PaymentType(payment)
		transactions = append(transactions, transaction)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan transactions: %w", err)
	}
	return transactions, nil
}

// CreateNote attaches a note to a loan.
func (s *SQLiteStore) CreateNote(ctx context.Context, note *models.Note) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, loan_id, text, public, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID.String(), note.LoanID.String(), note.Text, note.Public, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// CreateFile attaches a file to a loan.
func (s *SQLiteStore) CreateFile(ctx context.Context, file *models.File) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, loan_id, name, mime_type, public, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		file.ID.String(), file.LoanID.String(), file.Name, file.MimeType, file.Public, file.Data, file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getNotes(ctx context.Context, loanID uuid.UUID) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, public, created_at FROM notes WHERE loan_id = ? ORDER BY created_at`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get notes for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		note := models.Note{LoanID: loanID}
		var idStr string
		if err := rows.Scan(&idStr, &note.Text, &note.Public, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		if note.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid note id %q: %w", idStr, err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *SQLiteStore) getFiles(ctx context.Context, loanID uuid.UUID) ([]models.File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, mime_type, public, data, created_at FROM files WHERE loan_id = ? ORDER BY created_at`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get files for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		file := models.File{LoanID: loanID}
		var idStr string
		if err := rows.Scan(&idStr, &file.Name, &file.MimeType, &file.Public, &file.Data, &file.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		if file.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid file id %q: %w", idStr, err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func expectOneRow(result sql.Result, kind string, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(models.DateLayout)
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s.String, err)
	}
	return &t, nil
}

func nullMethod(m *models.InterestMethod) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}
