package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/soudis/soliloan/pkg/models"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the interface for database operations related to loans and transactions.
type Storage interface {
	CreateLoan(ctx context.Context, loan *models.Loan) error
	// GetLoan returns the loan with its transactions, notes and files.
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	DeleteLoan(ctx context.Context, id uuid.UUID) error
	GetAllLoans(ctx context.Context) ([]*models.Loan, error)
	// GetLoansForLender returns the lender's loans with their transactions.
	GetLoansForLender(ctx context.Context, lenderID uuid.UUID) ([]*models.Loan, error)

	CreateTransaction(ctx context.Context, transaction *models.Transaction) error
	UpdateTransaction(ctx context.Context, transaction *models.Transaction) error
	DeleteTransaction(ctx context.Context, loanID, id uuid.UUID) error
	GetTransactionsForLoan(ctx context.Context, loanID uuid.UUID) ([]models.Transaction, error)

	CreateNote(ctx context.Context, note *models.Note) error
	CreateFile(ctx context.Context, file *models.File) error

	Close() error
}
