package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/soudis/soliloan/pkg/accrual"
	"github.com/soudis/soliloan/pkg/ledger"
	"github.com/soudis/soliloan/pkg/models"
	"github.com/soudis/soliloan/pkg/store"
	"go.uber.org/zap"
)

// Server exposes the ledger over HTTP.
type Server struct {
	ledger   *ledger.Ledger
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	today    func() time.Time
}

func NewServer(l *ledger.Ledger, logger *zap.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ledger:   l,
		logger:   logger,
		gatherer: gatherer,
		today:    time.Now,
	}
}

// Router wires every route of the API.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/transactions", s.recordTransactionHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/transactions/{txid}", s.updateTransactionHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}/transactions/{txid}", s.deleteTransactionHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/notes", s.addNoteHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/files", s.addFileHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/snapshot", s.snapshotHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/max-withdrawal", s.maxWithdrawalHandler).Methods("GET")
	router.HandleFunc("/lenders/{id}/totals", s.lenderTotalsHandler).Methods("GET")

	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	return router
}

type loanRequest struct {
	LenderID          uuid.UUID              `json:"lender_id"`
	Amount            decimal.Decimal        `json:"amount"`
	InterestRate      decimal.Decimal        `json:"interest_rate"`
	SignDate          string                 `json:"sign_date"`
	TerminationType   models.TerminationType `json:"termination_type"`
	EndDate           string                 `json:"end_date,omitempty"`
	NoticePeriod      int                    `json:"notice_period,omitempty"`
	NoticeUnit        models.PeriodUnit      `json:"notice_unit,omitempty"`
	Duration          int                    `json:"duration,omitempty"`
	DurationUnit      models.PeriodUnit      `json:"duration_unit,omitempty"`
	TerminationDate   string                 `json:"termination_date,omitempty"`
	AltInterestMethod *models.InterestMethod `json:"alt_interest_method,omitempty"`
}

func (r loanRequest) toLoan() (*models.Loan, error) {
	signDate, err := parseDate("sign_date", r.SignDate)
	if err != nil {
		return nil, err
	}
	endDate, err := parseOptionalDate("end_date", r.EndDate)
	if err != nil {
		return nil, err
	}
	terminationDate, err := parseOptionalDate("termination_date", r.TerminationDate)
	if err != nil {
		return nil, err
	}
	return &models.Loan{
		LenderID:          r.LenderID,
		Amount:            r.Amount,
		InterestRate:      r.InterestRate,
		SignDate:          signDate,
		TerminationType:   r.TerminationType,
		EndDate:           endDate,
		NoticePeriod:      r.NoticePeriod,
		NoticeUnit:        r.NoticeUnit,
		Duration:          r.Duration,
		DurationUnit:      r.DurationUnit,
		TerminationDate:   terminationDate,
		AltInterestMethod: r.AltInterestMethod,
	}, nil
}

type transactionRequest struct {
	Type        models.TransactionType `json:"type"`
	Date        string                 `json:"date"`
	Amount      decimal.Decimal        `json:"amount"`
	PaymentType models.PaymentType     `json:"payment_type,omitempty"`
}

func (r transactionRequest) toTransaction() (models.Transaction, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{Type: r.Type, Date: date, Amount: r.Amount, PaymentType: r.PaymentType}, nil
}

// errBadRequest marks malformed ids, dates and bodies.
var errBadRequest = errors.New("bad request")

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if loans == nil {
		loans = []*models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	loan, err := req.toLoan()
	if err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.ledger.CreateLoan(r.Context(), loan)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}

	loan, err := s.ledger.GetLoan(r.Context(), loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req loanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	loan, err := req.toLoan()
	if err != nil {
		s.writeError(w, err)
		return
	}
	loan.ID = loanID

	updated, err := s.ledger.UpdateLoan(r.Context(), loan)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.DeleteLoan(r.Context(), loanID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordTransactionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	tx, err := req.toTransaction()
	if err != nil {
		s.writeError(w, err)
		return
	}

	recorded, err := s.ledger.RecordTransaction(r.Context(), loanID, tx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recorded)
}

func (s *Server) updateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	txID, err := pathID(r, "txid")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	tx, err := req.toTransaction()
	if err != nil {
		s.writeError(w, err)
		return
	}
	tx.ID = txID

	updated, err := s.ledger.UpdateTransaction(r.Context(), loanID, tx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	txID, err := pathID(r, "txid")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), loanID, txID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addNoteHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var note models.Note
	if err := decodeBody(r, &note); err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.ledger.AddNote(r.Context(), loanID, note)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// addFileHandler takes the file contents base64 encoded in "data".
func (s *Server) addFileHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var file models.File
	if err := decodeBody(r, &file); err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.ledger.AddFile(r.Context(), loanID, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	created.Data = nil
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	asOf, err := s.asOfParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var opts accrual.SnapshotOptions
	if v := r.URL.Query().Get("interestYear"); v != "" {
		if opts.InterestYear, err = strconv.Atoi(v); err != nil {
			s.writeError(w, fmt.Errorf("%w: invalid interestYear %q", errBadRequest, v))
			return
		}
	}
	if v := r.URL.Query().Get("client"); v != "" {
		if opts.Client, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, fmt.Errorf("%w: invalid client flag %q", errBadRequest, v))
			return
		}
	}

	snap, err := s.ledger.Snapshot(r.Context(), loanID, asOf, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) maxWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	date, err := s.asOfParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	excludeID := uuid.Nil
	if v := r.URL.Query().Get("exclude"); v != "" {
		if excludeID, err = uuid.Parse(v); err != nil {
			s.writeError(w, fmt.Errorf("%w: invalid exclude id %q", errBadRequest, v))
			return
		}
	}

	amount, err := s.ledger.MaxWithdrawal(r.Context(), loanID, date, excludeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loan_id": loanID,
		"date":    date.Format(models.DateLayout),
		"amount":  amount,
	})
}

func (s *Server) lenderTotalsHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	asOf, err := s.asOfParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	totals, err := s.ledger.LenderTotals(r.Context(), lenderID, asOf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// asOfParam reads the asOf (or date) query parameter, defaulting to today.
func (s *Server) asOfParam(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("asOf")
	if v == "" {
		v = r.URL.Query().Get("date")
	}
	if v == "" {
		return s.today(), nil
	}
	return parseDate("asOf", v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrWithdrawalExceedsBalance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, field)
	}
	return t, nil
}

func parseOptionalDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseDate(field, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
