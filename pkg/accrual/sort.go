package accrual

import (
	"sort"

	"github.com/soudis/soliloan/pkg/interest"
	"github.com/soudis/soliloan/pkg/models"
)

// sameDayRank orders transactions sharing a date: deposits first,
// terminations last, everything else in between in input order.
func sameDayRank(t models.TransactionType) int {
	switch t {
	case models.TransactionTypeDeposit:
		return 0
	case models.TransactionTypeTermination:
		return 2
	default:
		return 1
	}
}

// SortTransactions returns a chronologically sorted copy of txs.
func SortTransactions(txs []models.Transaction) []models.Transaction {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		da, db := interest.Date(sorted[i].Date), interest.Date(sorted[j].Date)
		if !da.Equal(db) {
			return da.Before(db)
		}
		return sameDayRank(sorted[i].Type) < sameDayRank(sorted[j].Type)
	})
	return sorted
}
