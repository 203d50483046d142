package transactions

import (
	"context"
	"time"

	"paywallet/internal/common/database"
	"paywallet/internal/common/money"
	"paywallet/internal/transactions/domain"
)

// ReportFilter selects which side of the ledger a period report covers.
type ReportFilter int

const (
	ReportAll ReportFilter = iota
	ReportExpenses
	ReportIncome
)

const dayFormat = "2006-01-02"

// DayGroup is one calendar day of a period report.
type DayGroup struct {
	Date         string               `json:"date"`
	Transactions []domain.Transaction `json:"transactions"`
	Total        money.Money          `json:"total"`
}

// PeriodReport is the confirmed transaction history of a card between
// two dates, grouped per day with totals and category breakdowns.
type PeriodReport struct {
	CardNumber         string                 `json:"card_number"`
	From               string                 `json:"from"`
	To                 string                 `json:"to"`
	Days               []DayGroup             `json:"days"`
	TotalSpending      money.Money            `json:"total_spending"`
	TotalIncome        money.Money            `json:"total_income"`
	SpendingByCategory map[string]money.Money `json:"spending_by_category"`
	IncomeByCategory   map[string]money.Money `json:"income_by_category"`
}

// Report builds a period report over a card's confirmed transactions.
// The range is inclusive of both dates. from must not be after to and
// must not precede the card's first transaction.
func (s *Service) Report(ctx context.Context, cardNumber string, from, to time.Time, filter ReportFilter) (PeriodReport, error) {
	from = truncateToDay(from)
	to = truncateToDay(to)
	if from.After(to) {
		return PeriodReport{}, ErrIncorrectTimePeriod
	}

	first, err := s.store.FirstTransactionDate(ctx, cardNumber)
	if database.IsNotFound(err) {
		return PeriodReport{}, ErrIncorrectTimePeriod
	}
	if err != nil {
		return PeriodReport{}, err
	}
	if from.Before(truncateToDay(first)) {
		return PeriodReport{}, ErrIncorrectTimePeriod
	}

	txns, err := s.store.ByCardAndPeriod(ctx, cardNumber, from, to.AddDate(0, 0, 1))
	if err != nil {
		return PeriodReport{}, err
	}

	report := PeriodReport{
		CardNumber:         cardNumber,
		From:               from.Format(dayFormat),
		To:                 to.Format(dayFormat),
		SpendingByCategory: make(map[string]money.Money),
		IncomeByCategory:   make(map[string]money.Money),
	}

	var current *DayGroup
	for _, txn := range txns {
		if !matchesFilter(txn, filter) {
			continue
		}

		day := txn.CreatedAt.UTC().Format(dayFormat)
		if current == nil || current.Date != day {
			report.Days = append(report.Days, DayGroup{
				Date:  day,
				Total: money.Zero(txn.Amount.Currency),
			})
			current = &report.Days[len(report.Days)-1]
		}
		current.Transactions = append(current.Transactions, txn)
		current.Total = current.Total.MustAdd(txn.Amount)

		category := string(txn.Offer.Category)
		if txn.Amount.IsNegative() {
			report.TotalSpending = addTo(report.TotalSpending, txn.Amount.Abs())
			report.SpendingByCategory[category] = addTo(report.SpendingByCategory[category], txn.Amount.Abs())
		} else {
			report.TotalIncome = addTo(report.TotalIncome, txn.Amount)
			report.IncomeByCategory[category] = addTo(report.IncomeByCategory[category], txn.Amount)
		}
	}

	return report, nil
}

func matchesFilter(txn domain.Transaction, filter ReportFilter) bool {
	switch filter {
	case ReportExpenses:
		return txn.Amount.IsNegative()
	case ReportIncome:
		return !txn.Amount.IsNegative()
	default:
		return true
	}
}

// addTo tolerates the zero Money value so totals start without a
// currency until the first transaction fixes one.
func addTo(total, amount money.Money) money.Money {
	if total.Currency == "" {
		return amount
	}
	return total.MustAdd(amount)
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
