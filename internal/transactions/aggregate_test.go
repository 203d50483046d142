package transactions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"paywallet/internal/common/money"
	"paywallet/internal/offers"
	"paywallet/internal/transactions"
	"paywallet/internal/transactions/domain"
)

func confirmedTxn(day string, amountMinor int64, category offers.Category) domain.Transaction {
	created, _ := time.Parse(time.RFC3339, day)
	return domain.Transaction{
		ID:         "txn-" + day,
		UserID:     "user-1",
		CardNumber: "4111111111111111",
		Offer: domain.OfferSnapshot{
			OfferID:  "offer-" + day,
			Amount:   money.New(amountMinor, money.RUB).Abs(),
			Category: category,
		},
		Amount:    money.New(amountMinor, money.RUB),
		Status:    domain.StatusConfirmed,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func reportStore() *fakeStore {
	store := newFakeStore()
	store.hasFirst = true
	store.firstTxnDate, _ = time.Parse(time.RFC3339, "2026-03-01T09:00:00Z")
	store.periodTxns = []domain.Transaction{
		confirmedTxn("2026-03-01T09:00:00Z", -10000, offers.CategorySupermarkets),
		confirmedTxn("2026-03-01T18:30:00Z", -5000, offers.CategoryRestaurants),
		confirmedTxn("2026-03-02T12:00:00Z", 200000, offers.CategoryIncomingTransfer),
		confirmedTxn("2026-03-04T08:15:00Z", -30000, offers.CategorySupermarkets),
	}
	return store
}

func reportService(store *fakeStore) *transactions.Service {
	return transactions.NewService(store, &fakeOfferCache{}, &fakeDebitor{}, testLogger())
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestReportGroupsByDay(t *testing.T) {
	svc := reportService(reportStore())

	report, err := svc.Report(context.Background(), "4111111111111111", day("2026-03-01"), day("2026-03-05"), transactions.ReportAll)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	if len(report.Days) != 3 {
		t.Fatalf("days = %d, want 3", len(report.Days))
	}

	first := report.Days[0]
	if first.Date != "2026-03-01" {
		t.Errorf("first day = %s, want 2026-03-01", first.Date)
	}
	if len(first.Transactions) != 2 {
		t.Errorf("first day transactions = %d, want 2", len(first.Transactions))
	}
	if first.Total.AmountMinor != -15000 {
		t.Errorf("first day total = %d, want -15000", first.Total.AmountMinor)
	}

	if report.TotalSpending.AmountMinor != 45000 {
		t.Errorf("total spending = %d, want 45000", report.TotalSpending.AmountMinor)
	}
	if report.TotalIncome.AmountMinor != 200000 {
		t.Errorf("total income = %d, want 200000", report.TotalIncome.AmountMinor)
	}
	if got := report.SpendingByCategory["SUPERMARKETS"].AmountMinor; got != 40000 {
		t.Errorf("supermarkets spending = %d, want 40000", got)
	}
	if got := report.SpendingByCategory["RESTAURANTS_AND_CAFES"].AmountMinor; got != 5000 {
		t.Errorf("restaurants spending = %d, want 5000", got)
	}
	if got := report.IncomeByCategory["INCOMING_TRANSFER"].AmountMinor; got != 200000 {
		t.Errorf("transfer income = %d, want 200000", got)
	}
}

func TestReportExpenseFilter(t *testing.T) {
	svc := reportService(reportStore())

	report, err := svc.Report(context.Background(), "4111111111111111", day("2026-03-01"), day("2026-03-05"), transactions.ReportExpenses)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	for _, dayGroup := range report.Days {
		for _, txn := range dayGroup.Transactions {
			if !txn.Amount.IsNegative() {
				t.Errorf("expense report includes income transaction %s", txn.ID)
			}
		}
	}
	if len(report.Days) != 2 {
		t.Errorf("expense days = %d, want 2", len(report.Days))
	}
	if report.TotalIncome.AmountMinor != 0 {
		t.Errorf("expense report income = %d, want 0", report.TotalIncome.AmountMinor)
	}
}

func TestReportIncomeFilter(t *testing.T) {
	svc := reportService(reportStore())

	report, err := svc.Report(context.Background(), "4111111111111111", day("2026-03-01"), day("2026-03-05"), transactions.ReportIncome)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if len(report.Days) != 1 || report.Days[0].Date != "2026-03-02" {
		t.Fatalf("income days = %v, want only 2026-03-02", report.Days)
	}
	if report.TotalSpending.AmountMinor != 0 {
		t.Errorf("income report spending = %d, want 0", report.TotalSpending.AmountMinor)
	}
}

func TestReportPeriodValidation(t *testing.T) {
	t.Run("from after to", func(t *testing.T) {
		svc := reportService(reportStore())
		_, err := svc.Report(context.Background(), "4111111111111111", day("2026-03-05"), day("2026-03-01"), transactions.ReportAll)
		if !errors.Is(err, transactions.ErrIncorrectTimePeriod) {
			t.Errorf("error = %v, want ErrIncorrectTimePeriod", err)
		}
	})

	t.Run("from before first transaction", func(t *testing.T) {
		svc := reportService(reportStore())
		_, err := svc.Report(context.Background(), "4111111111111111", day("2026-02-01"), day("2026-03-05"), transactions.ReportAll)
		if !errors.Is(err, transactions.ErrIncorrectTimePeriod) {
			t.Errorf("error = %v, want ErrIncorrectTimePeriod", err)
		}
	})

	t.Run("card without history", func(t *testing.T) {
		store := newFakeStore()
		svc := reportService(store)
		_, err := svc.Report(context.Background(), "4111111111111111", day("2026-03-01"), day("2026-03-05"), transactions.ReportAll)
		if !errors.Is(err, transactions.ErrIncorrectTimePeriod) {
			t.Errorf("error = %v, want ErrIncorrectTimePeriod", err)
		}
	})

	t.Run("single day period", func(t *testing.T) {
		svc := reportService(reportStore())
		report, err := svc.Report(context.Background(), "4111111111111111", day("2026-03-01"), day("2026-03-01"), transactions.ReportAll)
		if err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		if len(report.Days) != 1 {
			t.Errorf("days = %d, want 1", len(report.Days))
		}
	})
}
