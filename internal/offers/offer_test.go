package offers

import (
	"testing"

	"paywallet/internal/common/money"
)

func TestCategoryIsIncome(t *testing.T) {
	income := []Category{CategoryIncomingTransfer, CategoryRewards, CategoryRefund}
	for _, c := range income {
		if !c.IsIncome() {
			t.Errorf("%s should be income", c)
		}
	}

	spending := []Category{
		CategorySupermarkets,
		CategorySBPTransfer,
		CategoryCashWithdrawal,
		CategoryRestaurants,
		CategoryOther,
	}
	for _, c := range spending {
		if c.IsIncome() {
			t.Errorf("%s should be spending", c)
		}
	}
}

func TestApplySign(t *testing.T) {
	amount := money.New(12345, money.RUB)

	got := CategorySupermarkets.ApplySign(amount)
	if got.AmountMinor != -12345 {
		t.Errorf("spending sign = %d, want -12345", got.AmountMinor)
	}

	got = CategoryRewards.ApplySign(amount)
	if got.AmountMinor != 12345 {
		t.Errorf("income sign = %d, want 12345", got.AmountMinor)
	}

	// Sign is applied to the absolute value, so an already-negative
	// input does not flip back.
	got = CategorySupermarkets.ApplySign(money.New(-12345, money.RUB))
	if got.AmountMinor != -12345 {
		t.Errorf("negative input sign = %d, want -12345", got.AmountMinor)
	}
}
