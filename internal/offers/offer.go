// Package offers holds the ephemeral payment offer and its TTL cache.
package offers

import (
	"time"

	"paywallet/internal/common/money"
)

// Category classifies a payment offer and fixes the sign of the resulting
// transaction amount: income categories credit the user, everything else
// is spending.
type Category string

const (
	CategorySBPTransfer       Category = "SBP_TRANSFER"
	CategoryCashWithdrawal    Category = "CASH_WITHDRAWAL"
	CategoryIncomingTransfer  Category = "INCOMING_TRANSFER"
	CategoryGoodsPayment      Category = "GOODS_PAYMENT"
	CategorySupermarkets      Category = "SUPERMARKETS"
	CategoryMobileServices    Category = "MOBILE_SERVICES"
	CategoryDigitalGoods      Category = "DIGITAL_GOODS"
	CategoryTransport         Category = "TRANSPORT"
	CategoryRailwayTickets    Category = "RAILWAY_TICKETS"
	CategoryMedicine          Category = "MEDICINE"
	CategoryHomeImprovement   Category = "HOME_IMPROVEMENT"
	CategorySportsAndOutdoors Category = "SPORTS_AND_OUTDOORS"
	CategoryClothingAndShoes  Category = "CLOTHING_AND_SHOES"
	CategoryRestaurants       Category = "RESTAURANTS_AND_CAFES"
	CategorySubscriptions     Category = "SUBSCRIPTIONS"
	CategoryEntertainment     Category = "ENTERTAINMENT"
	CategoryEducation         Category = "EDUCATION"
	CategoryAutoAndGas        Category = "AUTO_AND_GAS"
	CategoryUtilities         Category = "UTILITIES"
	CategoryTaxes             Category = "TAXES"
	CategoryInsurance         Category = "INSURANCE"
	CategoryCharity           Category = "CHARITY"
	CategoryTravel            Category = "TRAVEL"
	CategoryElectronics       Category = "ELECTRONICS"
	CategoryBeautyAndHealth   Category = "BEAUTY_AND_HEALTH"
	CategoryPets              Category = "PETS"
	CategoryChildrenProducts  Category = "CHILDREN_PRODUCTS"
	CategoryDelivery          Category = "DELIVERY"
	CategoryRewards           Category = "REWARDS"
	CategoryRefund            Category = "REFUND"
	CategoryOther             Category = "OTHER"
)

var positiveCategories = map[Category]bool{
	CategoryIncomingTransfer: true,
	CategoryRewards:          true,
	CategoryRefund:           true,
}

// IsIncome reports whether amounts in this category credit the user.
func (c Category) IsIncome() bool {
	return positiveCategories[c]
}

// ApplySign returns the amount with the category's polarity applied to
// its absolute value.
func (c Category) ApplySign(amount money.Money) money.Money {
	abs := amount.Abs()
	if c.IsIncome() {
		return abs
	}
	return abs.Negate()
}

// Location is the geo position the offer was suggested at.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PaymentOffer is a proposed, time-boxed payment opportunity awaiting user
// action. Offers are produced by an upstream suggestion process and live in
// the cache until consumed or expired.
type PaymentOffer struct {
	ID          string      `json:"id"`
	Amount      money.Money `json:"amount"`
	Category    Category    `json:"category"`
	Vendor      string      `json:"vendor"`
	Location    Location    `json:"location"`
	SuggestedAt time.Time   `json:"suggested_at"`
}
