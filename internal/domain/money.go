package domain

// Commission split: the platform keeps 12.5% of the quoted price, the valeter
// earns the remaining 87.5%.
const commissionPerMille = 125

// SplitPrice returns the platform commission and valeter payout for a quoted
// price in pence. The two always sum back to the price exactly: the commission
// is truncated and the payout takes the remainder.
func SplitPrice(pricePence int64) (commission, payout int64) {
	commission = pricePence * commissionPerMille / 1000
	payout = pricePence - commission
	return commission, payout
}
