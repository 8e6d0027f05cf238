package wallet

// CoinPlan is a purchasable recharge pack. AmountINR is the gateway charge in
// rupees; the wallet is credited Coins + BonusCoins on a confirmed payment.
type CoinPlan struct {
	ID         string `json:"id"`
	Coins      int64  `json:"coins"`
	AmountINR  int64  `json:"amount_inr"`
	BonusCoins int64  `json:"bonus_coins"`
}

var coinPlans = []CoinPlan{
	{ID: "basic", Coins: 100, AmountINR: 99, BonusCoins: 0},
	{ID: "standard", Coins: 500, AmountINR: 499, BonusCoins: 50},
	{ID: "premium", Coins: 1000, AmountINR: 999, BonusCoins: 150},
	{ID: "ultimate", Coins: 2000, AmountINR: 1999, BonusCoins: 400},
}

// Plans returns the recharge catalog.
func Plans() []CoinPlan {
	out := make([]CoinPlan, len(coinPlans))
	copy(out, coinPlans)
	return out
}

// PlanByID looks up a plan, reporting whether it exists.
func PlanByID(id string) (CoinPlan, bool) {
	for _, plan := range coinPlans {
		if plan.ID == id {
			return plan, true
		}
	}
	return CoinPlan{}, false
}
