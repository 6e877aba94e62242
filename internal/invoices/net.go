package invoices

import "github.com/shopspring/decimal"

// Balance is what remains owed on an invoice after its credit notes.
type Balance struct {
	Gross        decimal.Decimal `json:"gross"`
	Credited     decimal.Decimal `json:"credited"`
	Net          decimal.Decimal `json:"net"`
	OverCredited bool            `json:"over_credited"`
}

// Net subtracts credits from amount. The net never goes below zero; when the
// credits exceed the gross the balance is flagged as over-credited.
func Net(amount decimal.Decimal, credits []decimal.Decimal) Balance {
	credited := decimal.Zero
	for _, c := range credits {
		credited = credited.Add(c)
	}
	net := amount.Sub(credited)
	over := net.IsNegative()
	if over {
		net = decimal.Zero
	}
	return Balance{
		Gross:        amount.Round(2),
		Credited:     credited.Round(2),
		Net:          net.Round(2),
		OverCredited: over,
	}
}
