package ledger

import "github.com/veresiye/defter/internal/money"

// Totals holds the derived figures of a customer's ledger.
type Totals struct {
	TotalDebt money.Amount `json:"total_debt"`
	TotalPaid money.Amount `json:"total_paid"`
}

// TotalDebt sums unpaid DEBT lines. CREDIT lines never count as owed.
func TotalDebt(debts []Debt) money.Amount {
	total := money.Zero()
	for _, d := range debts {
		if !d.IsPaid && d.DebtType == DebtTypeDebt {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// TotalPaid sums every paid line regardless of type.
func TotalPaid(debts []Debt) money.Amount {
	total := money.Zero()
	for _, d := range debts {
		if d.IsPaid {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// Summarize computes both aggregates in one pass over debts.
func Summarize(debts []Debt) Totals {
	return Totals{TotalDebt: TotalDebt(debts), TotalPaid: TotalPaid(debts)}
}

// summarizeByCustomer groups debts per customer and summarises each group.
// Every id in ids gets an entry, zero when it has no debts.
func summarizeByCustomer(ids []int64, debts map[int64][]Debt) map[int64]Totals {
	out := make(map[int64]Totals, len(ids))
	for _, id := range ids {
		out[id] = Summarize(debts[id])
	}
	return out
}
