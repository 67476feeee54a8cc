package balance

import (
	"cmp"
	"slices"

	"conti/internal/core"
)

// Pair is an ordered (debtor, creditor) key.
type Pair struct {
	Debtor   core.MemberID
	Creditor core.MemberID
}

// Reverse swaps debtor and creditor.
func (p Pair) Reverse() Pair {
	return Pair{Debtor: p.Creditor, Creditor: p.Debtor}
}

// Ledger maps a directed pair to the cumulative amount the debtor owes the
// creditor. Both directions of a pair may be present at the same time.
type Ledger map[Pair]core.Money

// Owed returns the amount recorded for debtor→creditor, zero if absent.
func (l Ledger) Owed(debtor, creditor core.MemberID) core.Money {
	return l[Pair{Debtor: debtor, Creditor: creditor}]
}

// Pairs returns the ledger keys in a stable order.
func (l Ledger) Pairs() []Pair {
	pairs := make([]Pair, 0, len(l))
	for p := range l {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, comparePairs)
	return pairs
}

// Aggregate adds every share of every expense to the running total owed by
// the share's member to the expense's payer. Shares held by the payer are
// skipped. Totals are not clamped, so negative shares reduce them and may
// drive them below zero.
func Aggregate(expenses []core.Expense) Ledger {
	owed := make(Ledger)
	for _, e := range expenses {
		for _, s := range e.Shares {
			if s.Member == e.Payer {
				continue
			}
			key := Pair{Debtor: s.Member, Creditor: e.Payer}
			owed[key] = owed[key].Add(s.Amount)
		}
	}
	return owed
}

func comparePairs(a, b Pair) int {
	if c := cmp.Compare(a.Debtor, b.Debtor); c != 0 {
		return c
	}
	return cmp.Compare(a.Creditor, b.Creditor)
}
