package balance

import (
	"conti/internal/core"
)

// NetSettledAmount returns the total paid from→to minus the total paid
// to→from. A positive result means from has paid to more than the reverse.
func NetSettledAmount(from, to core.MemberID, settlements []core.Settlement) core.Money {
	var paid, received core.Money
	for _, s := range settlements {
		switch {
		case s.From == from && s.To == to:
			paid = paid.Add(s.Amount)
		case s.From == to && s.To == from:
			received = received.Add(s.Amount)
		}
	}
	return paid.Sub(received)
}

// ApplySettlements offsets computed debts by recorded settlements.
//
// For every pair touched by an edge or a settlement, the remaining debt is
// the edge amount minus NetSettledAmount for that direction. A positive
// remainder keeps the original direction, a negative one means the debtor
// overpaid and the edge flips, and zero drops the pair. edges is expected to
// come from Net and is not modified.
func ApplySettlements(edges []core.DebtEdge, settlements []core.Settlement) []core.DebtEdge {
	if len(settlements) == 0 {
		out := make([]core.DebtEdge, len(edges))
		copy(out, edges)
		return out
	}

	// Signed debt keyed by canonical pair: positive means Debtor owes Creditor.
	debts := make(map[Pair]core.Money, len(edges)+len(settlements))
	for _, e := range edges {
		key, flipped := canonical(e.From, e.To)
		amount := e.Amount
		if flipped {
			amount = amount.Neg()
		}
		debts[key] = debts[key].Add(amount)
	}
	for _, s := range settlements {
		if s.From == s.To {
			continue
		}
		key, _ := canonical(s.From, s.To)
		if _, ok := debts[key]; !ok {
			debts[key] = core.Money{}
		}
	}

	out := make([]core.DebtEdge, 0, len(debts))
	for key, debt := range debts {
		remaining := debt.Sub(NetSettledAmount(key.Debtor, key.Creditor, settlements))
		switch remaining.Sign() {
		case 1:
			out = append(out, core.DebtEdge{From: key.Debtor, To: key.Creditor, Amount: remaining})
		case -1:
			out = append(out, core.DebtEdge{From: key.Creditor, To: key.Debtor, Amount: remaining.Neg()})
		}
	}
	SortEdges(out)
	return out
}

// canonical orders two members so that each unordered pair maps to a single
// key. flipped reports whether a and b were swapped.
func canonical(a, b core.MemberID) (Pair, bool) {
	if a <= b {
		return Pair{Debtor: a, Creditor: b}, false
	}
	return Pair{Debtor: b, Creditor: a}, true
}
