package balance

import (
	"slices"

	"conti/internal/core"
)

// NetPositions returns each member's overall standing: the total they paid
// as payer, the total of the shares allocated to them (their own share of
// expenses they paid included) and the difference.
//
// Every listed member appears, in order, even without activity. Members
// that only show up in expenses are appended sorted by ID. When every
// expense's shares add up to its amount, the nets sum to zero.
func NetPositions(members []core.MemberID, expenses []core.Expense) []core.MemberPosition {
	paid := make(map[core.MemberID]core.Money, len(members))
	owed := make(map[core.MemberID]core.Money, len(members))
	order := make([]core.MemberID, 0, len(members))
	seen := make(map[core.MemberID]struct{}, len(members))
	var extra []core.MemberID

	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		order = append(order, m)
	}
	track := func(m core.MemberID) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		extra = append(extra, m)
	}

	for _, e := range expenses {
		track(e.Payer)
		paid[e.Payer] = paid[e.Payer].Add(e.Amount)
		for _, s := range e.Shares {
			track(s.Member)
			owed[s.Member] = owed[s.Member].Add(s.Amount)
		}
	}

	slices.Sort(extra)
	order = append(order, extra...)

	positions := make([]core.MemberPosition, len(order))
	for i, m := range order {
		positions[i] = core.MemberPosition{
			Member: m,
			Paid:   paid[m],
			Owed:   owed[m],
			Net:    paid[m].Sub(owed[m]),
		}
	}
	return positions
}

// PositionsFromEdges derives each member's net standing from a set of debt
// edges: amounts owed to the member minus amounts the member owes.
func PositionsFromEdges(edges []core.DebtEdge) map[core.MemberID]core.Money {
	net := make(map[core.MemberID]core.Money)
	for _, e := range edges {
		net[e.To] = net[e.To].Add(e.Amount)
		net[e.From] = net[e.From].Sub(e.Amount)
	}
	return net
}
