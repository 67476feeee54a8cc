package balance

import (
	"cmp"
	"slices"

	"conti/internal/core"
)

// Net collapses a ledger into one edge per unordered pair of members.
//
// For each pair {A, B} present in either direction, net = owed(A→B) −
// owed(B→A). A positive net becomes A→B, a negative one B→A with the
// absolute value, and an exact zero yields no edge. Only direct reciprocal
// amounts cancel; nothing is netted across a third member.
func Net(l Ledger) []core.DebtEdge {
	edges := make([]core.DebtEdge, 0, len(l))
	processed := make(map[Pair]struct{}, len(l))

	for _, p := range l.Pairs() {
		if _, done := processed[p]; done {
			continue
		}
		rev := p.Reverse()
		processed[p] = struct{}{}
		processed[rev] = struct{}{}

		net := l[p].Sub(l[rev])
		switch net.Sign() {
		case 1:
			edges = append(edges, core.DebtEdge{From: p.Debtor, To: p.Creditor, Amount: net})
		case -1:
			edges = append(edges, core.DebtEdge{From: p.Creditor, To: p.Debtor, Amount: net.Neg()})
		}
	}

	SortEdges(edges)
	return edges
}

// SortEdges orders edges by (From, To) in place.
func SortEdges(edges []core.DebtEdge) {
	slices.SortFunc(edges, func(a, b core.DebtEdge) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
}
