package balance

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conti/internal/core"
)

func money(s string) core.Money { return core.MustParseMoney(s) }

func share(member core.MemberID, amount string) core.Share {
	return core.Share{Member: member, Amount: money(amount)}
}

func expense(payer core.MemberID, amount string, shares ...core.Share) core.Expense {
	return core.Expense{Payer: payer, Amount: money(amount), Shares: shares}
}

// render turns edges into "from->to amount" strings so decimal values are
// compared by value rather than by internal representation.
func render(edges []core.DebtEdge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = fmt.Sprintf("%s->%s %s", e.From, e.To, e.Amount)
	}
	return out
}

func TestComputeBalances_EqualSplit(t *testing.T) {
	edges := ComputeBalances(
		[]core.MemberID{"U1", "U2"},
		[]core.Expense{expense("U1", "100", share("U1", "50"), share("U2", "50"))},
	)
	assert.Equal(t, []string{"U2->U1 50.00"}, render(edges))
}

func TestComputeBalances_CustomSplit(t *testing.T) {
	edges := ComputeBalances(
		[]core.MemberID{"U1", "U2"},
		[]core.Expense{expense("U1", "100", share("U1", "30"), share("U2", "70"))},
	)
	assert.Equal(t, []string{"U2->U1 70.00"}, render(edges))
}

func TestComputeBalances_ReciprocalExpensesNet(t *testing.T) {
	edges := ComputeBalances(
		[]core.MemberID{"U1", "U2"},
		[]core.Expense{
			expense("U1", "100", share("U1", "50"), share("U2", "50")),
			expense("U2", "60", share("U1", "30"), share("U2", "30")),
		},
	)
	assert.Equal(t, []string{"U2->U1 20.00"}, render(edges))
}

func TestComputeBalances_ThreeMembersPairwise(t *testing.T) {
	members := []core.MemberID{"U1", "U2", "U3"}
	expenses := []core.Expense{
		expense("U1", "90", share("U1", "30"), share("U2", "30"), share("U3", "30")),
		expense("U2", "60", share("U1", "20"), share("U2", "20"), share("U3", "20")),
	}

	ledger := Aggregate(expenses)
	assert.Equal(t, "30.00", ledger.Owed("U2", "U1").String())
	assert.Equal(t, "20.00", ledger.Owed("U1", "U2").String())
	assert.Equal(t, "30.00", ledger.Owed("U3", "U1").String())
	assert.Equal(t, "20.00", ledger.Owed("U3", "U2").String())

	edges := ComputeBalances(members, expenses)
	assert.Equal(t, []string{"U2->U1 10.00", "U3->U1 30.00", "U3->U2 20.00"}, render(edges))

	positions := NetPositions(members, expenses)
	require.Len(t, positions, 3)
	assert.Equal(t, "40.00", positions[0].Net.String())
	assert.Equal(t, "10.00", positions[1].Net.String())
	assert.Equal(t, "-50.00", positions[2].Net.String())

	fromEdges := PositionsFromEdges(edges)
	for _, p := range positions {
		assert.True(t, p.Net.Equal(fromEdges[p.Member]), "member %s: position %s, edges %s", p.Member, p.Net, fromEdges[p.Member])
	}
}

func TestComputeBalances_EmptyExpenses(t *testing.T) {
	edges := ComputeBalances([]core.MemberID{"U1", "U2", "U3"}, nil)
	require.NotNil(t, edges)
	assert.Empty(t, edges)
}

func TestComputeBalances_SingleMember(t *testing.T) {
	edges := ComputeBalances(
		[]core.MemberID{"U1"},
		[]core.Expense{expense("U1", "100", share("U1", "100"))},
	)
	assert.Empty(t, edges)
}

func TestComputeBalances_ZeroMembersZeroAmounts(t *testing.T) {
	edges := ComputeBalances(nil, []core.Expense{
		expense("U1", "0", share("U1", "0"), share("U2", "0")),
	})
	assert.Empty(t, edges)
}

func TestComputeBalances_Symmetry(t *testing.T) {
	edges := ComputeBalances(
		[]core.MemberID{"X", "Y"},
		[]core.Expense{
			expense("X", "50", share("Y", "50")),
			expense("Y", "50", share("X", "50")),
		},
	)
	assert.Empty(t, edges)
}

// Pairwise netting never cancels debts around a cycle.
func TestComputeBalances_NoTransitiveNetting(t *testing.T) {
	edges := ComputeBalances(
		[]core.MemberID{"A", "B", "C"},
		[]core.Expense{
			expense("B", "30", share("A", "30")),
			expense("C", "30", share("B", "30")),
			expense("A", "30", share("C", "30")),
		},
	)
	assert.Equal(t, []string{"A->B 30.00", "B->C 30.00", "C->A 30.00"}, render(edges))
}

func TestComputeBalances_UninvolvedMember(t *testing.T) {
	edges := ComputeBalances(
		[]core.MemberID{"U1", "U2", "U3"},
		[]core.Expense{expense("U1", "40", share("U1", "20"), share("U2", "20"))},
	)
	for _, e := range edges {
		assert.NotEqual(t, core.MemberID("U3"), e.From)
		assert.NotEqual(t, core.MemberID("U3"), e.To)
	}
}

func TestComputeBalances_NegativeSharesCarriedThrough(t *testing.T) {
	// A refund paid out by U1: U2's share is a credit, so U1 ends up owing U2.
	edges := ComputeBalances(
		[]core.MemberID{"U1", "U2"},
		[]core.Expense{expense("U1", "-50", share("U1", "-25"), share("U2", "-25"))},
	)
	assert.Equal(t, []string{"U1->U2 25.00"}, render(edges))

	ledger := Aggregate([]core.Expense{expense("U1", "-50", share("U2", "-25"))})
	assert.Equal(t, "-25.00", ledger.Owed("U2", "U1").String(), "negative totals must not be clamped")
}

func TestComputeBalances_MalformedSharesPropagate(t *testing.T) {
	// Shares add up to 130 on a 100 expense; the engine does not fix it.
	edges := ComputeBalances(
		[]core.MemberID{"U1", "U2", "U3"},
		[]core.Expense{expense("U1", "100", share("U2", "60"), share("U3", "70"))},
	)
	assert.Equal(t, []string{"U2->U1 60.00", "U3->U1 70.00"}, render(edges))

	// Payer absent from shares is fine too.
	edges = ComputeBalances(nil, []core.Expense{expense("P", "10", share("Q", "10"))})
	assert.Equal(t, []string{"Q->P 10.00"}, render(edges))
}

func TestComputeBalances_DecimalExactness(t *testing.T) {
	// Ten shares of 0.1 against a single 1.00 must cancel exactly.
	var expenses []core.Expense
	for range 10 {
		expenses = append(expenses, expense("A", "0.1", share("B", "0.1")))
	}
	expenses = append(expenses, expense("B", "1", share("A", "1")))
	assert.Empty(t, ComputeBalances([]core.MemberID{"A", "B"}, expenses))
}

func TestNet_KeepsBothDirectionsInLedger(t *testing.T) {
	ledger := Ledger{
		{Debtor: "A", Creditor: "B"}: money("10"),
		{Debtor: "B", Creditor: "A"}: money("25"),
		{Debtor: "C", Creditor: "D"}: money("5"),
		{Debtor: "D", Creditor: "C"}: money("5"),
	}
	assert.Equal(t, []string{"B->A 15.00"}, render(Net(ledger)))
}

func TestNetPositions(t *testing.T) {
	tests := []struct {
		name     string
		members  []core.MemberID
		expenses []core.Expense
		want     map[core.MemberID]string
	}{
		{
			name:     "simple split",
			members:  []core.MemberID{"1", "2"},
			expenses: []core.Expense{expense("1", "100", share("1", "50"), share("2", "50"))},
			want:     map[core.MemberID]string{"1": "50.00", "2": "-50.00"},
		},
		{
			name:    "unequal split",
			members: []core.MemberID{"1", "2", "3"},
			expenses: []core.Expense{
				expense("1", "120", share("1", "20"), share("2", "50"), share("3", "50")),
			},
			want: map[core.MemberID]string{"1": "100.00", "2": "-50.00", "3": "-50.00"},
		},
		{
			name:    "no expenses",
			members: []core.MemberID{"1", "2", "3"},
			want:    map[core.MemberID]string{"1": "0.00", "2": "0.00", "3": "0.00"},
		},
		{
			name:     "single user",
			members:  []core.MemberID{"1"},
			expenses: []core.Expense{expense("1", "100", share("1", "100"))},
			want:     map[core.MemberID]string{"1": "0.00"},
		},
		{
			name:     "expense with no shares",
			members:  []core.MemberID{"1", "2"},
			expenses: []core.Expense{expense("1", "100")},
			want:     map[core.MemberID]string{"1": "100.00", "2": "0.00"},
		},
		{
			name:     "negative expense",
			members:  []core.MemberID{"1", "2"},
			expenses: []core.Expense{expense("1", "-50", share("1", "-25"), share("2", "-25"))},
			want:     map[core.MemberID]string{"1": "-25.00", "2": "25.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			positions := NetPositions(tt.members, tt.expenses)
			got := make(map[core.MemberID]string, len(positions))
			for _, p := range positions {
				got[p.Member] = p.Net.String()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNetPositions_AppendsUnlistedMembers(t *testing.T) {
	positions := NetPositions(
		[]core.MemberID{"b", "a"},
		[]core.Expense{expense("z", "10", share("y", "10"))},
	)
	ids := make([]core.MemberID, len(positions))
	for i, p := range positions {
		ids[i] = p.Member
	}
	assert.Equal(t, []core.MemberID{"b", "a", "y", "z"}, ids)
}

// randomExpenses builds well-formed expenses whose shares add up to the
// amount, over a small member set so pairs collide often.
func randomExpenses(r *rand.Rand, members []core.MemberID, n int) []core.Expense {
	expenses := make([]core.Expense, 0, n)
	for range n {
		payer := members[r.IntN(len(members))]
		var shares []core.Share
		var total core.Money
		for _, m := range members {
			if r.IntN(3) == 0 {
				continue
			}
			amount := core.MoneyFromCents(int64(r.IntN(10000)))
			shares = append(shares, core.Share{Member: m, Amount: amount})
			total = total.Add(amount)
		}
		expenses = append(expenses, core.Expense{Payer: payer, Amount: total, Shares: shares})
	}
	return expenses
}

func TestComputeBalances_Properties(t *testing.T) {
	members := []core.MemberID{"a", "b", "c", "d", "e"}
	r := rand.New(rand.NewPCG(7, 42))

	for round := range 200 {
		expenses := randomExpenses(r, members, 1+r.IntN(12))
		edges := ComputeBalances(members, expenses)

		seen := make(map[Pair]struct{})
		for _, e := range edges {
			require.True(t, e.Amount.IsPositive(), "round %d: non-positive edge %+v", round, e)
			require.NotEqual(t, e.From, e.To, "round %d: self edge", round)
			key, _ := canonical(e.From, e.To)
			_, dup := seen[key]
			require.False(t, dup, "round %d: duplicate pair %v", round, key)
			seen[key] = struct{}{}
		}

		// Idempotence.
		require.Equal(t, render(edges), render(ComputeBalances(members, expenses)), "round %d", round)

		// Conservation.
		var total core.Money
		fromEdges := PositionsFromEdges(edges)
		for _, p := range NetPositions(members, expenses) {
			total = total.Add(p.Net)
			require.True(t, p.Net.Equal(fromEdges[p.Member]), "round %d member %s: %s vs %s", round, p.Member, p.Net, fromEdges[p.Member])
		}
		require.True(t, total.IsZero(), "round %d: positions sum to %s", round, total)
	}
}

func TestComputeBalances_DoesNotMutateInput(t *testing.T) {
	expenses := []core.Expense{
		expense("U1", "100", share("U2", "50"), share("U1", "50")),
		expense("U2", "30", share("U1", "30")),
	}
	before := fmt.Sprintf("%v", expenses)
	_ = ComputeBalances([]core.MemberID{"U1", "U2"}, expenses)
	assert.Equal(t, before, fmt.Sprintf("%v", expenses))
}

func TestComputeBalances_Concurrent(t *testing.T) {
	members := []core.MemberID{"a", "b", "c", "d"}
	expenses := randomExpenses(rand.New(rand.NewPCG(1, 2)), members, 50)
	want := render(ComputeBalances(members, expenses))

	var wg sync.WaitGroup
	results := make([][]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = render(ComputeBalances(members, expenses))
		}()
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
