// Package balance computes who owes whom inside a group.
//
// The computation runs in two steps. Aggregate turns expenses into a
// Ledger of directed amounts (debtor, creditor). Net then collapses each
// pair of reciprocal entries into at most one DebtEdge. Netting is strictly
// pairwise: debts are never cancelled transitively across three or more
// members, so a cycle A→B→C→A keeps all three edges.
//
// Settlements are handled separately. NetSettledAmount reports how much one
// member has paid another, and ApplySettlements subtracts those payments
// from computed debts for presentation.
//
// Every function in this package is pure. It performs no I/O, keeps no
// state and never mutates its input, so concurrent calls are safe as long
// as callers do not modify the slices they pass in while a call is running.
package balance

import "conti/internal/core"

// ComputeBalances returns the net pairwise debts implied by expenses.
//
// members is the group snapshot the expenses belong to; it does not filter
// the result. Members with no expense activity simply produce no edges.
// Input is trusted as given: shares that do not add up to the expense
// amount, negative shares and payers outside the member list are carried
// through arithmetically. The result is sorted by (From, To) and is never
// nil.
func ComputeBalances(members []core.MemberID, expenses []core.Expense) []core.DebtEdge {
	return Net(Aggregate(expenses))
}
