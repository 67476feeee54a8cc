package core

import "time"

// MemberPosition is a member's overall standing in a group:
// what they paid, what was allocated to them and the difference.
type MemberPosition struct {
	Member MemberID `json:"member"`
	Paid   Money    `json:"paid"`
	Owed   Money    `json:"owed"`
	Net    Money    `json:"net"`
}

// GroupReport is the balance summary presented for a group.
type GroupReport struct {
	GroupID   GroupID `json:"group_id"`
	GroupName string  `json:"group_name"`

	// Debts is the pairwise-netted result of the expenses alone.
	Debts []DebtEdge `json:"debts"`
	// Outstanding is Debts after recorded settlements are taken into account.
	Outstanding []DebtEdge       `json:"outstanding"`
	Positions   []MemberPosition `json:"positions"`

	TotalSpent      Money     `json:"total_spent"`
	ExpenseCount    int       `json:"expense_count"`
	SettlementCount int       `json:"settlement_count"`
	GeneratedAt     time.Time `json:"generated_at"`
}
