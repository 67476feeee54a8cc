package google

import (
	"fmt"
	"strings"
	"time"

	"conti/internal/core"
)

const maxTabName = 100

var tabReplacer = strings.NewReplacer("[", "(", "]", ")", ":", "-", "*", "", "?", "", "/", "-", "\\", "-")

// tabName is "<prefix> <group name>", falling back to the group ID when the
// name is empty, stripped of characters Sheets rejects in titles.
func tabName(prefix string, r core.GroupReport) string {
	name := strings.TrimSpace(r.GroupName)
	if name == "" {
		name = string(r.GroupID)
	}
	title := strings.TrimSpace(tabReplacer.Replace(strings.TrimSpace(prefix + " " + name)))
	if runes := []rune(title); len(runes) > maxTabName {
		title = string(runes[:maxTabName])
	}
	return title
}

// reportRows lays a report out as a values matrix: a header, outstanding
// debts, debts before settlements, member positions, totals. Sections are
// separated by a blank row.
func reportRows(r core.GroupReport) [][]any {
	rows := [][]any{
		{"Group", r.GroupName, string(r.GroupID)},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{},
		{"Outstanding", "From", "To", "Amount"},
	}
	rows = appendEdges(rows, r.Outstanding)

	rows = append(rows, []any{}, []any{"Before settlements", "From", "To", "Amount"})
	rows = appendEdges(rows, r.Debts)

	rows = append(rows, []any{}, []any{"Member", "Paid", "Owed", "Net"})
	for _, p := range r.Positions {
		rows = append(rows, []any{string(p.Member), p.Paid.String(), p.Owed.String(), p.Net.String()})
	}

	rows = append(rows,
		[]any{},
		[]any{"Total spent", r.TotalSpent.String()},
		[]any{"Expenses", r.ExpenseCount},
		[]any{"Settlements", r.SettlementCount},
	)
	return rows
}

func appendEdges(rows [][]any, edges []core.DebtEdge) [][]any {
	if len(edges) == 0 {
		return append(rows, []any{"", "All settled"})
	}
	for i, e := range edges {
		rows = append(rows, []any{fmt.Sprintf("%d", i+1), string(e.From), string(e.To), e.Amount.String()})
	}
	return rows
}
