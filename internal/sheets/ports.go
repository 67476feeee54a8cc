package sheets

import (
	"context"

	"conti/internal/core"
)

// Ports for outbound adapters.
type (
	GroupReader interface {
		GetGroup(ctx context.Context, id core.GroupID) (core.Group, error)
		ListGroups(ctx context.Context) ([]core.Group, error)
	}

	GroupWriter interface {
		CreateGroup(ctx context.Context, g core.Group) error
		// AddMember appends a member to an existing group.
		AddMember(ctx context.Context, groupID core.GroupID, m core.Member) error
	}

	ExpenseWriter interface {
		// AddExpense persists e and returns its assigned ID.
		AddExpense(ctx context.Context, e core.Expense) (int64, error)
		// UpdateExpense replaces the expense with e.ID in e.GroupID,
		// shares included.
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, groupID core.GroupID, id int64) error
	}

	// ExpenseLister returns every expense recorded for a group, oldest first.
	ExpenseLister interface {
		ListExpenses(ctx context.Context, groupID core.GroupID) ([]core.Expense, error)
	}

	SettlementWriter interface {
		AddSettlement(ctx context.Context, s core.Settlement) (int64, error)
	}

	// SettlementLister returns settlements newest first.
	SettlementLister interface {
		ListSettlements(ctx context.Context, groupID core.GroupID) ([]core.Settlement, error)
		// ListSettlementsForMember returns settlements where the member is
		// payer or payee, across all groups.
		ListSettlementsForMember(ctx context.Context, member core.MemberID) ([]core.Settlement, error)
		// ListSettlementsBetween returns settlements between a and b in either
		// direction. An empty groupID matches every group.
		ListSettlementsBetween(ctx context.Context, a, b core.MemberID, groupID core.GroupID) ([]core.Settlement, error)
	}

	// ReportExporter publishes a computed group report to an external sink.
	ReportExporter interface {
		ExportReport(ctx context.Context, r core.GroupReport) error
	}

	Store interface {
		GroupReader
		GroupWriter
		ExpenseWriter
		ExpenseLister
		SettlementWriter
		SettlementLister
	}
)
