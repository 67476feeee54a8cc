package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"conti/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateGroup implements sheets.GroupWriter
func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.now()
	}
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetGroup(ctx, string(g.ID)); err == nil {
			return fmt.Errorf("%w: %s", core.ErrGroupExists, g.ID)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("get group: %w", err)
		}
		if err := q.CreateGroup(ctx, GroupRow{
			ID: string(g.ID), Name: g.Name, Description: g.Description, CreatedAt: g.CreatedAt,
		}); err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		for _, m := range g.Members {
			if err := q.AddMember(ctx, MemberRow{GroupID: string(g.ID), MemberID: string(m.ID), Name: m.Name}); err != nil {
				return fmt.Errorf("add member %s: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Group saved to SQLite", "group_id", g.ID, "members", len(g.Members))
	return nil
}

// AddMember implements sheets.GroupWriter
func (r *SQLiteRepository) AddMember(ctx context.Context, groupID core.GroupID, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return r.withTx(ctx, func(q *Queries) error {
		g, err := r.loadGroup(ctx, q, groupID)
		if err != nil {
			return err
		}
		if g.HasMember(m.ID) {
			return fmt.Errorf("%w: %s", core.ErrDuplicateMember, m.ID)
		}
		if err := q.AddMember(ctx, MemberRow{GroupID: string(groupID), MemberID: string(m.ID), Name: m.Name}); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		return nil
	})
}

// GetGroup implements sheets.GroupReader
func (r *SQLiteRepository) GetGroup(ctx context.Context, id core.GroupID) (core.Group, error) {
	return r.loadGroup(ctx, r.queries, id)
}

func (r *SQLiteRepository) loadGroup(ctx context.Context, q *Queries, id core.GroupID) (core.Group, error) {
	row, err := q.GetGroup(ctx, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, core.ErrGroupNotFound
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("get group: %w", err)
	}
	members, err := q.ListMembers(ctx, row.ID)
	if err != nil {
		return core.Group{}, fmt.Errorf("list members: %w", err)
	}
	return groupFromRows(row, members), nil
}

// ListGroups implements sheets.GroupReader
func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.queries.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	groups := make([]core.Group, 0, len(rows))
	for _, row := range rows {
		members, err := r.queries.ListMembers(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", row.ID, err)
		}
		groups = append(groups, groupFromRows(row, members))
	}
	return groups, nil
}

// AddExpense implements sheets.ExpenseWriter
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetGroup(ctx, string(e.GroupID)); errors.Is(err, sql.ErrNoRows) {
			return core.ErrGroupNotFound
		} else if err != nil {
			return fmt.Errorf("get group: %w", err)
		}

		var err error
		id, err = q.CreateExpense(ctx, ExpenseRow{
			GroupID:     string(e.GroupID),
			Description: e.Description,
			Amount:      e.Amount.String(),
			Payer:       string(e.Payer),
			ExpenseDate: e.Date.String(),
		})
		if err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		for i, s := range e.Shares {
			if err := q.CreateShare(ctx, ShareRow{ExpenseID: id, MemberID: string(s.Member), Amount: s.Amount.String()}, i); err != nil {
				return fmt.Errorf("create share for %s: %w", s.Member, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"group_id", e.GroupID,
		"description", e.Description,
		"amount", e.Amount.String(),
		"payer", e.Payer,
		"shares", len(e.Shares))

	return id, nil
}

// UpdateExpense implements sheets.ExpenseWriter. The expense row is updated
// and its shares are rewritten in one transaction.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	err := r.withTx(ctx, func(q *Queries) error {
		n, err := q.UpdateExpense(ctx, ExpenseRow{
			ID:          e.ID,
			GroupID:     string(e.GroupID),
			Description: e.Description,
			Amount:      e.Amount.String(),
			Payer:       string(e.Payer),
			ExpenseDate: e.Date.String(),
		})
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		if n == 0 {
			return core.ErrExpenseNotFound
		}
		if err := q.DeleteShares(ctx, e.ID); err != nil {
			return fmt.Errorf("delete shares: %w", err)
		}
		for i, s := range e.Shares {
			if err := q.CreateShare(ctx, ShareRow{ExpenseID: e.ID, MemberID: string(s.Member), Amount: s.Amount.String()}, i); err != nil {
				return fmt.Errorf("create share for %s: %w", s.Member, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense updated in SQLite",
		"id", e.ID,
		"group_id", e.GroupID,
		"amount", e.Amount.String(),
		"payer", e.Payer,
		"shares", len(e.Shares))
	return nil
}

// DeleteExpense implements sheets.ExpenseWriter
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, groupID core.GroupID, id int64) error {
	n, err := r.queries.DeleteExpense(ctx, id, string(groupID))
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return core.ErrExpenseNotFound
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id, "group_id", groupID)
	return nil
}

// ListExpenses implements sheets.ExpenseLister. Expenses and their shares
// are read in one transaction so a concurrent delete or update cannot split
// an expense from its shares.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, groupID core.GroupID) ([]core.Expense, error) {
	var (
		rows      []ExpenseRow
		shareRows []ShareRow
	)
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetGroup(ctx, string(groupID)); errors.Is(err, sql.ErrNoRows) {
			return core.ErrGroupNotFound
		} else if err != nil {
			return fmt.Errorf("get group: %w", err)
		}
		var err error
		if rows, err = q.ListExpenses(ctx, string(groupID)); err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		if shareRows, err = q.ListSharesByGroup(ctx, string(groupID)); err != nil {
			return fmt.Errorf("list shares: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	shares := make(map[int64][]core.Share, len(rows))
	for _, s := range shareRows {
		amount, err := core.ParseMoney(s.Amount)
		if err != nil {
			return nil, fmt.Errorf("share amount of expense %d: %w", s.ExpenseID, err)
		}
		shares[s.ExpenseID] = append(shares[s.ExpenseID], core.Share{Member: core.MemberID(s.MemberID), Amount: amount})
	}

	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		amount, err := core.ParseMoney(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount of expense %d: %w", row.ID, err)
		}
		var date core.Date
		if err := date.UnmarshalText([]byte(row.ExpenseDate)); err != nil {
			return nil, fmt.Errorf("date of expense %d: %w", row.ID, err)
		}
		expenses[i] = core.Expense{
			ID:          row.ID,
			GroupID:     core.GroupID(row.GroupID),
			Description: row.Description,
			Amount:      amount,
			Payer:       core.MemberID(row.Payer),
			Date:        date,
			Shares:      shares[row.ID],
		}
	}

	return expenses, nil
}

// AddSettlement implements sheets.SettlementWriter
func (r *SQLiteRepository) AddSettlement(ctx context.Context, s core.Settlement) (int64, error) {
	if _, err := r.queries.GetGroup(ctx, string(s.GroupID)); errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrGroupNotFound
	} else if err != nil {
		return 0, fmt.Errorf("get group: %w", err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}

	id, err := r.queries.CreateSettlement(ctx, SettlementRow{
		GroupID:    string(s.GroupID),
		FromMember: string(s.From),
		ToMember:   string(s.To),
		Amount:     s.Amount.String(),
		CreatedAt:  s.CreatedAt,
	})
	if err != nil {
		return 0, fmt.Errorf("create settlement: %w", err)
	}

	slog.InfoContext(ctx, "Settlement saved to SQLite",
		"id", id,
		"group_id", s.GroupID,
		"from", s.From,
		"to", s.To,
		"amount", s.Amount.String())

	return id, nil
}

// ListSettlements implements sheets.SettlementLister
func (r *SQLiteRepository) ListSettlements(ctx context.Context, groupID core.GroupID) ([]core.Settlement, error) {
	rows, err := r.queries.ListSettlementsByGroup(ctx, string(groupID))
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return settlementsFromRows(rows)
}

// ListSettlementsForMember implements sheets.SettlementLister
func (r *SQLiteRepository) ListSettlementsForMember(ctx context.Context, member core.MemberID) ([]core.Settlement, error) {
	rows, err := r.queries.ListSettlementsByMember(ctx, string(member))
	if err != nil {
		return nil, fmt.Errorf("list settlements for member: %w", err)
	}
	return settlementsFromRows(rows)
}

// ListSettlementsBetween implements sheets.SettlementLister
func (r *SQLiteRepository) ListSettlementsBetween(ctx context.Context, a, b core.MemberID, groupID core.GroupID) ([]core.Settlement, error) {
	rows, err := r.queries.ListSettlementsBetween(ctx, string(a), string(b), string(groupID))
	if err != nil {
		return nil, fmt.Errorf("list settlements between: %w", err)
	}
	return settlementsFromRows(rows)
}

func groupFromRows(row GroupRow, members []MemberRow) core.Group {
	g := core.Group{
		ID:          core.GroupID(row.ID),
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		Members:     make([]core.Member, len(members)),
	}
	for i, m := range members {
		g.Members[i] = core.Member{ID: core.MemberID(m.MemberID), Name: m.Name}
	}
	return g
}

func settlementsFromRows(rows []SettlementRow) ([]core.Settlement, error) {
	out := make([]core.Settlement, len(rows))
	for i, row := range rows {
		amount, err := core.ParseMoney(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount of settlement %d: %w", row.ID, err)
		}
		out[i] = core.Settlement{
			ID:        row.ID,
			GroupID:   core.GroupID(row.GroupID),
			From:      core.MemberID(row.FromMember),
			To:        core.MemberID(row.ToMember),
			Amount:    amount,
			CreatedAt: row.CreatedAt,
		}
	}
	return out, nil
}
