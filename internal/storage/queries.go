package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type GroupRow struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

type MemberRow struct {
	GroupID  string
	MemberID string
	Name     string
}

type ExpenseRow struct {
	ID          int64
	GroupID     string
	Description string
	Amount      string
	Payer       string
	ExpenseDate string
}

type ShareRow struct {
	ExpenseID int64
	MemberID  string
	Amount    string
}

type SettlementRow struct {
	ID         int64
	GroupID    string
	FromMember string
	ToMember   string
	Amount     string
	CreatedAt  time.Time
}

const createGroup = `INSERT INTO groups (id, name, description, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateGroup(ctx context.Context, g GroupRow) error {
	_, err := q.db.ExecContext(ctx, createGroup, g.ID, g.Name, g.Description, g.CreatedAt.UTC())
	return err
}

const getGroup = `SELECT id, name, description, created_at FROM groups WHERE id = ?`

func (q *Queries) GetGroup(ctx context.Context, id string) (GroupRow, error) {
	var g GroupRow
	err := q.db.QueryRowContext(ctx, getGroup, id).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt)
	return g, err
}

const listGroups = `SELECT id, name, description, created_at FROM groups ORDER BY created_at, id`

func (q *Queries) ListGroups(ctx context.Context) ([]GroupRow, error) {
	rows, err := q.db.QueryContext(ctx, listGroups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GroupRow
	for rows.Next() {
		var g GroupRow
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

const addMember = `INSERT INTO group_members (group_id, member_id, name, position)
SELECT ?1, ?2, ?3, COALESCE(MAX(position), -1) + 1 FROM group_members WHERE group_id = ?1`

func (q *Queries) AddMember(ctx context.Context, m MemberRow) error {
	_, err := q.db.ExecContext(ctx, addMember, m.GroupID, m.MemberID, m.Name)
	return err
}

const listMembers = `SELECT group_id, member_id, name FROM group_members WHERE group_id = ? ORDER BY position`

func (q *Queries) ListMembers(ctx context.Context, groupID string) ([]MemberRow, error) {
	rows, err := q.db.QueryContext(ctx, listMembers, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MemberRow
	for rows.Next() {
		var m MemberRow
		if err := rows.Scan(&m.GroupID, &m.MemberID, &m.Name); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const createExpense = `INSERT INTO expenses (group_id, description, amount, payer, expense_date)
VALUES (?, ?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateExpense(ctx context.Context, e ExpenseRow) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createExpense, e.GroupID, e.Description, e.Amount, e.Payer, e.ExpenseDate).Scan(&id)
	return id, err
}

const createShare = `INSERT INTO expense_shares (expense_id, member_id, amount, position) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateShare(ctx context.Context, s ShareRow, position int) error {
	_, err := q.db.ExecContext(ctx, createShare, s.ExpenseID, s.MemberID, s.Amount, position)
	return err
}

const updateExpense = `UPDATE expenses SET description = ?, amount = ?, payer = ?, expense_date = ?
WHERE id = ? AND group_id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, e ExpenseRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExpense, e.Description, e.Amount, e.Payer, e.ExpenseDate, e.ID, e.GroupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteShares = `DELETE FROM expense_shares WHERE expense_id = ?`

func (q *Queries) DeleteShares(ctx context.Context, expenseID int64) error {
	_, err := q.db.ExecContext(ctx, deleteShares, expenseID)
	return err
}

const deleteExpense = `DELETE FROM expenses WHERE id = ? AND group_id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64, groupID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listExpenses = `SELECT id, group_id, description, amount, payer, expense_date
FROM expenses WHERE group_id = ? ORDER BY id`

func (q *Queries) ListExpenses(ctx context.Context, groupID string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		var e ExpenseRow
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount, &e.Payer, &e.ExpenseDate); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const listSharesByGroup = `SELECT s.expense_id, s.member_id, s.amount
FROM expense_shares s JOIN expenses e ON e.id = s.expense_id
WHERE e.group_id = ? ORDER BY s.expense_id, s.position`

func (q *Queries) ListSharesByGroup(ctx context.Context, groupID string) ([]ShareRow, error) {
	rows, err := q.db.QueryContext(ctx, listSharesByGroup, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ShareRow
	for rows.Next() {
		var s ShareRow
		if err := rows.Scan(&s.ExpenseID, &s.MemberID, &s.Amount); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const createSettlement = `INSERT INTO settlements (group_id, from_member, to_member, amount, created_at)
VALUES (?, ?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateSettlement(ctx context.Context, s SettlementRow) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createSettlement, s.GroupID, s.FromMember, s.ToMember, s.Amount, s.CreatedAt.UTC()).Scan(&id)
	return id, err
}

const settlementColumns = `SELECT id, group_id, from_member, to_member, amount, created_at FROM settlements`

const listSettlementsByGroup = settlementColumns + ` WHERE group_id = ? ORDER BY created_at DESC, id DESC`

func (q *Queries) ListSettlementsByGroup(ctx context.Context, groupID string) ([]SettlementRow, error) {
	return q.querySettlements(ctx, listSettlementsByGroup, groupID)
}

const listSettlementsByMember = settlementColumns + ` WHERE from_member = ?1 OR to_member = ?1 ORDER BY created_at DESC, id DESC`

func (q *Queries) ListSettlementsByMember(ctx context.Context, member string) ([]SettlementRow, error) {
	return q.querySettlements(ctx, listSettlementsByMember, member)
}

const listSettlementsBetween = settlementColumns + `
WHERE ((from_member = ?1 AND to_member = ?2) OR (from_member = ?2 AND to_member = ?1))
AND (?3 = '' OR group_id = ?3)
ORDER BY created_at DESC, id DESC`

func (q *Queries) ListSettlementsBetween(ctx context.Context, a, b, groupID string) ([]SettlementRow, error) {
	return q.querySettlements(ctx, listSettlementsBetween, a, b, groupID)
}

func (q *Queries) querySettlements(ctx context.Context, query string, args ...interface{}) ([]SettlementRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SettlementRow
	for rows.Next() {
		var s SettlementRow
		if err := rows.Scan(&s.ID, &s.GroupID, &s.FromMember, &s.ToMember, &s.Amount, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
