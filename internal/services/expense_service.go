package services

import (
	"context"
	"fmt"

	"conti/internal/amqp"
	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/sheets"
)

type expenseStore interface {
	sheets.GroupReader
	sheets.ExpenseWriter
	sheets.ExpenseLister
}

// ExpenseService records, edits and removes expenses, keeping reports fresh.
type ExpenseService struct {
	store     expenseStore
	balances  reportInvalidator
	publisher EventPublisher
}

func NewExpenseService(store expenseStore, balances reportInvalidator, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		balances:  balances,
		publisher: publisher,
	}
}

// RecordExpense validates e against the group and persists it.
func (s *ExpenseService) RecordExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := s.validate(ctx, e); err != nil {
		return core.Expense{}, err
	}

	id, err := s.store.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	e.ID = id

	applog.LogLedgerChange(ctx, "Expense recorded", applog.OpCreate,
		string(e.GroupID), string(e.Payer), "", e.Amount.String(), id)

	ledgerChanged(ctx, s.balances, s.publisher, amqp.NewLedgerEvent(amqp.EventExpenseRecorded, e.GroupID, id))
	return e, nil
}

// UpdateExpense replaces the description, amount, date, payer and shares
// of the expense e.ID, under the same checks as RecordExpense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := s.validate(ctx, e); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}

	applog.LogLedgerChange(ctx, "Expense updated", applog.OpUpdate,
		string(e.GroupID), string(e.Payer), "", e.Amount.String(), e.ID)

	ledgerChanged(ctx, s.balances, s.publisher, amqp.NewLedgerEvent(amqp.EventExpenseUpdated, e.GroupID, e.ID))
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, groupID core.GroupID, id int64) error {
	if err := s.store.DeleteExpense(ctx, groupID, id); err != nil {
		return err
	}
	applog.LogLedgerChange(ctx, "Expense deleted", applog.OpDelete, string(groupID), "", "", "", id)
	ledgerChanged(ctx, s.balances, s.publisher, amqp.NewLedgerEvent(amqp.EventExpenseDeleted, groupID, id))
	return nil
}

// validate checks e itself, then that its payer and share members belong
// to the group.
func (s *ExpenseService) validate(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	group, err := s.store.GetGroup(ctx, e.GroupID)
	if err != nil {
		return err
	}
	if !group.HasMember(e.Payer) {
		return fmt.Errorf("%w: payer %s", core.ErrUnknownMember, e.Payer)
	}
	for _, sh := range e.Shares {
		if !group.HasMember(sh.Member) {
			return fmt.Errorf("%w: %s", core.ErrUnknownMember, sh.Member)
		}
	}
	return nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, groupID core.GroupID) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, groupID)
}
