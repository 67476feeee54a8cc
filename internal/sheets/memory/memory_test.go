package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"conti/internal/core"
)

func trip() core.Group {
	return core.Group{
		ID:   "trip",
		Name: "Trip",
		Members: []core.Member{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob"},
		},
	}
}

func TestMemoryStoreGroups(t *testing.T) {
	ctx := context.Background()
	s := New(trip())

	if err := s.CreateGroup(ctx, trip()); !errors.Is(err, core.ErrGroupExists) {
		t.Fatalf("expected ErrGroupExists, got %v", err)
	}
	if err := s.AddMember(ctx, "trip", core.Member{ID: "carol"}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := s.AddMember(ctx, "trip", core.Member{ID: "carol"}); !errors.Is(err, core.ErrDuplicateMember) {
		t.Fatalf("expected ErrDuplicateMember, got %v", err)
	}
	if err := s.AddMember(ctx, "nope", core.Member{ID: "x"}); !errors.Is(err, core.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}

	g, err := s.GetGroup(ctx, "trip")
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if len(g.Members) != 3 || g.CreatedAt.IsZero() {
		t.Fatalf("unexpected group: %+v", g)
	}

	// Returned groups are copies.
	g.Members[0].Name = "mutated"
	again, _ := s.GetGroup(ctx, "trip")
	if again.Members[0].Name != "Alice" {
		t.Fatalf("store leaked internal state")
	}
}

func TestMemoryStoreExpenses(t *testing.T) {
	ctx := context.Background()
	s := New(trip())

	e := core.Expense{
		GroupID: "trip", Description: "dinner", Payer: "alice",
		Amount: core.MustParseMoney("10"),
		Shares: []core.Share{{Member: "alice", Amount: core.MustParseMoney("5")}, {Member: "bob", Amount: core.MustParseMoney("5")}},
	}
	id1, err := s.AddExpense(ctx, e)
	if err != nil || id1 != 1 {
		t.Fatalf("unexpected add: id=%d err=%v", id1, err)
	}
	id2, _ := s.AddExpense(ctx, e)

	if _, err := s.AddExpense(ctx, core.Expense{GroupID: "other"}); !errors.Is(err, core.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}

	list, err := s.ListExpenses(ctx, "trip")
	if err != nil || len(list) != 2 || list[0].ID != id1 || list[1].ID != id2 {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}

	if err := s.DeleteExpense(ctx, "trip", id1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteExpense(ctx, "trip", id1); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
	list, _ = s.ListExpenses(ctx, "trip")
	if len(list) != 1 || list[0].ID != id2 {
		t.Fatalf("unexpected list after delete: %+v", list)
	}
}

func TestMemoryStoreUpdateExpense(t *testing.T) {
	ctx := context.Background()
	s := New(trip())

	e := core.Expense{
		GroupID: "trip", Description: "dinner", Payer: "alice",
		Amount: core.MustParseMoney("10"),
		Shares: []core.Share{{Member: "alice", Amount: core.MustParseMoney("5")}, {Member: "bob", Amount: core.MustParseMoney("5")}},
	}
	id, _ := s.AddExpense(ctx, e)

	e.ID = id
	e.Description = "lunch"
	e.Payer = "bob"
	e.Amount = core.MustParseMoney("8")
	e.Shares = []core.Share{{Member: "bob", Amount: core.MustParseMoney("8")}}
	if err := s.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, _ := s.ListExpenses(ctx, "trip")
	if len(list) != 1 || list[0].Description != "lunch" || list[0].Payer != "bob" || len(list[0].Shares) != 1 {
		t.Fatalf("unexpected list after update: %+v", list)
	}

	e.ID = 99
	if err := s.UpdateExpense(ctx, e); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
	e.ID, e.GroupID = id, "other"
	if err := s.UpdateExpense(ctx, e); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound for wrong group, got %v", err)
	}
}

func TestMemoryStoreSettlementsNewestFirst(t *testing.T) {
	ctx := context.Background()
	other := trip()
	other.ID = "flat"
	s := New(trip(), other)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	add := func(group core.GroupID, from, to core.MemberID, offset time.Duration) int64 {
		t.Helper()
		id, err := s.AddSettlement(ctx, core.Settlement{
			GroupID: group, From: from, To: to,
			Amount: core.MustParseMoney("1"), CreatedAt: base.Add(offset),
		})
		if err != nil {
			t.Fatalf("add settlement: %v", err)
		}
		return id
	}
	first := add("trip", "alice", "bob", 0)
	second := add("trip", "bob", "alice", time.Hour)
	third := add("flat", "alice", "bob", 2*time.Hour)

	got, _ := s.ListSettlements(ctx, "trip")
	if len(got) != 2 || got[0].ID != second || got[1].ID != first {
		t.Fatalf("unexpected group settlements: %+v", got)
	}

	got, _ = s.ListSettlementsForMember(ctx, "alice")
	if len(got) != 3 || got[0].ID != third {
		t.Fatalf("unexpected member settlements: %+v", got)
	}

	got, _ = s.ListSettlementsBetween(ctx, "bob", "alice", "")
	if len(got) != 3 {
		t.Fatalf("expected 3 settlements across groups, got %d", len(got))
	}
	got, _ = s.ListSettlementsBetween(ctx, "bob", "alice", "trip")
	if len(got) != 2 {
		t.Fatalf("expected 2 settlements in trip, got %d", len(got))
	}
}

func TestNewFromFile(t *testing.T) {
	s, err := NewFromFile("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if groups, _ := s.ListGroups(context.Background()); len(groups) != 0 {
		t.Fatalf("expected empty store, got %v", groups)
	}

	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := `groups:
  - id: flat
    name: Flat
    members:
      - id: u1
        name: Anna
      - id: u2
`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	g, err := s.GetGroup(context.Background(), "flat")
	if err != nil {
		t.Fatalf("get seeded group: %v", err)
	}
	if len(g.Members) != 2 || g.Members[1].Name != "u2" {
		t.Fatalf("unexpected members: %+v", g.Members)
	}

	dup := filepath.Join(t.TempDir(), "dup.yaml")
	_ = os.WriteFile(dup, []byte("groups:\n  - id: g\n    name: G\n    members: [{id: a}, {id: a}]\n"), 0o644)
	if _, err := NewFromFile(dup); !errors.Is(err, core.ErrDuplicateMember) {
		t.Fatalf("expected ErrDuplicateMember, got %v", err)
	}
}
