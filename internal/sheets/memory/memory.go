package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"conti/internal/core"
)

type Store struct {
	mu          sync.Mutex
	groups      map[core.GroupID]*core.Group
	order       []core.GroupID
	expenses    []core.Expense
	settlements []core.Settlement
	nextExpense int64
	nextSettle  int64
	now         func() time.Time
}

func New(groups ...core.Group) *Store {
	s := &Store{groups: make(map[core.GroupID]*core.Group), now: time.Now}
	for _, g := range groups {
		_ = s.CreateGroup(context.Background(), g)
	}
	return s
}

type seedFile struct {
	Groups []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Members     []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
		} `yaml:"members"`
	} `yaml:"groups"`
}

// NewFromFile builds a store seeded with the groups listed in a YAML file.
// An empty path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	s := New()
	for _, sg := range seed.Groups {
		g := core.Group{ID: core.GroupID(sg.ID), Name: sg.Name, Description: sg.Description}
		for _, m := range sg.Members {
			name := m.Name
			if name == "" {
				name = m.ID
			}
			g.Members = append(g.Members, core.Member{ID: core.MemberID(m.ID), Name: name})
		}
		if err := s.CreateGroup(context.Background(), g); err != nil {
			return nil, fmt.Errorf("seed group %q: %w", sg.ID, err)
		}
	}
	return s, nil
}

func (s *Store) CreateGroup(_ context.Context, g core.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return fmt.Errorf("%w: %s", core.ErrGroupExists, g.ID)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.Members = slices.Clone(g.Members)
	s.groups[g.ID] = &g
	s.order = append(s.order, g.ID)
	return nil
}

func (s *Store) AddMember(_ context.Context, groupID core.GroupID, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return core.ErrGroupNotFound
	}
	if g.HasMember(m.ID) {
		return fmt.Errorf("%w: %s", core.ErrDuplicateMember, m.ID)
	}
	g.Members = append(g.Members, m)
	return nil
}

func (s *Store) GetGroup(_ context.Context, id core.GroupID) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return core.Group{}, core.ErrGroupNotFound
	}
	return cloneGroup(*g), nil
}

// ListGroups returns groups in creation order.
func (s *Store) ListGroups(_ context.Context) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Group, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneGroup(*s.groups[id]))
	}
	return out, nil
}

// AddExpense stores the expense as given and returns a sequential ID.
func (s *Store) AddExpense(_ context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[e.GroupID]; !ok {
		return 0, core.ErrGroupNotFound
	}
	s.nextExpense++
	e.ID = s.nextExpense
	e.Shares = slices.Clone(e.Shares)
	s.expenses = append(s.expenses, e)
	return e.ID, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.expenses, func(x core.Expense) bool {
		return x.ID == e.ID && x.GroupID == e.GroupID
	})
	if i < 0 {
		return core.ErrExpenseNotFound
	}
	e.Shares = slices.Clone(e.Shares)
	s.expenses[i] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, groupID core.GroupID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.expenses, func(e core.Expense) bool {
		return e.ID == id && e.GroupID == groupID
	})
	if i < 0 {
		return core.ErrExpenseNotFound
	}
	s.expenses = slices.Delete(s.expenses, i, i+1)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, groupID core.GroupID) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, core.ErrGroupNotFound
	}
	var out []core.Expense
	for _, e := range s.expenses {
		if e.GroupID != groupID {
			continue
		}
		e.Shares = slices.Clone(e.Shares)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) AddSettlement(_ context.Context, st core.Settlement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[st.GroupID]; !ok {
		return 0, core.ErrGroupNotFound
	}
	s.nextSettle++
	st.ID = s.nextSettle
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}
	s.settlements = append(s.settlements, st)
	return st.ID, nil
}

func (s *Store) ListSettlements(_ context.Context, groupID core.GroupID) ([]core.Settlement, error) {
	return s.filterSettlements(func(st core.Settlement) bool { return st.GroupID == groupID }), nil
}

func (s *Store) ListSettlementsForMember(_ context.Context, member core.MemberID) ([]core.Settlement, error) {
	return s.filterSettlements(func(st core.Settlement) bool { return st.Involves(member) }), nil
}

func (s *Store) ListSettlementsBetween(_ context.Context, a, b core.MemberID, groupID core.GroupID) ([]core.Settlement, error) {
	return s.filterSettlements(func(st core.Settlement) bool {
		if groupID != "" && st.GroupID != groupID {
			return false
		}
		return (st.From == a && st.To == b) || (st.From == b && st.To == a)
	}), nil
}

// filterSettlements returns matching settlements newest first. Ties on
// CreatedAt keep the most recently inserted first.
func (s *Store) filterSettlements(keep func(core.Settlement) bool) []core.Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Settlement
	for i := len(s.settlements) - 1; i >= 0; i-- {
		if keep(s.settlements[i]) {
			out = append(out, s.settlements[i])
		}
	}
	slices.SortStableFunc(out, func(a, b core.Settlement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func cloneGroup(g core.Group) core.Group {
	g.Members = slices.Clone(g.Members)
	return g
}
