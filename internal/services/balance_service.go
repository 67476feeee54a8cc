package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"conti/internal/balance"
	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/sheets"
)

const defaultLoadTimeout = 10 * time.Second

type balanceStore interface {
	sheets.GroupReader
	sheets.ExpenseLister
	sheets.SettlementLister
}

// BalanceService builds group reports from stored expenses and settlements.
type BalanceService struct {
	store   balanceStore
	reports *cache.LRUCache[core.GroupID, core.GroupReport]
	timeout time.Duration
	now     func() time.Time

	// generations is bumped by Invalidate; a report is only cached if its
	// group's generation did not move while it was being built.
	mu          sync.Mutex
	generations map[core.GroupID]uint64
}

// NewBalanceService creates the service. reports may be nil to disable caching.
func NewBalanceService(store balanceStore, reports *cache.LRUCache[core.GroupID, core.GroupReport]) *BalanceService {
	return &BalanceService{
		store:   store,
		reports: reports,
		timeout:     defaultLoadTimeout,
		now:         time.Now,
		generations: make(map[core.GroupID]uint64),
	}
}

// Report returns the balance report for a group, served from cache when
// possible.
func (s *BalanceService) Report(ctx context.Context, groupID core.GroupID) (core.GroupReport, error) {
	if s.reports != nil {
		if r, ok := s.reports.Get(groupID); ok {
			slog.DebugContext(ctx, "Balance report served from cache", "group_id", groupID)
			return r, nil
		}
	}

	gen := s.generation(groupID)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		group       core.Group
		expenses    []core.Expense
		settlements []core.Settlement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		group, err = s.store.GetGroup(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.store.ListExpenses(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		settlements, err = s.store.ListSettlements(gctx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.GroupReport{}, fmt.Errorf("load group %s: %w", groupID, err)
	}

	start := time.Now()
	members := group.MemberIDs()
	debts := balance.ComputeBalances(members, expenses)

	total := core.Money{}
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}

	report := core.GroupReport{
		GroupID:         group.ID,
		GroupName:       group.Name,
		Debts:           debts,
		Outstanding:     balance.ApplySettlements(debts, settlements),
		Positions:       balance.NetPositions(members, expenses),
		TotalSpent:      total,
		ExpenseCount:    len(expenses),
		SettlementCount: len(settlements),
		GeneratedAt:     s.now().UTC(),
	}

	slog.InfoContext(ctx, "Balance report computed",
		"group_id", groupID,
		"expenses", len(expenses),
		"settlements", len(settlements),
		"debts", len(report.Debts),
		"outstanding", len(report.Outstanding),
		"duration", time.Since(start))

	s.cache(groupID, gen, report)
	return report, nil
}

// Invalidate drops the cached report of a group. Reports already being
// built from older data are not cached when they finish.
func (s *BalanceService) Invalidate(groupID core.GroupID) {
	if s == nil || s.reports == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[groupID]++
	s.reports.Delete(groupID)
}

func (s *BalanceService) generation(groupID core.GroupID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[groupID]
}

func (s *BalanceService) cache(groupID core.GroupID, gen uint64, report core.GroupReport) {
	if s.reports == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[groupID] != gen {
		slog.Debug("Discarding stale balance report", "group_id", groupID)
		return
	}
	s.reports.Set(groupID, report)
}

// SettledBetween returns how much from has paid to over what to has paid
// from. An empty groupID considers settlements across all groups.
func (s *BalanceService) SettledBetween(ctx context.Context, groupID core.GroupID, from, to core.MemberID) (core.Money, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if groupID != "" {
		if _, err := s.store.GetGroup(ctx, groupID); err != nil {
			return core.Money{}, err
		}
	}
	settlements, err := s.store.ListSettlementsBetween(ctx, from, to, groupID)
	if err != nil {
		return core.Money{}, fmt.Errorf("list settlements between %s and %s: %w", from, to, err)
	}
	return balance.NetSettledAmount(from, to, settlements), nil
}
