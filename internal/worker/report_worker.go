package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/sheets"
)

// Reporter builds and invalidates group reports; *services.BalanceService
// satisfies it.
type Reporter interface {
	Report(ctx context.Context, groupID core.GroupID) (core.GroupReport, error)
	Invalidate(groupID core.GroupID)
}

// ReportWorker keeps exported group reports in step with the ledger.
type ReportWorker struct {
	groups      sheets.GroupReader
	reports     Reporter
	exporter    sheets.ReportExporter
	concurrency int
}

func NewReportWorker(groups sheets.GroupReader, reports Reporter, exporter sheets.ReportExporter, concurrency int) *ReportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReportWorker{
		groups:      groups,
		reports:     reports,
		exporter:    exporter,
		concurrency: concurrency,
	}
}

// HandleLedgerEvent recomputes and exports the report of the event's group.
// Events for groups that no longer exist are acknowledged and dropped.
func (w *ReportWorker) HandleLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"group_id", ev.GroupID,
		"entity_id", ev.EntityID)

	w.reports.Invalidate(ev.GroupID)
	err := w.export(ctx, ev.GroupID)
	if errors.Is(err, core.ErrGroupNotFound) {
		slog.WarnContext(ctx, "Ledger event for unknown group, dropping", "group_id", ev.GroupID)
		return nil
	}
	return err
}

// ExportAll rebuilds and exports the report of every group and returns how
// many were exported. Failures are logged and counted; the first one is
// returned.
func (w *ReportWorker) ExportAll(ctx context.Context) (int, error) {
	groups, err := w.groups.ListGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}

	start := time.Now()
	var exported, failed atomic.Int64
	var firstErr error
	var once atomic.Bool

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, group := range groups {
		g.Go(func() error {
			w.reports.Invalidate(group.ID)
			if err := w.export(ctx, group.ID); err != nil {
				failed.Add(1)
				slog.ErrorContext(ctx, "Failed to export group report", "group_id", group.ID, "error", err)
				if once.CompareAndSwap(false, true) {
					firstErr = err
				}
				return nil
			}
			exported.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Exported group reports",
		"groups", len(groups),
		"exported", exported.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start))

	return int(exported.Load()), firstErr
}

// Run calls ExportAll every interval until ctx is done.
func (w *ReportWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ExportAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}

func (w *ReportWorker) export(ctx context.Context, groupID core.GroupID) error {
	report, err := w.reports.Report(ctx, groupID)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	if err := w.exporter.ExportReport(ctx, report); err != nil {
		return fmt.Errorf("export report for %s: %w", groupID, err)
	}
	return nil
}
