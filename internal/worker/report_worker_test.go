package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/sheets/memory"
)

type fakeReporter struct {
	mu          sync.Mutex
	invalidated []core.GroupID
	failFor     core.GroupID
}

func (f *fakeReporter) Report(_ context.Context, groupID core.GroupID) (core.GroupReport, error) {
	if groupID == "missing" {
		return core.GroupReport{}, core.ErrGroupNotFound
	}
	if groupID == f.failFor {
		return core.GroupReport{}, errors.New("storage unavailable")
	}
	return core.GroupReport{GroupID: groupID}, nil
}

func (f *fakeReporter) Invalidate(groupID core.GroupID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, groupID)
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []core.GroupID
	err      error
}

func (f *fakeExporter) ExportReport(_ context.Context, r core.GroupReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.exported = append(f.exported, r.GroupID)
	return nil
}

func TestHandleLedgerEvent(t *testing.T) {
	ctx := context.Background()
	reporter := &fakeReporter{}
	exporter := &fakeExporter{}
	w := NewReportWorker(memory.New(), reporter, exporter, 2)

	err := w.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.EventExpenseRecorded, "g1", 3))
	require.NoError(t, err)
	assert.Equal(t, []core.GroupID{"g1"}, reporter.invalidated)
	assert.Equal(t, []core.GroupID{"g1"}, exporter.exported)

	// Unknown groups are dropped rather than requeued forever.
	err = w.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.EventExpenseDeleted, "missing", 1))
	require.NoError(t, err)

	exporter.err = errors.New("quota exceeded")
	err = w.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.EventSettlementRecorded, "g1", 1))
	assert.Error(t, err)
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	var groups []core.Group
	for _, id := range []core.GroupID{"a", "b", "c", "d"} {
		groups = append(groups, core.Group{ID: id, Name: string(id)})
	}
	store := memory.New(groups...)

	exporter := &fakeExporter{}
	reporter := &fakeReporter{}
	w := NewReportWorker(store, reporter, exporter, 0)
	n, err := w.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.ElementsMatch(t, []core.GroupID{"a", "b", "c", "d"}, exporter.exported)
	// Periodic exports never reuse a cached report.
	assert.ElementsMatch(t, []core.GroupID{"a", "b", "c", "d"}, reporter.invalidated)

	exporter = &fakeExporter{}
	w = NewReportWorker(store, &fakeReporter{failFor: "c"}, exporter, 3)
	n, err = w.ExportAll(ctx)
	assert.Error(t, err)
	assert.Equal(t, 3, n)
	assert.NotContains(t, exporter.exported, core.GroupID("c"))
}
