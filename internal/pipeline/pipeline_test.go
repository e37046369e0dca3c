package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/policy"
	"github.com/roach88/mondai/internal/reconcile"
	"github.com/roach88/mondai/internal/store"
	"github.com/roach88/mondai/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func v2(t *testing.T) *policy.Table {
	t.Helper()
	reg, err := policy.Builtin()
	require.NoError(t, err)
	tbl, err := reg.Get("v2")
	require.NoError(t, err)
	return tbl
}

// fixture writes a small dataset: one clean N3 record, one N3 record with
// stale statistics, one N5 record without statistics and one broken file.
func fixture(t *testing.T) (string, []dataset.Entry) {
	t.Helper()
	root := t.TempDir()

	clean := testutil.N3Record()
	clean.Statistics = testutil.Stats(3, 3, 3, 6)
	clean.Statistics.TotalSections = ir.IntPtr(5)

	stale := testutil.N3Record()
	stale.ID = "n3-stale"
	stale.Statistics = testutil.Stats(3, 3, 10, 6)

	n5 := testutil.Record("n5-drill", ir.LevelN5,
		testutil.Section(1, ir.Vocabulary, 2),
		testutil.Section(11, ir.Reading, 1),
	)

	write := func(rel string, rec *ir.Record) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, dataset.Save(path, rec))
	}
	write("N3/official/clean.json", clean)
	write("N3/official/stale.json", stale)
	write("N5/custom/drill.json", n5)

	broken := filepath.Join(root, "N5", "custom", "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"id": "broken", "sections": 3}`), 0o644))

	entries, err := dataset.Discover(root)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	return root, entries
}

func TestRunUpdatesOnlyChangedRecords(t *testing.T) {
	defer goleak.VerifyNone(t)

	root, entries := fixture(t)
	cleanPath := filepath.Join(root, "N3", "official", "clean.json")
	cleanBefore, err := os.ReadFile(cleanPath)
	require.NoError(t, err)

	p := New(v2(t), WithLogger(quietLogger()), WithWorkers(2), WithRunID("run-test"))
	summary, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	assert.Equal(t, "run-test", summary.RunID)
	assert.Equal(t, 4, summary.Total())
	assert.Equal(t, 2, summary.Updated())
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, []LevelSummary{
		{Level: ir.LevelN3, Total: 2, Updated: 1, Unchanged: 1},
		{Level: ir.LevelN5, Total: 2, Updated: 1, Failed: 1},
	}, summary.Levels)

	failures := summary.Failures()
	require.Len(t, failures, 1)
	assert.True(t, ir.IsFatal(failures[0].Err))
	assert.Equal(t, ir.KindMalformedRecord, ir.KindOf(failures[0].Err))

	cleanAfter, err := os.ReadFile(cleanPath)
	require.NoError(t, err)
	assert.Equal(t, string(cleanBefore), string(cleanAfter), "unchanged records are not rewritten")

	stale, err := dataset.Load(filepath.Join(root, "N3", "official", "stale.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, stale.Statistics.Count(ir.Reading))

	drill, err := dataset.Load(filepath.Join(root, "N5", "custom", "drill.json"))
	require.NoError(t, err)
	assert.Equal(t, ir.Listening, drill.Sections[1].Part)
	assert.Equal(t, 1, drill.Statistics.Count(ir.Listening))

	again, err := New(v2(t), WithLogger(quietLogger())).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated(), "second run finds nothing to do")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	root, entries := fixture(t)
	stalePath := filepath.Join(root, "N3", "official", "stale.json")
	before, err := os.ReadFile(stalePath)
	require.NoError(t, err)

	summary, err := New(v2(t), WithLogger(quietLogger()), WithDryRun(true)).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Updated())
	for _, l := range summary.Levels {
		assert.Zero(t, l.Updated, "%s", l.Level)
	}

	after, err := os.ReadFile(stalePath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRunWithSelectedFields(t *testing.T) {
	defer goleak.VerifyNone(t)

	root, entries := fixture(t)
	summary, err := New(v2(t),
		WithLogger(quietLogger()),
		WithFields(reconcile.FieldStatistics),
	).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Updated())

	drill, err := dataset.Load(filepath.Join(root, "N5", "custom", "drill.json"))
	require.NoError(t, err)
	assert.Equal(t, ir.Reading, drill.Sections[1].Part, "parts are not reclassified")
	assert.Equal(t, 1, drill.Statistics.Count(ir.Reading))
}

func TestRunRecordsLedger(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, entries := fixture(t)
	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	clock := testutil.NewDeterministicClock()
	p := New(v2(t),
		WithLogger(quietLogger()),
		WithLedger(ledger),
		WithClock(clock),
		WithRunID("run-ledger"),
		WithCommand("reconcile"),
		WithWorkers(4),
	)
	_, err = p.Run(context.Background(), entries)
	require.NoError(t, err)

	ctx := context.Background()
	run, err := ledger.ReadRun(ctx, "run-ledger")
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, "v2", run.PolicyVersion)
	assert.Len(t, run.PolicyHash, 64)

	rows, err := ledger.RunResults(ctx, "run-ledger")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	for i, row := range rows {
		assert.Equal(t, int64(i+2), row.Seq, "rows follow entry order")
		assert.Equal(t, entries[i].Path, row.Path)
	}

	var stale ir.RunResult
	for _, row := range rows {
		if row.RecordID == "n3-stale" {
			stale = row
		}
	}
	assert.Equal(t, ir.OutcomeUpdated, stale.Outcome)
	assert.NotEqual(t, stale.BeforeHash, stale.AfterHash)

	var diffs []reconcile.Diff
	require.NoError(t, json.Unmarshal(stale.Diffs, &diffs))
	require.NotEmpty(t, diffs)
	assert.Equal(t, "statistics.reading", diffs[0].Field)
}

func TestRunCancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, entries := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(v2(t), WithLogger(quietLogger())).Run(ctx, entries)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Total())
}

// cancelAfter cancels the run once the named log message has been emitted.
type cancelAfter struct {
	slog.Handler
	message string
	cancel  context.CancelFunc
}

func (h cancelAfter) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == h.message {
		h.cancel()
	}
	return h.Handler.Handle(ctx, r)
}

func (h cancelAfter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return cancelAfter{Handler: h.Handler.WithAttrs(attrs), message: h.message, cancel: h.cancel}
}

func (h cancelAfter) WithGroup(name string) slog.Handler {
	return cancelAfter{Handler: h.Handler.WithGroup(name), message: h.message, cancel: h.cancel}
}

func TestRunCancelledMidwayKeepsLedgerRows(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, entries := fixture(t)
	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(cancelAfter{
		Handler: slog.NewTextHandler(io.Discard, nil),
		message: "record processed",
		cancel:  cancel,
	})

	p := New(v2(t),
		WithLogger(logger),
		WithLedger(ledger),
		WithRunID("run-cancelled"),
		WithWorkers(1),
	)
	summary, err := p.Run(ctx, entries)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	require.Equal(t, 1, summary.Total(), "the first record finishes, the rest are never started")

	_, err = ledger.ReadRun(context.Background(), "run-cancelled")
	require.NoError(t, err)
	rows, err := ledger.RunResults(context.Background(), "run-cancelled")
	require.NoError(t, err)
	require.Len(t, rows, summary.Total())
	for i, res := range summary.Results {
		assert.Equal(t, res.Entry.Path, rows[i].Path)
		assert.Equal(t, res.Outcome, rows[i].Outcome)
	}
}

func TestRunManyRecordsInParallel(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	for i := 0; i < 40; i++ {
		rec := testutil.N3Record()
		rec.ID = fmt.Sprintf("n3-%02d", i)
		path := filepath.Join(root, "N3", "official", rec.ID+".json")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, dataset.Save(path, rec))
	}
	entries, err := dataset.Discover(root)
	require.NoError(t, err)

	summary, err := New(v2(t), WithLogger(quietLogger()), WithWorkers(8)).Run(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 40, summary.Updated())
	for i, res := range summary.Results {
		assert.Equal(t, entries[i].Path, res.Entry.Path, "results keep entry order")
	}
}

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	var k keyedMutex
	counter := 0
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			unlock := k.Lock("same")
			counter++
			unlock()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 10, counter)
	assert.Empty(t, k.locks, "released keys are forgotten")
}
