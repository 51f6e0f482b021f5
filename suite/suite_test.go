package suite

import (
	"path/filepath"
	"testing"

	"github.com/gemalto/flume/flumetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p11test/p11test/harness"
	"github.com/p11test/p11test/mock"
	"github.com/p11test/p11test/report"
	"github.com/p11test/p11test/report/sqlite3"
)

func init() {
	flumetest.SetDefaults()
}

func newTestConn(strict bool) (*mock.Module, *harness.Conn) {
	mod := mock.New()
	mod.StrictTokenPlacement = strict
	return mod, harness.NewConn(mod, 1)
}

func TestSuitePasses(t *testing.T) {
	defer flumetest.Start(t)()

	for _, strict := range []bool{false, true} {
		mod, conn := newTestConn(strict)
		run := report.NewRun("mock", "")
		results, err := Run(conn, Cases(), report.NopStore{}, run)
		require.NoError(t, err)
		require.Len(t, results, len(Cases()))
		for _, result := range results {
			assert.Equal(t, report.StatusPass, result.Status,
				"case %s (strict=%v): %s", result.Case, strict, result.Detail)
		}
		// Every case cleaned up after itself.
		assert.Equal(t, 0, mod.ObjectCount())
	}
}

func TestSuiteRecordsResults(t *testing.T) {
	defer flumetest.Start(t)()

	store, err := sqlite3.GetStore(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer store.CloseStorage()
	require.NoError(t, store.InitStorage())

	_, conn := newTestConn(false)
	run := report.NewRun("mock", "")
	results, err := Run(conn, Cases(), store, run)
	require.NoError(t, err)

	stored, err := store.Results(run.ID)
	require.NoError(t, err)
	require.Len(t, stored, len(results))
	for i, result := range results {
		assert.Equal(t, result.Case, stored[i].Case)
		assert.Equal(t, result.Status, stored[i].Status)
	}
}

func TestFatalAssertionAbortsOnlyItsCase(t *testing.T) {
	defer flumetest.Start(t)()

	_, conn := newTestConn(false)
	cases := []Case{
		{Name: "aborts", Run: func(r *harness.Recorder, c *harness.Conn) {
			r.RequireOK("boom", assert.AnError)
		}},
		{Name: "still runs", Run: func(r *harness.Recorder, c *harness.Conn) {}},
	}
	results, err := Run(conn, cases, report.NopStore{}, report.NewRun("mock", ""))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, report.StatusError, results[0].Status)
	assert.Contains(t, results[0].Detail, "boom")
	assert.Equal(t, report.StatusPass, results[1].Status)
	assert.True(t, Failed(results))
}

func TestForeignPanicPropagates(t *testing.T) {
	defer flumetest.Start(t)()

	_, conn := newTestConn(false)
	cases := []Case{
		{Name: "panics", Run: func(r *harness.Recorder, c *harness.Conn) {
			panic("not an assertion")
		}},
	}
	assert.Panics(t, func() {
		Run(conn, cases, report.NopStore{}, report.NewRun("mock", ""))
	})
}

func TestSoftMismatchMarksFail(t *testing.T) {
	defer flumetest.Start(t)()

	_, conn := newTestConn(false)
	cases := []Case{
		{Name: "soft", Run: func(r *harness.Recorder, c *harness.Conn) {
			r.ExpectLen("short buffer", make([]byte, 64), 128)
		}},
	}
	results, err := Run(conn, cases, report.NopStore{}, report.NewRun("mock", ""))
	require.NoError(t, err)
	assert.Equal(t, report.StatusFail, results[0].Status)
	assert.Contains(t, results[0].Detail, "short buffer")
}
