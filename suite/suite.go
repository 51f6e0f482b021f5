// Package suite holds the conformance cases and the runner that
// executes them against an open device connection.
package suite

import (
	"strings"
	"time"

	"github.com/ansel1/merry"
	"github.com/gemalto/flume"

	"github.com/p11test/p11test/harness"
	"github.com/p11test/p11test/report"
)

var log = flume.New("suite")

// Case is one conformance scenario. Run drives the device through
// the recorder and connection it is handed; fixture teardown happens
// inside the case on every exit path.
type Case struct {
	Name string
	Run  func(r *harness.Recorder, c *harness.Conn)
}

// Run executes the cases in order against one connection, persisting
// each result as it completes. Cases run even after earlier ones
// fail; a fatal assertion only aborts its own case.
func Run(conn *harness.Conn, cases []Case, store report.Store, run report.Run) ([]report.Result, error) {
	if err := store.SaveRun(run); err != nil {
		return nil, merry.Prepend(err, "recording run")
	}
	results := make([]report.Result, 0, len(cases))
	for _, c := range cases {
		result := runCase(c, conn)
		results = append(results, result)
		if err := store.SaveResult(run.ID, result); err != nil {
			return results, merry.Prepend(err, "recording result")
		}
	}
	return results, nil
}

func runCase(c Case, conn *harness.Conn) report.Result {
	log.Info("running case", "case", c.Name)
	r := harness.NewRecorder()
	started := time.Now()
	aborted := execute(c, r, conn)

	result := report.Result{
		Case:    c.Name,
		Status:  report.StatusPass,
		Elapsed: time.Since(started),
	}
	if aborted {
		result.Status = report.StatusError
	} else if r.Failed() {
		result.Status = report.StatusFail
	}
	if r.Failed() {
		details := make([]string, 0, len(r.Mismatches()))
		for _, m := range r.Mismatches() {
			details = append(details, m.String())
		}
		result.Detail = strings.Join(details, "; ")
		log.Error("case failed", "case", c.Name, "status", string(result.Status), "detail", result.Detail)
	} else {
		log.Info("case passed", "case", c.Name, "elapsed", result.Elapsed)
	}
	return result
}

// execute runs the case body, converting a fatal-assertion unwind
// into a normal return. Foreign panics keep propagating.
func execute(c Case, r *harness.Recorder, conn *harness.Conn) (aborted bool) {
	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(harness.CaseAbort); !ok {
				panic(v)
			}
			aborted = true
		}
	}()
	c.Run(r, conn)
	return false
}

// Failed reports whether any result in the slice is not a pass.
func Failed(results []report.Result) bool {
	for _, result := range results {
		if result.Status != report.StatusPass {
			return true
		}
	}
	return false
}
