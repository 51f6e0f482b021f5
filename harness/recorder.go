package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/miekg/pkcs11"
)

// CaseAbort is the panic value a fatal assertion raises to unwind
// the running case. The suite runner recovers it; anything else
// escaping a case is a bug and keeps propagating.
type CaseAbort struct {
	Op string
}

// Mismatch is one failed assertion: the operation checked, what was
// wanted and what came back.
type Mismatch struct {
	Op    string
	Want  string
	Got   string
	Fatal bool
}

func (m Mismatch) String() string {
	kind := "expect"
	if m.Fatal {
		kind = "require"
	}
	return fmt.Sprintf("%s %s: want %s, got %s", kind, m.Op, m.Want, m.Got)
}

// Recorder collects assertion outcomes for one case. Require*
// assertions abort the case on mismatch; Expect* assertions record
// the mismatch and let the case continue, for checking follow-up
// state after a known failure.
type Recorder struct {
	mismatches []Mismatch
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) fail(fatal bool, op, want, got string) {
	m := Mismatch{Op: op, Want: want, Got: got, Fatal: fatal}
	r.mismatches = append(r.mismatches, m)
	log.Error("assertion failed", "op", op, "want", want, "got", got, "fatal", fatal)
	if fatal {
		panic(CaseAbort{Op: op})
	}
}

// RequireOK asserts err maps to CKR_OK and aborts the case otherwise.
func (r *Recorder) RequireOK(op string, err error) {
	r.RequireRV(op, err, pkcs11.CKR_OK)
}

// RequireRV asserts the exact outcome code and aborts on mismatch.
func (r *Recorder) RequireRV(op string, err error, want uint) {
	if got := RV(err); got != pkcs11.Error(want) {
		r.fail(true, op, RVName(pkcs11.Error(want)), RVName(got))
	}
}

// ExpectOK asserts err maps to CKR_OK; a mismatch is recorded but
// the case continues.
func (r *Recorder) ExpectOK(op string, err error) bool {
	return r.ExpectRV(op, err, pkcs11.CKR_OK)
}

// ExpectRV asserts the exact outcome code without aborting.
func (r *Recorder) ExpectRV(op string, err error, want uint) bool {
	if got := RV(err); got != pkcs11.Error(want) {
		r.fail(false, op, RVName(pkcs11.Error(want)), RVName(got))
		return false
	}
	return true
}

// ExpectOneOf asserts the outcome code is in the accepted set.
// Needed where the interface specification legitimately allows more
// than one outcome for an input combination.
func (r *Recorder) ExpectOneOf(op string, err error, accepted ...uint) bool {
	got := RV(err)
	names := make([]string, 0, len(accepted))
	for _, want := range accepted {
		if got == pkcs11.Error(want) {
			return true
		}
		names = append(names, RVName(pkcs11.Error(want)))
	}
	r.fail(false, op, "one of {"+strings.Join(names, ", ")+"}", RVName(got))
	return false
}

// ExpectLen asserts an exact buffer length.
func (r *Recorder) ExpectLen(op string, got []byte, want int) bool {
	if len(got) != want {
		r.fail(false, op, fmt.Sprintf("%d bytes", want), fmt.Sprintf("%d bytes", len(got)))
		return false
	}
	return true
}

// ExpectBytes asserts byte-for-byte equality.
func (r *Recorder) ExpectBytes(op string, got, want []byte) bool {
	if !bytes.Equal(got, want) {
		r.fail(false, op, fmt.Sprintf("%x", want), fmt.Sprintf("%x", got))
		return false
	}
	return true
}

// ExpectTrue asserts an arbitrary condition, described by want/got
// for the mismatch report.
func (r *Recorder) ExpectTrue(op string, ok bool, want, got string) bool {
	if !ok {
		r.fail(false, op, want, got)
	}
	return ok
}

// Failed reports whether any assertion, fatal or soft, mismatched.
func (r *Recorder) Failed() bool {
	return len(r.mismatches) > 0
}

// Mismatches returns the recorded mismatches in assertion order.
func (r *Recorder) Mismatches() []Mismatch {
	return r.mismatches
}
