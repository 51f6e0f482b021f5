package harness

import (
	"testing"

	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderPassing(t *testing.T) {
	r := NewRecorder()
	r.RequireOK("op", nil)
	assert.True(t, r.ExpectOK("op", nil))
	assert.True(t, r.ExpectRV("op", pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE), pkcs11.CKR_ATTRIBUTE_SENSITIVE))
	assert.True(t, r.ExpectLen("op", []byte{1, 2, 3}, 3))
	assert.True(t, r.ExpectBytes("op", []byte{1}, []byte{1}))
	assert.False(t, r.Failed())
}

func TestRecorderSoftMismatchContinues(t *testing.T) {
	r := NewRecorder()
	assert.False(t, r.ExpectOK("C_Decrypt", pkcs11.Error(pkcs11.CKR_GENERAL_ERROR)))
	assert.False(t, r.ExpectLen("C_Encrypt output", make([]byte, 64), 128))
	assert.True(t, r.Failed())
	require.Len(t, r.Mismatches(), 2)
	assert.Equal(t, "C_Decrypt", r.Mismatches()[0].Op)
	assert.False(t, r.Mismatches()[0].Fatal)
}

func TestRecorderFatalAborts(t *testing.T) {
	r := NewRecorder()
	defer func() {
		v := recover()
		require.NotNil(t, v)
		abort, ok := v.(CaseAbort)
		require.True(t, ok)
		assert.Equal(t, "C_GenerateKeyPair", abort.Op)
		require.Len(t, r.Mismatches(), 1)
		assert.True(t, r.Mismatches()[0].Fatal)
	}()
	r.RequireOK("C_GenerateKeyPair", pkcs11.Error(pkcs11.CKR_TEMPLATE_INCONSISTENT))
	t.Fatal("fatal assertion did not abort")
}

func TestExpectOneOf(t *testing.T) {
	r := NewRecorder()
	assert.True(t, r.ExpectOneOf("op", nil, pkcs11.CKR_OK, pkcs11.CKR_TEMPLATE_INCONSISTENT))
	assert.True(t, r.ExpectOneOf("op", pkcs11.Error(pkcs11.CKR_TEMPLATE_INCONSISTENT),
		pkcs11.CKR_OK, pkcs11.CKR_TEMPLATE_INCONSISTENT))
	assert.False(t, r.Failed())

	assert.False(t, r.ExpectOneOf("op", pkcs11.Error(pkcs11.CKR_GENERAL_ERROR),
		pkcs11.CKR_OK, pkcs11.CKR_TEMPLATE_INCONSISTENT))
	require.Len(t, r.Mismatches(), 1)
	assert.Contains(t, r.Mismatches()[0].Want, "CKR_TEMPLATE_INCONSISTENT")
}

func TestMismatchString(t *testing.T) {
	m := Mismatch{Op: "C_Encrypt", Want: "CKR_OK", Got: "CKR_GENERAL_ERROR", Fatal: true}
	assert.Equal(t, "require C_Encrypt: want CKR_OK, got CKR_GENERAL_ERROR", m.String())
}
