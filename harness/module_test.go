package harness

import (
	"errors"
	"fmt"
	"testing"

	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
)

func TestRV(t *testing.T) {
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_OK), RV(nil))
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE),
		RV(pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE)))

	// Codes survive wrapping.
	wrapped := fmt.Errorf("C_GenerateKeyPair: %w", pkcs11.Error(pkcs11.CKR_TEMPLATE_INCONSISTENT))
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_TEMPLATE_INCONSISTENT), RV(wrapped))

	// Anything without a CKR code lands in the generic bucket.
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_GENERAL_ERROR), RV(errors.New("dlopen failed")))
}

func TestRVName(t *testing.T) {
	assert.Equal(t, "CKR_OK", RVName(pkcs11.Error(pkcs11.CKR_OK)))
	assert.Equal(t, "CKR_ATTRIBUTE_SENSITIVE", RVName(pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE)))
	assert.Equal(t, "CKR 0x80000042", RVName(pkcs11.Error(0x80000042)))
}
