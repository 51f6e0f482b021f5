// Package harness drives an external PKCS#11 implementation through
// its key-pair lifecycle and checks the observable behavior: return
// codes, produced values and attribute visibility. It implements no
// cryptography of its own.
package harness

import (
	"errors"
	"fmt"

	"github.com/miekg/pkcs11"
)

// Module is the slice of the PKCS#11 function list the harness
// consumes. *pkcs11.Ctx satisfies it directly; tests substitute an
// in-memory double.
type Module interface {
	GenerateKeyPair(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, public, private []*pkcs11.Attribute) (pkcs11.ObjectHandle, pkcs11.ObjectHandle, error)
	EncryptInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error
	Encrypt(sh pkcs11.SessionHandle, message []byte) ([]byte, error)
	DecryptInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error
	Decrypt(sh pkcs11.SessionHandle, cipher []byte) ([]byte, error)
	GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error)
	DestroyObject(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle) error
}

// RV reduces any error coming back from a Module call to its CKR
// code. A nil error is CKR_OK; anything that does not carry a
// pkcs11.Error lands in the CKR_GENERAL_ERROR bucket so every
// operation still yields exactly one code.
func RV(err error) pkcs11.Error {
	if err == nil {
		return pkcs11.Error(pkcs11.CKR_OK)
	}
	var p11err pkcs11.Error
	if errors.As(err, &p11err) {
		return p11err
	}
	return pkcs11.Error(pkcs11.CKR_GENERAL_ERROR)
}

var rvNames = map[pkcs11.Error]string{
	pkcs11.Error(pkcs11.CKR_OK):                         "CKR_OK",
	pkcs11.Error(pkcs11.CKR_GENERAL_ERROR):              "CKR_GENERAL_ERROR",
	pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE):        "CKR_ATTRIBUTE_SENSITIVE",
	pkcs11.Error(pkcs11.CKR_TEMPLATE_INCONSISTENT):      "CKR_TEMPLATE_INCONSISTENT",
	pkcs11.Error(pkcs11.CKR_TEMPLATE_INCOMPLETE):        "CKR_TEMPLATE_INCOMPLETE",
	pkcs11.Error(pkcs11.CKR_OBJECT_HANDLE_INVALID):      "CKR_OBJECT_HANDLE_INVALID",
	pkcs11.Error(pkcs11.CKR_MECHANISM_INVALID):          "CKR_MECHANISM_INVALID",
	pkcs11.Error(pkcs11.CKR_BUFFER_TOO_SMALL):           "CKR_BUFFER_TOO_SMALL",
	pkcs11.Error(pkcs11.CKR_ATTRIBUTE_TYPE_INVALID):     "CKR_ATTRIBUTE_TYPE_INVALID",
	pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED):  "CKR_OPERATION_NOT_INITIALIZED",
	pkcs11.Error(pkcs11.CKR_KEY_FUNCTION_NOT_PERMITTED): "CKR_KEY_FUNCTION_NOT_PERMITTED",
	pkcs11.Error(pkcs11.CKR_KEY_TYPE_INCONSISTENT):      "CKR_KEY_TYPE_INCONSISTENT",
}

// RVName renders a CKR code for logs and mismatch reports.
func RVName(rv pkcs11.Error) string {
	if name, ok := rvNames[rv]; ok {
		return name
	}
	return fmt.Sprintf("CKR 0x%08X", uint(rv))
}
