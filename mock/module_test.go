package mock

import (
	"testing"

	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const session = pkcs11.SessionHandle(1)

func generate(t *testing.T, m *Module, sensitive bool) (pkcs11.ObjectHandle, pkcs11.ObjectHandle) {
	public := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, 1024),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, []byte{0x01, 0x00, 0x01}),
	}
	private := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, sensitive),
	}
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)}
	pub, priv, err := m.GenerateKeyPair(session, mech, public, private)
	require.NoError(t, err)
	return pub, priv
}

func TestEncryptWithoutInit(t *testing.T) {
	m := New()
	_, err := m.Encrypt(session, []byte("x"))
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED), err)
}

func TestEncryptInitConsumedByEncrypt(t *testing.T) {
	m := New()
	pub, _ := generate(t, m, false)
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}
	require.NoError(t, m.EncryptInit(session, mech, pub))
	_, err := m.Encrypt(session, []byte("x"))
	require.NoError(t, err)
	_, err = m.Encrypt(session, []byte("x"))
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_OPERATION_NOT_INITIALIZED), err)
}

func TestPlaintextTooLong(t *testing.T) {
	m := New()
	pub, _ := generate(t, m, false)
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}
	require.NoError(t, m.EncryptInit(session, mech, pub))
	_, err := m.Encrypt(session, make([]byte, 128))
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_DATA_LEN_RANGE), err)
}

func TestSensitiveAttributeNeverDisclosed(t *testing.T) {
	m := New()
	_, priv := generate(t, m, true)
	for i := 0; i < 3; i++ {
		_, err := m.GetAttributeValue(session, priv, []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_PRIVATE_EXPONENT, nil),
		})
		assert.Equal(t, pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE), err)
	}
}

func TestStrictTokenPlacement(t *testing.T) {
	m := New()
	m.StrictTokenPlacement = true
	public := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, 1024),
	}
	private := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
	}
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)}
	_, _, err := m.GenerateKeyPair(session, mech, public, private)
	assert.Equal(t, pkcs11.Error(pkcs11.CKR_TEMPLATE_INCONSISTENT), err)
	assert.Equal(t, 0, m.ObjectCount())
}
