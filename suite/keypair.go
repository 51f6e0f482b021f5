package suite

import (
	"github.com/miekg/pkcs11"

	"github.com/p11test/p11test/harness"
)

// The key-pair lifecycle cases exercise PKCS#11 s11.8/s11.9
// (asymmetric encryption functions) plus generation, attribute
// retrieval and destruction around them.

const modulusBits = 1024

// 65537, in both encodings devices see in the wild. The 4-byte form
// carries a leading zero octet on purpose: big-integer attribute
// values are defined up to leading zeros and the device must accept
// both.
var (
	publicExponent       = []byte{0x01, 0x00, 0x01}
	publicExponent4Bytes = []byte{0x00, 0x01, 0x00, 0x01}
)

// Cases returns the key-pair lifecycle suite in execution order.
func Cases() []Case {
	return []Case{
		{Name: "KeyPair/EncryptDecrypt", Run: encryptDecrypt},
		{Name: "KeyPair/PublicExponent4Bytes", Run: exponent4Bytes},
		{Name: "KeyPair/ExtractKeys", Run: extractKeys},
		{Name: "KeyPair/AsymmetricTokenKeyPair", Run: asymmetricTokenKeyPair},
		{Name: "KeyPair/IdempotentTeardown", Run: idempotentTeardown},
	}
}

// newFixture generates the standard encrypt/decrypt pair for a case,
// aborting the case when generation itself fails. On the failure
// path no handles exist, so there is nothing to tear down yet.
func newFixture(r *harness.Recorder, c *harness.Conn, sensitive bool) *harness.KeyPair {
	label := harness.FixtureLabel()
	kp, err := harness.GenerateKeyPair(c.Module(), c.Session(),
		harness.EncryptionPublicTemplate(label, modulusBits, publicExponent),
		harness.DecryptionPrivateTemplate(label, sensitive))
	r.RequireOK("C_GenerateKeyPair", err)
	return kp
}

// teardown destroys the fixture's objects and records, without
// masking the case outcome, a destruction failure.
func teardown(r *harness.Recorder, kp *harness.KeyPair) {
	r.ExpectOK("C_DestroyObject (teardown)", kp.Close())
}

// encryptDecrypt checks the round trip: a 1024-bit pair encrypts the
// literal 10-byte plaintext "0123456789" into exactly one 128-byte
// block, and decryption recovers it byte for byte.
func encryptDecrypt(r *harness.Recorder, c *harness.Conn) {
	kp := newFixture(r, c, false)
	defer teardown(r, kp)

	plaintext := []byte("0123456789")
	ciphertext, err := harness.Encrypt(c.Module(), c.Session(), harness.RSAMechanism(), kp.PublicHandle(), plaintext)
	r.RequireOK("C_EncryptInit/C_Encrypt", err)
	r.ExpectLen("C_Encrypt output", ciphertext, modulusBits/8)

	recovered, err := harness.Decrypt(c.Module(), c.Session(), harness.RSAMechanism(), kp.PrivateHandle(), ciphertext)
	if r.ExpectOK("C_DecryptInit/C_Decrypt", err) {
		r.ExpectLen("C_Decrypt output", recovered, len(plaintext))
		r.ExpectBytes("recovered plaintext", recovered, plaintext)
	}
}

// exponent4Bytes generates a pair whose public exponent is encoded
// in four bytes (0x00010001). Generation must succeed and both
// handles must be destroyable.
func exponent4Bytes(r *harness.Recorder, c *harness.Conn) {
	mod, session := c.Module(), c.Session()
	public := harness.NewTemplate().
		Bool(pkcs11.CKA_ENCRYPT).
		Set(pkcs11.CKA_MODULUS_BITS, modulusBits).
		Set(pkcs11.CKA_PUBLIC_EXPONENT, publicExponent4Bytes).
		Attrs()
	private := harness.NewTemplate().
		Bool(pkcs11.CKA_DECRYPT).
		Attrs()

	pub, priv, err := mod.GenerateKeyPair(session, harness.KeyPairGenMechanism(), public, private)
	if !r.ExpectOK("C_GenerateKeyPair", err) {
		return
	}
	r.ExpectOK("C_DestroyObject (public)", mod.DestroyObject(session, pub))
	r.ExpectOK("C_DestroyObject (private)", mod.DestroyObject(session, priv))
}

// extractKeys checks attribute visibility on a pair whose private
// half is sensitive: modulus and public exponent are always
// disclosed, the primes and the private exponent never are.
func extractKeys(r *harness.Recorder, c *harness.Conn) {
	kp := newFixture(r, c, true)
	defer teardown(r, kp)
	mod, session := c.Module(), c.Session()

	attrs, err := mod.GetAttributeValue(session, kp.PublicHandle(), []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, nil),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, nil),
	})
	if r.ExpectOK("C_GetAttributeValue (public)", err) {
		r.ExpectLen("CKA_MODULUS", attrs[0].Value, modulusBits/8)
		r.ExpectTrue("CKA_PUBLIC_EXPONENT", len(attrs[1].Value) > 0, "non-empty value", "empty value")
	}

	hidden := []struct {
		typ  uint
		name string
	}{
		{pkcs11.CKA_PRIME_1, "CKA_PRIME_1"},
		{pkcs11.CKA_PRIME_2, "CKA_PRIME_2"},
		{pkcs11.CKA_PRIVATE_EXPONENT, "CKA_PRIVATE_EXPONENT"},
	}
	for _, attr := range hidden {
		_, err := mod.GetAttributeValue(session, kp.PrivateHandle(), []*pkcs11.Attribute{
			pkcs11.NewAttribute(attr.typ, nil),
		})
		r.ExpectRV("C_GetAttributeValue ("+attr.name+")", err, pkcs11.CKR_ATTRIBUTE_SENSITIVE)
	}
}

// asymmetricTokenKeyPair generates a pair with the private key
// token-resident and the public key session-only. The interface
// allows exactly two outcomes: success, in which case both handles
// must be independently destroyable, or CKR_TEMPLATE_INCONSISTENT.
func asymmetricTokenKeyPair(r *harness.Recorder, c *harness.Conn) {
	mod, session := c.Module(), c.Session()
	label := harness.FixtureLabel()
	public := harness.NewTemplate().
		Bool(pkcs11.CKA_ENCRYPT).
		Set(pkcs11.CKA_TOKEN, false).
		Set(pkcs11.CKA_LABEL, label).
		Set(pkcs11.CKA_MODULUS_BITS, modulusBits).
		Set(pkcs11.CKA_PUBLIC_EXPONENT, publicExponent).
		Attrs()
	private := harness.NewTemplate().
		Bool(pkcs11.CKA_DECRYPT).
		Bool(pkcs11.CKA_TOKEN).
		Set(pkcs11.CKA_LABEL, label).
		Attrs()

	pub, priv, err := mod.GenerateKeyPair(session, harness.KeyPairGenMechanism(), public, private)
	if !r.ExpectOneOf("C_GenerateKeyPair", err, pkcs11.CKR_OK, pkcs11.CKR_TEMPLATE_INCONSISTENT) {
		return
	}
	if harness.RV(err) == pkcs11.Error(pkcs11.CKR_OK) {
		r.ExpectOK("C_DestroyObject (public)", mod.DestroyObject(session, pub))
		r.ExpectOK("C_DestroyObject (private)", mod.DestroyObject(session, priv))
	}
}

// idempotentTeardown checks that destroying a fixture twice, or one
// that never produced handles, raises no error.
func idempotentTeardown(r *harness.Recorder, c *harness.Conn) {
	kp := newFixture(r, c, false)
	r.ExpectOK("Close (first)", kp.Close())
	r.ExpectOK("Close (second)", kp.Close())
	r.ExpectTrue("fixture state", kp.State() == harness.Destroyed,
		harness.Destroyed.String(), kp.State().String())

	var never harness.KeyPair
	r.ExpectOK("Close (never generated)", never.Close())
}
