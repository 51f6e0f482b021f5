package harness

import (
	"github.com/google/uuid"
	"github.com/miekg/pkcs11"
)

// Template builds an ordered PKCS#11 attribute list. Order is
// preserved exactly as given; the device sees the attributes in the
// order they were added. The builder guarantees structural
// well-formedness only, never cryptographic soundness.
type Template struct {
	attrs []*pkcs11.Attribute
}

func NewTemplate() *Template {
	return &Template{}
}

// Bool adds a boolean attribute set to the canonical TRUE value, the
// "enable this capability" shorthand of bare attribute kinds in
// generation templates.
func (t *Template) Bool(typ uint) *Template {
	return t.Set(typ, true)
}

// Set adds an attribute with an explicit value. Byte slices pass
// through byte-exact; bools, integers and strings are encoded the
// way the device expects them on the wire.
func (t *Template) Set(typ uint, value interface{}) *Template {
	t.attrs = append(t.attrs, pkcs11.NewAttribute(typ, value))
	return t
}

// Attrs returns the built list. The slice is the builder's own; do
// not keep building after handing it out.
func (t *Template) Attrs() []*pkcs11.Attribute {
	return t.attrs
}

func (t *Template) Len() int {
	return len(t.attrs)
}

// FixtureLabel returns a CKA_LABEL value unique to one fixture, so
// repeated runs against a token with persistent objects never
// collide on label lookups.
func FixtureLabel() string {
	return "p11test-" + uuid.New().String()
}

// EncryptionPublicTemplate is the public half used by the key-pair
// lifecycle cases: an encryption-capable RSA public key with an
// explicit modulus size and public exponent.
func EncryptionPublicTemplate(label string, modulusBits int, publicExponent []byte) []*pkcs11.Attribute {
	return NewTemplate().
		Bool(pkcs11.CKA_ENCRYPT).
		Bool(pkcs11.CKA_TOKEN).
		Set(pkcs11.CKA_LABEL, label).
		Set(pkcs11.CKA_MODULUS_BITS, modulusBits).
		Set(pkcs11.CKA_PUBLIC_EXPONENT, publicExponent).
		Attrs()
}

// DecryptionPrivateTemplate is the matching private half. Sensitive
// private keys must never disclose their key material afterwards.
func DecryptionPrivateTemplate(label string, sensitive bool) []*pkcs11.Attribute {
	t := NewTemplate().
		Bool(pkcs11.CKA_DECRYPT).
		Bool(pkcs11.CKA_TOKEN).
		Set(pkcs11.CKA_LABEL, label)
	if sensitive {
		t.Bool(pkcs11.CKA_SENSITIVE)
	}
	return t.Attrs()
}
