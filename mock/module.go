// Package mock provides an in-memory stand-in for a PKCS#11 device,
// good enough for exercising the harness without hardware. It keeps
// the interface's observable contract (return codes, attribute
// sensitivity, fixed ciphertext sizes) while backing the math with
// the standard library.
package mock

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"sync"

	"github.com/miekg/pkcs11"
)

type objectClass int

const (
	classPublic objectClass = iota
	classPrivate
)

type object struct {
	class     objectClass
	attrs     map[uint][]byte
	flags     map[uint]bool
	sensitive bool
	pub       *rsa.PublicKey
	priv      *rsa.PrivateKey
}

// Module is an in-memory PKCS#11 device under test. The zero value
// is not usable; call New.
type Module struct {
	// StrictTokenPlacement makes generation reject templates where
	// the private key is token-resident but the public key is not,
	// with CKR_TEMPLATE_INCONSISTENT. Off, such templates succeed.
	// Both are conformant outcomes; the flag lets tests walk both
	// branches.
	StrictTokenPlacement bool

	mu         sync.Mutex
	nextHandle pkcs11.ObjectHandle
	objects    map[pkcs11.ObjectHandle]*object
	encryptKey pkcs11.ObjectHandle
	decryptKey pkcs11.ObjectHandle
}

func New() *Module {
	return &Module{
		nextHandle: 1,
		objects:    make(map[pkcs11.ObjectHandle]*object),
	}
}

func rv(code uint) error { return pkcs11.Error(code) }

// sensitiveTypes are the private-key attributes that must never be
// disclosed once CKA_SENSITIVE is set.
var sensitiveTypes = map[uint]bool{
	pkcs11.CKA_PRIVATE_EXPONENT: true,
	pkcs11.CKA_PRIME_1:          true,
	pkcs11.CKA_PRIME_2:          true,
	pkcs11.CKA_EXPONENT_1:       true,
	pkcs11.CKA_EXPONENT_2:       true,
	pkcs11.CKA_COEFFICIENT:      true,
}

var boolTypes = map[uint]bool{
	pkcs11.CKA_TOKEN:     true,
	pkcs11.CKA_ENCRYPT:   true,
	pkcs11.CKA_DECRYPT:   true,
	pkcs11.CKA_SENSITIVE: true,
	pkcs11.CKA_SIGN:      true,
	pkcs11.CKA_VERIFY:    true,
	pkcs11.CKA_PRIVATE:   true,
}

type template struct {
	flags  map[uint]bool
	values map[uint][]byte
}

func parseTemplate(attrs []*pkcs11.Attribute) template {
	t := template{
		flags:  make(map[uint]bool),
		values: make(map[uint][]byte),
	}
	for _, a := range attrs {
		if boolTypes[a.Type] {
			t.flags[a.Type] = len(a.Value) > 0 && a.Value[0] != 0
			continue
		}
		t.values[a.Type] = a.Value
	}
	return t
}

func ulongValue(raw []byte) uint {
	var v uint
	for i := len(raw) - 1; i >= 0; i-- {
		v = v<<8 | uint(raw[i])
	}
	return v
}

func (m *Module) GenerateKeyPair(sh pkcs11.SessionHandle, mech []*pkcs11.Mechanism, public, private []*pkcs11.Attribute) (pkcs11.ObjectHandle, pkcs11.ObjectHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(mech) != 1 || mech[0].Mechanism != pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN {
		return 0, 0, rv(pkcs11.CKR_MECHANISM_INVALID)
	}
	pubTmpl := parseTemplate(public)
	privTmpl := parseTemplate(private)

	bitsRaw, ok := pubTmpl.values[pkcs11.CKA_MODULUS_BITS]
	if !ok {
		return 0, 0, rv(pkcs11.CKR_TEMPLATE_INCOMPLETE)
	}
	bits := int(ulongValue(bitsRaw))
	if bits < 512 || bits > 8192 {
		return 0, 0, rv(pkcs11.CKR_ATTRIBUTE_VALUE_INVALID)
	}
	if raw, ok := pubTmpl.values[pkcs11.CKA_PUBLIC_EXPONENT]; ok {
		e := new(big.Int).SetBytes(raw)
		if e.Cmp(big.NewInt(65537)) != 0 && e.Cmp(big.NewInt(3)) != 0 {
			return 0, 0, rv(pkcs11.CKR_ATTRIBUTE_VALUE_INVALID)
		}
	}

	pubToken, pubTokenSet := pubTmpl.flags[pkcs11.CKA_TOKEN]
	privToken := privTmpl.flags[pkcs11.CKA_TOKEN]
	if m.StrictTokenPlacement && pubTokenSet && !pubToken && privToken {
		return 0, 0, rv(pkcs11.CKR_TEMPLATE_INCONSISTENT)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return 0, 0, rv(pkcs11.CKR_FUNCTION_FAILED)
	}
	modulus := key.N.Bytes()
	exponent := big.NewInt(int64(key.E)).Bytes()

	pubObj := &object{
		class: classPublic,
		pub:   &key.PublicKey,
		flags: pubTmpl.flags,
		attrs: map[uint][]byte{
			pkcs11.CKA_MODULUS:         modulus,
			pkcs11.CKA_PUBLIC_EXPONENT: exponent,
			pkcs11.CKA_MODULUS_BITS:    bitsRaw,
		},
	}
	privObj := &object{
		class:     classPrivate,
		priv:      key,
		flags:     privTmpl.flags,
		sensitive: privTmpl.flags[pkcs11.CKA_SENSITIVE],
		attrs: map[uint][]byte{
			pkcs11.CKA_MODULUS:         modulus,
			pkcs11.CKA_PUBLIC_EXPONENT: exponent,
		},
	}
	if label, ok := pubTmpl.values[pkcs11.CKA_LABEL]; ok {
		pubObj.attrs[pkcs11.CKA_LABEL] = label
	}
	if label, ok := privTmpl.values[pkcs11.CKA_LABEL]; ok {
		privObj.attrs[pkcs11.CKA_LABEL] = label
	}

	pubHandle := m.addObject(pubObj)
	privHandle := m.addObject(privObj)
	return pubHandle, privHandle, nil
}

func (m *Module) addObject(o *object) pkcs11.ObjectHandle {
	h := m.nextHandle
	m.nextHandle++
	m.objects[h] = o
	return h
}

func (m *Module) EncryptInit(sh pkcs11.SessionHandle, mech []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[key]
	if !ok {
		return rv(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	if len(mech) != 1 || mech[0].Mechanism != pkcs11.CKM_RSA_PKCS {
		return rv(pkcs11.CKR_MECHANISM_INVALID)
	}
	if o.class != classPublic {
		return rv(pkcs11.CKR_KEY_TYPE_INCONSISTENT)
	}
	if !o.flags[pkcs11.CKA_ENCRYPT] {
		return rv(pkcs11.CKR_KEY_FUNCTION_NOT_PERMITTED)
	}
	m.encryptKey = key
	return nil
}

func (m *Module) Encrypt(sh pkcs11.SessionHandle, message []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.encryptKey == 0 {
		return nil, rv(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	o := m.objects[m.encryptKey]
	m.encryptKey = 0
	if o == nil {
		return nil, rv(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	if len(message) > o.pub.Size()-11 {
		return nil, rv(pkcs11.CKR_DATA_LEN_RANGE)
	}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, o.pub, message)
	if err != nil {
		return nil, rv(pkcs11.CKR_FUNCTION_FAILED)
	}
	return ciphertext, nil
}

func (m *Module) DecryptInit(sh pkcs11.SessionHandle, mech []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[key]
	if !ok {
		return rv(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	if len(mech) != 1 || mech[0].Mechanism != pkcs11.CKM_RSA_PKCS {
		return rv(pkcs11.CKR_MECHANISM_INVALID)
	}
	if o.class != classPrivate {
		return rv(pkcs11.CKR_KEY_TYPE_INCONSISTENT)
	}
	if !o.flags[pkcs11.CKA_DECRYPT] {
		return rv(pkcs11.CKR_KEY_FUNCTION_NOT_PERMITTED)
	}
	m.decryptKey = key
	return nil
}

func (m *Module) Decrypt(sh pkcs11.SessionHandle, ciphertext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decryptKey == 0 {
		return nil, rv(pkcs11.CKR_OPERATION_NOT_INITIALIZED)
	}
	o := m.objects[m.decryptKey]
	m.decryptKey = 0
	if o == nil {
		return nil, rv(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	plaintext, err := rsa.DecryptPKCS1v15(nil, o.priv, ciphertext)
	if err != nil {
		return nil, rv(pkcs11.CKR_ENCRYPTED_DATA_INVALID)
	}
	return plaintext, nil
}

// GetAttributeValue fails the whole call when any requested
// attribute is sensitive or unknown; no partial results come back.
func (m *Module) GetAttributeValue(sh pkcs11.SessionHandle, oh pkcs11.ObjectHandle, attrs []*pkcs11.Attribute) ([]*pkcs11.Attribute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[oh]
	if !ok {
		return nil, rv(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	out := make([]*pkcs11.Attribute, 0, len(attrs))
	for _, a := range attrs {
		if o.sensitive && sensitiveTypes[a.Type] {
			return nil, rv(pkcs11.CKR_ATTRIBUTE_SENSITIVE)
		}
		value, ok := o.attrs[a.Type]
		if !ok {
			return nil, rv(pkcs11.CKR_ATTRIBUTE_TYPE_INVALID)
		}
		out = append(out, &pkcs11.Attribute{Type: a.Type, Value: value})
	}
	return out, nil
}

func (m *Module) DestroyObject(sh pkcs11.SessionHandle, oh pkcs11.ObjectHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[oh]; !ok {
		return rv(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	delete(m.objects, oh)
	return nil
}

// ObjectCount reports how many objects are alive, for leak checks in
// tests.
func (m *Module) ObjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
