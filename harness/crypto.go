package harness

import "github.com/miekg/pkcs11"

// RSAMechanism is the asymmetric mechanism under test: raw RSA
// PKCS#1 v1.5 with an empty parameter block. Single-part only; the
// single-shot calls fold finalization in.
func RSAMechanism() []*pkcs11.Mechanism {
	return []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}
}

// Encrypt runs the two-phase encrypt sequence against the public
// key: init binds mechanism and key to the session and fails fast on
// a mismatched key type or disabled capability, then the single-shot
// transform produces the ciphertext.
func Encrypt(mod Module, session pkcs11.SessionHandle, mech []*pkcs11.Mechanism, key pkcs11.ObjectHandle, plaintext []byte) ([]byte, error) {
	if err := mod.EncryptInit(session, mech, key); err != nil {
		return nil, err
	}
	return mod.Encrypt(session, plaintext)
}

// Decrypt is the mirror sequence against the private key.
func Decrypt(mod Module, session pkcs11.SessionHandle, mech []*pkcs11.Mechanism, key pkcs11.ObjectHandle, ciphertext []byte) ([]byte, error) {
	if err := mod.DecryptInit(session, mech, key); err != nil {
		return nil, err
	}
	return mod.Decrypt(session, ciphertext)
}

// RoundTrip encrypts with the pair's public key and decrypts the
// result with its private key. Callers assert the recovered bytes
// equal the original plaintext exactly.
func RoundTrip(mod Module, session pkcs11.SessionHandle, mech []*pkcs11.Mechanism, kp *KeyPair, plaintext []byte) (ciphertext, recovered []byte, err error) {
	ciphertext, err = Encrypt(mod, session, mech, kp.PublicHandle(), plaintext)
	if err != nil {
		return nil, nil, err
	}
	recovered, err = Decrypt(mod, session, mech, kp.PrivateHandle(), ciphertext)
	if err != nil {
		return ciphertext, nil, err
	}
	return ciphertext, recovered, nil
}
