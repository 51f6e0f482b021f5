package harness

import (
	"errors"

	"github.com/miekg/pkcs11"
)

// KeyPairState tracks the fixture lifecycle:
// Uninitialized → Generating → {Ready, GenerationFailed};
// Ready → Destroying → Destroyed. Close moves every state to
// Destroyed; only Ready actually issues destruction calls.
type KeyPairState int

const (
	Uninitialized KeyPairState = iota
	Generating
	Ready
	GenerationFailed
	Destroying
	Destroyed
)

func (s KeyPairState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Generating:
		return "Generating"
	case Ready:
		return "Ready"
	case GenerationFailed:
		return "GenerationFailed"
	case Destroying:
		return "Destroying"
	case Destroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// KeyPair owns the two object handles produced by one
// C_GenerateKeyPair call. The generation call is atomic: either both
// handles exist or neither does, so there is never a half-created
// pair to roll back.
type KeyPair struct {
	mod     Module
	session pkcs11.SessionHandle
	pub     pkcs11.ObjectHandle
	priv    pkcs11.ObjectHandle
	state   KeyPairState
}

// KeyPairGenMechanism is the fixed generation mechanism for the RSA
// lifecycle under test. The parameter block is empty.
func KeyPairGenMechanism() []*pkcs11.Mechanism {
	return []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)}
}

// GenerateKeyPair invokes key-pair generation with the given
// templates. The returned fixture is never nil: on failure it holds
// no handles and Close is a no-op, so callers can defer Close before
// checking the error.
func GenerateKeyPair(mod Module, session pkcs11.SessionHandle, public, private []*pkcs11.Attribute) (*KeyPair, error) {
	kp := &KeyPair{mod: mod, session: session, state: Generating}
	pub, priv, err := mod.GenerateKeyPair(session, KeyPairGenMechanism(), public, private)
	if err != nil {
		kp.state = GenerationFailed
		return kp, err
	}
	kp.pub = pub
	kp.priv = priv
	kp.state = Ready
	log.Debug("key pair generated", "public", pub, "private", priv)
	return kp, nil
}

func (kp *KeyPair) PublicHandle() pkcs11.ObjectHandle  { return kp.pub }
func (kp *KeyPair) PrivateHandle() pkcs11.ObjectHandle { return kp.priv }
func (kp *KeyPair) State() KeyPairState                { return kp.state }

// Close destroys both objects. It runs on every exit path of a case
// (callers defer it), executes destruction at most once, and is a
// no-op when generation never succeeded or Close already ran. A
// destruction failure is returned for separate reporting; it must
// not mask the outcome of the case that owned the fixture.
func (kp *KeyPair) Close() error {
	if kp == nil || kp.state != Ready {
		if kp != nil {
			kp.state = Destroyed
		}
		return nil
	}
	kp.state = Destroying
	var errs []error
	if err := kp.mod.DestroyObject(kp.session, kp.pub); err != nil {
		log.Error("destroying public key failed", "handle", kp.pub, "error", err)
		errs = append(errs, err)
	}
	if err := kp.mod.DestroyObject(kp.session, kp.priv); err != nil {
		log.Error("destroying private key failed", "handle", kp.priv, "error", err)
		errs = append(errs, err)
	}
	kp.state = Destroyed
	return errors.Join(errs...)
}
