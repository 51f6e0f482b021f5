package harness

import (
	"fmt"
	"strings"

	"github.com/ansel1/merry"
	"github.com/gemalto/flume"
	"github.com/miekg/pkcs11"

	"github.com/p11test/p11test/core"
)

var log = flume.New("harness")

var ErrNoSlot = merry.New("no slot with a token present matches the configuration")

// Conn is an open, authenticated channel to the device under test:
// the loaded module plus one serial read-write session. Every
// fixture and operation borrows the session from here and must not
// outlive it.
type Conn struct {
	mod      Module
	ctx      *pkcs11.Ctx
	session  pkcs11.SessionHandle
	loggedIn bool
}

// NewConn wraps an already-open session, typically a test double.
// Teardown of the underlying session stays with the caller.
func NewConn(mod Module, session pkcs11.SessionHandle) *Conn {
	return &Conn{mod: mod, session: session}
}

// Open loads the configured library, selects a slot, opens a serial
// read-write session and logs in as CKU_USER. On any failure the
// partially acquired state is released before returning.
func Open(cfg *core.Config) (*Conn, error) {
	ctx := pkcs11.New(cfg.Library)
	if ctx == nil {
		return nil, merry.Errorf("could not load PKCS#11 library %q", cfg.Library)
	}
	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, merry.Prepend(err, "C_Initialize")
	}

	c := &Conn{mod: ctx, ctx: ctx}
	slot, err := c.findSlot(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.session, err = ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		c.Close()
		return nil, merry.Prepend(err, "C_OpenSession")
	}
	if err := ctx.Login(c.session, pkcs11.CKU_USER, cfg.Pin); err != nil {
		c.Close()
		return nil, merry.Prepend(err, "C_Login")
	}
	c.loggedIn = true
	log.Info("session open", "library", cfg.Library, "slot", slot)
	return c, nil
}

func (c *Conn) findSlot(cfg *core.Config) (uint, error) {
	slots, err := c.ctx.GetSlotList(true)
	if err != nil {
		return 0, merry.Prepend(err, "C_GetSlotList")
	}
	if len(slots) == 0 {
		return 0, merry.Wrap(ErrNoSlot)
	}
	if cfg.UseSlotID {
		for _, slot := range slots {
			if slot == cfg.SlotID {
				return slot, nil
			}
		}
		return 0, merry.Prepend(ErrNoSlot, fmt.Sprintf("slot %d", cfg.SlotID))
	}
	if cfg.TokenLabel == "" {
		return slots[0], nil
	}
	for _, slot := range slots {
		info, err := c.ctx.GetTokenInfo(slot)
		if err != nil {
			return 0, merry.Prepend(err, "C_GetTokenInfo")
		}
		if strings.TrimRight(info.Label, " \x00") == cfg.TokenLabel {
			return slot, nil
		}
	}
	return 0, merry.Prepend(ErrNoSlot, fmt.Sprintf("token label %q", cfg.TokenLabel))
}

// Module returns the device interface bound to this connection.
func (c *Conn) Module() Module { return c.mod }

// Session returns the handle all fixtures run against.
func (c *Conn) Session() pkcs11.SessionHandle { return c.session }

// Close releases the session and the library in reverse acquisition
// order. Safe after a partial Open; a Conn built with NewConn owns
// nothing and Close is a no-op.
func (c *Conn) Close() error {
	if c.ctx == nil {
		return nil
	}
	if c.loggedIn {
		if err := c.ctx.Logout(c.session); err != nil {
			log.Error("logout failed", "error", err)
		}
		c.loggedIn = false
	}
	if c.session != 0 {
		if err := c.ctx.CloseSession(c.session); err != nil {
			log.Error("closing session failed", "error", err)
		}
		c.session = 0
	}
	err := c.ctx.Finalize()
	c.ctx.Destroy()
	c.ctx = nil
	return merry.Prepend(err, "C_Finalize")
}
