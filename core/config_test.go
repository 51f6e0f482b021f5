package core

import (
	"testing"

	"github.com/ansel1/merry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("PKCS11_LIB", "/usr/lib/softhsm/libsofthsm2.so")
	t.Setenv("PKCS11_TOKENLABEL", "p11test")
	t.Setenv("PKCS11_PIN", "1234")

	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", cfg.Library)
	assert.Equal(t, "p11test", cfg.TokenLabel)
	assert.Equal(t, "1234", cfg.Pin)
	assert.False(t, cfg.UseSlotID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "none", cfg.Report.Type)
}

func TestGetConfigRequiresLibrary(t *testing.T) {
	t.Setenv("PKCS11_LIB", "")

	_, err := GetConfig()
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrNoLibrary))
}

func TestGetConfigSlotFromEnv(t *testing.T) {
	t.Setenv("PKCS11_LIB", "/usr/lib/softhsm/libsofthsm2.so")
	t.Setenv("PKCS11_SLOT", "3")

	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.True(t, cfg.UseSlotID)
	assert.Equal(t, uint(3), cfg.SlotID)
}
