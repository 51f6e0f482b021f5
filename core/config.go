package core

import (
	"github.com/ansel1/merry"
	"github.com/spf13/viper"
)

// Config holds everything needed to point the harness at a device
// under test. A config file is optional: the PKCS11_* environment
// variables the usual PKCS#11 test setups export are enough to run.
type Config struct {
	// Library is the path to the PKCS#11 shared object under test.
	Library string
	// TokenLabel selects the slot whose token carries this label.
	// When empty and UseSlotID is unset, the first slot with a
	// token present is used.
	TokenLabel string
	// SlotID selects a slot directly. Only honored when UseSlotID
	// is true, since 0 is a valid slot id.
	SlotID    uint
	UseSlotID bool
	// Pin is the CKU_USER pin for the session login.
	Pin      string
	LogLevel string
	Report   ReportConfig
}

// ReportConfig configures where run results are persisted.
type ReportConfig struct {
	Type string // "sqlite3" or "none"
	Path string
}

var ErrNoLibrary = merry.New("no PKCS#11 library configured (set PKCS11_LIB or the library config key)")

func GetConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("p11test")
	v.AddConfigPath("/etc/p11test/")
	v.AddConfigPath("$HOME/.p11test")
	v.AddConfigPath("./")

	v.SetDefault("loglevel", "info")
	v.SetDefault("report.type", "none")

	// The environment names match the ones SoftHSM-based PKCS#11
	// test rigs already use, so the harness drops into existing CI
	// jobs without a config file.
	v.BindEnv("library", "PKCS11_LIB")
	v.BindEnv("tokenlabel", "PKCS11_TOKENLABEL")
	v.BindEnv("pin", "PKCS11_PIN")
	v.BindEnv("slotid", "PKCS11_SLOT")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, merry.Prepend(err, "reading config file")
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, merry.Prepend(err, "unmarshaling config")
	}
	if v.IsSet("slotid") && conf.TokenLabel == "" {
		conf.UseSlotID = true
	}
	if conf.Library == "" {
		return nil, ErrNoLibrary
	}
	return &conf, nil
}
