// p11test runs the key-pair lifecycle conformance suite against a
// PKCS#11 library and reports per-case outcomes.
package main

import (
	"fmt"
	"os"

	"github.com/ansel1/merry"
	"github.com/gemalto/flume"
	"github.com/spf13/cobra"

	"github.com/p11test/p11test/core"
	"github.com/p11test/p11test/harness"
	"github.com/p11test/p11test/report"
	"github.com/p11test/p11test/report/sqlite3"
	"github.com/p11test/p11test/suite"
)

var log = flume.New("p11test")

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flags struct {
	library    string
	tokenLabel string
	pin        string
	slotID     uint
	reportDB   string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "p11test",
		Short:         "PKCS#11 key-pair lifecycle conformance harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&f.library, "lib", "", "path to the PKCS#11 library under test")
	cmd.PersistentFlags().StringVar(&f.tokenLabel, "token-label", "", "label of the token to test")
	cmd.PersistentFlags().StringVar(&f.pin, "pin", "", "CKU_USER pin")
	cmd.PersistentFlags().UintVar(&f.slotID, "slot", 0, "slot id (overrides token label)")
	cmd.PersistentFlags().StringVar(&f.reportDB, "report-db", "", "sqlite3 file to record results into")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info or error")
	cmd.AddCommand(runCmd(&f), casesCmd())
	return cmd
}

func runCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the conformance suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			configureLogging(cfg.LogLevel)

			store, err := newStore(cfg)
			if err != nil {
				return err
			}
			defer store.CloseStorage()
			if err := store.InitStorage(); err != nil {
				return err
			}

			conn, err := harness.Open(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			run := report.NewRun(cfg.Library, cfg.TokenLabel)
			results, err := suite.Run(conn, suite.Cases(), store, run)
			printSummary(cmd, results)
			if err != nil {
				return err
			}
			if suite.Failed(results) {
				return merry.New("conformance suite failed")
			}
			return nil
		},
	}
}

func casesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cases",
		Short: "List the suite's case names",
		Run: func(cmd *cobra.Command, args []string) {
			for _, c := range suite.Cases() {
				cmd.Println(c.Name)
			}
		},
	}
}

// loadConfig reads the config file / environment, then lets explicit
// flags win.
func loadConfig(cmd *cobra.Command, f *flags) (*core.Config, error) {
	cfg, err := core.GetConfig()
	if err != nil {
		if !merry.Is(err, core.ErrNoLibrary) || f.library == "" {
			return nil, err
		}
		cfg = &core.Config{LogLevel: "info", Report: core.ReportConfig{Type: "none"}}
	}
	if f.library != "" {
		cfg.Library = f.library
	}
	if f.tokenLabel != "" {
		cfg.TokenLabel = f.tokenLabel
	}
	if f.pin != "" {
		cfg.Pin = f.pin
	}
	if cmd.Flags().Changed("slot") {
		cfg.SlotID = f.slotID
		cfg.UseSlotID = true
	}
	if f.reportDB != "" {
		cfg.Report = core.ReportConfig{Type: "sqlite3", Path: f.reportDB}
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

func newStore(cfg *core.Config) (report.Store, error) {
	switch cfg.Report.Type {
	case "sqlite3":
		return sqlite3.GetStore(cfg.Report.Path)
	case "", "none":
		return report.NopStore{}, nil
	default:
		return nil, merry.Errorf("unknown report store type %q", cfg.Report.Type)
	}
}

func configureLogging(level string) {
	cfg := flume.Config{Development: true, DefaultLevel: flume.InfoLevel}
	switch level {
	case "debug":
		cfg.DefaultLevel = flume.DebugLevel
	case "error":
		cfg.DefaultLevel = flume.ErrorLevel
	}
	if err := flume.Configure(cfg); err != nil {
		log.Error("configuring logging failed", "error", err)
	}
}

func printSummary(cmd *cobra.Command, results []report.Result) {
	for _, result := range results {
		line := fmt.Sprintf("%-40s %s", result.Case, result.Status)
		if result.Detail != "" {
			line += "  (" + result.Detail + ")"
		}
		cmd.Println(line)
	}
}
