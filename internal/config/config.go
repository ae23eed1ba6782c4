// Package config loads process configuration: CLI flags (spec §6), env
// vars (optionally from a .env file via godotenv) that supply the flags'
// defaults, and the circuit-breaker knobs C3 needs. Grounded on the teacher's LoadCleanupConfig (internal/config's
// deleted cleanup_config.go) — env var read, parse, fall back to a
// default on missing/invalid value — generalized from one service's
// settings to the whole process's.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/xyz-jphil/ccapis-proxy/internal/health"
)

// Config is the fully-resolved process configuration.
type Config struct {
	Port           int
	SettingsPath   string
	NoTray         bool
	CircuitBreaker health.Config
	TxLogDir       string
	TxLogEnabled   bool
}

// Load parses CLI flags (spec §6: --port, --settings, --help, --no-tray),
// loads a .env file if present (teacher idiom, main.go), and layers
// environment variables over flag defaults. args excludes the program
// name (pass os.Args[1:]).
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env file not found")
	}

	fs := flag.NewFlagSet("ccapis-proxy", flag.ContinueOnError)
	port := fs.Int("port", envInt("CCAPIS_PORT", 8080), "listen port")
	settings := fs.String("settings", envString("CCAPIS_SETTINGS", defaultSettingsPath()), "path to the credentials settings file")
	noTray := fs.Bool("no-tray", envBool("CCAPIS_NO_TRAY", false), "disable the tray icon (no-op outside the desktop build)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cbCfg := health.DefaultConfig()
	cbCfg.Enabled = envBool("CCAPIS_CIRCUIT_BREAKER_ENABLED", cbCfg.Enabled)
	cbCfg.FailureThreshold = envInt("CCAPIS_FAILURE_THRESHOLD", cbCfg.FailureThreshold)
	cbCfg.GenericCooldown = envDuration("CCAPIS_GENERIC_COOLDOWN", cbCfg.GenericCooldown)
	cbCfg.RateLimitCooldown = envDuration("CCAPIS_RATE_LIMIT_COOLDOWN", cbCfg.RateLimitCooldown)
	cbCfg.UsageStaleness = envDuration("CCAPIS_USAGE_STALENESS", cbCfg.UsageStaleness)

	return Config{
		Port:           *port,
		SettingsPath:   *settings,
		NoTray:         *noTray,
		CircuitBreaker: cbCfg,
		TxLogDir:       txLogDir(),
		TxLogEnabled:   envBool("CCAPIS_TXLOG_ENABLED", true),
	}, nil
}

// defaultSettingsPath is the credentials file location spec §6 implies by
// naming the conversation-log directory's sibling.
func defaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(home, "xyz-jphil", "ccapis", "credentials.json")
}

// txLogDir builds the per-run conversation-log directory of spec §6:
// <user_home>/xyz-jphil/ccapis/conversations-logs/<yyyy-MM-dd_HHmmss>/.
func txLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	stamp := time.Now().Format("2006-01-02_150405")
	return filepath.Join(home, "xyz-jphil", "ccapis", "conversations-logs", stamp)
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
