package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// Errors returned by Load.
var (
	ErrConfigFileRead = errors.New("cannot read config file")
	ErrConfigInvalid  = errors.New("invalid config")
	ErrInvalidPort    = errors.New("port must be between 1 and 65535")
	ErrNegativeDelay  = errors.New("delays must not be negative")
)

// Config holds all daemon and CLI settings.
type Config struct {
	Port             int      `json:"port"`
	DBPath           string   `json:"db_path"`
	LogDir           string   `json:"log_dir"`
	Profile          string   `json:"profile,omitempty"`
	DebounceMS       int      `json:"debounce_ms"`
	UnmarkDelayMS    int      `json:"unmark_delay_ms"`
	SettleMS         int      `json:"settle_ms"`
	CallTimeoutMS    int      `json:"call_timeout_ms"`
	PublicSuffix     bool     `json:"public_suffix"`
	ExtraTwoPartTLDs []string `json:"extra_two_part_tlds,omitempty"`

	// Source is the config file that was loaded, empty if none.
	Source string `json:"-"`
}

// Default returns the built-in configuration. Paths are left empty and
// resolved against HOME by Load.
func Default() Config {
	return Config{
		Port:          19192,
		DebounceMS:    2000,
		UnmarkDelayMS: 1000,
		SettleMS:      50,
		CallTimeoutMS: 10000,
	}
}

// Debounce is DebounceMS as a duration.
func (c Config) Debounce() time.Duration { return ms(c.DebounceMS) }

// UnmarkDelay is UnmarkDelayMS as a duration.
func (c Config) UnmarkDelay() time.Duration { return ms(c.UnmarkDelayMS) }

// Settle is SettleMS as a duration.
func (c Config) Settle() time.Duration { return ms(c.SettleMS) }

// CallTimeout is CallTimeoutMS as a duration.
func (c Config) CallTimeout() time.Duration { return ms(c.CallTimeoutMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Flag names shared by all subcommands.
const (
	FlagConfig  = "config"
	FlagPort    = "port"
	FlagDB      = "db"
	FlagLogDir  = "log-dir"
	FlagProfile = "profile"
)

// RegisterFlags adds the config override flags to fs.
func RegisterFlags(fs *flag.FlagSet) {
	fs.StringP(FlagConfig, "c", "", "Use specified config file")
	fs.IntP(FlagPort, "p", 0, "WebSocket port for the browser extension")
	fs.String(FlagDB, "", "SQLite database path")
	fs.String(FlagLogDir, "", "Log directory")
	fs.String(FlagProfile, "", "Firefox profile name")
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	Env   map[string]string // environment variables
	Flags *flag.FlagSet     // parsed flags from RegisterFlags, may be nil
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Config file (--config, or $XDG_CONFIG_HOME/tabheinzel/config.json,
// or ~/.config/tabheinzel/config.json)
// 3. TABHEINZEL_* environment variables
// 4. CLI flags that were explicitly set.
func Load(input LoadInput) (Config, error) {
	cfg := Default()

	path, mustExist := globalConfigPath(input.Env), false
	if input.Flags != nil {
		if explicit, _ := input.Flags.GetString(FlagConfig); explicit != "" {
			path, mustExist = explicit, true
		}
	}

	if path != "" {
		fileCfg, loaded, err := loadConfigFile(path, mustExist)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			cfg = mergeConfig(cfg, fileCfg)
			cfg.Source = path
		}
	}

	if err := applyEnv(&cfg, input.Env); err != nil {
		return Config{}, err
	}
	if input.Flags != nil {
		applyFlags(&cfg, input.Flags)
	}

	home := input.Env["HOME"]
	if cfg.DBPath == "" && home != "" {
		cfg.DBPath = filepath.Join(home, ".local", "share", "tabheinzel", "tabheinzel.db")
	}
	if cfg.LogDir == "" && home != "" {
		cfg.LogDir = filepath.Join(home, ".local", "share", "tabheinzel")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Environ converts os.Environ into the map Load expects.
func Environ(entries []string) map[string]string {
	env := make(map[string]string, len(entries))
	for _, e := range entries {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				env[e[:i]] = e[i+1:]
				break
			}
		}
	}
	return env
}

// globalConfigPath returns $XDG_CONFIG_HOME/tabheinzel/config.json if set,
// otherwise ~/.config/tabheinzel/config.json, or "" without a home directory.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "tabheinzel", "config.json")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "tabheinzel", "config.json")
	}
	return ""
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Comments and trailing commas are allowed.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.Port != 0 {
		base.Port = overlay.Port
	}
	if overlay.DBPath != "" {
		base.DBPath = overlay.DBPath
	}
	if overlay.LogDir != "" {
		base.LogDir = overlay.LogDir
	}
	if overlay.Profile != "" {
		base.Profile = overlay.Profile
	}
	if overlay.DebounceMS != 0 {
		base.DebounceMS = overlay.DebounceMS
	}
	if overlay.UnmarkDelayMS != 0 {
		base.UnmarkDelayMS = overlay.UnmarkDelayMS
	}
	if overlay.SettleMS != 0 {
		base.SettleMS = overlay.SettleMS
	}
	if overlay.CallTimeoutMS != 0 {
		base.CallTimeoutMS = overlay.CallTimeoutMS
	}
	if overlay.PublicSuffix {
		base.PublicSuffix = true
	}
	if len(overlay.ExtraTwoPartTLDs) > 0 {
		base.ExtraTwoPartTLDs = overlay.ExtraTwoPartTLDs
	}
	return base
}

func applyEnv(cfg *Config, env map[string]string) error {
	if v := env["TABHEINZEL_PORT"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TABHEINZEL_PORT=%q", ErrInvalidPort, v)
		}
		cfg.Port = port
	}
	if v := env["TABHEINZEL_DB"]; v != "" {
		cfg.DBPath = v
	}
	if v := env["TABHEINZEL_LOG_DIR"]; v != "" {
		cfg.LogDir = v
	}
	if v := env["TABHEINZEL_PROFILE"]; v != "" {
		cfg.Profile = v
	}
	return nil
}

func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs.Changed(FlagPort) {
		cfg.Port, _ = fs.GetInt(FlagPort)
	}
	if fs.Changed(FlagDB) {
		cfg.DBPath, _ = fs.GetString(FlagDB)
	}
	if fs.Changed(FlagLogDir) {
		cfg.LogDir, _ = fs.GetString(FlagLogDir)
	}
	if fs.Changed(FlagProfile) {
		cfg.Profile, _ = fs.GetString(FlagProfile)
	}
}

func validate(cfg Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Port)
	}
	if cfg.DebounceMS < 0 || cfg.UnmarkDelayMS < 0 || cfg.SettleMS < 0 || cfg.CallTimeoutMS < 0 {
		return ErrNegativeDelay
	}
	return nil
}
