package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "AGENTKIT"

const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	EnableActions  string
	Timeout        string
	Retries        int
	MaxStale       string
	NoStale        bool
	NoCache        bool
	LogLevel       string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	EnableActions  []string
	Timeout        time.Duration
	Retries        int
	MaxStale       time.Duration
	NoStale        bool
	CacheEnabled   bool
	CacheBackend   string
	CachePath      string
	CacheLockPath  string
	CacheTTL       time.Duration
	RedisURL       string
	PlanStorePath  string
	PlanLockPath   string
	LogLevel       string
	LogJSON        bool
	// Plugin settings from the config file's settings map, keyed by upper-case name.
	Plugin map[string]string
}

// Setting resolves a plugin setting: config file first, then process environment.
func (s Settings) Setting(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if v, ok := s.Plugin[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(os.Getenv(key))
}

// Fingerprint hashes the resolved value of every setting whose key starts with one of prefixes.
// It is empty when no prefix is given.
func (s Settings) Fingerprint(prefixes ...string) string {
	if len(prefixes) == 0 {
		return ""
	}
	keys := map[string]bool{}
	for k := range s.Plugin {
		keys[strings.ToUpper(k)] = true
	}
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok {
			keys[strings.ToUpper(k)] = true
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		for _, prefix := range prefixes {
			if strings.HasPrefix(k, strings.ToUpper(prefix)) {
				names = append(names, k)
				break
			}
		}
	}
	sort.Strings(names)
	h := sha256.New()
	for _, k := range names {
		if v := s.Setting(k); v != "" {
			fmt.Fprintf(h, "%s=%s\n", k, v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Cache   struct {
		Enabled  *bool  `yaml:"enabled"`
		Backend  string `yaml:"backend"`
		MaxStale string `yaml:"max_stale"`
		TTL      string `yaml:"ttl"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		RedisURL string `yaml:"redis_url"`
	} `yaml:"cache"`
	Execution struct {
		PlansPath     string `yaml:"plans_path"`
		PlansLockPath string `yaml:"plans_lock_path"`
	} `yaml:"execution"`
	Log struct {
		Level string `yaml:"level"`
		JSON  *bool  `yaml:"json"`
	} `yaml:"log"`
	Settings map[string]string `yaml:"settings"`
}

// envConfig is decoded by envconfig from AGENTKIT_* variables. Nil fields were not set.
type envConfig struct {
	Output        *string        `envconfig:"OUTPUT"`
	Timeout       *time.Duration `envconfig:"TIMEOUT"`
	Retries       *int           `envconfig:"RETRIES"`
	MaxStale      *time.Duration `envconfig:"MAX_STALE"`
	NoStale       *bool          `envconfig:"NO_STALE"`
	NoCache       *bool          `envconfig:"NO_CACHE"`
	CacheBackend  *string        `envconfig:"CACHE_BACKEND"`
	CachePath     *string        `envconfig:"CACHE_PATH"`
	CacheLockPath *string        `envconfig:"CACHE_LOCK_PATH"`
	CacheTTL      *time.Duration `envconfig:"CACHE_TTL"`
	RedisURL      *string        `envconfig:"REDIS_URL"`
	PlansPath     *string        `envconfig:"PLANS_PATH"`
	PlansLockPath *string        `envconfig:"PLANS_LOCK_PATH"`
	LogLevel      *string        `envconfig:"LOG_LEVEL"`
	LogJSON       *bool          `envconfig:"LOG_JSON"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = 60 * time.Second
	}

	switch settings.CacheBackend {
	case CacheBackendSQLite, CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(settings.RedisURL) == "" {
			return Settings{}, fmt.Errorf("cache backend redis requires a redis url")
		}
	default:
		return Settings{}, fmt.Errorf("cache backend must be sqlite, redis or memory")
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	cacheDir := filepath.Dir(cachePath)
	return Settings{
		OutputMode:    "json",
		Timeout:       10 * time.Second,
		Retries:       2,
		MaxStale:      5 * time.Minute,
		CacheEnabled:  true,
		CacheBackend:  CacheBackendSQLite,
		CachePath:     cachePath,
		CacheLockPath: lockPath,
		CacheTTL:      60 * time.Second,
		PlanStorePath: filepath.Join(cacheDir, "plans.db"),
		PlanLockPath:  filepath.Join(cacheDir, "plans.lock"),
		LogLevel:      "error",
		Plugin:        map[string]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "agentkit", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "agentkit")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.Backend != "" {
		settings.CacheBackend = strings.ToLower(cfg.Cache.Backend)
	}
	if cfg.Cache.MaxStale != "" {
		d, err := time.ParseDuration(cfg.Cache.MaxStale)
		if err != nil {
			return fmt.Errorf("config cache.max_stale: %w", err)
		}
		settings.MaxStale = d
	}
	if cfg.Cache.TTL != "" {
		d, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config cache.ttl: %w", err)
		}
		settings.CacheTTL = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if cfg.Cache.RedisURL != "" {
		settings.RedisURL = cfg.Cache.RedisURL
	}
	if cfg.Execution.PlansPath != "" {
		settings.PlanStorePath = cfg.Execution.PlansPath
	}
	if cfg.Execution.PlansLockPath != "" {
		settings.PlanLockPath = cfg.Execution.PlansLockPath
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = cfg.Log.Level
	}
	if cfg.Log.JSON != nil {
		settings.LogJSON = *cfg.Log.JSON
	}
	for k, v := range cfg.Settings {
		settings.Plugin[strings.ToUpper(strings.TrimSpace(k))] = v
	}

	return nil
}

func applyEnv(settings *Settings) error {
	var env envConfig
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read %s_* environment: %w", EnvPrefix, err)
	}
	if env.Output != nil && *env.Output != "" {
		settings.OutputMode = strings.ToLower(*env.Output)
	}
	if env.Timeout != nil {
		settings.Timeout = *env.Timeout
	}
	if env.Retries != nil {
		settings.Retries = *env.Retries
	}
	if env.MaxStale != nil {
		settings.MaxStale = *env.MaxStale
	}
	if env.NoStale != nil {
		settings.NoStale = *env.NoStale
	}
	if env.NoCache != nil {
		settings.CacheEnabled = !*env.NoCache
	}
	if env.CacheBackend != nil && *env.CacheBackend != "" {
		settings.CacheBackend = strings.ToLower(*env.CacheBackend)
	}
	if env.CachePath != nil && *env.CachePath != "" {
		settings.CachePath = *env.CachePath
	}
	if env.CacheLockPath != nil && *env.CacheLockPath != "" {
		settings.CacheLockPath = *env.CacheLockPath
	}
	if env.CacheTTL != nil {
		settings.CacheTTL = *env.CacheTTL
	}
	if env.RedisURL != nil && *env.RedisURL != "" {
		settings.RedisURL = *env.RedisURL
	}
	if env.PlansPath != nil && *env.PlansPath != "" {
		settings.PlanStorePath = *env.PlansPath
	}
	if env.PlansLockPath != nil && *env.PlansLockPath != "" {
		settings.PlanLockPath = *env.PlansLockPath
	}
	if env.LogLevel != nil && *env.LogLevel != "" {
		settings.LogLevel = *env.LogLevel
	}
	if env.LogJSON != nil {
		settings.LogJSON = *env.LogJSON
	}
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}
	if allowed := splitList(flags.EnableActions); len(allowed) > 0 {
		settings.EnableActions = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoStale {
		settings.NoStale = true
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.LogLevel != "" {
		settings.LogLevel = flags.LogLevel
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
