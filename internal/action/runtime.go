package action

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/ggonzalez94/agentkit/internal/execution"
	"github.com/ggonzalez94/agentkit/internal/httpx"
	"github.com/hashicorp/go-hclog"
)

// Cache is the key/value store actions use for short-lived lookups.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Runtime is what the host hands to every action.
type Runtime interface {
	Setting(key string) string
	Cache() Cache
	Logger() hclog.Logger
	HTTPClient() *httpx.Client
	PlanStore() *execution.Store
	ChainDialer() execution.Dialer
}

type RuntimeConfig struct {
	// Settings resolves a setting by key. Defaults to the process environment.
	Settings  func(key string) string
	Cache     Cache
	Logger    hclog.Logger
	HTTP      *httpx.Client
	PlanStore *execution.Store
	Dialer    execution.Dialer
}

type BasicRuntime struct {
	cfg RuntimeConfig
}

func NewRuntime(cfg RuntimeConfig) *BasicRuntime {
	if cfg.Settings == nil {
		cfg.Settings = os.Getenv
	}
	if cfg.Cache == nil {
		cfg.Cache = NopCache{}
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.HTTP == nil {
		cfg.HTTP = httpx.New(10*time.Second, 2)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = execution.DialEthClient
	}
	return &BasicRuntime{cfg: cfg}
}

func (r *BasicRuntime) Setting(key string) string {
	return strings.TrimSpace(r.cfg.Settings(key))
}

func (r *BasicRuntime) Cache() Cache                  { return r.cfg.Cache }
func (r *BasicRuntime) Logger() hclog.Logger          { return r.cfg.Logger }
func (r *BasicRuntime) HTTPClient() *httpx.Client     { return r.cfg.HTTP }
func (r *BasicRuntime) PlanStore() *execution.Store   { return r.cfg.PlanStore }
func (r *BasicRuntime) ChainDialer() execution.Dialer { return r.cfg.Dialer }

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (NopCache) Set(context.Context, string, any, time.Duration) error { return nil }

// MapSettings adapts a static map into a settings lookup, falling back to the environment.
func MapSettings(values map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := values[key]; ok {
			return v
		}
		return os.Getenv(key)
	}
}
