// Package agent assembles the plugin registry and the runtime every action runs against.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ggonzalez94/agentkit/internal/action"
	"github.com/ggonzalez94/agentkit/internal/cache"
	"github.com/ggonzalez94/agentkit/internal/config"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution"
	"github.com/ggonzalez94/agentkit/internal/httpx"
	"github.com/ggonzalez94/agentkit/internal/plugins/ankr"
	"github.com/ggonzalez94/agentkit/internal/plugins/cosmos"
	"github.com/ggonzalez94/agentkit/internal/plugins/evm"
	"github.com/ggonzalez94/agentkit/internal/plugins/form"
	"github.com/ggonzalez94/agentkit/internal/plugins/hyperbolic"
	"github.com/ggonzalez94/agentkit/internal/policy"
	"github.com/hashicorp/go-hclog"
)

const redisKeyPrefix = "agentkit:"

// DefaultPlugins lists every built-in plugin in registration order.
func DefaultPlugins() []action.Plugin {
	return []action.Plugin{
		ankr.Plugin(),
		evm.Plugin(),
		form.Plugin(),
		cosmos.Plugin(),
		hyperbolic.Plugin(),
	}
}

// NewRegistry registers plugins, defaulting to DefaultPlugins.
func NewRegistry(plugins ...action.Plugin) (*action.Registry, error) {
	if len(plugins) == 0 {
		plugins = DefaultPlugins()
	}
	reg := action.NewRegistry()
	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "register plugin "+p.Name, err)
		}
	}
	return reg, nil
}

type Options struct {
	Settings config.Settings
	Logger   hclog.Logger
	// Plugins overrides DefaultPlugins.
	Plugins []action.Plugin
	// Dialer overrides the EVM client dialer.
	Dialer execution.Dialer
	// Cache overrides the runtime cache built from Settings.
	Cache action.Cache
}

// Agent owns the registry, the runtime and the stores behind it.
type Agent struct {
	registry  *action.Registry
	runtime   *action.BasicRuntime
	settings  config.Settings
	log       hclog.Logger
	planStore *execution.Store
	tiered    *cache.Tiered
	closers   []func() error
}

func New(ctx context.Context, opts Options) (*Agent, error) {
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	reg, err := NewRegistry(opts.Plugins...)
	if err != nil {
		return nil, err
	}
	a := &Agent{registry: reg, settings: opts.Settings, log: log}

	runtimeCache := opts.Cache
	if runtimeCache == nil {
		runtimeCache, err = a.openCache(ctx)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if opts.Settings.PlanStorePath != "" {
		store, err := execution.OpenStore(opts.Settings.PlanStorePath, opts.Settings.PlanLockPath)
		if err != nil {
			_ = a.Close()
			return nil, clierr.Wrap(clierr.CodeInternal, "open plan store", err)
		}
		a.planStore = store
		a.closers = append(a.closers, store.Close)
	}
	timeout := opts.Settings.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a.runtime = action.NewRuntime(action.RuntimeConfig{
		Settings:  opts.Settings.Setting,
		Cache:     runtimeCache,
		Logger:    log,
		HTTP:      httpx.New(timeout, opts.Settings.Retries),
		PlanStore: a.planStore,
		Dialer:    opts.Dialer,
	})
	return a, nil
}

// openCache builds the runtime cache: memory in front of the configured backend.
func (a *Agent) openCache(ctx context.Context) (action.Cache, error) {
	s := a.settings
	if !s.CacheEnabled {
		return action.NopCache{}, nil
	}
	var backend cache.Backend
	switch s.CacheBackend {
	case config.CacheBackendRedis:
		store, err := cache.OpenRedis(ctx, s.RedisURL, redisKeyPrefix)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeConfig, "open redis cache", err)
		}
		a.closers = append(a.closers, store.Close)
		backend = store
	case config.CacheBackendMemory:
	default:
		store, err := cache.Open(s.CachePath, s.CacheLockPath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "open cache", err)
		}
		a.closers = append(a.closers, store.Close)
		backend = store
	}
	tiered, err := cache.NewTiered(backend, s.CacheTTL)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "create cache", err)
	}
	a.tiered = tiered
	a.closers = append(a.closers, func() error { tiered.Close(); return nil })
	a.log.Debug("runtime cache ready", "backend", s.CacheBackend)
	return tiered, nil
}

func (a *Agent) Registry() *action.Registry { return a.registry }

func (a *Agent) Runtime() action.Runtime { return a.runtime }

func (a *Agent) PlanStore() *execution.Store { return a.planStore }

// Close releases stores in reverse order of opening.
func (a *Agent) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Request is one action invocation.
type Request struct {
	Action  string         `json:"action"`
	UserID  string         `json:"user_id,omitempty"`
	Text    string         `json:"text"`
	Options action.Options `json:"options,omitempty"`
}

// Result is what an invocation produced. Contents includes the failure content when the action failed.
type Result struct {
	Action    string           `json:"action"`
	Plugin    string           `json:"plugin"`
	MessageID string           `json:"message_id"`
	ReadOnly  bool             `json:"read_only"`
	Contents  []action.Content `json:"contents"`
}

// Resolve finds an action by name or simile and applies the --enable-actions policy.
func (a *Agent) Resolve(name string) (*action.Action, string, error) {
	return Resolve(a.registry, a.settings.EnableActions, name)
}

func Resolve(reg *action.Registry, allowlist []string, name string) (*action.Action, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", clierr.New(clierr.CodeUsage, "action name is required")
	}
	act, plugin, ok := reg.Lookup(name)
	if !ok {
		return nil, "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown action %q", name))
	}
	if err := policy.CheckActionAllowed(allowlist, act.Name); err != nil {
		return nil, "", err
	}
	return act, plugin, nil
}

// Invoke runs one action against the agent runtime.
func (a *Agent) Invoke(ctx context.Context, req Request) (Result, error) {
	act, plugin, err := a.Resolve(req.Action)
	if err != nil {
		return Result{}, err
	}
	msg := action.NewMessage(req.UserID, req.Text)
	res := Result{Action: act.Name, Plugin: plugin, MessageID: msg.ID, ReadOnly: act.ReadOnly}
	contents, err := action.Dispatch(ctx, a.runtime, act, msg, nil, req.Options, nil)
	res.Contents = contents
	return res, err
}

// PlainText joins the reply texts the way a chat host would show them.
func (r Result) PlainText() string {
	parts := make([]string, 0, len(r.Contents))
	for _, c := range r.Contents {
		if strings.TrimSpace(c.Text) != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
