package app

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ggonzalez94/agentkit/internal/cache"
	"github.com/ggonzalez94/agentkit/internal/config"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachePolicyEnvelope struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data"`
	Warnings []string       `json:"warnings"`
	Meta     struct {
		Cache     model.CacheStatus      `json:"cache"`
		Providers []model.ProviderStatus `json:"providers"`
	} `json:"meta"`
}

func pluginDown(status string, code clierr.Code, msg string) fetchFn {
	return func(context.Context) (any, []model.ProviderStatus, []string, error) {
		return nil, []model.ProviderStatus{{Name: "test-plugin", Status: status, LatencyMS: 1}}, nil, clierr.New(code, msg)
	}
}

func TestRunCachedCommandFetchesProviderAfterTTLExpiry(t *testing.T) {
	state, stdout := newCachePolicyTestState(t, 5*time.Minute)
	key := "runner-cache-policy-fetch-after-ttl"
	require.NoError(t, state.cache.Set(key, []byte(`{"source":"cache"}`), time.Second))
	time.Sleep(1200 * time.Millisecond)

	fetchCalls := 0
	err := state.runCachedCommand("test command", key, time.Second, nil, func(context.Context) (any, []model.ProviderStatus, []string, error) {
		fetchCalls++
		return map[string]any{"source": "provider"}, []model.ProviderStatus{{Name: "test-plugin", Status: "ok", LatencyMS: 1}}, nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetchCalls)

	env := decodeCachePolicyEnvelope(t, stdout)
	assert.True(t, env.Success)
	assert.Equal(t, "provider", env.Data["source"])
	assert.Equal(t, "write", env.Meta.Cache.Status)
	assert.False(t, env.Meta.Cache.Stale)
	require.Len(t, env.Meta.Providers, 1)
	assert.Equal(t, "test-plugin", env.Meta.Providers[0].Name)
}

func TestRunCachedCommandFallsBackToStaleOnProviderFailure(t *testing.T) {
	state, stdout := newCachePolicyTestState(t, 5*time.Second)
	key := "runner-cache-policy-fallback-stale"
	require.NoError(t, state.cache.Set(key, []byte(`{"source":"cache"}`), time.Second))
	time.Sleep(1200 * time.Millisecond)

	err := state.runCachedCommand("test command", key, time.Second, nil, pluginDown("unavailable", clierr.CodeUnavailable, "provider unavailable"))
	require.NoError(t, err)

	env := decodeCachePolicyEnvelope(t, stdout)
	assert.Equal(t, "cache", env.Data["source"])
	assert.Equal(t, "hit", env.Meta.Cache.Status)
	assert.True(t, env.Meta.Cache.Stale)
	require.Len(t, env.Meta.Providers, 1)
	assert.Equal(t, "unavailable", env.Meta.Providers[0].Status)
	assert.Contains(t, env.Warnings, "plugin fetch failed; serving stale data within max-stale budget")
}

func TestRunCachedCommandFallsBackToStaleOnTimeout(t *testing.T) {
	state, stdout := newCachePolicyTestState(t, 5*time.Second)
	key := "runner-cache-policy-fallback-timeout"
	require.NoError(t, state.cache.Set(key, []byte(`{"source":"cache"}`), time.Second))
	time.Sleep(1200 * time.Millisecond)

	require.NoError(t, state.runCachedCommand("test command", key, time.Second, nil, pluginDown("timeout", clierr.CodeTimeout, "rpc timed out")))
	assert.Equal(t, "cache", decodeCachePolicyEnvelope(t, stdout).Data["source"])
}

func TestRunCachedCommandRejectsStaleWhenBeyondMaxStale(t *testing.T) {
	state, _ := newCachePolicyTestState(t, 10*time.Millisecond)
	key := "runner-cache-policy-too-stale"
	require.NoError(t, state.cache.Set(key, []byte(`{"source":"cache"}`), time.Second))
	time.Sleep(1300 * time.Millisecond)

	err := state.runCachedCommand("test command", key, time.Second, nil, pluginDown("unavailable", clierr.CodeUnavailable, "provider unavailable"))
	require.Error(t, err)
	assert.Equal(t, int(clierr.CodeStale), clierr.ExitCode(err))
	assert.Contains(t, err.Error(), "cached data exceeded stale budget")
}

func TestRunCachedCommandRejectsStaleIfFetchDelayPushesBeyondMaxStale(t *testing.T) {
	state, _ := newCachePolicyTestState(t, 2*time.Second)
	key := "runner-cache-policy-crosses-budget-during-fetch"
	require.NoError(t, state.cache.Set(key, []byte(`{"source":"cache"}`), time.Second))
	time.Sleep(1200 * time.Millisecond)

	slow := pluginDown("unavailable", clierr.CodeUnavailable, "provider unavailable")
	err := state.runCachedCommand("test command", key, time.Second, nil, func(ctx context.Context) (any, []model.ProviderStatus, []string, error) {
		time.Sleep(2 * time.Second)
		return slow(ctx)
	})
	require.Error(t, err)
	assert.Equal(t, int(clierr.CodeStale), clierr.ExitCode(err))
	assert.Contains(t, err.Error(), "cached data exceeded stale budget")
}

func TestRunCachedCommandDoesNotFallbackStaleOnAuthFailure(t *testing.T) {
	state, _ := newCachePolicyTestState(t, 5*time.Second)
	key := "runner-cache-policy-no-fallback-auth"
	require.NoError(t, state.cache.Set(key, []byte(`{"source":"cache"}`), time.Second))
	time.Sleep(1200 * time.Millisecond)

	err := state.runCachedCommand("test command", key, time.Second, nil, pluginDown("auth_error", clierr.CodeAuth, "missing api key"))
	require.Error(t, err)
	assert.Equal(t, int(clierr.CodeAuth), clierr.ExitCode(err))
}

func TestRunCachedCommandErrorPreservesDiagnostics(t *testing.T) {
	state, _ := newCachePolicyTestState(t, 5*time.Second)
	err := state.runCachedCommand("run", "runner-cache-policy-error-diagnostics", time.Second, nil, func(context.Context) (any, []model.ProviderStatus, []string, error) {
		return nil,
			[]model.ProviderStatus{{Name: "hyperbolic", Status: "error", LatencyMS: 34}},
			[]string{"marketplace listing truncated"},
			clierr.Validation("node n1 has 0 free GPUs, 1 requested")
	})
	require.Error(t, err)

	stderrBuf, ok := state.runner.stderr.(*bytes.Buffer)
	require.True(t, ok)
	state.renderError("run", err, state.lastWarnings, state.lastProviders)

	var env struct {
		Success  bool            `json:"success"`
		Warnings []string        `json:"warnings"`
		Error    model.ErrorBody `json:"error"`
		Meta     struct {
			Providers []model.ProviderStatus `json:"providers"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(stderrBuf.Bytes(), &env), stderrBuf.String())
	assert.False(t, env.Success)
	assert.Equal(t, "validation_error", env.Error.Type)
	assert.Equal(t, "validation_error", env.Error.Kind)
	assert.Equal(t, int(clierr.CodeValidation), env.Error.Code)
	require.Len(t, env.Meta.Providers, 1)
	assert.Equal(t, "hyperbolic", env.Meta.Providers[0].Name)
	assert.Contains(t, env.Warnings, "marketplace listing truncated")
}

func TestRunCachedCommandServesFreshHitWithoutFetch(t *testing.T) {
	state, stdout := newCachePolicyTestState(t, 5*time.Second)
	key := "runner-cache-policy-fresh-hit"
	require.NoError(t, state.cache.Set(key, []byte(`{"source":"cache"}`), time.Minute))
	err := state.runCachedCommand("test command", key, time.Minute, nil, func(context.Context) (any, []model.ProviderStatus, []string, error) {
		t.Fatal("fresh hit must not fetch")
		return nil, nil, nil, nil
	})
	require.NoError(t, err)
	env := decodeCachePolicyEnvelope(t, stdout)
	assert.Equal(t, "cache", env.Data["source"])
	assert.Equal(t, "hit", env.Meta.Cache.Status)
	assert.False(t, env.Meta.Cache.Stale)
}

func newCachePolicyTestState(t *testing.T, maxStale time.Duration) (*runtimeState, *bytes.Buffer) {
	t.Helper()
	tmp := t.TempDir()
	store, err := cache.Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	stdout := &bytes.Buffer{}
	state := &runtimeState{
		runner: &Runner{
			stdout: stdout,
			stderr: &bytes.Buffer{},
			now:    time.Now,
		},
		settings: config.Settings{
			OutputMode:   "json",
			Timeout:      2 * time.Second,
			CacheEnabled: true,
			MaxStale:     maxStale,
		},
		log:   hclog.NewNullLogger(),
		cache: store,
	}
	return state, stdout
}

func decodeCachePolicyEnvelope(t *testing.T, buf *bytes.Buffer) cachePolicyEnvelope {
	t.Helper()
	var env cachePolicyEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env), buf.String())
	return env
}
