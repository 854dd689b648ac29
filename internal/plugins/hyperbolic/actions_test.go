package hyperbolic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketplaceJSON = `{"instances":[
 {"id":"korea-amd9-7","cluster_name":"us-east-1","status":"node_ready","reserved":false,"gpus_total":8,"gpus_reserved":6,
  "hardware":{"gpus":[{"model":"NVIDIA-H100-80GB-HBM3","ram":81559}]},"location":{"region":"region-1"},
  "pricing":{"price":{"amount":199,"period":"hourly"}}},
 {"id":"busy-node","cluster_name":"us-east-1","status":"node_ready","gpus_total":8,"gpus_reserved":8,
  "hardware":{"gpus":[{"model":"NVIDIA-H100-80GB-HBM3"}]},"pricing":{"price":{"amount":199}}},
 {"id":"rtx-node","cluster_name":"eu-west","status":"node_ready","gpus_total":4,"gpus_reserved":0,
  "hardware":{"gpus":[{"model":"NVIDIA-GeForce-RTX-4090"}]},"pricing":{"price":{"amount":35}}},
 {"id":"offline","cluster_name":"eu-west","status":"offline","gpus_total":4,
  "hardware":{"gpus":[{"model":"NVIDIA-A100"}]},"pricing":{"price":{"amount":120}}}
]}`

type api struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]any
	auth     []string
}

func (a *api) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.requests = append(a.requests, r.Method+" "+r.URL.Path)
		a.auth = append(a.auth, r.Header.Get("Authorization"))
		if r.Body != nil && r.Method == http.MethodPost {
			body := map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			a.bodies[r.URL.Path] = body
		}
		if r.Header.Get("Authorization") != "Bearer hb-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/marketplace":
			_, _ = w.Write([]byte(marketplaceJSON))
		case "/v1/marketplace/instances":
			_, _ = w.Write([]byte(`{"instances":[
			 {"id":"respectful-rose-pelican","start":"2024-11-20T10:00:00Z","sshCommand":"ssh ubuntu@rose.hyperbolic.xyz -p 31000",
			  "instance":{"status":"online","gpu_count":2,"hardware":{"gpus":[{"model":"NVIDIA-H100-80GB-HBM3"},{"model":"NVIDIA-H100-80GB-HBM3"}]}}},
			 {"id":"quiet-fox","start":"2024-11-21T10:00:00Z","instance":{"status":"starting","hardware":{"gpus":[{"model":"NVIDIA-GeForce-RTX-4090"}]}}}
			]}`))
		case "/v1/marketplace/instances/create":
			_, _ = w.Write([]byte(`{"status":"success","instance_name":"new-instance"}`))
		case "/v1/marketplace/instances/terminate":
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case "/billing/get_current_balance":
			_, _ = w.Write([]byte(`{"credits":1250}`))
		case "/v1/marketplace/instances/history":
			_, _ = w.Write([]byte(`{"instance_history":[
			 {"instance_name":"old-one","started_at":"2024-11-01T00:00:00Z","terminated_at":"2024-11-01T02:00:00Z","gpu_count":2,
			  "hardware":{"gpus":[{"model":"NVIDIA-H100-80GB-HBM3"}]},"price":{"amount":200}},
			 {"instance_name":"running","started_at":"2024-11-02T00:00:00Z","terminated_at":"",
			  "hardware":{"gpus":[{"model":"NVIDIA-GeForce-RTX-4090"}]},"price":{"amount":50}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}
}

func newRuntime(t *testing.T, key string) (action.Runtime, *api) {
	t.Helper()
	a := &api{bodies: map[string]map[string]any{}}
	srv := httptest.NewServer(a.handler(t))
	t.Cleanup(srv.Close)
	settings := map[string]string{SettingAPIKey: key, SettingBaseURL: srv.URL + "/"}
	return action.NewRuntime(action.RuntimeConfig{Settings: func(k string) string { return settings[k] }}), a
}

func dispatch(t *testing.T, rt action.Runtime, act *action.Action, text string, opts action.Options) ([]action.Content, error) {
	t.Helper()
	return action.Dispatch(context.Background(), rt, act, action.NewMessage("tester", text), nil, opts, nil)
}

func TestAvailableGPUsFiltersBusyAndModel(t *testing.T) {
	rt, a := newRuntime(t, "hb-test")
	contents, err := dispatch(t, rt, availableGPUsAction(), "Which H100s are available?", nil)
	require.NoError(t, err)
	nodes := contents[0].Data.([]Node)
	require.Len(t, nodes, 1)
	assert.Equal(t, "korea-amd9-7", nodes[0].ID)
	assert.Equal(t, 2, nodes[0].FreeGPUs())
	assert.Contains(t, contents[0].Text, "Available H100 GPUs:")
	assert.Contains(t, contents[0].Text, "$1.99")
	assert.Equal(t, []string{"POST /v1/marketplace"}, a.requests)
	assert.Equal(t, map[string]any{"filters": map[string]any{}}, a.bodies["/v1/marketplace"])

	contents, err = dispatch(t, rt, availableGPUsAction(), "list gpus", action.Options{"model": "RTX 4090"})
	require.NoError(t, err)
	nodes = contents[0].Data.([]Node)
	require.Len(t, nodes, 1)
	assert.Equal(t, "rtx-node", nodes[0].ID)

	contents, err = dispatch(t, rt, availableGPUsAction(), "what can I rent?", nil)
	require.NoError(t, err)
	assert.Len(t, contents[0].Data.([]Node), 2)
}

func TestGPUStatus(t *testing.T) {
	rt, _ := newRuntime(t, "hb-test")
	contents, err := dispatch(t, rt, gpuStatusAction(), "status of my gpus", nil)
	require.NoError(t, err)
	assert.Len(t, contents[0].Data.([]Instance), 2)
	assert.Contains(t, contents[0].Text, "ssh ubuntu@rose.hyperbolic.xyz -p 31000")

	contents, err = dispatch(t, rt, gpuStatusAction(), "status of instance quiet-fox", nil)
	require.NoError(t, err)
	instances := contents[0].Data.([]Instance)
	require.Len(t, instances, 1)
	assert.Equal(t, "starting", instances[0].Instance.Status)

	_, err = dispatch(t, rt, gpuStatusAction(), "status of instance nope", nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindValidation, clierr.KindOf(err))
}

func TestRentComputeChecksCapacity(t *testing.T) {
	rt, a := newRuntime(t, "hb-test")
	contents, err := dispatch(t, rt, rentComputeAction(), "Rent 2 GPUs on cluster us-east-1 node korea-amd9-7", nil)
	require.NoError(t, err)
	assert.Contains(t, contents[0].Text, "Rented 2 NVIDIA-H100-80GB-HBM3 GPU(s) on korea-amd9-7 (us-east-1) at $1.99")
	assert.Equal(t, map[string]any{"cluster_name": "us-east-1", "node_name": "korea-amd9-7", "gpu_count": float64(2)}, a.bodies["/v1/marketplace/instances/create"])

	_, err = dispatch(t, rt, rentComputeAction(), "Rent 3 GPUs on cluster us-east-1 node korea-amd9-7", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 2 free GPUs, 3 requested")

	_, err = dispatch(t, rt, rentComputeAction(), "rent on cluster eu-west node missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node missing not found in cluster eu-west")
}

func TestRentComputeDefaultsToOneGPU(t *testing.T) {
	rt, a := newRuntime(t, "hb-test")
	_, err := dispatch(t, rt, rentComputeAction(), "", action.Options{"cluster": "eu-west", "node": "rtx-node"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), a.bodies["/v1/marketplace/instances/create"]["gpu_count"])
}

func TestRentComputeMissingParams(t *testing.T) {
	rt, a := newRuntime(t, "hb-test")
	_, err := dispatch(t, rt, rentComputeAction(), "rent me something", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing cluster; missing node")
	assert.Empty(t, a.requests)
}

func TestTerminateCompute(t *testing.T) {
	rt, a := newRuntime(t, "hb-test")
	contents, err := dispatch(t, rt, terminateComputeAction(), "terminate instance respectful-rose-pelican", nil)
	require.NoError(t, err)
	assert.Equal(t, "Terminated instance respectful-rose-pelican", contents[0].Text)
	assert.Equal(t, "respectful-rose-pelican", a.bodies["/v1/marketplace/instances/terminate"]["id"])
}

func TestCurrentBalance(t *testing.T) {
	rt, _ := newRuntime(t, "hb-test")
	contents, err := dispatch(t, rt, currentBalanceAction(), "how many credits do I have?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Your Hyperbolic balance is $12.50", contents[0].Text)
}

func TestSpendHistory(t *testing.T) {
	prev := now
	now = func() time.Time { return time.Date(2024, 11, 2, 3, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })

	rt, _ := newRuntime(t, "hb-test")
	contents, err := dispatch(t, rt, spendHistoryAction(), "how much have I spent?", nil)
	require.NoError(t, err)
	report := contents[0].Data.(SpendReport)
	require.Len(t, report.Lines, 2)
	// 2h x $2.00 x 2 GPUs
	assert.InDelta(t, 8.0, report.Lines[0].CostUSD, 1e-9)
	// running for 3h x $0.50 x 1 GPU
	assert.InDelta(t, 1.5, report.Lines[1].CostUSD, 1e-9)
	assert.InDelta(t, 9.5, report.TotalUSD, 1e-9)
	assert.Contains(t, contents[0].Text, "Total spend: $9.50")
}

func TestMissingAndRejectedAPIKey(t *testing.T) {
	rt, a := newRuntime(t, "")
	contents, err := dispatch(t, rt, currentBalanceAction(), "balance", nil)
	require.Error(t, err)
	assert.Equal(t, string(clierr.KindConfiguration), contents[0].Error.Kind)
	assert.Empty(t, a.requests)

	rt, _ = newRuntime(t, "wrong")
	_, err = dispatch(t, rt, currentBalanceAction(), "balance", nil)
	require.Error(t, err)
	assert.Equal(t, clierr.KindConfiguration, clierr.KindOf(err))
	assert.Contains(t, err.Error(), SettingAPIKey)
}

func TestPluginActionsAreUnique(t *testing.T) {
	reg := action.NewRegistry()
	require.NoError(t, reg.Register(Plugin()))
	act, plugin, ok := reg.Lookup("rent_gpu")
	require.True(t, ok)
	assert.Equal(t, "RENT_COMPUTE", act.Name)
	assert.Equal(t, "hyperbolic", plugin)
}
