package hyperbolic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/httpx"
)

// Client calls the Hyperbolic marketplace and billing API.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

func NewClient(http *httpx.Client, baseURL, apiKey string) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var buf []byte
	if body != nil {
		var err error
		if buf, err = json.Marshal(body); err != nil {
			return clierr.Wrap(clierr.CodeInternal, "encode request", err)
		}
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if _, err := httpx.DoBodyJSON(ctx, c.http, method, c.baseURL+path, buf, headers, out); err != nil {
		if typed, ok := clierr.As(err); ok {
			if typed.Code == clierr.CodeAuth {
				return clierr.Wrap(clierr.CodeAuth, "hyperbolic rejected "+SettingAPIKey, err)
			}
			return err
		}
		return clierr.API("hyperbolic "+path, err)
	}
	return nil
}

type GPU struct {
	Model string `json:"model"`
	RAM   int    `json:"ram"`
}

type Hardware struct {
	GPUs []GPU `json:"gpus"`
	CPUs []struct {
		Model        string `json:"model"`
		VirtualCores int    `json:"virtual_cores"`
	} `json:"cpus"`
	RAM []struct {
		Capacity int `json:"capacity"`
	} `json:"ram"`
}

// GPUModel is the model of the first GPU, which all GPUs of a node share.
func (h Hardware) GPUModel() string {
	if len(h.GPUs) == 0 {
		return "unknown"
	}
	return h.GPUs[0].Model
}

// Price is quoted in cents per GPU per period.
type Price struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period"`
}

type Node struct {
	ID           string   `json:"id"`
	ClusterName  string   `json:"cluster_name"`
	Status       string   `json:"status"`
	Reserved     bool     `json:"reserved"`
	GPUsTotal    int      `json:"gpus_total"`
	GPUsReserved int      `json:"gpus_reserved"`
	Hardware     Hardware `json:"hardware"`
	Location     struct {
		Region string `json:"region"`
	} `json:"location"`
	Pricing struct {
		Price Price `json:"price"`
	} `json:"pricing"`
}

// FreeGPUs is the number of GPUs that can still be rented on the node.
func (n Node) FreeGPUs() int {
	if n.Reserved || n.Status != "node_ready" {
		return 0
	}
	if free := n.GPUsTotal - n.GPUsReserved; free > 0 {
		return free
	}
	return 0
}

// Marketplace lists every node offered on the marketplace.
func (c *Client) Marketplace(ctx context.Context) ([]Node, error) {
	var resp struct {
		Instances []Node `json:"instances"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/marketplace", map[string]any{"filters": map[string]any{}}, &resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

type Instance struct {
	ID         string  `json:"id"`
	Start      string  `json:"start"`
	End        *string `json:"end"`
	SSHCommand string  `json:"sshCommand"`
	Instance   struct {
		Status   string   `json:"status"`
		GPUCount int      `json:"gpu_count"`
		Hardware Hardware `json:"hardware"`
		Pricing  struct {
			Price Price `json:"price"`
		} `json:"pricing"`
	} `json:"instance"`
}

// Instances lists the caller's rented instances.
func (c *Client) Instances(ctx context.Context) ([]Instance, error) {
	var resp struct {
		Instances []Instance `json:"instances"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/marketplace/instances", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

type RentRequest struct {
	ClusterName string `json:"cluster_name"`
	NodeName    string `json:"node_name"`
	GPUCount    int    `json:"gpu_count"`
}

// Rent asks for GPUs on a node; the response shape is passed through untouched.
func (c *Client) Rent(ctx context.Context, req RentRequest) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodPost, "/v1/marketplace/instances/create", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Terminate(ctx context.Context, instanceID string) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodPost, "/v1/marketplace/instances/terminate", map[string]string{"id": instanceID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Balance returns the account credits in cents.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var resp struct {
		Credits *float64 `json:"credits"`
	}
	if err := c.do(ctx, http.MethodGet, "/billing/get_current_balance", nil, &resp); err != nil {
		return 0, err
	}
	if resp.Credits == nil {
		return 0, clierr.New(clierr.CodeUnavailable, "hyperbolic balance response has no credits")
	}
	return *resp.Credits, nil
}

type HistoryEntry struct {
	InstanceName string   `json:"instance_name"`
	StartedAt    string   `json:"started_at"`
	TerminatedAt string   `json:"terminated_at"`
	GPUCount     int      `json:"gpu_count"`
	Hardware     Hardware `json:"hardware"`
	Price        Price    `json:"price"`
}

func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	var resp struct {
		InstanceHistory []HistoryEntry `json:"instance_history"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/marketplace/instances/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.InstanceHistory, nil
}
