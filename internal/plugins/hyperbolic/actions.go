// Package hyperbolic rents and monitors GPU compute on the Hyperbolic marketplace.
package hyperbolic

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ggonzalez94/agentkit/internal/action"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/registry"
)

const (
	SettingAPIKey  = "HYPERBOLIC_API_KEY"
	SettingBaseURL = "HYPERBOLIC_BASE_URL"

	marketTTL = time.Minute
)

var (
	modelPattern    = regexp.MustCompile(`(?i)\b([ahlbv]\d{2,3}|rtx\s?\d{4}(?:\s?ti)?)`)
	clusterPattern  = regexp.MustCompile(`(?i)\bcluster\s+([A-Za-z0-9][A-Za-z0-9_\-\.]*)`)
	nodePattern     = regexp.MustCompile(`(?i)\bnode\s+([A-Za-z0-9][A-Za-z0-9_\-\.]*)`)
	gpuCountPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(?:x\s*)?(?:[a-z0-9]+\s+)?gpus?\b`)
	instancePattern = regexp.MustCompile(`(?i)\binstance\s+([A-Za-z0-9][A-Za-z0-9_\-\.]*)`)

	now = time.Now
)

func Plugin() action.Plugin {
	return action.Plugin{
		Name:            "hyperbolic",
		Description:     "GPU marketplace: browse, rent, monitor and terminate compute; credits and spend",
		SettingPrefixes: []string{"HYPERBOLIC_"},
		Actions: []*action.Action{
			availableGPUsAction(),
			gpuStatusAction(),
			rentComputeAction(),
			terminateComputeAction(),
			currentBalanceAction(),
			spendHistoryAction(),
		},
	}
}

func validateAPIKey(_ context.Context, rt action.Runtime, _ action.Message) error {
	if strings.TrimSpace(rt.Setting(SettingAPIKey)) == "" {
		return clierr.Configuration(SettingAPIKey + " is not set")
	}
	return nil
}

func clientFor(rt action.Runtime) *Client {
	base := rt.Setting(SettingBaseURL)
	if base == "" {
		base = registry.HyperbolicBaseURL
	}
	return NewClient(rt.HTTPClient(), base, strings.TrimSpace(rt.Setting(SettingAPIKey)))
}

type builder func(*action.Builder) *action.Builder

func newAction(name, description string, similes []string, example [2]string, params []action.Param, opts ...builder) *action.Builder {
	b := action.New(name).
		Similes(similes...).
		Description(description).
		Example(example[0], example[1]).
		Validate(validateAPIKey)
	for _, p := range params {
		b.Param(p)
	}
	for _, o := range opts {
		b = o(b)
	}
	return b
}

func readOnly(ttl time.Duration) builder {
	return func(b *action.Builder) *action.Builder { return b.ReadOnly(ttl) }
}

type marketQuery struct {
	Model string `mapstructure:"model"`
}

func availableGPUsAction() *action.Action {
	params := []action.Param{{Name: "model", Description: "Only list nodes with this GPU model, e.g. H100", Pattern: modelPattern}}
	return newAction("GET_AVAILABLE_GPUS", "List marketplace nodes with free GPUs, their model and hourly price",
		[]string{"LIST_GPUS", "SHOW_GPUS", "AVAILABLE_COMPUTE", "GPU_MARKETPLACE"},
		[2]string{"Which H100s are available?", "Available GPUs:\nCLUSTER | NODE | GPU | FREE | PRICE/GPU/HR ..."},
		params, readOnly(marketTTL)).
		Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
			var q marketQuery
			if err := action.Bind(params, msg, opts, &q); err != nil {
				return err
			}
			nodes, err := clientFor(rt).Marketplace(ctx)
			if err != nil {
				return err
			}
			free := availableNodes(nodes, q.Model)
			return cb(action.Content{Text: formatAvailable(q.Model, free), Success: true, Data: free})
		}).Build()
}

// availableNodes keeps nodes with free GPUs, optionally matching model ignoring case and separators.
func availableNodes(nodes []Node, model string) []Node {
	want := normalizeModel(model)
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.FreeGPUs() == 0 {
			continue
		}
		if want != "" && !strings.Contains(normalizeModel(n.Hardware.GPUModel()), want) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func normalizeModel(s string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.TrimSpace(s)))
}

type statusQuery struct {
	Instance string `mapstructure:"instance"`
}

func gpuStatusAction() *action.Action {
	params := []action.Param{{Name: "instance", Description: "Only show this instance", Pattern: instancePattern}}
	return newAction("GET_GPU_STATUS", "Show the status, hardware and SSH command of rented instances",
		[]string{"CHECK_GPU_STATUS", "GPU_INSTANCE_STATUS", "MY_GPUS", "LIST_INSTANCES"},
		[2]string{"What's the status of my GPUs?", "Your instances:\nID | STATUS | GPU | SSH ..."},
		params, readOnly(10*time.Second)).
		Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
			var q statusQuery
			if err := action.Bind(params, msg, opts, &q); err != nil {
				return err
			}
			instances, err := clientFor(rt).Instances(ctx)
			if err != nil {
				return err
			}
			if q.Instance != "" {
				filtered := instances[:0]
				for _, in := range instances {
					if strings.EqualFold(in.ID, q.Instance) {
						filtered = append(filtered, in)
					}
				}
				if len(filtered) == 0 {
					return clierr.Validation(fmt.Sprintf("no instance %q on this account", q.Instance))
				}
				instances = filtered
			}
			return cb(action.Content{Text: formatInstances(instances), Success: true, Data: instances})
		}).Build()
}

type rentParams struct {
	Cluster  string `mapstructure:"cluster"`
	Node     string `mapstructure:"node"`
	GPUCount int    `mapstructure:"gpu_count"`
}

func rentComputeAction() *action.Action {
	params := []action.Param{
		{Name: "cluster", Description: "Cluster name from GET_AVAILABLE_GPUS", Required: true, Pattern: clusterPattern},
		{Name: "node", Description: "Node id from GET_AVAILABLE_GPUS", Required: true, Pattern: nodePattern},
		{Name: "gpu_count", Description: "Number of GPUs to rent", Pattern: gpuCountPattern, Default: 1},
	}
	return newAction("RENT_COMPUTE", "Rent GPUs on a marketplace node",
		[]string{"RENT_GPU", "RENT_GPUS", "RESERVE_COMPUTE", "START_GPU_INSTANCE"},
		[2]string{"Rent 2 GPUs on cluster us-east-1 node korea-amd9-7", "Rented 2 GPUs on korea-amd9-7 (us-east-1)"},
		params).
		Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
			var p rentParams
			if err := action.Bind(params, msg, opts, &p); err != nil {
				return err
			}
			if p.GPUCount <= 0 {
				return clierr.Validation("gpu_count must be a positive integer")
			}
			client := clientFor(rt)
			nodes, err := client.Marketplace(ctx)
			if err != nil {
				return err
			}
			node, err := findNode(nodes, p.Cluster, p.Node)
			if err != nil {
				return err
			}
			if free := node.FreeGPUs(); free < p.GPUCount {
				return clierr.Validation(fmt.Sprintf("node %s has %d free GPUs, %d requested", node.ID, free, p.GPUCount))
			}
			res, err := client.Rent(ctx, RentRequest{ClusterName: node.ClusterName, NodeName: node.ID, GPUCount: p.GPUCount})
			if err != nil {
				return err
			}
			rt.Logger().Info("rented compute", "cluster", node.ClusterName, "node", node.ID, "gpus", p.GPUCount)
			text := fmt.Sprintf("Rented %d %s GPU(s) on %s (%s) at %s per GPU-hour.\nUse GET_GPU_STATUS to follow the instance until it is online.",
				p.GPUCount, node.Hardware.GPUModel(), node.ID, node.ClusterName, formatCents(node.Pricing.Price.Amount))
			return cb(action.Content{Text: text, Success: true, Data: res})
		}).Build()
}

func findNode(nodes []Node, cluster, id string) (Node, error) {
	for _, n := range nodes {
		if strings.EqualFold(n.ID, id) && strings.EqualFold(n.ClusterName, cluster) {
			return n, nil
		}
	}
	return Node{}, clierr.Validation(fmt.Sprintf("node %s not found in cluster %s", id, cluster))
}

type terminateParams struct {
	Instance string `mapstructure:"instance"`
}

func terminateComputeAction() *action.Action {
	params := []action.Param{{Name: "instance", Description: "Instance id from GET_GPU_STATUS", Required: true, Pattern: instancePattern}}
	return newAction("TERMINATE_COMPUTE", "Terminate a rented GPU instance",
		[]string{"STOP_GPU", "TERMINATE_GPU", "RELEASE_COMPUTE", "SHUTDOWN_INSTANCE"},
		[2]string{"Terminate instance respectful-rose-pelican", "Terminated instance respectful-rose-pelican"},
		params).
		Handler(func(ctx context.Context, rt action.Runtime, msg action.Message, _ action.State, opts action.Options, cb action.Callback) error {
			var p terminateParams
			if err := action.Bind(params, msg, opts, &p); err != nil {
				return err
			}
			res, err := clientFor(rt).Terminate(ctx, p.Instance)
			if err != nil {
				return err
			}
			rt.Logger().Info("terminated compute", "instance", p.Instance)
			return cb(action.Content{Text: "Terminated instance " + p.Instance, Success: true, Data: res})
		}).Build()
}

// BalanceResult reports credits in dollars.
type BalanceResult struct {
	Credits float64 `json:"credits_cents"`
	USD     string  `json:"usd"`
}

func currentBalanceAction() *action.Action {
	return newAction("GET_CURRENT_BALANCE", "Show the remaining Hyperbolic credits",
		[]string{"CHECK_CREDITS", "HYPERBOLIC_BALANCE", "ACCOUNT_BALANCE"},
		[2]string{"How many credits do I have left?", "Your Hyperbolic balance is $12.50"},
		nil, readOnly(30*time.Second)).
		Handler(func(ctx context.Context, rt action.Runtime, _ action.Message, _ action.State, _ action.Options, cb action.Callback) error {
			cents, err := clientFor(rt).Balance(ctx)
			if err != nil {
				return err
			}
			res := BalanceResult{Credits: cents, USD: formatCents(cents)}
			return cb(action.Content{Text: "Your Hyperbolic balance is " + res.USD, Success: true, Data: res})
		}).Build()
}

// SpendLine is one finished or running rental with its cost.
type SpendLine struct {
	Instance string  `json:"instance"`
	GPU      string  `json:"gpu"`
	GPUCount int     `json:"gpu_count"`
	Hours    float64 `json:"hours"`
	CostUSD  float64 `json:"cost_usd"`
}

type SpendReport struct {
	Lines    []SpendLine `json:"lines"`
	TotalUSD float64     `json:"total_usd"`
}

func spendHistoryAction() *action.Action {
	return newAction("GET_SPEND_HISTORY", "Summarize past and running rentals and what they cost",
		[]string{"SPENDING_HISTORY", "GPU_SPEND", "RENTAL_HISTORY", "BILLING_HISTORY"},
		[2]string{"How much have I spent on GPUs?", "Total spend: $42.10"},
		nil, readOnly(marketTTL)).
		Handler(func(ctx context.Context, rt action.Runtime, _ action.Message, _ action.State, _ action.Options, cb action.Callback) error {
			history, err := clientFor(rt).History(ctx)
			if err != nil {
				return err
			}
			report := Spend(history, now())
			return cb(action.Content{Text: formatSpend(report), Success: true, Data: report})
		}).Build()
}

// Spend prices every entry as hours x cents-per-GPU-hour x GPUs. Running rentals are priced up to at.
func Spend(history []HistoryEntry, at time.Time) SpendReport {
	report := SpendReport{Lines: make([]SpendLine, 0, len(history))}
	for _, h := range history {
		gpus := h.GPUCount
		if gpus <= 0 {
			gpus = len(h.Hardware.GPUs)
		}
		if gpus <= 0 {
			gpus = 1
		}
		var hours float64
		if start, err := time.Parse(time.RFC3339, h.StartedAt); err == nil {
			end := at
			if h.TerminatedAt != "" {
				if t, err := time.Parse(time.RFC3339, h.TerminatedAt); err == nil {
					end = t
				}
			}
			if d := end.Sub(start); d > 0 {
				hours = d.Hours()
			}
		}
		cost := hours * h.Price.Amount / 100 * float64(gpus)
		report.Lines = append(report.Lines, SpendLine{
			Instance: h.InstanceName,
			GPU:      h.Hardware.GPUModel(),
			GPUCount: gpus,
			Hours:    hours,
			CostUSD:  cost,
		})
		report.TotalUSD += cost
	}
	return report
}
