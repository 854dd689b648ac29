package hyperbolic

import (
	"fmt"
	"strconv"

	"github.com/ggonzalez94/agentkit/internal/out"
)

func formatCents(cents float64) string {
	return fmt.Sprintf("$%.2f", cents/100)
}

func formatAvailable(model string, nodes []Node) string {
	header := "Available GPUs:"
	if model != "" {
		header = fmt.Sprintf("Available %s GPUs:", model)
	}
	var rows [][]string
	if len(nodes) > 0 {
		rows = append(rows, []string{"CLUSTER", "NODE", "GPU", "FREE", "PRICE/GPU/HR", "REGION"})
	}
	for _, n := range nodes {
		rows = append(rows, []string{
			n.ClusterName,
			n.ID,
			n.Hardware.GPUModel(),
			fmt.Sprintf("%d/%d", n.FreeGPUs(), n.GPUsTotal),
			formatCents(n.Pricing.Price.Amount),
			n.Location.Region,
		})
	}
	return out.Table(header, rows)
}

func formatInstances(instances []Instance) string {
	var rows [][]string
	if len(instances) > 0 {
		rows = append(rows, []string{"ID", "STATUS", "GPU", "COUNT", "STARTED", "SSH"})
	}
	for _, in := range instances {
		ssh := in.SSHCommand
		if ssh == "" {
			ssh = "-"
		}
		count := in.Instance.GPUCount
		if count == 0 {
			count = len(in.Instance.Hardware.GPUs)
		}
		rows = append(rows, []string{in.ID, in.Instance.Status, in.Instance.Hardware.GPUModel(), strconv.Itoa(count), in.Start, ssh})
	}
	return out.Table("Your instances:", rows)
}

func formatSpend(r SpendReport) string {
	var rows [][]string
	if len(r.Lines) > 0 {
		rows = append(rows, []string{"INSTANCE", "GPU", "COUNT", "HOURS", "COST"})
	}
	for _, l := range r.Lines {
		rows = append(rows, []string{l.Instance, l.GPU, strconv.Itoa(l.GPUCount), strconv.FormatFloat(l.Hours, 'f', 2, 64), fmt.Sprintf("$%.2f", l.CostUSD)})
	}
	return out.Table(fmt.Sprintf("Total spend: $%.2f", r.TotalUSD), rows)
}
