package app

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/execution"
	"github.com/spf13/cobra"
)

var planStatuses = []execution.PlanStatus{
	execution.PlanStatusPlanned,
	execution.PlanStatusRunning,
	execution.PlanStatusCompleted,
	execution.PlanStatusFailed,
}

// newHistoryCommand reads the journal of on-chain writes the EVM plugins record.
func (s *runtimeState) newHistoryCommand() *cobra.Command {
	root := &cobra.Command{Use: "history", Short: "Inspect journaled transactions"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled transaction plans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			status = strings.ToLower(strings.TrimSpace(status))
			if status != "" && !validPlanStatus(status) {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid --status %q", status))
			}
			store, err := s.openPlanStore()
			if err != nil {
				return err
			}
			defer store.Close()
			plans, err := store.List(status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list plans", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), plans, nil, cacheMetaBypass(), nil)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status (planned, running, completed, failed)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum plans to return")

	show := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show one journaled plan with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openPlanStore()
			if err != nil {
				return err
			}
			defer store.Close()
			plan, err := store.Get(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), plan, nil, cacheMetaBypass(), nil)
		},
	}

	root.AddCommand(list)
	root.AddCommand(show)
	return root
}

func (s *runtimeState) openPlanStore() (*execution.Store, error) {
	if strings.TrimSpace(s.settings.PlanStorePath) == "" {
		return nil, clierr.Configuration("plan store path is not configured")
	}
	store, err := execution.OpenStore(s.settings.PlanStorePath, s.settings.PlanLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open plan store", err)
	}
	return store, nil
}

func validPlanStatus(v string) bool {
	for _, st := range planStatuses {
		if string(st) == v {
			return true
		}
	}
	return false
}
