// Package schema describes the CLI command tree and the registered plugin actions as JSON.
package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/ggonzalez94/agentkit/internal/action"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Long        string          `json:"long,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// ActionSchema is the machine-readable description of one action.
type ActionSchema struct {
	Name        string           `json:"name"`
	Plugin      string           `json:"plugin"`
	Similes     []string         `json:"similes,omitempty"`
	Description string           `json:"description"`
	ReadOnly    bool             `json:"read_only"`
	CacheTTL    string           `json:"cache_ttl,omitempty"`
	Parameters  map[string]any   `json:"parameters"`
	Examples    []action.Example `json:"examples,omitempty"`
}

type PluginSchema struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Actions         []string `json:"actions"`
	SettingPrefixes []string `json:"setting_prefixes,omitempty"`
}

// Build describes the command at commandPath below root, matching names and aliases.
func Build(root *cobra.Command, commandPath string) (CommandSchema, error) {
	cmd := root
	for _, name := range strings.Fields(commandPath) {
		next := child(cmd, name)
		if next == nil {
			return CommandSchema{}, fmt.Errorf("command not found: %s", strings.TrimSpace(commandPath))
		}
		cmd = next
	}
	return describeCommand(cmd), nil
}

func child(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name || slices.Contains(c.Aliases, name) {
			return c
		}
	}
	return nil
}

func describeCommand(cmd *cobra.Command) CommandSchema {
	out := CommandSchema{
		Path:    strings.TrimSpace(cmd.CommandPath()),
		Use:     cmd.Use,
		Short:   cmd.Short,
		Long:    cmd.Long,
		Aliases: cmd.Aliases,
		Flags:   []FlagSchema{},
	}
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		out.Flags = append(out.Flags, FlagSchema{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	for _, sub := range cmd.Commands() {
		switch {
		case sub.Hidden, sub.Name() == "help", sub.Name() == "completion":
			continue
		}
		out.Subcommands = append(out.Subcommands, describeCommand(sub))
	}
	return out
}

func Action(plugin string, act *action.Action) ActionSchema {
	s := ActionSchema{
		Name:        act.Name,
		Plugin:      plugin,
		Similes:     act.Similes,
		Description: act.Description,
		ReadOnly:    act.ReadOnly,
		Parameters:  act.Schema(),
		Examples:    act.Examples,
	}
	if act.ReadOnly && act.CacheTTL > 0 {
		s.CacheTTL = act.CacheTTL.String()
	}
	return s
}

// Actions describes every registered action, optionally limited to one plugin, sorted by plugin then name.
func Actions(reg *action.Registry, plugin string) []ActionSchema {
	entries := reg.Actions(plugin)
	out := make([]ActionSchema, 0, len(entries))
	for _, e := range entries {
		out = append(out, Action(e.Plugin, e.Action))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Plugin != out[j].Plugin {
			return out[i].Plugin < out[j].Plugin
		}
		return strings.ToUpper(out[i].Name) < strings.ToUpper(out[j].Name)
	})
	return out
}

func Plugins(reg *action.Registry) []PluginSchema {
	plugins := reg.Plugins()
	out := make([]PluginSchema, 0, len(plugins))
	for _, p := range plugins {
		names := make([]string, 0, len(p.Actions))
		for _, a := range p.Actions {
			names = append(names, a.Name)
		}
		out = append(out, PluginSchema{Name: p.Name, Description: p.Description, Actions: names, SettingPrefixes: p.SettingPrefixes})
	}
	return out
}
