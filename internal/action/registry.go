package action

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry indexes plugins and their actions for lookup by name or simile.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	owner   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{owner: map[string]string{}}
}

// Register adds plugin. Action names and similes must be unique across the registry.
func (r *Registry) Register(plugin Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(plugin.Name) == "" {
		return fmt.Errorf("plugin name is required")
	}
	for _, existing := range r.plugins {
		if strings.EqualFold(existing.Name, plugin.Name) {
			return fmt.Errorf("plugin %s already registered", plugin.Name)
		}
	}
	seen := map[string]bool{}
	for _, act := range plugin.Actions {
		if act == nil || act.Handler == nil {
			return fmt.Errorf("plugin %s: action without handler", plugin.Name)
		}
		for _, name := range append([]string{act.Name}, act.Similes...) {
			key := strings.ToUpper(strings.TrimSpace(name))
			if owner, ok := r.owner[key]; ok || seen[key] {
				if owner == "" {
					owner = plugin.Name
				}
				return fmt.Errorf("action name %s already registered by %s", name, owner)
			}
			seen[key] = true
		}
	}
	for key := range seen {
		r.owner[key] = plugin.Name
	}
	for _, act := range plugin.Actions {
		act.Plugin = plugin.Name
	}
	r.plugins = append(r.plugins, plugin)
	return nil
}

func (r *Registry) MustRegister(plugins ...Plugin) {
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// Lookup finds an action by name or simile, ignoring case, and returns its plugin name.
func (r *Registry) Lookup(name string) (*Action, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		for _, act := range p.Actions {
			if act.Matches(name) {
				return act, p.Name, true
			}
		}
	}
	return nil, "", false
}

func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Plugin returns the registered plugin with the given name, ignoring case.
func (r *Registry) Plugin(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Plugin{}, false
}

// Entry pairs an action with the plugin that contributed it.
type Entry struct {
	Plugin string
	Action *Action
}

// Actions lists every action, optionally limited to one plugin.
func (r *Registry) Actions(plugin string) []Entry {
	var out []Entry
	for _, p := range r.Plugins() {
		if plugin != "" && !strings.EqualFold(p.Name, plugin) {
			continue
		}
		for _, act := range p.Actions {
			out = append(out, Entry{Plugin: p.Name, Action: act})
		}
	}
	return out
}
