package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ggonzalez94/agentkit/internal/action"
	"github.com/ggonzalez94/agentkit/internal/agent"
	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/model"
	"github.com/ggonzalez94/agentkit/internal/schema"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newPluginsCommand() *cobra.Command {
	root := &cobra.Command{Use: "plugins", Short: "Plugin commands"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered plugins and their actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := s.actionRegistry()
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), schema.Plugins(reg), nil, cacheMetaBypass(), nil)
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newActionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "actions", Short: "Inspect available actions"}

	var plugin string
	list := &cobra.Command{
		Use:   "list",
		Short: "List actions with their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := s.actionRegistry()
			if err != nil {
				return err
			}
			items := schema.Actions(reg, plugin)
			if plugin != "" && len(items) == 0 {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown plugin %q", plugin))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil, cacheMetaBypass(), nil)
		},
	}
	list.Flags().StringVar(&plugin, "plugin", "", "Only list actions of this plugin")

	show := &cobra.Command{
		Use:   "show <action>",
		Short: "Describe one action by name or simile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := s.actionRegistry()
			if err != nil {
				return err
			}
			act, pluginName, err := agent.Resolve(reg, nil, args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), schema.Action(pluginName, act), nil, cacheMetaBypass(), nil)
		},
	}

	root.AddCommand(list)
	root.AddCommand(show)
	return root
}

func (s *runtimeState) newRunCommand() *cobra.Command {
	var text, user string
	var rawOptions []string
	cmd := &cobra.Command{
		Use:   "run <action>",
		Short: "Run an action against a chat message",
		Long: "Run an action by name or simile. The message text is parsed for parameters; " +
			"--option key=value pairs take precedence over anything found in the text.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := trimRootPath(cmd.CommandPath())
			opts, err := parseOptions(rawOptions)
			if err != nil {
				return err
			}
			reg, err := s.actionRegistry()
			if err != nil {
				return err
			}
			act, plugin, err := agent.Resolve(reg, s.settings.EnableActions, args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" && len(opts) == 0 {
				return clierr.New(clierr.CodeUsage, "--text or --option is required")
			}
			req := agent.Request{Action: act.Name, UserID: user, Text: text, Options: opts}

			fetch := func(ctx context.Context) (any, []model.ProviderStatus, []string, error) {
				ag, err := s.openAgent(ctx)
				if err != nil {
					return nil, nil, nil, err
				}
				start := time.Now()
				res, err := ag.Invoke(ctx, req)
				status := []model.ProviderStatus{{Name: plugin, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
				if err != nil {
					return nil, status, nil, err
				}
				return res, status, nil, nil
			}

			if act.ReadOnly && act.CacheTTL > 0 {
				var prefixes []string
				if p, ok := reg.Plugin(plugin); ok {
					prefixes = p.SettingPrefixes
				}
				key := cacheKey(path+" "+act.Name, runCacheKey{Request: req, Settings: s.settings.Fingerprint(prefixes...)})
				return s.runCachedCommand(path, key, act.CacheTTL, decodeResult, fetch)
			}

			s.resetCommandDiagnostics()
			ctx, cancel := s.actionContext(act)
			defer cancel()
			data, providers, warnings, err := fetch(ctx)
			s.captureCommandDiagnostics(warnings, providers)
			if err != nil {
				return err
			}
			return s.emitSuccess(path, data, warnings, cacheMetaBypass(), providers)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Message text the action parses")
	cmd.Flags().StringVar(&user, "user", "cli", "User id the message is attributed to")
	cmd.Flags().StringArrayVar(&rawOptions, "option", nil, "Explicit parameter as key=value (repeatable)")
	return cmd
}

// runCacheKey scopes a cached result to the plugin settings it was produced under.
type runCacheKey struct {
	Request  agent.Request `json:"request"`
	Settings string        `json:"settings"`
}

// actionContext bounds read-only actions by --timeout. Writes wait for inclusion and only stop on a signal.
func (s *runtimeState) actionContext(act *action.Action) (context.Context, context.CancelFunc) {
	if act.ReadOnly {
		return context.WithTimeout(context.Background(), s.settings.Timeout)
	}
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func decodeResult(payload []byte) (any, error) {
	var res agent.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// parseOptions reads key=value pairs. Booleans and JSON arrays keep their type; everything else stays text.
func parseOptions(raw []string) (action.Options, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	opts := action.Options{}
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid --option %q, expected key=value", item))
		}
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "[") || value == "true" || value == "false" {
			var typed any
			if err := json.Unmarshal([]byte(value), &typed); err == nil {
				opts[key] = typed
				continue
			}
		}
		opts[key] = value
	}
	return opts, nil
}
