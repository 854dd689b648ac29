package policy

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
)

func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		if normalize(allowed) == normPath {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

// CheckActionAllowed enforces the --enable-actions allowlist. Entries ending in "*" match by prefix.
func CheckActionAllowed(allowlist []string, actionName string) error {
	if len(allowlist) == 0 {
		return nil
	}
	name := strings.ToUpper(strings.TrimSpace(actionName))
	for _, allowed := range allowlist {
		entry := strings.ToUpper(strings.TrimSpace(allowed))
		if entry == name {
			return nil
		}
		if prefix, ok := strings.CutSuffix(entry, "*"); ok && strings.HasPrefix(name, prefix) {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, fmt.Sprintf("action %s blocked by --enable-actions policy", actionName))
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
