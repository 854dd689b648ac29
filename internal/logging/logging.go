package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

type Options struct {
	Name   string
	Level  string
	JSON   bool
	Output io.Writer
}

// New builds the process logger. Output defaults to stderr so stdout stays machine-readable.
func New(opts Options) (hclog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	name := opts.Name
	if name == "" {
		name = "agentkit"
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		JSONFormat: opts.JSON,
		Output:     out,
	}), nil
}

func ParseLevel(raw string) (hclog.Level, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return hclog.Warn, nil
	}
	if v == "off" || v == "none" {
		return hclog.Off, nil
	}
	level := hclog.LevelFromString(v)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("unknown log level %q", raw)
	}
	return level, nil
}
