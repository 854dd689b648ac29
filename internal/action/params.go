package action

import (
	"fmt"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
	"github.com/ggonzalez94/agentkit/internal/extract"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
)

// Values holds resolved parameter values keyed by parameter name.
type Values map[string]any

// ResolveParams fills each param from host options, then [name] tags, then its pattern, then its default.
// Every missing required param and out-of-enum value is reported in one validation error.
func ResolveParams(params []Param, msg Message, opts Options) (Values, error) {
	values := Values{}
	var result *multierror.Error
	for _, p := range params {
		v, ok := lookupParam(p, msg.Text, opts)
		if !ok {
			if p.Default != nil {
				values[p.Name] = p.Default
				continue
			}
			if p.Required {
				result = multierror.Append(result, fmt.Errorf("missing %s", p.Name))
			}
			continue
		}
		if len(p.Enum) > 0 {
			s := fmt.Sprint(v)
			if !containsFold(p.Enum, s) {
				result = multierror.Append(result, fmt.Errorf("%s must be one of %s", p.Name, strings.Join(p.Enum, ", ")))
				continue
			}
		}
		values[p.Name] = v
	}
	if err := result.ErrorOrNil(); err != nil {
		return values, clierr.Validation(joinErrors(result))
	}
	return values, nil
}

func lookupParam(p Param, text string, opts Options) (any, bool) {
	if v, ok := lookupOption(opts, p.Name); ok {
		return v, true
	}
	if tag := extract.Tag(text, p.Name); tag != "" {
		return tag, true
	}
	if p.Pattern != nil {
		m := p.Pattern.FindStringSubmatch(text)
		switch {
		case len(m) > 1 && strings.TrimSpace(m[1]) != "":
			return strings.TrimSpace(m[1]), true
		case len(m) == 1 && strings.TrimSpace(m[0]) != "":
			return strings.TrimSpace(m[0]), true
		}
	}
	return nil, false
}

// lookupOption prefers the exact key, then the first case-insensitive match in sorted key order.
func lookupOption(opts Options, name string) (any, bool) {
	if len(opts) == 0 {
		return nil, false
	}
	if v := opts[name]; present(v) {
		return v, true
	}
	keys := make([]string, 0, len(opts))
	for key := range opts {
		if key != name && strings.EqualFold(key, name) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if v := opts[key]; present(v) {
			return v, true
		}
	}
	return nil, false
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// Decode copies the values into dst, a pointer to a struct tagged with `mapstructure`.
// Strings are converted to numeric and boolean fields.
func (v Values) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "build param decoder", err)
	}
	if err := dec.Decode(map[string]any(v)); err != nil {
		return clierr.Wrap(clierr.CodeValidation, "decode action params", err)
	}
	return nil
}

// String returns the value as trimmed text, or "" when absent.
func (v Values) String(name string) string {
	raw, ok := v[name]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

// Bind resolves params and decodes them into dst in one step.
func Bind(params []Param, msg Message, opts Options, dst any) error {
	values, err := ResolveParams(params, msg, opts)
	if err != nil {
		return err
	}
	return values.Decode(dst)
}

func joinErrors(m *multierror.Error) string {
	msgs := make([]string, 0, len(m.Errors))
	for _, err := range m.Errors {
		msgs = append(msgs, err.Error())
	}
	sort.Strings(msgs)
	return "invalid parameters: " + strings.Join(msgs, "; ")
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}
