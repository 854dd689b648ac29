package action

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one inbound chat message addressed to the agent.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps text with fresh message and room ids.
func NewMessage(userID, text string) Message {
	if strings.TrimSpace(userID) == "" {
		userID = "local"
	}
	return Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoomID:    uuid.NewString(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// State is conversation state composed by the host. Actions treat it as read-only.
type State map[string]any

// Options carries fields the host already extracted from the conversation.
type Options map[string]any

type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Content is one reply emitted by an action.
type Content struct {
	Text    string     `json:"text"`
	Action  string     `json:"action,omitempty"`
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type Callback func(Content) error

type ValidateFunc func(ctx context.Context, rt Runtime, msg Message) error

type HandlerFunc func(ctx context.Context, rt Runtime, msg Message, state State, opts Options, cb Callback) error

type Example struct {
	User  string `json:"user"`
	Agent string `json:"agent"`
}

// Param describes one input an action reads from tags, options or the message text.
type Param struct {
	Name        string
	Description string
	Required    bool
	Pattern     *regexp.Regexp
	Default     any
	Enum        []string
}

type Action struct {
	Name        string
	Similes     []string
	Description string
	Examples    []Example
	Params      []Param
	ReadOnly    bool
	CacheTTL    time.Duration
	Validate    ValidateFunc
	Handler     HandlerFunc
	// Plugin is filled in by Registry.Register.
	Plugin string
}

// Builder assembles an Action.
type Builder struct {
	act Action
}

func New(name string) *Builder {
	return &Builder{act: Action{Name: name}}
}

func (b *Builder) Similes(similes ...string) *Builder {
	b.act.Similes = append(b.act.Similes, similes...)
	return b
}

func (b *Builder) Description(desc string) *Builder {
	b.act.Description = desc
	return b
}

func (b *Builder) Example(user, agent string) *Builder {
	b.act.Examples = append(b.act.Examples, Example{User: user, Agent: agent})
	return b
}

func (b *Builder) Param(p Param) *Builder {
	b.act.Params = append(b.act.Params, p)
	return b
}

// ReadOnly marks the action as free of side effects so hosts may cache its replies.
func (b *Builder) ReadOnly(ttl time.Duration) *Builder {
	b.act.ReadOnly = true
	b.act.CacheTTL = ttl
	return b
}

func (b *Builder) Validate(fn ValidateFunc) *Builder {
	b.act.Validate = fn
	return b
}

func (b *Builder) Handler(fn HandlerFunc) *Builder {
	b.act.Handler = fn
	return b
}

func (b *Builder) Build() *Action {
	act := b.act
	if act.Validate == nil {
		act.Validate = func(context.Context, Runtime, Message) error { return nil }
	}
	return &act
}

// Matches reports whether name refers to the action by name or simile.
func (a *Action) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(a.Name, name) {
		return true
	}
	for _, s := range a.Similes {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Schema describes the action parameters as a JSON schema object.
func (a *Action) Schema() map[string]any {
	props := make(map[string]any, len(a.Params))
	var required []string
	for _, p := range a.Params {
		prop := map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Plugin groups the actions a provider contributes.
type Plugin struct {
	Name        string
	Description string
	Actions     []*Action
	// SettingPrefixes names the setting keys the plugin reads, by prefix.
	// Cached results are keyed on their current values.
	SettingPrefixes []string
}
