package action

import (
	"context"
	"time"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
)

// Dispatch validates and runs act, collecting every content it emits.
// On failure the error is logged with its kind, reported through cb as a failed content and returned.
func Dispatch(ctx context.Context, rt Runtime, act *Action, msg Message, state State, opts Options, cb Callback) ([]Content, error) {
	if act == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing action")
	}
	if state == nil {
		state = State{}
	}
	log := rt.Logger().With("plugin", act.Plugin, "action", act.Name, "message_id", msg.ID)
	var contents []Content
	emit := func(c Content) error {
		if c.Action == "" {
			c.Action = act.Name
		}
		contents = append(contents, c)
		if cb != nil {
			return cb(c)
		}
		return nil
	}

	started := time.Now()
	err := act.Validate(ctx, rt, msg)
	if err == nil {
		log.Debug("running action")
		err = act.Handler(ctx, rt, msg, state, opts, emit)
	}
	if err != nil {
		kind := clierr.KindOf(err)
		log.Warn("action failed", "kind", kind, "error", err)
		_ = emit(Content{
			Text:    "Error: " + err.Error(),
			Success: false,
			Error:   &ErrorInfo{Kind: string(kind), Message: err.Error()},
		})
		return contents, err
	}
	log.Debug("action completed", "duration", time.Since(started), "contents", len(contents))
	return contents, nil
}
