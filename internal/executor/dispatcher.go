package executor

import (
	"context"

	"github.com/newthinker/argus/internal/core"
)

// Handler runs one tool call with flat arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Dispatcher is the closed mapping from tool name to handler.
type Dispatcher struct {
	handlers map[core.ToolName]Handler
}

// NewDispatcher validates the table: every name must be a known tool with
// a non-nil handler, and every tool in required must be present.
func NewDispatcher(handlers map[core.ToolName]Handler, required ...core.ToolName) (*Dispatcher, error) {
	d := &Dispatcher{handlers: make(map[core.ToolName]Handler, len(handlers))}
	for name, h := range handlers {
		if !name.IsKnown() {
			return nil, core.Errorf(core.ErrUnknownTool, "dispatch table: %q", name)
		}
		if h == nil {
			return nil, core.Errorf(core.ErrConfigInvalid, "dispatch table: nil handler for %q", name)
		}
		d.handlers[name] = h
	}
	for _, name := range required {
		if _, ok := d.handlers[name]; !ok {
			return nil, core.Errorf(core.ErrConfigInvalid, "dispatch table: no handler for allowed tool %q", name)
		}
	}
	return d, nil
}

// Has reports whether tool has a handler.
func (d *Dispatcher) Has(tool core.ToolName) bool {
	_, ok := d.handlers[tool]
	return ok
}

// Dispatch runs the handler for tool. A panicking handler is reported as
// a ToolFailed error.
func (d *Dispatcher) Dispatch(ctx context.Context, tool core.ToolName, args map[string]any) (result any, err error) {
	h, ok := d.handlers[tool]
	if !ok {
		return nil, core.Errorf(core.ErrUnknownTool, "%q", tool)
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = core.Errorf(core.ErrToolFailed, "%s panicked: %v", tool, r)
		}
	}()
	return h(ctx, args)
}
