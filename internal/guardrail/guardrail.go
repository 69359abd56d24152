// Package guardrail validates proposed tool calls against a whitelist, a
// step cap, argument bounds and duplicate detection.
package guardrail

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/newthinker/argus/internal/core"
)

// Bound constrains one argument. A bound with a non-empty Enum is a set
// check; otherwise the value must be numeric and within [Min, Max].
// List values are checked element-wise.
type Bound struct {
	Min      float64  `mapstructure:"min" json:"min,omitempty"`
	Max      float64  `mapstructure:"max" json:"max,omitempty"`
	Integer  bool     `mapstructure:"integer" json:"integer,omitempty"`
	Enum     []string `mapstructure:"enum" json:"enum,omitempty"`
	MaxItems int      `mapstructure:"max_items" json:"max_items,omitempty"` // list length cap when > 0
}

// lengthOnly reports whether the bound only limits list length.
func (b Bound) lengthOnly() bool {
	return b.MaxItems > 0 && len(b.Enum) == 0 && b.Min == 0 && b.Max == 0
}

// Config defines the guardrail policy.
type Config struct {
	AllowedTools []core.ToolName                    `mapstructure:"allowed_tools"`
	MaxSteps     int                                `mapstructure:"max_steps"`
	Bounds       map[core.ToolName]map[string]Bound `mapstructure:"bounds"`
}

// DefaultMaxSteps caps dispatched calls per run.
const DefaultMaxSteps = 6

// DefaultConfig returns the stock policy: every known tool, six steps and
// the lookback / window / split ranges the tools are tuned for.
func DefaultConfig() Config {
	days := func(lo, hi float64) Bound { return Bound{Min: lo, Max: hi, Integer: true} }
	fast := Bound{Min: 2, Max: 200, Integer: true}
	slow := Bound{Min: 5, Max: 400, Integer: true}
	return Config{
		AllowedTools: slices.Clone(core.KnownTools),
		MaxSteps:     DefaultMaxSteps,
		Bounds: map[core.ToolName]map[string]Bound{
			core.ToolScreen: {
				"days":    days(60, 2000),
				"symbols": {MaxItems: 50},
			},
			core.ToolAnalyze: {
				"days": days(60, 2000),
			},
			core.ToolBacktest: {
				"days":     days(200, 3000),
				"fast":     fast,
				"slow":     slow,
				"strategy": {Enum: []string{"sma_cross"}},
			},
			core.ToolOptimize: {
				"days":        days(200, 3000),
				"fast_values": fast,
				"slow_values": slow,
				"split":       {Min: 0.5, Max: 0.9},
				"top_k":       {Min: 1, Max: 10, Integer: true},
			},
		},
	}
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Err returns the denial as a *core.Error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	base := errorForCode(d.Code)
	return core.WrapError(base, errors.New(d.Reason))
}

func errorForCode(code string) *core.Error {
	for _, e := range []*core.Error{core.ErrToolNotAllowed, core.ErrStepCapExceeded, core.ErrArgumentOutOfBounds, core.ErrDuplicateCall} {
		if e.Code == code {
			return e
		}
	}
	return &core.Error{Code: code, Message: "denied"}
}

func allow() Decision { return Decision{Allowed: true} }

func deny(base *core.Error, format string, args ...any) Decision {
	return Decision{Code: base.Code, Reason: fmt.Sprintf(format, args...)}
}

// Validator applies a Config. It holds no mutable state.
type Validator struct {
	allowed  map[core.ToolName]bool
	maxSteps int
	bounds   map[core.ToolName]map[string]Bound
}

// New creates a validator, rejecting inconsistent configuration.
func New(cfg Config) (*Validator, error) {
	if cfg.MaxSteps < 1 {
		return nil, core.Errorf(core.ErrConfigInvalid, "guardrail max_steps must be >= 1, got %d", cfg.MaxSteps)
	}
	v := &Validator{
		allowed:  make(map[core.ToolName]bool, len(cfg.AllowedTools)),
		maxSteps: cfg.MaxSteps,
		bounds:   cfg.Bounds,
	}
	for _, t := range cfg.AllowedTools {
		if !t.IsKnown() {
			return nil, core.Errorf(core.ErrConfigInvalid, "guardrail: unknown tool %q in allowed_tools", t)
		}
		v.allowed[t] = true
	}
	for tool, args := range cfg.Bounds {
		for name, b := range args {
			if len(b.Enum) == 0 && !b.lengthOnly() && b.Min > b.Max {
				return nil, core.Errorf(core.ErrConfigInvalid, "guardrail: %s.%s min %v > max %v", tool, name, b.Min, b.Max)
			}
		}
	}
	return v, nil
}

// MaxSteps returns the step cap.
func (v *Validator) MaxSteps() int {
	return v.maxSteps
}

// Allowed reports whether tool is whitelisted.
func (v *Validator) Allowed(tool core.ToolName) bool {
	return v.allowed[tool]
}

// Check validates intent against the records produced so far in the run.
// Checks run in order: whitelist, step cap, argument bounds, duplicates.
func (v *Validator) Check(intent core.ToolCallIntent, records []core.ExecutionRecord) Decision {
	if !v.allowed[intent.Tool] {
		return deny(core.ErrToolNotAllowed, "tool %q is not allowed", intent.Tool)
	}

	dispatched := 0
	for _, r := range records {
		if r.Dispatched() {
			dispatched++
		}
	}
	if dispatched+1 > v.maxSteps {
		return deny(core.ErrStepCapExceeded, "step %d exceeds cap of %d", dispatched+1, v.maxSteps)
	}

	bounds := v.bounds[intent.Tool]
	names := make([]string, 0, len(bounds))
	for name := range bounds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		b := bounds[name]
		val, ok := intent.Args[name]
		if !ok {
			continue
		}
		if reason := checkBound(val, b); reason != "" {
			return deny(core.ErrArgumentOutOfBounds, "%s.%s: %s", intent.Tool, name, reason)
		}
	}

	key := core.CallKey(intent.Tool, intent.Args)
	for _, r := range records {
		if r.Dispatched() && core.CallKey(r.Tool, r.Args) == key {
			return deny(core.ErrDuplicateCall, "identical %s call already executed as step %d", intent.Tool, r.Seq)
		}
	}
	return allow()
}

func checkBound(val any, b Bound) string {
	if items, isList := asList(val); isList {
		if b.MaxItems > 0 && len(items) > b.MaxItems {
			return fmt.Sprintf("%d items exceeds limit of %d", len(items), b.MaxItems)
		}
		if b.lengthOnly() {
			return ""
		}
		for i, item := range items {
			if reason := checkScalar(item, b); reason != "" {
				return fmt.Sprintf("element %d: %s", i, reason)
			}
		}
		return ""
	}
	if b.lengthOnly() {
		return fmt.Sprintf("expected a list, got %T", val)
	}
	return checkScalar(val, b)
}

func checkScalar(val any, b Bound) string {
	if len(b.Enum) > 0 {
		s, ok := val.(string)
		if !ok {
			return fmt.Sprintf("expected one of %v, got %T", b.Enum, val)
		}
		if !slices.Contains(b.Enum, s) {
			return fmt.Sprintf("%q not in %v", s, b.Enum)
		}
		return ""
	}

	f, ok := asFloat(val)
	if !ok {
		return fmt.Sprintf("expected a number, got %T", val)
	}
	if math.IsNaN(f) || f < b.Min || f > b.Max {
		return fmt.Sprintf("%v outside [%v, %v]", val, b.Min, b.Max)
	}
	if b.Integer && f != math.Trunc(f) {
		return fmt.Sprintf("%v is not an integer", val)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []int:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out, true
	case []string:
		out := make([]any, len(l))
		for i, x := range l {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}
