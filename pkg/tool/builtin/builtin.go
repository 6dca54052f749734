// Package builtin provides general-purpose tools that any agent can enable by name.
package builtin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/tool"
)

// Calculate performs basic arithmetic on two numbers.
func Calculate() *tool.Tool {
	return tool.MustNew(
		"calculate",
		"Perform basic math calculations",
		map[string]tool.Param{
			"operation": {
				Type:        "string",
				Description: "The operation to perform (add, subtract, multiply, divide)",
				Enum:        []string{"add", "subtract", "multiply", "divide"},
			},
			"a": {Type: "number", Description: "First number"},
			"b": {Type: "number", Description: "Second number"},
		},
		calculate,
	)
}

func calculate(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
	op, _ := args["operation"].(string)
	a, err := toFloat(args["a"])
	if err != nil {
		return nil, fmt.Errorf("a: %w", err)
	}
	b, err := toFloat(args["b"])
	if err != nil {
		return nil, fmt.Errorf("b: %w", err)
	}

	var result float64
	switch op {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = a / b
	default:
		return nil, fmt.Errorf("unknown operation: %s", op)
	}

	return map[string]interface{}{
		"result":    result,
		"operation": op,
		"input":     map[string]float64{"a": a, "b": b},
	}, nil
}

// CurrentTime reports the current time in an optional IANA time zone.
func CurrentTime() *tool.Tool {
	return tool.MustNew(
		"current_time",
		"Get the current date and time",
		map[string]tool.Param{
			"timezone": {
				Type:        "string",
				Description: "IANA time zone name, e.g. Europe/Berlin (defaults to UTC)",
				Optional:    true,
			},
		},
		currentTime,
	)
}

var now = time.Now

func currentTime(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
	zone, _ := args["timezone"].(string)
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", zone, err)
	}
	t := now().In(loc)
	return map[string]interface{}{
		"timezone": zone,
		"iso":      t.Format(time.RFC3339),
		"weekday":  t.Weekday().String(),
	}, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// Registry maps built-in tool names to constructors.
var Registry = map[string]func() *tool.Tool{
	"calculate":    Calculate,
	"current_time": CurrentTime,
}

// Lookup returns the named built-in tools.
func Lookup(names ...string) ([]*tool.Tool, error) {
	tools := make([]*tool.Tool, 0, len(names))
	for _, name := range names {
		ctor, ok := Registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown built-in tool: %s", name)
		}
		tools = append(tools, ctor())
	}
	return tools, nil
}

// Names lists available built-in tools in sorted order.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
