package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	ec := execution.New("tenant", "user", "agent", nil)
	calc := Calculate()

	tests := []struct {
		name string
		op   string
		a, b float64
		want float64
	}{
		{"multiply", "multiply", 47, 23, 1081},
		{"add", "add", 2, 3, 5},
		{"subtract", "subtract", 2, 3, -1},
		{"divide", "divide", 9, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := calc.Execute(context.Background(), map[string]interface{}{
				"operation": tt.op,
				"a":         tt.a,
				"b":         tt.b,
			}, ec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.(map[string]interface{})["result"])
		})
	}

	t.Run("should fail on division by zero", func(t *testing.T) {
		_, err := calc.Execute(context.Background(), map[string]interface{}{
			"operation": "divide", "a": 1.0, "b": 0.0,
		}, ec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "division by zero")
	})

	t.Run("should reject operations outside the enum", func(t *testing.T) {
		_, err := calc.Execute(context.Background(), map[string]interface{}{
			"operation": "power", "a": 1.0, "b": 2.0,
		}, ec)
		assert.Error(t, err)
	})
}

func TestCurrentTime(t *testing.T) {
	ec := execution.New("tenant", "user", "agent", nil)
	now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { now = time.Now }()

	out, err := CurrentTime().Execute(context.Background(), nil, ec)
	require.NoError(t, err)
	result := out.(map[string]interface{})
	assert.Equal(t, "UTC", result["timezone"])
	assert.Equal(t, "2024-03-01T12:00:00Z", result["iso"])
	assert.Equal(t, "Friday", result["weekday"])

	_, err = CurrentTime().Execute(context.Background(), map[string]interface{}{"timezone": "Mars/Olympus"}, ec)
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	tools, err := Lookup("calculate", "current_time")
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	_, err = Lookup("shell")
	assert.Error(t, err)

	assert.Equal(t, []string{"calculate", "current_time"}, Names())
}
