package execution

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("should create fresh contexts with unique ids", func(t *testing.T) {
		meta := map[string]interface{}{"channel": "web"}
		a := New("tenant-1", "user-1", "agent-1", meta)
		b := New("tenant-1", "user-1", "agent-1", meta)

		assert.NotEqual(t, a.ID, b.ID)
		assert.True(t, a.HasTenancy())
		assert.Equal(t, "web", a.Metadata["channel"])

		a.Metadata["channel"] = "cli"
		assert.Equal(t, "web", meta["channel"], "caller metadata must not be aliased")
	})

	t.Run("should report missing tenancy", func(t *testing.T) {
		assert.False(t, New("", "user", "a", nil).HasTenancy())
		assert.False(t, New("tenant", "", "a", nil).HasTenancy())
	})
}

func TestUsageConcurrency(t *testing.T) {
	ec := New("t", "u", "a", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ec.AddUsage(10, 0.001)
			ec.RecordToolCall(ToolCallRecord{Name: "calculate"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, ec.TokensUsed())
	assert.InDelta(t, 0.05, ec.CostUSD(), 1e-9)
	assert.Len(t, ec.ToolCalls(), 50)
}

func TestDelegationDepth(t *testing.T) {
	assert.Equal(t, 0, New("t", "u", "a", nil).DelegationDepth())
	assert.Equal(t, 2, New("t", "u", "a", map[string]interface{}{MetaDelegationDepth: 2}).DelegationDepth())
	assert.Equal(t, 1, New("t", "u", "a", map[string]interface{}{MetaDelegationDepth: float64(1)}).DelegationDepth())
}

func TestElapsed(t *testing.T) {
	ec := New("t", "u", "a", nil)
	ec.StartTime = time.Now().Add(-2 * time.Second)
	assert.GreaterOrEqual(t, ec.Elapsed(time.Now()), 2*time.Second)
}
