package parallel_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/paveg/adxql/internal/parallel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		check   func(t *testing.T, n int)
	}{
		{name: "explicit", workers: 3, check: func(t *testing.T, n int) { assert.Equal(t, 3, n) }},
		{name: "zero", workers: 0, check: func(t *testing.T, n int) {
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, parallel.DefaultWorkers)
		}},
		{name: "negative", workers: -1, check: func(t *testing.T, n int) { assert.GreaterOrEqual(t, n, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parallel.NewWorkerPool(tt.workers).Workers())
		})
	}
}

func TestProcessIndexed_Order(t *testing.T) {
	pool := parallel.NewWorkerPool(3)
	input := []string{"Samples", "Logs", "Metrics", "Audit", "Security"}

	results := parallel.ProcessIndexed(context.Background(), pool, input, func(_ context.Context, i int, s string) string {
		// Finish out of order.
		time.Sleep(time.Duration(len(input)-i) * time.Millisecond)
		return s + "!"
	})

	assert.Equal(t, []string{"Samples!", "Logs!", "Metrics!", "Audit!", "Security!"}, results)
}

func TestProcessIndexed_Empty(t *testing.T) {
	results := parallel.ProcessIndexed(context.Background(), parallel.NewWorkerPool(2), []int{}, func(context.Context, int, int) int {
		t.Fatal("worker called for empty input")
		return 0
	})
	assert.Nil(t, results)
}

func TestProcessIndexed_Bounded(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	var running, peak atomic.Int32

	items := make([]int, 10)
	parallel.ProcessIndexed(context.Background(), pool, items, func(context.Context, int, int) struct{} {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return struct{}{}
	})

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessIndexed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := parallel.ProcessIndexed(ctx, parallel.NewWorkerPool(2), []int{1, 2, 3}, func(context.Context, int, int) int {
		calls.Add(1)
		return 1
	})

	require.Len(t, results, 3)
	assert.Equal(t, []int{0, 0, 0}, results)
	assert.Zero(t, calls.Load())
}
