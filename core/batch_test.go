package core

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRunBatched(t *testing.T) {
	var inFlight, maxInFlight, calls int32
	failures := RunBatched(context.Background(), 20, 3, 0,
		func(i int) string { return "row" + strconv.Itoa(i) },
		func(ctx context.Context, i int) error {
			atomic.AddInt32(&calls, 1)
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			if i%7 == 0 {
				return errors.New("boom")
			}
			return nil
		},
	)

	assert.EqualValues(t, 20, calls, "a failure must not stop the other calls")
	assert.LessOrEqual(t, maxInFlight, int32(3))
	assert.Equal(t, []Failure{{"row0", "boom"}, {"row7", "boom"}, {"row14", "boom"}}, failures)
}

func TestRunBatched_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	failures := RunBatched(ctx, 4, 2, 0,
		func(i int) string { return strconv.Itoa(i) },
		func(ctx context.Context, i int) error { atomic.AddInt32(&calls, 1); return nil },
	)
	assert.Zero(t, calls)
	assert.Len(t, failures, 4)
}
