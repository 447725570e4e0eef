package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestPool_RunsEveryTask(t *testing.T) {
	p := NewPool(4, zaptest.NewLogger(t))
	var n atomic.Int64
	for i := 0; i < 100; i++ {
		p.Submit("inc", func() error {
			n.Add(1)
			return nil
		})
	}
	p.Wait()
	assert.Equal(t, int64(100), n.Load())
	assert.Equal(t, 0, p.Failed())
}

func TestPool_RespectsLimit(t *testing.T) {
	const limit = 3
	p := NewPool(limit, zaptest.NewLogger(t))
	assert.Equal(t, limit, p.Size())

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	for i := 0; i < 20; i++ {
		p.Submit("sleep", func() error {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			current--
			mu.Unlock()
			return nil
		})
	}
	p.Wait()
	assert.LessOrEqual(t, peak, limit)
	assert.Equal(t, 0, p.Running())
}

func TestPool_ErrorsAndPanicsAreContained(t *testing.T) {
	p := NewPool(2, zaptest.NewLogger(t))
	var ok atomic.Bool

	p.Submit("fails", func() error { return errors.New("bad parameter") })
	p.Submit("panics", func() error { panic("boom") })
	p.Submit("succeeds", func() error {
		ok.Store(true)
		return nil
	})
	p.Wait()

	assert.True(t, ok.Load())
	assert.Equal(t, 2, p.Failed())
}
