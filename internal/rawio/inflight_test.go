package rawio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflight_AbandonedCallKeepsDeviceBusy(t *testing.T) {
	var f inflight
	release := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.run(ctx, "Kitchen", func() error {
		<-release
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, f.running("Kitchen"))

	// the next call waits for the stalled one and never starts
	var called atomic.Bool
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	err = f.run(ctx2, "Kitchen", func() error {
		called.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called.Load())

	close(release)
	require.Eventually(t, func() bool { return !f.running("Kitchen") }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.run(context.Background(), "Kitchen", func() error {
		called.Store(true)
		return nil
	}))
	assert.True(t, called.Load())
}

func TestInflight_WaiterStartsWhenStalledCallEnds(t *testing.T) {
	var f inflight
	release := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = f.run(ctx, "Kitchen", func() error {
		<-release
		return nil
	})

	var active, overlap atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- f.run(context.Background(), "Kitchen", func() error {
			if active.Add(1) > 1 {
				overlap.Add(1)
			}
			active.Add(-1)
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("second call ran while the first was still writing")
	default:
	}

	close(release)
	require.NoError(t, <-done)
	assert.Zero(t, overlap.Load())
}

func TestInflight_OtherDevicesAreNotBlocked(t *testing.T) {
	var f inflight
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = f.run(ctx, "Kitchen", func() error {
		<-release
		return nil
	})

	boom := errors.New("paper out")
	err := f.run(context.Background(), "Bar", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.running("Bar"))
}
