package rawio

import (
	"context"
	"sync"
)

// inflight runs calls that cannot be interrupted. A call abandoned by its
// caller keeps the device busy until it really returns, so a later call to
// the same device waits for it instead of interleaving.
type inflight struct {
	mu   sync.Mutex
	busy map[string]chan struct{}
}

// run calls fn for device once no earlier call for device is still running.
// It returns ctx.Err() if ctx ends first, leaving fn to finish on its own.
func (f *inflight) run(ctx context.Context, device string, fn func() error) error {
	done, err := f.claim(ctx, device)
	if err != nil {
		return err
	}

	result := make(chan error, 1)
	go func() {
		err := fn()
		f.mu.Lock()
		delete(f.busy, device)
		f.mu.Unlock()
		close(done)
		result <- err
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		select {
		case err := <-result:
			return err
		default:
			return ctx.Err()
		}
	}
}

func (f *inflight) claim(ctx context.Context, device string) (chan struct{}, error) {
	for {
		f.mu.Lock()
		if f.busy == nil {
			f.busy = make(map[string]chan struct{})
		}
		prev, ok := f.busy[device]
		if !ok {
			done := make(chan struct{})
			f.busy[device] = done
			f.mu.Unlock()
			return done, nil
		}
		f.mu.Unlock()

		select {
		case <-prev:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (f *inflight) running(device string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.busy[device]
	return ok
}
