//go:build !windows

package rawio

func platformStrategy(opts Options) RawWriteStrategy {
	return NewQueueStrategy(opts)
}
