package rawio

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// WithTempFile writes data to a new uniquely named file in dir, calls fn with
// its path and removes the file afterwards, even when fn fails or panics.
// A failure to create or write the file is returned; a failure to remove it
// is only logged.
func WithTempFile(dir, pattern string, data []byte, log *zap.Logger, fn func(path string) error) (err error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) && log != nil {
			log.Warn("failed to delete temp file", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	return fn(path)
}
