package rawio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// commandRunner runs a helper and returns its stdout and stderr.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// QueueStrategy submits bytes to a CUPS/lpd queue in raw mode. The bytes go
// through a scoped temp file so lp never sees them on its command line.
type QueueStrategy struct {
	lpPath  string
	tempDir string
	timeout time.Duration
	log     *zap.Logger
	run     commandRunner
}

func NewQueueStrategy(opts Options) *QueueStrategy {
	opts.applyDefaults()
	return &QueueStrategy{
		lpPath:  opts.LPPath,
		tempDir: opts.TempDir,
		timeout: opts.HelperTimeout,
		log:     opts.Logger.Named("queue"),
		run:     execRunner,
	}
}

func (q *QueueStrategy) Name() string {
	return "queue"
}

func (q *QueueStrategy) Write(ctx context.Context, device string, data []byte) error {
	if err := ValidateQueueName(device); err != nil {
		return err
	}

	return WithTempFile(q.tempDir, "rawjob-*.bin", data, q.log, func(path string) error {
		ctx, cancel := context.WithTimeout(ctx, q.timeout)
		defer cancel()

		args := []string{"-d", device, "-o", "raw", "-s", path}
		q.log.Debug("submitting raw job",
			zap.String("printer", device),
			zap.String("lp", q.lpPath),
			zap.Strings("args", args))

		_, stderr, err := q.run(ctx, q.lpPath, args...)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &DeviceError{Strategy: q.Name(), Device: device, Err: ErrTimeout}
			}
			return &DeviceError{Strategy: q.Name(), Device: device, Stderr: string(stderr), Err: err}
		}
		return nil
	})
}

// ListDevices asks lpstat for queue names and the system default.
func (q *QueueStrategy) ListDevices(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	lpstat := q.lpstatPath()
	out, stderr, err := q.run(ctx, lpstat, "-e")
	if err != nil {
		return nil, &DeviceError{Strategy: q.Name(), Device: lpstat, Stderr: string(stderr), Err: err}
	}
	names := parseQueueNames(out)

	// No default destination is reported as a non-zero exit by some CUPS
	// versions, so the error is ignored here.
	defOut, _, _ := q.run(ctx, lpstat, "-d")
	def := parseDefaultQueue(defOut)

	devices := make([]Device, 0, len(names))
	for _, name := range names {
		devices = append(devices, Device{Name: name, IsDefault: name == def})
	}
	return devices, nil
}

func (q *QueueStrategy) lpstatPath() string {
	if dir := filepath.Dir(q.lpPath); dir != "." {
		return filepath.Join(dir, "lpstat")
	}
	return "lpstat"
}

func parseQueueNames(out []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// parseDefaultQueue reads "system default destination: NAME".
func parseDefaultQueue(out []byte) string {
	line := strings.TrimSpace(string(out))
	if i := strings.LastIndex(line, ":"); i >= 0 && strings.Contains(line, "default destination") {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}
