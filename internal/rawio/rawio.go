// Package rawio writes raw bytes to printers without going through the
// operating system's graphics print path.
//
// A RawWriteStrategy knows one way of reaching a device: the Windows spooler
// with the RAW datatype, a CUPS queue with -o raw, a TCP socket (port 9100
// style network printers) or a serial port. The Router picks the strategy
// for a device name and serialises writes per device.
//
// Example usage:
//
//	w := rawio.New(rawio.Options{HelperTimeout: 5 * time.Second, Logger: log})
//	if err := w.Write(ctx, "EPSON_TM_T20", rawio.DrawerCommand()); err != nil {
//	    log.Error("drawer kick failed", zap.Error(err))
//	}
package rawio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNoPrinter         = errors.New("no printer specified")
	ErrInvalidDeviceName = errors.New("invalid printer name")
	ErrTimeout           = errors.New("timed out writing to printer")
	ErrUnsupported       = errors.New("raw printing is not supported on this platform")
)

// RawWriteStrategy writes raw bytes to a named device.
type RawWriteStrategy interface {
	Name() string
	Write(ctx context.Context, device string, data []byte) error
}

// Device is a printer a strategy can enumerate.
type Device struct {
	Name      string
	IsDefault bool
}

// DeviceLister is implemented by strategies that can enumerate their devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// DeviceError is a failed write, carrying whatever the OS or helper reported.
type DeviceError struct {
	Strategy string
	Device   string
	Stderr   string
	Err      error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s write to %q failed", e.Strategy, e.Device)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Options configures the strategies built by New.
type Options struct {
	// HelperTimeout bounds every spooler call or helper process
	HelperTimeout time.Duration
	// TempDir holds the scoped command files (default: os.TempDir())
	TempDir string
	// LPPath is the lp binary used by the queue strategy
	LPPath string
	// SerialBaud is the default baud rate for serial: devices
	SerialBaud int
	Logger     *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.HelperTimeout == 0 {
		o.HelperTimeout = 5 * time.Second
	}
	if o.LPPath == "" {
		o.LPPath = "lp"
	}
	if o.SerialBaud == 0 {
		o.SerialBaud = 9600
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

const (
	tcpPrefix    = "tcp://"
	serialPrefix = "serial:"
)

// Router dispatches each write to the strategy that owns the device name.
type Router struct {
	platform RawWriteStrategy
	socket   RawWriteStrategy
	serial   RawWriteStrategy
	locks    *deviceLocks
	log      *zap.Logger
}

// New builds a Router with the platform strategy selected for this OS.
func New(opts Options) *Router {
	opts.applyDefaults()
	return NewRouter(
		platformStrategy(opts),
		NewSocketStrategy(opts.HelperTimeout),
		NewSerialStrategy(opts.SerialBaud, opts.HelperTimeout),
		opts.Logger,
	)
}

// NewRouter wires explicit strategies, mostly for tests.
func NewRouter(platform, socket, serial RawWriteStrategy, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		platform: platform,
		socket:   socket,
		serial:   serial,
		locks:    newDeviceLocks(),
		log:      log.Named("rawio"),
	}
}

func (r *Router) Name() string {
	return "router"
}

// Platform returns the OS strategy chosen at startup.
func (r *Router) Platform() RawWriteStrategy {
	return r.platform
}

// Write sends data to device. Writes to the same device never interleave.
func (r *Router) Write(ctx context.Context, device string, data []byte) error {
	if strings.TrimSpace(device) == "" {
		return ErrNoPrinter
	}
	strategy := r.strategyFor(device)
	if strategy == nil {
		return ErrUnsupported
	}

	unlock, err := r.locks.acquire(ctx, device)
	if err != nil {
		return fmt.Errorf("waiting for %q: %w", device, err)
	}
	defer unlock()

	start := time.Now()
	if err := strategy.Write(ctx, device, data); err != nil {
		return err
	}
	r.log.Debug("raw write done",
		zap.String("strategy", strategy.Name()),
		zap.String("printer", device),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (r *Router) strategyFor(device string) RawWriteStrategy {
	switch {
	case strings.HasPrefix(device, tcpPrefix):
		return r.socket
	case strings.HasPrefix(device, serialPrefix):
		return r.serial
	default:
		return r.platform
	}
}

// deviceLocks hands out one single-slot semaphore per device name. A slot is
// dropped once nobody holds or waits for it.
type deviceLocks struct {
	mu    sync.Mutex
	slots map[string]*deviceSlot
}

type deviceSlot struct {
	ch   chan struct{}
	refs int
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{slots: make(map[string]*deviceSlot)}
}

func (l *deviceLocks) acquire(ctx context.Context, device string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[device]
	if !ok {
		s = &deviceSlot{ch: make(chan struct{}, 1)}
		l.slots[device] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.release(device, s)
		}, nil
	case <-ctx.Done():
		l.release(device, s)
		return nil, ctx.Err()
	}
}

func (l *deviceLocks) release(device string, s *deviceSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, device)
	}
}

func (l *deviceLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
