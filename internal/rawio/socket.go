package rawio

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const defaultRawPort = "9100"

// SocketStrategy writes to network printers listening on a raw TCP port
// (JetDirect style), addressed as tcp://host[:port].
type SocketStrategy struct {
	timeout time.Duration
	dialer  net.Dialer
}

func NewSocketStrategy(timeout time.Duration) *SocketStrategy {
	return &SocketStrategy{
		timeout: timeout,
		dialer:  net.Dialer{Timeout: timeout},
	}
}

func (s *SocketStrategy) Name() string {
	return "socket"
}

func (s *SocketStrategy) Write(ctx context.Context, device string, data []byte) error {
	addr, err := socketAddress(device)
	if err != nil {
		return err
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DeviceError{Strategy: s.Name(), Device: device, Err: fmt.Errorf("connection failed: %w", err)}
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return &DeviceError{Strategy: s.Name(), Device: device, Err: err}
	}

	if _, err := conn.Write(data); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return &DeviceError{Strategy: s.Name(), Device: device, Err: ErrTimeout}
		}
		return &DeviceError{Strategy: s.Name(), Device: device, Err: fmt.Errorf("write failed: %w", err)}
	}
	return nil
}

// socketAddress turns tcp://host[:port] into host:port.
func socketAddress(device string) (string, error) {
	u, err := url.Parse(device)
	if err != nil || u.Scheme != "tcp" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not tcp://host[:port]", ErrInvalidDeviceName, device)
	}
	if u.Path != "" && u.Path != "/" {
		return "", fmt.Errorf("%w: %q has a path", ErrInvalidDeviceName, device)
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidDeviceName, device)
	}
	port := u.Port()
	if port == "" {
		port = defaultRawPort
	}
	return net.JoinHostPort(host, port), nil
}
