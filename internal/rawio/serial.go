package rawio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialStrategy writes to printers wired to a serial port, addressed as
// serial:<port> or serial:<port>@<baud> (serial:COM3, serial:/dev/ttyUSB0@115200).
type SerialStrategy struct {
	baud    int
	timeout time.Duration
	open    func(port string, mode *serial.Mode) (serial.Port, error)
}

func NewSerialStrategy(baud int, timeout time.Duration) *SerialStrategy {
	return &SerialStrategy{
		baud:    baud,
		timeout: timeout,
		open:    serial.Open,
	}
}

func (s *SerialStrategy) Name() string {
	return "serial"
}

func (s *SerialStrategy) Write(ctx context.Context, device string, data []byte) error {
	portName, baud, err := parseSerialDevice(device, s.baud)
	if err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := s.open(portName, mode)
	if err != nil {
		return &DeviceError{Strategy: s.Name(), Device: device, Err: fmt.Errorf("failed to open port: %w", err)}
	}

	// 10 bits per byte on the wire, plus the helper budget for the printer
	// to start draining its buffer.
	wire := time.Duration(len(data)*10) * time.Second / time.Duration(baud)
	ctx, cancel := context.WithTimeout(ctx, wire+s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := port.Write(data)
		if err == nil {
			err = port.Drain()
		}
		done <- err
	}()

	select {
	case err := <-done:
		port.Close()
		if err != nil {
			return &DeviceError{Strategy: s.Name(), Device: device, Err: fmt.Errorf("write failed: %w", err)}
		}
		return nil
	case <-ctx.Done():
		// Closing the port unblocks the pending write
		port.Close()
		return &DeviceError{Strategy: s.Name(), Device: device, Err: ErrTimeout}
	}
}

// ListSerialPorts returns the serial: device names present on this machine.
func ListSerialPorts() ([]Device, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, Device{Name: serialPrefix + p})
	}
	return devices, nil
}

func parseSerialDevice(device string, defaultBaud int) (string, int, error) {
	rest := strings.TrimPrefix(device, serialPrefix)
	port, baudStr, hasBaud := strings.Cut(rest, "@")
	if err := validateCommon(port); err != nil {
		return "", 0, err
	}
	baud := defaultBaud
	if hasBaud {
		b, err := strconv.Atoi(baudStr)
		if err != nil || b <= 0 {
			return "", 0, fmt.Errorf("%w: bad baud rate in %q", ErrInvalidDeviceName, device)
		}
		baud = b
	}
	return port, baud, nil
}
