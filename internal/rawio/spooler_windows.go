//go:build windows

package rawio

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
	"go.uber.org/zap"
)

var (
	winspool               = windows.NewLazySystemDLL("winspool.drv")
	procOpenPrinterW       = winspool.NewProc("OpenPrinterW")
	procClosePrinter       = winspool.NewProc("ClosePrinter")
	procStartDocPrinterW   = winspool.NewProc("StartDocPrinterW")
	procEndDocPrinter      = winspool.NewProc("EndDocPrinter")
	procStartPagePrinter   = winspool.NewProc("StartPagePrinter")
	procEndPagePrinter     = winspool.NewProc("EndPagePrinter")
	procWritePrinter       = winspool.NewProc("WritePrinter")
	procEnumPrintersW      = winspool.NewProc("EnumPrintersW")
	procGetDefaultPrinterW = winspool.NewProc("GetDefaultPrinterW")
)

const (
	printerEnumLocal       = 0x00000002
	printerEnumConnections = 0x00000004
)

// DOC_INFO_1W
type docInfo1 struct {
	docName    *uint16
	outputFile *uint16
	datatype   *uint16
}

// PRINTER_INFO_4W
type printerInfo4 struct {
	printerName *uint16
	serverName  *uint16
	attributes  uint32
}

// SpoolerStrategy opens the printer through winspool and writes a document
// with the RAW datatype, so the driver passes the bytes through untouched.
type SpoolerStrategy struct {
	timeout time.Duration
	log     *zap.Logger
	calls   inflight
}

func NewSpoolerStrategy(opts Options) *SpoolerStrategy {
	opts.applyDefaults()
	return &SpoolerStrategy{
		timeout: opts.HelperTimeout,
		log:     opts.Logger.Named("spooler"),
	}
}

func platformStrategy(opts Options) RawWriteStrategy {
	return NewSpoolerStrategy(opts)
}

func (s *SpoolerStrategy) Name() string {
	return "spooler"
}

func (s *SpoolerStrategy) Write(ctx context.Context, device string, data []byte) error {
	if err := ValidateSpoolerName(device); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// winspool calls cannot be interrupted; a timed out call keeps the
	// printer busy until it returns.
	err := s.calls.run(ctx, device, func() error {
		return writeRaw(device, "Raw print job", data)
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		s.log.Warn("spooler call timed out", zap.String("printer", device), zap.Duration("timeout", s.timeout))
		return &DeviceError{Strategy: s.Name(), Device: device, Err: ErrTimeout}
	default:
		return &DeviceError{Strategy: s.Name(), Device: device, Err: err}
	}
}

func writeRaw(device, docName string, data []byte) error {
	name, err := windows.UTF16PtrFromString(device)
	if err != nil {
		return err
	}
	var h windows.Handle
	if r, _, e := procOpenPrinterW.Call(uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(&h)), 0); r == 0 {
		return fmt.Errorf("OpenPrinter: %w", e)
	}
	defer procClosePrinter.Call(uintptr(h))

	doc, _ := windows.UTF16PtrFromString(docName)
	datatype, _ := windows.UTF16PtrFromString("RAW")
	di := docInfo1{docName: doc, datatype: datatype}
	if r, _, e := procStartDocPrinterW.Call(uintptr(h), 1, uintptr(unsafe.Pointer(&di))); r == 0 {
		return fmt.Errorf("StartDocPrinter: %w", e)
	}
	defer procEndDocPrinter.Call(uintptr(h))

	if r, _, e := procStartPagePrinter.Call(uintptr(h)); r == 0 {
		return fmt.Errorf("StartPagePrinter: %w", e)
	}
	defer procEndPagePrinter.Call(uintptr(h))

	var written uint32
	r, _, e := procWritePrinter.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(uint32(len(data))),
		uintptr(unsafe.Pointer(&written)),
	)
	if r == 0 {
		return fmt.Errorf("WritePrinter: %w", e)
	}
	if int(written) != len(data) {
		return fmt.Errorf("WritePrinter: wrote %d of %d bytes", written, len(data))
	}
	return nil
}

// ListDevices enumerates local and connected printers.
func (s *SpoolerStrategy) ListDevices(ctx context.Context) ([]Device, error) {
	flags := uintptr(printerEnumLocal | printerEnumConnections)

	var needed, returned uint32
	r, _, e := procEnumPrintersW.Call(flags, 0, 4, 0, 0,
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r == 0 && !errors.Is(e, windows.ERROR_INSUFFICIENT_BUFFER) {
		return nil, fmt.Errorf("EnumPrinters: %w", e)
	}
	if needed == 0 {
		return nil, nil
	}

	buf := make([]byte, needed)
	r, _, e = procEnumPrintersW.Call(flags, 0, 4,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r == 0 {
		return nil, fmt.Errorf("EnumPrinters: %w", e)
	}

	def := defaultPrinter()
	infos := unsafe.Slice((*printerInfo4)(unsafe.Pointer(&buf[0])), returned)
	devices := make([]Device, 0, returned)
	for _, info := range infos {
		name := windows.UTF16PtrToString(info.printerName)
		devices = append(devices, Device{Name: name, IsDefault: name == def})
	}
	return devices, nil
}

func defaultPrinter() string {
	var size uint32
	procGetDefaultPrinterW.Call(0, uintptr(unsafe.Pointer(&size)))
	if size == 0 {
		return ""
	}
	buf := make([]uint16, size)
	if r, _, _ := procGetDefaultPrinterW.Call(uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size))); r == 0 {
		return ""
	}
	return windows.UTF16ToString(buf)
}
