package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// recordingWriter is a RawWriteStrategy that keeps every write.
type recordingWriter struct {
	mu     sync.Mutex
	err    error
	failOn func(data []byte) error
	writes []recordedWrite
}

type recordedWrite struct {
	device string
	data   []byte
}

func (w *recordingWriter) Name() string { return "recording" }

func (w *recordingWriter) Write(_ context.Context, device string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, recordedWrite{device: device, data: append([]byte(nil), data...)})
	if w.failOn != nil {
		if err := w.failOn(data); err != nil {
			return err
		}
	}
	return w.err
}

func (w *recordingWriter) all() []recordedWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]recordedWrite(nil), w.writes...)
}

// fakeBrowser returns a fixed capture, or err.
type fakeBrowser struct {
	png      []byte
	err      error
	lastHTML string
	calls    int
}

func (b *fakeBrowser) Capture(_ context.Context, html string, _, _ int) ([]byte, error) {
	b.calls++
	b.lastHTML = html
	if b.err != nil {
		return nil, b.err
	}
	return b.png, nil
}

func (b *fakeBrowser) Close() error { return nil }

// staticAssets resolves every reference to uri, or to nothing when ok is false.
type staticAssets struct {
	uri string
	ok  bool
}

func (a staticAssets) Resolve(context.Context, string) (string, bool) { return a.uri, a.ok }

// staticCodes returns a fixed payload and QR image.
type staticCodes struct {
	payload string
	uri     string
	ok      bool
}

func (c staticCodes) Payload(*model.Fiscal) string { return c.payload }

func (c staticCodes) DataURI(*model.Fiscal) (string, bool) { return c.uri, c.ok }

// pngHeader returns a PNG signature and IHDR chunk with no image data.
func pngHeader(w, h uint32) []byte {
	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolour with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr[:]...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPrintConfig() model.PrintConfig {
	return model.PrintConfig{
		Mode:         ModeHTML,
		PaperWidthMM: 80,
		DotWidth:     576,
		FeedLines:    3,
		Cut:          true,
		CodePage:     "cp858",
		Background:   true,
	}
}

// sampleJob is two burgers and a soda, one 19% tax line and a cash payment.
func sampleJob() *model.ReceiptJob {
	return &model.ReceiptJob{
		Business:    model.Business{Name: "Cafe Central", TaxID: "900123456-7", Address: "Calle 1 #2-3", Phone: "555-0101"},
		OrderNumber: "1042",
		Date:        "2024-03-05T14:30:00Z",
		Cashier:     "Ana",
		Items: []model.ReceiptItem{
			{Quantity: dec("2"), Name: "Burger", Modifiers: "no onions", Total: dec("20")},
			{Quantity: dec("1"), Name: "Soda", Total: dec("5")},
		},
		Subtotal: dec("25"),
		Taxes:    []model.TaxLine{{Name: "IVA", Rate: dec("19"), Amount: dec("4.75")}},
		Total:    dec("29.75"),
		Payments: []model.PaymentLine{{Method: "cash", Amount: dec("30")}},
		Change:   dec("0.25"),
	}
}
