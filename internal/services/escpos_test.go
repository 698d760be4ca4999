package services

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameJob(t *testing.T) {
	body := []byte("hello\n")

	job := frameJob(body, 3, true)
	want := append([]byte{0x1B, '@'}, body...)
	want = append(want, 0x1B, 'd', 3, 0x1D, 'V', 'A', 0x00)
	assert.Equal(t, want, job)

	job = frameJob(body, 0, false)
	assert.Equal(t, append([]byte{0x1B, '@'}, body...), job)

	job = frameJob(nil, 1000, false)
	assert.Equal(t, []byte{0x1B, '@', 0x1B, 'd', 255}, job)
}

func TestRasterImage_Bits(t *testing.T) {
	// 10 dots wide: one full byte plus two padded bits per row
	img := image.NewRGBA(image.Rect(0, 0, 10, 2))
	for x := 0; x < 10; x++ {
		img.Set(x, 0, color.White)
		img.Set(x, 1, color.White)
	}
	img.Set(0, 0, color.Black)
	img.Set(9, 0, color.Black)
	img.Set(7, 1, color.Black)

	out := rasterImage(img)

	require.Len(t, out, 8+2*2)
	assert.Equal(t, []byte{0x1D, 'v', '0', 0x00, 2, 0, 2, 0}, out[:8])
	assert.Equal(t, []byte{0x80, 0x40}, out[8:10])
	assert.Equal(t, []byte{0x01, 0x00}, out[10:12])
}

func TestRasterImage_TransparentIsWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 1))
	img.Set(0, 0, color.NRGBA{A: 0})
	img.Set(1, 0, color.NRGBA{A: 255})

	out := rasterImage(img)
	require.Len(t, out, 9)
	assert.Equal(t, byte(0x40), out[8])
}

func TestRasterImage_Bands(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, rasterBandRows+10))

	out := rasterImage(img)

	header := []byte{0x1D, 'v', '0', 0x00}
	assert.Equal(t, 2, bytes.Count(out, header))
	assert.Equal(t, []byte{1, 0, 0x00, 0x04}, out[4:8])

	second := 8 + rasterBandRows
	assert.Equal(t, header, out[second:second+4])
	assert.Equal(t, []byte{1, 0, 10, 0}, out[second+4:second+8])
	assert.Len(t, out, 2*8+rasterBandRows+10)
}

func TestRasterImage_Empty(t *testing.T) {
	assert.Nil(t, rasterImage(image.NewRGBA(image.Rectangle{})))
}

func TestScaleToWidth(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			src.Set(x, y, color.Black)
		}
	}

	dst := scaleToWidth(src, 576)

	assert.Equal(t, 576, dst.Bounds().Dx())
	assert.Equal(t, 288, dst.Bounds().Dy())
	assert.True(t, isDark(dst.At(10, 10)))
	// transparent source pixels land on white
	assert.False(t, isDark(dst.At(500, 10)))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dst.RGBAAt(500, 10))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  []string
	}{
		{"fits", "hello world", 20, []string{"hello world"}},
		{"breaks on space", "hello big world", 9, []string{"hello big", "world"}},
		{"long word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"newlines kept", "a\n\nb", 10, []string{"a", "", "b"}},
		{"empty", "", 10, []string{""}},
		{"zero width", "ab", 0, []string{"a", "b"}},
		{"runes", "ñandú ñandú", 5, []string{"ñandú", "ñandú"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrap(tt.in, tt.width))
		})
	}
}

func newTestWriter(t *testing.T, columns int) *escposWriter {
	t.Helper()
	cp, err := lookupCodePage("cp858")
	require.NoError(t, err)
	return newEscposWriter(cp, columns)
}

func TestEscposWriter_SelectsCodePage(t *testing.T) {
	w := newTestWriter(t, 32)
	assert.Equal(t, []byte{0x1B, 't', 19}, w.Bytes())

	_, err := lookupCodePage("klingon")
	assert.Error(t, err)

	cp, err := lookupCodePage("CP437")
	require.NoError(t, err)
	assert.Equal(t, byte(0), cp.table)
}

func TestEscposWriter_Pair(t *testing.T) {
	w := newTestWriter(t, 20)
	w.pair("Subtotal", "$25")

	assert.Equal(t, "Subtotal         $25\n", string(w.Bytes()[3:]))
}

func TestEscposWriter_PairWrapsLongLeft(t *testing.T) {
	w := newTestWriter(t, 16)
	w.pair("2 x Double cheeseburger", "$20")

	lines := strings.Split(strings.TrimSuffix(string(w.Bytes()[3:]), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2 x Double", lines[0])
	assert.Equal(t, "cheeseburger $20", lines[1])
}

func TestEscposWriter_Encoding(t *testing.T) {
	w := newTestWriter(t, 32)
	w.text("€ñ")
	assert.Equal(t, []byte{0xD5, 0xA4}, w.Bytes()[3:])

	// characters outside the table are replaced, not dropped
	w = newTestWriter(t, 32)
	w.text("a漢b")
	out := w.Bytes()[3:]
	require.Len(t, out, 3)
	assert.Equal(t, byte('a'), out[0])
	assert.Equal(t, byte('b'), out[2])
}

func TestEscposWriter_TextNeverEmitsCommands(t *testing.T) {
	w := newTestWriter(t, 32)
	w.text("Soda\x1dVA\x00\x1bp\x00\x30\x3c")
	assert.Equal(t, "Soda VA  p 0<", string(w.Bytes()[3:]))
}

func TestEscposWriter_AlignAndStyle(t *testing.T) {
	w := newTestWriter(t, 32)
	w.align(alignCenter)
	w.bold(true)
	w.doubleSize(true)
	w.doubleSize(false)
	w.bold(false)
	w.align(alignLeft)

	assert.Equal(t, []byte{
		0x1B, 'a', 1,
		0x1B, 'E', 1,
		0x1D, '!', 0x11,
		0x1D, '!', 0x00,
		0x1B, 'E', 0,
		0x1B, 'a', 0,
	}, w.Bytes()[3:])
}

func TestEscposWriter_QR(t *testing.T) {
	w := newTestWriter(t, 32)
	require.True(t, w.qr("abc", 6, '1'))

	want := []byte{0x1B, 't', 19}
	want = append(want, 0x1D, '(', 'k', 4, 0, '1', 'A', '2', 0)
	want = append(want, 0x1D, '(', 'k', 3, 0, '1', 'C', 6)
	want = append(want, 0x1D, '(', 'k', 3, 0, '1', 'E', '1')
	want = append(want, 0x1D, '(', 'k', 6, 0, '1', 'P', '0', 'a', 'b', 'c')
	want = append(want, 0x1D, '(', 'k', 3, 0, '1', 'Q', '0', 0x0A)
	assert.Equal(t, want, w.Bytes())

	w = newTestWriter(t, 32)
	assert.False(t, w.qr("", 6, '1'))
	assert.False(t, w.qr(strings.Repeat("x", maxQRPayload+1), 6, '1'))
	assert.Len(t, w.Bytes(), 3)
}

func TestIsDark(t *testing.T) {
	assert.True(t, isDark(color.Black))
	assert.False(t, isDark(color.White))
	assert.True(t, isDark(color.Gray{Y: 0x40}))
	assert.False(t, isDark(color.Gray{Y: 0xC0}))
	assert.False(t, isDark(color.Transparent))
}
