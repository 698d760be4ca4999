package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ESC/POS control bytes
const (
	escByte = 0x1B
	gsByte  = 0x1D
	lfByte  = 0x0A
)

// rasterBandRows bounds the height of one GS v 0 image; taller receipts are
// sent as consecutive bands.
const rasterBandRows = 1024

// maxQRPayload is the byte limit of a GS ( k model 2 symbol.
const maxQRPayload = 7089

// frameJob wraps a printable body with printer init, feed and cut.
func frameJob(body []byte, feedLines int, cut bool) []byte {
	job := make([]byte, 0, len(body)+10)
	job = append(job, escByte, '@') // ESC @ initialize
	job = append(job, body...)
	if feedLines > 0 {
		job = append(job, escByte, 'd', byte(min(feedLines, 255))) // ESC d n
	}
	if cut {
		job = append(job, gsByte, 'V', 'A', 0x00) // GS V A 0 partial cut
	}
	return job
}

// scaleToWidth scales src to width dots keeping its aspect ratio, flattened
// onto white so transparent areas do not print.
func scaleToWidth(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	height := 1
	if b.Dx() > 0 {
		height = max(1, b.Dy()*width/b.Dx())
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// rasterImage converts img to 1-bit GS v 0 raster commands. Rows are padded
// with white up to a whole byte.
func rasterImage(img image.Image) []byte {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}
	rowBytes := (width + 7) / 8

	var out bytes.Buffer
	for top := 0; top < height; top += rasterBandRows {
		rows := min(rasterBandRows, height-top)

		// GS v 0 m xL xH yL yH
		out.Write([]byte{
			gsByte, 'v', '0', 0x00,
			byte(rowBytes), byte(rowBytes >> 8),
			byte(rows), byte(rows >> 8),
		})

		band := make([]byte, rowBytes*rows)
		for y := 0; y < rows; y++ {
			for x := 0; x < width; x++ {
				if isDark(img.At(b.Min.X+x, b.Min.Y+top+y)) {
					band[y*rowBytes+x/8] |= 1 << (7 - uint(x%8))
				}
			}
		}
		out.Write(band)
	}
	return out.Bytes()
}

func isDark(c color.Color) bool {
	_, _, _, a := c.RGBA()
	if a < 0x8000 {
		return false
	}
	return color.Gray16Model.Convert(c).(color.Gray16).Y < 0x8000
}

// codePage is a printer character table and the charmap that feeds it.
type codePage struct {
	table   byte // ESC t n
	charmap *charmap.Charmap
}

var codePages = map[string]codePage{
	"cp437":  {table: 0, charmap: charmap.CodePage437},
	"cp850":  {table: 2, charmap: charmap.CodePage850},
	"cp858":  {table: 19, charmap: charmap.CodePage858},
	"cp1252": {table: 16, charmap: charmap.Windows1252},
}

func lookupCodePage(name string) (codePage, error) {
	cp, ok := codePages[strings.ToLower(name)]
	if !ok {
		return codePage{}, fmt.Errorf("unsupported code page %q", name)
	}
	return cp, nil
}

type alignment byte

const (
	alignLeft   alignment = 0
	alignCenter alignment = 1
)

// escposWriter builds ESC/POS text output a line at a time.
type escposWriter struct {
	buf     bytes.Buffer
	enc     *encoding.Encoder
	columns int
}

func newEscposWriter(cp codePage, columns int) *escposWriter {
	w := &escposWriter{
		enc:     encoding.ReplaceUnsupported(cp.charmap.NewEncoder()),
		columns: columns,
	}
	w.buf.Write([]byte{escByte, 't', cp.table})
	return w
}

func (w *escposWriter) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *escposWriter) align(a alignment) {
	w.buf.Write([]byte{escByte, 'a', byte(a)})
}

func (w *escposWriter) bold(on bool) {
	w.buf.Write([]byte{escByte, 'E', boolByte(on)})
}

func (w *escposWriter) doubleSize(on bool) {
	size := byte(0x00)
	if on {
		size = 0x11
	}
	w.buf.Write([]byte{gsByte, '!', size})
}

// text encodes s to the code page. Control characters in s are printed as
// spaces so receipt data can never inject printer commands.
func (w *escposWriter) text(s string) {
	s = stripControls(s)
	encoded, err := w.enc.String(s)
	if err != nil {
		encoded = asciiOnly(s)
	}
	w.buf.WriteString(encoded)
}

// line writes s wrapped to the paper width.
func (w *escposWriter) line(s string) {
	for _, part := range wrap(s, w.columns) {
		w.text(part)
		w.buf.WriteByte(lfByte)
	}
}

// pair writes left and right on one line, right-aligned to the paper edge.
// A left side too long to share the line is wrapped above it.
func (w *escposWriter) pair(left, right string) {
	room := w.columns - utf8.RuneCountInString(right) - 1
	lines := wrap(left, max(room, 1))
	for _, l := range lines[:len(lines)-1] {
		w.line(l)
	}
	last := lines[len(lines)-1]
	pad := w.columns - utf8.RuneCountInString(last) - utf8.RuneCountInString(right)
	w.text(last + strings.Repeat(" ", max(pad, 1)) + right)
	w.buf.WriteByte(lfByte)
}

func (w *escposWriter) rule() {
	w.line(strings.Repeat("-", w.columns))
}

// qr prints payload as a native model 2 QR symbol. Printers without QR
// support ignore the sequence.
func (w *escposWriter) qr(payload string, moduleSize byte, level byte) bool {
	data := []byte(payload)
	if len(data) == 0 || len(data) > maxQRPayload {
		return false
	}
	n := len(data) + 3

	// model 2, module size, error correction, then store the data
	w.buf.Write([]byte{gsByte, '(', 'k', 4, 0, '1', 'A', '2', 0})
	w.buf.Write([]byte{gsByte, '(', 'k', 3, 0, '1', 'C', moduleSize})
	w.buf.Write([]byte{gsByte, '(', 'k', 3, 0, '1', 'E', level})
	w.buf.Write([]byte{gsByte, '(', 'k', byte(n), byte(n >> 8), '1', 'P', '0'})
	w.buf.Write(data)
	w.buf.Write([]byte{gsByte, '(', 'k', 3, 0, '1', 'Q', '0'})
	w.buf.WriteByte(lfByte)
	return true
}

func boolByte(on bool) byte {
	if on {
		return 1
	}
	return 0
}

// wrap splits s into lines of at most width runes, breaking on spaces where
// possible. Embedded newlines are kept.
func wrap(s string, width int) []string {
	width = max(width, 1)
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := ""
		for _, word := range words {
			for utf8.RuneCountInString(word) > width {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				r := []rune(word)
				out = append(out, string(r[:width]))
				word = string(r[width:])
			}
			switch {
			case cur == "":
				cur = word
			case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= width:
				cur += " " + word
			default:
				out = append(out, cur)
				cur = word
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

func stripControls(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
