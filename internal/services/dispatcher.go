package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/rawio"
)

// PrintDispatcher turns rendered receipts into ESC/POS jobs and writes them
// to the printer without any dialog.
type PrintDispatcher struct {
	browser Browser
	writer  rawio.RawWriteStrategy
	cfg     model.PrintConfig
	log     *zap.Logger
}

// NewPrintDispatcher builds a dispatcher. browser may be nil in text mode.
func NewPrintDispatcher(browser Browser, writer rawio.RawWriteStrategy, cfg model.PrintConfig, log *zap.Logger) *PrintDispatcher {
	return &PrintDispatcher{
		browser: browser,
		writer:  writer,
		cfg:     cfg,
		log:     logger.OrNop(log).Named("dispatcher"),
	}
}

// PrintHTML captures html at the paper width and prints it as a raster
// image. A document that cannot be loaded never reaches the printer.
func (d *PrintDispatcher) PrintHTML(ctx context.Context, printer, html string) error {
	if d.browser == nil {
		return fmt.Errorf("html printing needs a browser")
	}
	shot, err := d.browser.Capture(ctx, html, printableWidthMM(d.cfg.PaperWidthMM), d.cfg.DotWidth)
	if err != nil {
		if errors.Is(err, ErrDocumentLoad) {
			logger.FromContext(ctx, d.log).Error("receipt document did not load", zap.Error(err))
			return ErrDocumentLoad
		}
		return err
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return fmt.Errorf("failed to decode receipt capture: %w", err)
	}
	return d.PrintImage(ctx, printer, img)
}

// PrintImage scales img to the printer width and prints it.
func (d *PrintDispatcher) PrintImage(ctx context.Context, printer string, img image.Image) error {
	if img.Bounds().Dx() != d.cfg.DotWidth {
		img = scaleToWidth(img, d.cfg.DotWidth)
	}
	return d.write(ctx, printer, rasterImage(img))
}

// PrintText prints an ESC/POS text body.
func (d *PrintDispatcher) PrintText(ctx context.Context, printer string, body []byte) error {
	return d.write(ctx, printer, body)
}

// KickDrawer sends the drawer pulse on its own, outside any print job.
func (d *PrintDispatcher) KickDrawer(ctx context.Context, printer string) error {
	return d.writer.Write(ctx, printer, rawio.DrawerCommand())
}

func (d *PrintDispatcher) write(ctx context.Context, printer string, body []byte) error {
	job := frameJob(body, d.cfg.FeedLines, d.cfg.Cut)
	logger.FromContext(ctx, d.log).Debug("sending print job",
		zap.String("printer", printer),
		zap.Int("bytes", len(job)))
	return d.writer.Write(ctx, printer, job)
}

// defaultMaxRawPixels bounds raw images when the config leaves it unset.
const defaultMaxRawPixels = 8192

// DecodeImage reads a PNG, JPEG or GIF. The header is checked first so an
// image larger than print.max_raw_pixels on either side is never allocated.
func (d *PrintDispatcher) DecodeImage(data []byte) (image.Image, error) {
	limit := d.cfg.MaxRawPixels
	if limit <= 0 {
		limit = defaultMaxRawPixels
	}
	return decodeImage(data, limit)
}

func decodeImage(data []byte, maxSide int) (image.Image, error) {
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return nil, fmt.Errorf("unsupported image: empty %dx%d", hdr.Width, hdr.Height)
	}
	if hdr.Width > maxSide || hdr.Height > maxSide {
		return nil, fmt.Errorf("image too large: %dx%d exceeds %d pixels", hdr.Width, hdr.Height, maxSide)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	return img, nil
}
