package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/rawio"
)

const (
	ModeHTML = "html"
	ModeText = "text"
)

const (
	msgNoPrinter = "no printer specified"
	msgNoJob     = "no receipt job"
	msgNoImage   = "no image data"
)

// Service is the print bridge seen from outside: every operation resolves
// to a model.Result and never panics or returns a Go error.
type Service struct {
	mode       string
	renderer   *DocumentRenderer
	text       *TextRenderer
	dispatcher *PrintDispatcher
	directory  *PrinterDirectory
	metrics    *Metrics
	log        *zap.Logger
}

// ServiceOptions are the parts a Service is assembled from. Renderer is
// required in html mode and TextRenderer in text mode.
type ServiceOptions struct {
	Mode         string
	Renderer     *DocumentRenderer
	TextRenderer *TextRenderer
	Dispatcher   *PrintDispatcher
	Directory    *PrinterDirectory
	Metrics      *Metrics
	Logger       *zap.Logger
}

func NewService(opts ServiceOptions) *Service {
	mode := opts.Mode
	if mode == "" {
		mode = ModeHTML
	}
	return &Service{
		mode:       mode,
		renderer:   opts.Renderer,
		text:       opts.TextRenderer,
		dispatcher: opts.Dispatcher,
		directory:  opts.Directory,
		metrics:    opts.Metrics,
		log:        logger.OrNop(opts.Logger).Named("service"),
	}
}

// Build wires a Service and everything under it from the configuration.
// The returned close func shuts the browser down.
func Build(cfg *model.Config, chromePath string, writer rawio.RawWriteStrategy, reg prometheus.Registerer, log *zap.Logger) (*Service, func(), error) {
	metrics := NewMetrics(reg)
	codes := NewCodeGenerator(cfg.Fiscal, cfg.QR, log)
	directory := NewPrinterDirectory(platformOf(writer), cfg.Printers, log)

	opts := ServiceOptions{
		Mode:      cfg.Print.Mode,
		Directory: directory,
		Metrics:   metrics,
		Logger:    log,
	}
	closeFn := func() {}

	switch cfg.Print.Mode {
	case ModeText:
		text, err := NewTextRenderer(codes, cfg.Print, log)
		if err != nil {
			return nil, nil, err
		}
		opts.TextRenderer = text
		opts.Dispatcher = NewPrintDispatcher(nil, writer, cfg.Print, log)
	default:
		assets, err := NewAssetResolver(cfg.Assets, cfg.App.IsProduction(), metrics, log)
		if err != nil {
			return nil, nil, err
		}
		renderer, err := NewDocumentRenderer(assets, codes, cfg.Print, log)
		if err != nil {
			return nil, nil, err
		}
		browser := NewChromeBrowser(cfg.Chrome, chromePath, cfg.Print.RenderDelay, log)
		closeFn = func() { browser.Close() }
		opts.Renderer = renderer
		opts.Dispatcher = NewPrintDispatcher(browser, writer, cfg.Print, log)
	}

	return NewService(opts), closeFn, nil
}

// platformOf unwraps a Router to the strategy that owns OS printer names.
func platformOf(writer rawio.RawWriteStrategy) rawio.RawWriteStrategy {
	if r, ok := writer.(*rawio.Router); ok {
		return r.Platform()
	}
	return writer
}

// Directory exposes the printer directory the service resolves names with.
func (s *Service) Directory() *PrinterDirectory {
	return s.directory
}

// PrintReceipt renders job and prints it on printer, then kicks the cash
// drawer when the job asks for it. A drawer failure does not fail the print.
func (s *Service) PrintReceipt(ctx context.Context, printer string, job *model.ReceiptJob) model.Result {
	ctx, log := s.jobContext(ctx, printer)

	if strings.TrimSpace(printer) == "" {
		return model.Fail(msgNoPrinter)
	}
	if job == nil {
		return model.Fail(msgNoJob)
	}
	target := s.directory.Resolve(printer)

	err := s.print(ctx, target, job)
	s.metrics.printJob("receipt", err == nil)
	if err != nil {
		log.Error("receipt print failed", zap.Error(err))
		return model.Fail(failureMessage(err))
	}
	log.Info("receipt printed", zap.String("order", job.OrderNumber))

	if job.OpenCashDrawer {
		if err := s.kick(ctx, target); err != nil {
			log.Warn("cash drawer did not open after print", zap.Error(err))
		}
	}
	return model.OK()
}

func (s *Service) print(ctx context.Context, target string, job *model.ReceiptJob) error {
	if s.dispatcher == nil {
		return fmt.Errorf("printing is not configured")
	}
	switch s.mode {
	case ModeText:
		if s.text == nil {
			return fmt.Errorf("text printing is not configured")
		}
		body, err := s.text.Render(ctx, job)
		if err != nil {
			return err
		}
		return s.dispatcher.PrintText(ctx, target, body)
	default:
		if s.renderer == nil {
			return fmt.Errorf("html printing is not configured")
		}
		html, err := s.renderer.Render(ctx, job)
		if err != nil {
			return err
		}
		return s.dispatcher.PrintHTML(ctx, target, html)
	}
}

// PrintRaw prints a base64 image (PNG, JPEG or GIF, optionally as a data
// URI) as-is.
func (s *Service) PrintRaw(ctx context.Context, printer, imageBase64 string) model.Result {
	ctx, log := s.jobContext(ctx, printer)

	if strings.TrimSpace(printer) == "" {
		return model.Fail(msgNoPrinter)
	}
	data, err := decodeBase64Image(imageBase64)
	if err != nil {
		return model.Fail(err.Error())
	}
	if s.dispatcher == nil {
		return model.Fail("printing is not configured")
	}
	img, err := s.dispatcher.DecodeImage(data)
	if err != nil {
		return model.Fail(err.Error())
	}

	err = s.dispatcher.PrintImage(ctx, s.directory.Resolve(printer), img)
	s.metrics.printJob("raw", err == nil)
	if err != nil {
		log.Error("raw print failed", zap.Error(err))
		return model.Fail(failureMessage(err))
	}
	log.Info("image printed", zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))
	return model.OK()
}

// OpenCashDrawer sends the drawer pulse to printer.
func (s *Service) OpenCashDrawer(ctx context.Context, printer string) model.Result {
	ctx, log := s.jobContext(ctx, printer)

	if strings.TrimSpace(printer) == "" {
		return model.Fail(msgNoPrinter)
	}
	if err := s.kick(ctx, s.directory.Resolve(printer)); err != nil {
		log.Error("cash drawer failed", zap.Error(err))
		return model.Fail(failureMessage(err))
	}
	log.Info("cash drawer opened")
	return model.OK()
}

// ListPrinters returns every printer the bridge can reach.
func (s *Service) ListPrinters(ctx context.Context) []model.PrinterInfo {
	return s.directory.List(ctx)
}

func (s *Service) kick(ctx context.Context, target string) error {
	if s.dispatcher == nil {
		return fmt.Errorf("printing is not configured")
	}
	err := s.dispatcher.KickDrawer(ctx, target)
	s.metrics.drawerKick(err == nil)
	return err
}

func (s *Service) jobContext(ctx context.Context, printer string) (context.Context, *zap.Logger) {
	log := logger.FromContext(ctx, s.log).With(
		zap.String("job_id", uuid.NewString()),
		zap.String("printer", printer),
	)
	return logger.WithContext(ctx, log), log
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrDocumentLoad):
		return ErrDocumentLoad.Error()
	case errors.Is(err, rawio.ErrNoPrinter):
		return msgNoPrinter
	default:
		return err.Error()
	}
}

// decodeBase64Image accepts plain base64 or a data URI.
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("invalid data uri")
		}
		s = payload
	}
	if s == "" {
		return nil, errors.New(msgNoImage)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return data, nil
		}
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}
