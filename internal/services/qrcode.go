package services

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// CodeSource renders the fiscal QR code of a receipt.
type CodeSource interface {
	Payload(f *model.Fiscal) string
	DataURI(f *model.Fiscal) (string, bool)
}

type encodeFunc func(content string, level qrcode.RecoveryLevel, size int) ([]byte, error)

// CodeGenerator builds fiscal QR images. Encoding problems leave the
// receipt without a QR code instead of failing it.
type CodeGenerator struct {
	lookupBaseURL string
	size          int
	level         qrcode.RecoveryLevel
	encode        encodeFunc
	log           *zap.Logger
}

func NewCodeGenerator(fiscal model.FiscalConfig, qr model.QRConfig, log *zap.Logger) *CodeGenerator {
	return &CodeGenerator{
		lookupBaseURL: fiscal.LookupBaseURL,
		size:          qr.Size,
		level:         recoveryLevel(qr.Recovery),
		encode:        qrcode.Encode,
		log:           logger.OrNop(log).Named("qrcode"),
	}
}

// Payload is the explicit QR data when given, otherwise a lookup URL for
// the fiscal document key, otherwise empty.
func (g *CodeGenerator) Payload(f *model.Fiscal) string {
	if f == nil {
		return ""
	}
	if data := strings.TrimSpace(f.QRData); data != "" {
		return data
	}
	if key := strings.TrimSpace(f.DocumentKey); key != "" && g.lookupBaseURL != "" {
		return g.lookupBaseURL + "?DocumentKey=" + url.QueryEscape(key)
	}
	return ""
}

// DataURI encodes the payload for f as a PNG data URI.
func (g *CodeGenerator) DataURI(f *model.Fiscal) (string, bool) {
	payload := g.Payload(f)
	if payload == "" {
		return "", false
	}
	png, err := g.png(payload)
	if err != nil {
		g.log.Warn("qr code omitted", zap.Error(err))
		return "", false
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), true
}

func (g *CodeGenerator) png(payload string) (png []byte, err error) {
	if g.encode == nil {
		return nil, fmt.Errorf("no qr encoder available")
	}
	defer func() {
		if r := recover(); r != nil {
			png, err = nil, fmt.Errorf("qr encoder panicked: %v", r)
		}
	}()

	png, err = g.encode(payload, g.level, g.size)
	if err != nil {
		return nil, err
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("qr encoder returned no image")
	}
	return png, nil
}

func recoveryLevel(name string) qrcode.RecoveryLevel {
	switch strings.ToLower(name) {
	case "low":
		return qrcode.Low
	case "high":
		return qrcode.High
	case "highest":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}
