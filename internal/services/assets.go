package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

const defaultAssetType = "image/png"

// AssetSource turns an image reference into an embeddable data URI.
type AssetSource interface {
	Resolve(ctx context.Context, ref string) (string, bool)
}

// AssetResolver fetches logos and other images for receipts. It never fails
// a print: anything that goes wrong yields no asset and a warning.
type AssetResolver struct {
	client       *http.Client
	baseURL      *url.URL
	maxRedirects int
	maxBytes     int64
	metrics      *Metrics
	log          *zap.Logger
}

// NewAssetResolver picks the production or development base URL for
// relative references.
func NewAssetResolver(cfg model.AssetsConfig, production bool, metrics *Metrics, log *zap.Logger) (*AssetResolver, error) {
	base := cfg.BaseURLDev
	if production {
		base = cfg.BaseURLProd
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid asset base url %q: %w", base, err)
	}

	return &AssetResolver{
		client: &http.Client{
			Timeout: cfg.Timeout,
			// Redirects are followed by hand so the hop count is ours
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:      baseURL,
		maxRedirects: cfg.MaxRedirects,
		maxBytes:     cfg.MaxBytes,
		metrics:      metrics,
		log:          logger.OrNop(log).Named("assets"),
	}, nil
}

// Resolve returns ref as a data URI. data: references come back unchanged.
func (r *AssetResolver) Resolve(ctx context.Context, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if strings.HasPrefix(ref, "data:") {
		return ref, true
	}

	target, err := r.absolute(ref)
	if err != nil {
		r.drop(ref, "invalid reference", err)
		return "", false
	}

	for hop := 0; ; hop++ {
		resp, err := r.get(ctx, target)
		if err != nil {
			r.drop(target.String(), "request failed", err)
			return "", false
		}

		if isRedirect(resp.StatusCode) {
			resp.Body.Close()
			if hop >= r.maxRedirects {
				r.drop(target.String(), "too many redirects", nil)
				return "", false
			}
			loc := resp.Header.Get("Location")
			next, err := target.Parse(loc)
			if loc == "" || err != nil {
				r.drop(target.String(), "redirect without a usable location", err)
				return "", false
			}
			target = next
			continue
		}

		uri, err := r.encode(resp)
		resp.Body.Close()
		if err != nil {
			r.drop(target.String(), "unusable response", err)
			return "", false
		}
		return uri, true
	}
}

func (r *AssetResolver) absolute(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		return u, nil
	}
	return r.baseURL.ResolveReference(u), nil
}

func (r *AssetResolver) get(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	return r.client.Do(req)
}

func (r *AssetResolver) encode(resp *http.Response) (string, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if r.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, r.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if r.maxBytes > 0 && int64(len(body)) > r.maxBytes {
		return "", fmt.Errorf("body exceeds %d bytes", r.maxBytes)
	}

	return "data:" + contentType(resp.Header.Get("Content-Type")) + ";base64," +
		base64.StdEncoding.EncodeToString(body), nil
}

func (r *AssetResolver) drop(ref, reason string, err error) {
	r.metrics.assetFailure()
	fields := []zap.Field{zap.String("ref", ref), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	r.log.Warn("asset omitted", fields...)
}

func contentType(header string) string {
	if header == "" {
		return defaultAssetType
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" {
		return defaultAssetType
	}
	return mediaType
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
