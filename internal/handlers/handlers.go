// Package handlers exposes the print service over HTTP for the point of
// sale running in the browser.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// PrintService is the part of the print service the API calls.
type PrintService interface {
	PrintReceipt(ctx context.Context, printer string, job *model.ReceiptJob) model.Result
	PrintRaw(ctx context.Context, printer, imageBase64 string) model.Result
	OpenCashDrawer(ctx context.Context, printer string) model.Result
	ListPrinters(ctx context.Context) []model.PrinterInfo
}

type printReceiptRequest struct {
	PrinterName string            `json:"printerName"`
	Job         *model.ReceiptJob `json:"job"`
}

type printRawRequest struct {
	PrinterName      string `json:"printerName"`
	ImageBytesBase64 string `json:"imageBytesBase64"`
}

type drawerRequest struct {
	PrinterName string `json:"printerName"`
}

type Handler struct {
	svc     PrintService
	version string
}

// NewRouter builds the API with CORS applied. gatherer backs /metrics and
// may be nil to serve the default registry.
func NewRouter(svc PrintService, gatherer prometheus.Gatherer, cfg model.HTTPConfig, version string, log *zap.Logger) http.Handler {
	h := &Handler{svc: svc, version: version}

	router := gin.New()
	router.Use(logger.GinMiddleware(log), logger.Recovery(log))
	if cfg.MaxBodyBytes > 0 {
		router.Use(limitBody(cfg.MaxBodyBytes))
	}

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(metricsHandler(gatherer)))

	api := router.Group("/api")
	api.GET("/printers", h.listPrinters)
	api.POST("/print-receipt", h.printReceipt)
	api.POST("/print-raw", h.printRaw)
	api.POST("/open-cash-drawer", h.openCashDrawer)

	allowedOrigins := handlers.AllowedOrigins(cfg.AllowedOrigins)
	allowedMethods := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
	allowedHeaders := handlers.AllowedHeaders([]string{"Content-Type", "Access-Control-Allow-Private-Network", "X-Request-ID"})

	return allowPrivateNetwork(handlers.CORS(allowedOrigins, allowedMethods, allowedHeaders)(router))
}

// allowPrivateNetwork lets pages on public origins reach the bridge on
// localhost (Chrome's Private Network Access preflight).
func allowPrivateNetwork(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Private-Network", "true")
		next.ServeHTTP(w, r)
	})
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

func (h *Handler) listPrinters(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListPrinters(c.Request.Context()))
}

func (h *Handler) printReceipt(c *gin.Context) {
	var req printReceiptRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.PrintReceipt(c.Request.Context(), req.PrinterName, req.Job))
}

func (h *Handler) printRaw(c *gin.Context) {
	var req printRawRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.PrintRaw(c.Request.Context(), req.PrinterName, req.ImageBytesBase64))
}

func (h *Handler) openCashDrawer(c *gin.Context) {
	var req drawerRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.OpenCashDrawer(c.Request.Context(), req.PrinterName))
}

// bind decodes the JSON body or answers 400 with a failed result.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, model.Fail("invalid request body: "+err.Error()))
		return false
	}
	return true
}
