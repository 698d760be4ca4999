package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

const (
	qrModuleSize = 6
	qrLevelM     = '1'
)

// TextRenderer lays a receipt out as ESC/POS text for printers driven
// without a browser. Logos are not printed in this mode.
type TextRenderer struct {
	codes    CodeSource
	codePage codePage
	columns  int
	log      *zap.Logger
}

func NewTextRenderer(codes CodeSource, cfg model.PrintConfig, log *zap.Logger) (*TextRenderer, error) {
	cp, err := lookupCodePage(cfg.CodePage)
	if err != nil {
		return nil, err
	}
	return &TextRenderer{
		codes:    codes,
		codePage: cp,
		columns:  columnsFor(cfg.PaperWidthMM),
		log:      logger.OrNop(log).Named("text"),
	}, nil
}

// columnsFor is the Font A character count per line.
func columnsFor(paperMM int) int {
	if paperMM == 58 {
		return 32
	}
	return 48
}

// Render returns the receipt body, without printer init, feed or cut.
func (r *TextRenderer) Render(ctx context.Context, job *model.ReceiptJob) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("no receipt job")
	}
	w := newEscposWriter(r.codePage, r.columns)

	w.align(alignCenter)
	if b := job.Business; b.Name != "" {
		w.bold(true)
		w.doubleSize(true)
		w.line(b.Name)
		w.doubleSize(false)
		w.bold(false)
	}
	if job.Business.TaxID != "" {
		w.line("Tax ID: " + job.Business.TaxID)
	}
	if job.Business.Address != "" {
		w.line(job.Business.Address)
	}
	if job.Business.Phone != "" {
		w.line("Tel: " + job.Business.Phone)
	}
	for _, l := range textLines(job.HeaderText) {
		w.line(l)
	}

	w.align(alignLeft)
	w.rule()
	if job.OrderNumber != "" {
		w.pair("Order", "#"+job.OrderNumber)
	}
	if job.Date != "" {
		w.pair("Date", formatDate(job.Date))
	}
	if job.Cashier != "" {
		w.pair("Cashier", job.Cashier)
	}
	if c := job.Customer; !c.IsEmpty() {
		if c.Name != "" {
			w.line("Customer: " + c.Name)
		}
		if c.IDNumber != "" {
			idType := c.IDType
			if idType == "" {
				idType = "ID"
			}
			w.line(idType + ": " + c.IDNumber)
		}
		if c.Phone != "" {
			w.line("Tel: " + c.Phone)
		}
	}

	w.rule()
	for _, item := range job.Items {
		w.pair(formatQty(item.Quantity)+" x "+item.Name, formatMoney(item.Total))
		if item.Modifiers != "" {
			w.line("   " + item.Modifiers)
		}
	}

	w.rule()
	w.pair("Subtotal", formatMoney(job.Subtotal))
	if showDiscount(job) {
		label := "Discount"
		if job.DiscountPercent.Valid {
			label += " (" + formatPercent(job.DiscountPercent.Decimal) + ")"
		}
		w.pair(label, "-"+formatMoney(job.Discount))
	}
	for _, t := range taxLines(job) {
		w.pair(taxLabel(t), formatMoney(t.Amount))
	}
	w.bold(true)
	w.pair("TOTAL", formatMoney(job.Total))
	w.bold(false)

	if len(job.Payments) > 0 {
		w.rule()
		for _, p := range job.Payments {
			w.pair(p.Method, formatMoney(p.Amount))
		}
	}
	if showChange(job) {
		w.pair("Change", formatMoney(job.Change))
	}

	r.writeFiscal(w, job.Fiscal)

	if lines := textLines(job.FooterText); len(lines) > 0 {
		w.rule()
		w.align(alignCenter)
		for _, l := range lines {
			w.line(l)
		}
		w.align(alignLeft)
	}
	return w.Bytes(), nil
}

func (r *TextRenderer) writeFiscal(w *escposWriter, f *model.Fiscal) {
	if f == nil {
		return
	}
	payload := ""
	if r.codes != nil {
		payload = r.codes.Payload(f)
	}
	if !hasFiscalContent(f) && payload == "" {
		return
	}

	w.rule()
	w.align(alignCenter)
	if n := f.DocumentNumber(); n != "" {
		w.line("Invoice " + n)
	}
	if f.Resolution != "" {
		w.line(f.Resolution)
	}
	if f.ResolutionDate != "" {
		w.line("Resolution date: " + f.ResolutionDate)
	}
	if f.HasValidity() {
		w.line("Valid " + f.ValidFrom + " to " + f.ValidTo)
	}
	if f.HasRange() {
		w.line("Authorized range " + f.RangeFrom + " to " + f.RangeTo)
	}
	if payload != "" && !w.qr(payload, qrModuleSize, qrLevelM) {
		r.log.Warn("qr payload too long for the printer, omitted", zap.Int("bytes", len(payload)))
	}
	w.align(alignLeft)
	if f.DocumentKey != "" {
		w.line(f.DocumentKey)
	}
}
