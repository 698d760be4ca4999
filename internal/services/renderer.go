package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

//go:embed templates/receipt.html
var templateFS embed.FS

const (
	defaultFontSize  = 12
	defaultLogoWidth = 160
)

// Helper functions for the receipt template
var templateFuncs = template.FuncMap{
	"formatMoney": formatMoney,
	"formatQty":   formatQty,
	"formatDate":  formatDate,
	"taxLabel":    taxLabel,
	"percent":     formatPercent,
}

// DocumentRenderer turns a receipt job into a complete HTML page sized for
// the receipt paper.
type DocumentRenderer struct {
	tmpl         *template.Template
	assets       AssetSource
	codes        CodeSource
	paperWidthMM int
	background   bool
	log          *zap.Logger
}

func NewDocumentRenderer(assets AssetSource, codes CodeSource, cfg model.PrintConfig, log *zap.Logger) (*DocumentRenderer, error) {
	tmpl, err := template.New("receipt.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/receipt.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipt template: %w", err)
	}
	return &DocumentRenderer{
		tmpl:         tmpl,
		assets:       assets,
		codes:        codes,
		paperWidthMM: cfg.PaperWidthMM,
		background:   cfg.Background,
		log:          logger.OrNop(log).Named("renderer"),
	}, nil
}

// receiptView is what the template sees. Presence decisions are made here
// so the template only lays things out.
type receiptView struct {
	Job            *model.ReceiptJob
	Logo           template.URL
	QRCode         template.URL
	PaperWidthMM   int
	ContentWidthMM int
	FontSize       int
	LogoWidth      int
	Background     bool

	Customer     *model.Customer
	ShowDiscount bool
	Taxes        []model.TaxLine
	ShowChange   bool
	Fiscal       *model.Fiscal
	FiscalNumber string
	ShowFiscal   bool
	HeaderLines  []string
	FooterLines  []string
}

// Render builds the receipt HTML. Missing logos or QR codes are left out;
// only a broken template is an error.
func (r *DocumentRenderer) Render(ctx context.Context, job *model.ReceiptJob) (string, error) {
	if job == nil {
		return "", fmt.Errorf("no receipt job")
	}

	view := receiptView{
		Job:            job,
		PaperWidthMM:   r.paperWidthMM,
		ContentWidthMM: printableWidthMM(r.paperWidthMM),
		FontSize:       positiveOr(job.FontSize, defaultFontSize),
		LogoWidth:      positiveOr(job.LogoSize, defaultLogoWidth),
		Background:     r.background,
		ShowDiscount:   showDiscount(job),
		Taxes:          taxLines(job),
		ShowChange:     showChange(job),
		HeaderLines:    textLines(job.HeaderText),
		FooterLines:    textLines(job.FooterText),
	}
	if !job.Customer.IsEmpty() {
		view.Customer = job.Customer
	}
	if job.Fiscal != nil {
		view.Fiscal = job.Fiscal
		view.FiscalNumber = job.Fiscal.DocumentNumber()
	}

	if job.LogoURL != "" && r.assets != nil {
		if uri, ok := r.assets.Resolve(ctx, job.LogoURL); ok {
			if strings.HasPrefix(uri, "data:image/") {
				view.Logo = template.URL(uri)
			} else {
				r.log.Warn("logo is not an image, omitted", zap.String("ref", job.LogoURL))
			}
		}
	}
	if job.Fiscal != nil && r.codes != nil {
		if uri, ok := r.codes.DataURI(job.Fiscal); ok {
			view.QRCode = template.URL(uri)
		}
	}
	view.ShowFiscal = hasFiscalContent(job.Fiscal) || view.QRCode != ""

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func showDiscount(job *model.ReceiptJob) bool {
	return job.Discount.IsPositive()
}

// taxLines is the tax breakdown to print. The single legacy tax amount is
// used only when no breakdown was sent.
func taxLines(job *model.ReceiptJob) []model.TaxLine {
	if len(job.Taxes) > 0 {
		return job.Taxes
	}
	if job.Tax.IsPositive() {
		line := model.TaxLine{Name: "Tax", Amount: job.Tax}
		if job.TaxRate.Valid {
			line.Rate = job.TaxRate.Decimal
		}
		return []model.TaxLine{line}
	}
	return nil
}

func showChange(job *model.ReceiptJob) bool {
	return !job.Change.IsZero()
}

func hasFiscalContent(f *model.Fiscal) bool {
	return f != nil && (f.DocumentNumber() != "" || f.Resolution != "" || f.ResolutionDate != "" ||
		f.HasValidity() || f.HasRange() || f.DocumentKey != "")
}

// printableWidthMM is the printable area of common thermal paper rolls.
func printableWidthMM(paperMM int) int {
	switch paperMM {
	case 58:
		return 48
	case 80:
		return 72
	default:
		return max(paperMM-8, 1)
	}
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func textLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// formatMoney renders an amount as $1,234.50, dropping the cents when the
// amount is whole ($25).
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	intPart, decPart, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	if decPart == "00" {
		return sign + "$" + result.String()
	}
	return sign + "$" + result.String() + "." + decPart
}

func formatQty(d decimal.Decimal) string {
	return d.String()
}

func formatPercent(d decimal.Decimal) string {
	return d.String() + "%"
}

// formatDate prints RFC3339 timestamps as dd/mm/yyyy hh:mm and passes
// anything else through.
func formatDate(dateStr string) string {
	t, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return dateStr
	}
	return t.Format("02/01/2006 15:04")
}

// taxLabel is the tax name with its rate appended unless the name already
// carries one.
func taxLabel(t model.TaxLine) string {
	name := strings.TrimSpace(t.Name)
	if t.Rate.IsZero() {
		if name == "" {
			return "Tax"
		}
		return name
	}
	rate := formatPercent(t.Rate)
	if name == "" {
		return rate
	}
	if strings.Contains(name, "%") {
		return name
	}
	return name + " " + rate
}
