package services

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

const (
	logoURI = "data:image/png;base64,TE9HTw=="
	qrURI   = "data:image/png;base64,UVI="
)

func newTestRenderer(t *testing.T, assets AssetSource, codes CodeSource) *DocumentRenderer {
	t.Helper()
	r, err := NewDocumentRenderer(assets, codes, testPrintConfig(), nil)
	require.NoError(t, err)
	return r
}

func render(t *testing.T, r *DocumentRenderer, job *model.ReceiptJob) string {
	t.Helper()
	html, err := r.Render(context.Background(), job)
	require.NoError(t, err)
	return html
}

func TestRender_EndToEndTotals(t *testing.T) {
	html := render(t, newTestRenderer(t, nil, nil), sampleJob())

	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, `<span>Subtotal</span><span class="amount">$25</span>`)
	assert.Contains(t, html, `<span>IVA 19%</span><span class="amount">$4.75</span>`)
	assert.Contains(t, html, `<span>TOTAL</span><span class="amount">$29.75</span>`)
	assert.Contains(t, html, `<span>cash</span><span class="amount">$30</span>`)
	assert.Contains(t, html, `<span>2 x Burger</span><span class="amount">$20</span>`)
	assert.Contains(t, html, `<div class="modifiers">no onions</div>`)
	assert.Contains(t, html, "05/03/2024 14:30")
	assert.Equal(t, 1, strings.Count(html, `class="row section-tax"`))
}

func TestRender_TotalsAreNotRecomputed(t *testing.T) {
	job := sampleJob()
	job.Total = dec("31")

	html := render(t, newTestRenderer(t, nil, nil), job)

	assert.Contains(t, html, `<span class="amount">$31</span>`)
	assert.NotContains(t, html, "$29.75")
}

func TestRender_Discount(t *testing.T) {
	r := newTestRenderer(t, nil, nil)

	for _, amount := range []string{"0", "-2"} {
		job := sampleJob()
		job.Discount = dec(amount)
		job.DiscountPercent = decimal.NewNullDecimal(dec("10"))
		assert.NotContains(t, render(t, r, job), "section-discount", "discount %s", amount)
	}

	job := sampleJob()
	job.Discount = dec("2.50")
	html := render(t, r, job)
	assert.Contains(t, html, `<span>Discount</span><span class="amount">-$2.50</span>`)

	job.DiscountPercent = decimal.NewNullDecimal(dec("10"))
	html = render(t, r, job)
	assert.Contains(t, html, `<span>Discount (10%)</span>`)
}

func TestRender_LegacyTax(t *testing.T) {
	r := newTestRenderer(t, nil, nil)

	job := sampleJob()
	job.Taxes = nil
	job.Tax = dec("4.75")
	html := render(t, r, job)
	assert.Equal(t, 1, strings.Count(html, "section-tax"))
	assert.Contains(t, html, `<span>Tax</span><span class="amount">$4.75</span>`)

	job.TaxRate = decimal.NewNullDecimal(dec("19"))
	html = render(t, r, job)
	assert.Contains(t, html, `<span>Tax 19%</span>`)

	// the breakdown wins over the legacy amount
	job = sampleJob()
	job.Tax = dec("99")
	job.Taxes = append(job.Taxes, model.TaxLine{Name: "INC", Rate: dec("8"), Amount: dec("2")})
	html = render(t, r, job)
	assert.Equal(t, 2, strings.Count(html, "section-tax"))
	assert.NotContains(t, html, "$99")

	job = sampleJob()
	job.Taxes = nil
	assert.NotContains(t, render(t, r, job), "section-tax")
}

func TestRender_PaymentsAndChange(t *testing.T) {
	r := newTestRenderer(t, nil, nil)

	job := sampleJob()
	job.Payments = nil
	job.Change = decimal.Zero
	html := render(t, r, job)
	assert.NotContains(t, html, "section-payments")
	assert.NotContains(t, html, "section-change")

	job = sampleJob()
	job.Payments = append(job.Payments, model.PaymentLine{Method: "card", Amount: dec("1234567.5")})
	html = render(t, r, job)
	assert.Contains(t, html, "section-payments")
	assert.Contains(t, html, `<span>card</span><span class="amount">$1,234,567.50</span>`)
	assert.Contains(t, html, `<span>Change</span><span class="amount">$0.25</span>`)
}

func TestRender_OptionalBlocks(t *testing.T) {
	r := newTestRenderer(t, nil, nil)

	job := sampleJob()
	html := render(t, r, job)
	assert.NotContains(t, html, "section-customer")
	assert.NotContains(t, html, "section-fiscal")
	assert.NotContains(t, html, `class="section-header`)
	assert.NotContains(t, html, `class="section-footer`)
	assert.NotContains(t, html, `class="section-logo"`)

	job.Customer = &model.Customer{Name: "Juan Perez", IDType: "CC", IDNumber: "1020304050"}
	job.HeaderText = "Open 8-22"
	job.FooterText = "Thanks!\nCome back soon"
	html = render(t, r, job)
	assert.Contains(t, html, "Customer: Juan Perez")
	assert.Contains(t, html, "CC: 1020304050")
	assert.Contains(t, html, "<div>Open 8-22</div>")
	assert.Contains(t, html, "<div>Come back soon</div>")
}

func TestRender_SectionOrder(t *testing.T) {
	job := sampleJob()
	job.LogoURL = "/logo.png"
	job.HeaderText = "Welcome"
	job.Customer = &model.Customer{Name: "Juan"}
	job.Discount = dec("1")
	job.Fiscal = &model.Fiscal{Prefix: "FE", Number: "1001", DocumentKey: "cufe"}
	job.FooterText = "Bye"

	html := render(t, newTestRenderer(t, staticAssets{uri: logoURI, ok: true}, staticCodes{uri: qrURI, ok: true}), job)

	order := []string{
		"section-logo", "section-business", "section-header", "section-order",
		"section-customer", "section-items", "section-totals", "section-discount",
		"section-tax", "line-total", "section-payments", "section-change",
		"section-fiscal", "fiscal-number", "fiscal-qr", "fiscal-key", "section-footer",
	}
	last := -1
	for _, class := range order {
		i := strings.Index(html, `class="`+class)
		if i < 0 {
			i = strings.Index(html, " "+class+`"`)
		}
		require.GreaterOrEqual(t, i, 0, class)
		assert.Greater(t, i, last, "%s out of order", class)
		last = i
	}
}

func TestRender_Assets(t *testing.T) {
	job := sampleJob()
	job.LogoURL = "/logo.png"
	job.LogoSize = 200

	html := render(t, newTestRenderer(t, staticAssets{uri: logoURI, ok: true}, nil), job)
	assert.Contains(t, html, `<img src="`+logoURI+`" alt="logo">`)
	assert.Contains(t, html, "width: 200px")

	// a failing fetch leaves the logo out and nothing else
	html = render(t, newTestRenderer(t, staticAssets{}, nil), job)
	assert.NotContains(t, html, `class="section-logo"`)
	assert.Contains(t, html, "$29.75")

	// only images are embedded
	html = render(t, newTestRenderer(t, staticAssets{uri: "data:text/html;base64,PHNjcmlwdD4=", ok: true}, nil), job)
	assert.NotContains(t, html, `class="section-logo"`)
}

func TestRender_Fiscal(t *testing.T) {
	job := sampleJob()
	job.Fiscal = &model.Fiscal{
		Prefix:         "FE",
		Number:         "1001",
		Resolution:     "DIAN 18760000001",
		ResolutionDate: "2024-01-01",
		ValidFrom:      "2024-01-01",
		ValidTo:        "2025-01-01",
		RangeFrom:      "FE1",
		RangeTo:        "FE5000",
		DocumentKey:    "cufe-abc",
	}

	html := render(t, newTestRenderer(t, nil, staticCodes{uri: qrURI, ok: true}), job)
	assert.Contains(t, html, "Invoice FE1001")
	assert.Contains(t, html, "DIAN 18760000001")
	assert.Contains(t, html, "Resolution date: 2024-01-01")
	assert.Contains(t, html, "Valid 2024-01-01 to 2025-01-01")
	assert.Contains(t, html, "Authorized range FE1 to FE5000")
	assert.Contains(t, html, `<div class="fiscal-qr"><img src="`+qrURI+`"`)
	assert.Contains(t, html, `<div class="fiscal-key">cufe-abc</div>`)

	// QR generation failing keeps the rest of the block
	html = render(t, newTestRenderer(t, nil, staticCodes{}), job)
	assert.Contains(t, html, "section-fiscal")
	assert.Contains(t, html, "Invoice FE1001")
	assert.NotContains(t, html, `class="fiscal-qr"`)
	assert.Contains(t, html, "cufe-abc")

	// each line depends on its own field
	job.Fiscal = &model.Fiscal{Number: "7"}
	html = render(t, newTestRenderer(t, nil, staticCodes{}), job)
	assert.Contains(t, html, "Invoice 7")
	assert.NotContains(t, html, "fiscal-resolution")
	assert.NotContains(t, html, "fiscal-validity")
	assert.NotContains(t, html, "fiscal-range")
	assert.NotContains(t, html, `class="fiscal-key"`)
}

func TestRender_EscapesText(t *testing.T) {
	job := sampleJob()
	job.Business.Name = `<script>alert("x")</script>`

	html := render(t, newTestRenderer(t, nil, nil), job)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRender_NilJob(t *testing.T) {
	_, err := newTestRenderer(t, nil, nil).Render(context.Background(), nil)
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0"},
		{"25", "$25"},
		{"4.75", "$4.75"},
		{"0.5", "$0.50"},
		{"1000", "$1,000"},
		{"1234567.5", "$1,234,567.50"},
		{"999999.999", "$1,000,000"},
		{"-1500.25", "-$1,500.25"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(dec(tt.in)))
		})
	}
}

func TestTaxLabel(t *testing.T) {
	assert.Equal(t, "IVA 19%", taxLabel(model.TaxLine{Name: "IVA", Rate: dec("19")}))
	assert.Equal(t, "19%", taxLabel(model.TaxLine{Rate: dec("19")}))
	assert.Equal(t, "IVA 19%", taxLabel(model.TaxLine{Name: "IVA 19%", Rate: dec("19")}))
	assert.Equal(t, "INC", taxLabel(model.TaxLine{Name: "INC"}))
	assert.Equal(t, "Tax", taxLabel(model.TaxLine{}))
	assert.Equal(t, "IVA 5.5%", taxLabel(model.TaxLine{Name: "IVA", Rate: dec("5.5")}))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "05/03/2024 14:30", formatDate("2024-03-05T14:30:00Z"))
	assert.Equal(t, "yesterday", formatDate("yesterday"))
}
