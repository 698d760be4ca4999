package model

import "github.com/shopspring/decimal"

// --- Receipt Structures (as sent by the POS front end) ---

// ReceiptJob is everything needed to print one sale. All figures arrive
// already computed; printing never recalculates them.
type ReceiptJob struct {
	Business    Business `json:"business"`
	OrderNumber string   `json:"orderNumber,omitempty"`
	Date        string   `json:"date,omitempty"`
	Cashier     string   `json:"cashier,omitempty"`

	Items []ReceiptItem `json:"items"`

	Subtotal        decimal.Decimal     `json:"subtotal"`
	Discount        decimal.Decimal     `json:"discount"`
	DiscountPercent decimal.NullDecimal `json:"discountPercent"`
	Taxes           []TaxLine           `json:"taxes,omitempty"`
	// Tax and TaxRate are the single-tax shape older clients still send.
	// They are only printed when Taxes is empty.
	Tax     decimal.Decimal     `json:"tax"`
	TaxRate decimal.NullDecimal `json:"taxRate"`
	Total   decimal.Decimal     `json:"total"`

	Payments []PaymentLine   `json:"payments,omitempty"`
	Change   decimal.Decimal `json:"change"`

	Customer *Customer `json:"customer,omitempty"`
	Fiscal   *Fiscal   `json:"fiscal,omitempty"`

	FontSize   int    `json:"fontSize,omitempty"`
	LogoURL    string `json:"logoUrl,omitempty"`
	LogoSize   int    `json:"logoSize,omitempty"`
	HeaderText string `json:"headerText,omitempty"`
	FooterText string `json:"footerText,omitempty"`

	OpenCashDrawer bool `json:"openCashDrawer"`
}

type Business struct {
	Name    string `json:"name"`
	TaxID   string `json:"taxId,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type ReceiptItem struct {
	Quantity  decimal.Decimal `json:"quantity"`
	Name      string          `json:"name"`
	Modifiers string          `json:"modifiers,omitempty"`
	Total     decimal.Decimal `json:"total"`
}

type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type PaymentLine struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type Customer struct {
	Name     string `json:"name,omitempty"`
	IDType   string `json:"idType,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Fiscal is the electronic-invoice block. Every field is optional and
// controls its own line on the receipt.
type Fiscal struct {
	Prefix         string `json:"prefix,omitempty"`
	Number         string `json:"number,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	ResolutionDate string `json:"resolutionDate,omitempty"`
	ValidFrom      string `json:"validFrom,omitempty"`
	ValidTo        string `json:"validTo,omitempty"`
	RangeFrom      string `json:"rangeFrom,omitempty"`
	RangeTo        string `json:"rangeTo,omitempty"`
	QRData         string `json:"qrData,omitempty"`
	DocumentKey    string `json:"documentKey,omitempty"`
}

// DocumentNumber joins prefix and number the way invoices are labelled.
func (f *Fiscal) DocumentNumber() string {
	if f == nil || f.Number == "" {
		return ""
	}
	return f.Prefix + f.Number
}

// HasRange reports whether an authorised numbering range was supplied.
func (f *Fiscal) HasRange() bool {
	return f != nil && (f.RangeFrom != "" || f.RangeTo != "")
}

// HasValidity reports whether resolution validity dates were supplied.
func (f *Fiscal) HasValidity() bool {
	return f != nil && (f.ValidFrom != "" || f.ValidTo != "")
}

// IsEmpty reports whether the customer block carries nothing printable.
func (c *Customer) IsEmpty() bool {
	return c == nil || (c.Name == "" && c.IDNumber == "" && c.Phone == "")
}
