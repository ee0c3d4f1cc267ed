package domain

import (
	"strings"
	"time"
)

// InvoiceStatus is the payment state of an invoice. Any status may follow any other.
type InvoiceStatus string

const (
	StatusPaid    InvoiceStatus = "Paid"
	StatusUnpaid  InvoiceStatus = "Unpaid"
	StatusPending InvoiceStatus = "Pending"
)

// DateLayout is the wire format of IssuedDate and DueDate.
const DateLayout = "2006-01-02"

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case StatusPaid, StatusUnpaid, StatusPending:
		return true
	}
	return false
}

// IsOutstanding reports whether payment is still expected.
func (s InvoiceStatus) IsOutstanding() bool {
	return s == StatusUnpaid || s == StatusPending
}

// InvoiceItem is one billed line. Amount is always Quantity × Rate.
type InvoiceItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

// Invoice is the billing record for one client.
type Invoice struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	InvoiceNumber string        `json:"invoice_number"`
	ClientName    string        `json:"client_name"`
	ClientEmail   string        `json:"client_email"`
	ClientAddress string        `json:"client_address,omitempty"`
	ClientAvatar  string        `json:"client_avatar"`
	Amount        float64       `json:"amount"`
	Discount      float64       `json:"discount"`
	VAT           float64       `json:"vat"`
	VATAmount     float64       `json:"vat_amount"`
	Total         float64       `json:"total"`
	Status        InvoiceStatus `json:"status"`
	IssuedDate    string        `json:"issued_date"`
	DueDate       string        `json:"due_date"`
	Items         []InvoiceItem `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
}

// InvoiceDraft is the user-supplied part of a new invoice.
// Amount is only used when Items is empty.
type InvoiceDraft struct {
	ClientName    string
	ClientEmail   string
	ClientAddress string
	Amount        float64
	Discount      float64
	VAT           float64
	IssuedDate    string
	DueDate       string
	Items         []InvoiceItem
}

// InvoicePatch is a partial update; nil fields are left untouched.
type InvoicePatch struct {
	ClientName    *string
	ClientEmail   *string
	ClientAddress *string
	Status        *InvoiceStatus
	IssuedDate    *string
	DueDate       *string
	Amount        *float64
	Discount      *float64
	VAT           *float64
	Items         *[]InvoiceItem
}

// TouchesTotals reports whether applying the patch requires recomputing money fields.
func (p InvoicePatch) TouchesTotals() bool {
	return p.Amount != nil || p.Discount != nil || p.VAT != nil || p.Items != nil
}

func (p InvoicePatch) IsEmpty() bool {
	return p.ClientName == nil && p.ClientEmail == nil && p.ClientAddress == nil &&
		p.Status == nil && p.IssuedDate == nil && p.DueDate == nil && !p.TouchesTotals()
}

// Validate checks the fields the patch sets.
func (p InvoicePatch) Validate() error {
	fields := map[string]string{}
	if p.Status != nil && !p.Status.IsValid() {
		fields["status"] = "status must be one of: Paid Unpaid Pending"
	}
	if p.ClientName != nil && strings.TrimSpace(*p.ClientName) == "" {
		fields["client_name"] = "client_name is required"
	}
	if p.ClientEmail != nil && !strings.Contains(*p.ClientEmail, "@") {
		fields["client_email"] = "client_email must be a valid email"
	}
	if p.IssuedDate != nil {
		if _, err := ParseDate(*p.IssuedDate); err != nil {
			fields["issued_date"] = "issued_date must be a date (YYYY-MM-DD)"
		}
	}
	if p.DueDate != nil {
		if _, err := ParseDate(*p.DueDate); err != nil {
			fields["due_date"] = "due_date must be a date (YYYY-MM-DD)"
		}
	}
	validateMoney(fields, p.Amount, p.Discount, p.VAT)
	if p.Items != nil {
		validateItems(fields, *p.Items)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Validate checks the draft before anything is sent to the document store.
func (d InvoiceDraft) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(d.ClientName) == "" {
		fields["client_name"] = "client_name is required"
	}
	if d.ClientEmail == "" {
		fields["client_email"] = "client_email is required"
	} else if !strings.Contains(d.ClientEmail, "@") {
		fields["client_email"] = "client_email must be a valid email"
	}
	if d.DueDate == "" {
		fields["due_date"] = "due_date is required"
	} else if _, err := ParseDate(d.DueDate); err != nil {
		fields["due_date"] = "due_date must be a date (YYYY-MM-DD)"
	}
	if d.IssuedDate != "" {
		if _, err := ParseDate(d.IssuedDate); err != nil {
			fields["issued_date"] = "issued_date must be a date (YYYY-MM-DD)"
		}
	}
	validateMoney(fields, &d.Amount, &d.Discount, &d.VAT)
	validateItems(fields, d.Items)
	if len(d.Items) == 0 && d.Amount <= 0 {
		fields["items"] = "at least one line item is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateMoney(fields map[string]string, amount, discount, vat *float64) {
	if amount != nil && *amount < 0 {
		fields["amount"] = "amount must not be negative"
	}
	if discount != nil && *discount < 0 {
		fields["discount"] = "discount must not be negative"
	}
	if vat != nil && (*vat < 0 || *vat > 100) {
		fields["vat"] = "vat must be between 0 and 100"
	}
}

func validateItems(fields map[string]string, items []InvoiceItem) {
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			fields["items"] = "all line items must have a name"
			return
		}
		if it.Quantity < 0 || it.Rate < 0 {
			fields["items"] = "line item quantity and rate must not be negative"
			return
		}
	}
}

// CheckResult rejects a patch whose amount contradicts after, the invoice it
// produces. With line items present the amount is their subtotal, so an
// explicit amount must match it.
func (p InvoicePatch) CheckResult(after Invoice) error {
	if p.Amount == nil || len(after.Items) == 0 {
		return nil
	}
	if Round2(*p.Amount) != after.Amount {
		return &ValidationError{Fields: map[string]string{
			"amount": "amount is derived from line items; omit it or send the item subtotal",
		}}
	}
	return nil
}

// WithTotals returns a copy of inv whose money fields are recomputed from its
// items, amount, discount and VAT rate.
func (inv Invoice) WithTotals() Invoice {
	inv.Items = PriceItems(inv.Items)
	t := ComputeTotals(inv.Items, inv.Amount, inv.Discount, inv.VAT)
	inv.Amount = t.Subtotal
	inv.Discount = t.Discount
	inv.VATAmount = t.VATAmount
	inv.Total = t.Total
	return inv
}

// Apply merges p into a copy of inv, recomputing totals when p touches them.
func (inv Invoice) Apply(p InvoicePatch) Invoice {
	if p.ClientName != nil {
		inv.ClientName = *p.ClientName
		inv.ClientAvatar = Initials(*p.ClientName)
	}
	if p.ClientEmail != nil {
		inv.ClientEmail = *p.ClientEmail
	}
	if p.ClientAddress != nil {
		inv.ClientAddress = *p.ClientAddress
	}
	if p.Status != nil {
		inv.Status = *p.Status
	}
	if p.IssuedDate != nil {
		inv.IssuedDate = *p.IssuedDate
	}
	if p.DueDate != nil {
		inv.DueDate = *p.DueDate
	}
	if p.Amount != nil {
		inv.Amount = *p.Amount
	}
	if p.Discount != nil {
		inv.Discount = *p.Discount
	}
	if p.VAT != nil {
		inv.VAT = *p.VAT
	}
	if p.Items != nil {
		inv.Items = append([]InvoiceItem(nil), (*p.Items)...)
	}
	if p.TouchesTotals() {
		inv = inv.WithTotals()
	}
	return inv
}

// Clone returns a deep copy so callers cannot mutate a store's mirror.
func (inv Invoice) Clone() Invoice {
	if inv.Items != nil {
		inv.Items = append([]InvoiceItem(nil), inv.Items...)
	}
	return inv
}

// PriceItems returns items with Amount recomputed as Quantity × Rate.
func PriceItems(items []InvoiceItem) []InvoiceItem {
	if items == nil {
		return nil
	}
	out := make([]InvoiceItem, len(items))
	for i, it := range items {
		it.Amount = lineAmount(it.Quantity, it.Rate).InexactFloat64()
		out[i] = it
	}
	return out
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp and returns the
// calendar day at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err == nil {
		return t, nil
	}
	ts, err2 := time.Parse(time.RFC3339, s)
	if err2 != nil {
		return time.Time{}, err
	}
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
