package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/maglo/invoicing/internal/core/domain"
)

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1b212d;">
  <h2>Invoice {{.Invoice.InvoiceNumber}}</h2>
  <p>From {{.From.Name}} &lt;{{.From.Email}}&gt;</p>
  <p>Billed to {{.Invoice.ClientName}}{{if .Invoice.ClientAddress}}, {{.Invoice.ClientAddress}}{{end}}</p>
  <p>Issued {{.Invoice.IssuedDate}}. Due {{.Invoice.DueDate}}.</p>
  {{if .Invoice.Items}}
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><th align="left">Item</th><th>Qty</th><th>Rate</th><th>Amount</th></tr>
    {{range .Invoice.Items}}
    <tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money .Rate}}</td><td>{{money .Amount}}</td></tr>
    {{end}}
  </table>
  {{end}}
  <p>Subtotal: {{money .Invoice.Amount}}</p>
  {{if .Invoice.Discount}}<p>Discount: -{{money .Invoice.Discount}}</p>{{end}}
  <p>VAT ({{.Invoice.VAT}}%): {{money .Invoice.VATAmount}}</p>
  <p><strong>Total: {{money .Invoice.Total}}</strong></p>
  <p>Status: {{.Invoice.Status}}</p>
</body>
</html>`))

func renderInvoice(from *domain.User, inv domain.Invoice) (string, error) {
	var buf bytes.Buffer
	err := invoiceTemplate.Execute(&buf, struct {
		From    *domain.User
		Invoice domain.Invoice
	}{From: from, Invoice: inv})
	if err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}
	return buf.String(), nil
}

func subject(inv domain.Invoice) string {
	return fmt.Sprintf("Invoice %s: %s due %s", inv.InvoiceNumber, fmt.Sprintf("$%.2f", inv.Total), inv.DueDate)
}
