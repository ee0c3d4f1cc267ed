package service

import (
	"encoding/json"
	"fmt"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
)

// Wire attribute names of the invoices collection. Items travel as a JSON
// string; everywhere else they are []domain.InvoiceItem.
const (
	fieldUserID        = "userId"
	fieldInvoiceNumber = "invoiceNumber"
	fieldClientName    = "clientName"
	fieldClientEmail   = "clientEmail"
	fieldClientAddress = "clientAddress"
	fieldClientAvatar  = "clientAvatar"
	fieldAmount        = "amount"
	fieldDiscount      = "discount"
	fieldVAT           = "vat"
	fieldVATAmount     = "vatAmount"
	fieldTotal         = "total"
	fieldStatus        = "status"
	fieldIssuedDate    = "issuedDate"
	fieldDueDate       = "dueDate"
	fieldItems         = "items"

	fieldName         = "name"
	fieldEmail        = "email"
	fieldPasswordHash = "passwordHash"
)

func invoiceToFields(inv domain.Invoice) (ports.Fields, error) {
	items, err := encodeItems(inv.Items)
	if err != nil {
		return nil, err
	}
	return ports.Fields{
		fieldUserID:        inv.UserID,
		fieldInvoiceNumber: inv.InvoiceNumber,
		fieldClientName:    inv.ClientName,
		fieldClientEmail:   inv.ClientEmail,
		fieldClientAddress: inv.ClientAddress,
		fieldClientAvatar:  inv.ClientAvatar,
		fieldAmount:        inv.Amount,
		fieldDiscount:      inv.Discount,
		fieldVAT:           inv.VAT,
		fieldVATAmount:     inv.VATAmount,
		fieldTotal:         inv.Total,
		fieldStatus:        string(inv.Status),
		fieldIssuedDate:    inv.IssuedDate,
		fieldDueDate:       inv.DueDate,
		fieldItems:         items,
	}, nil
}

// patchToFields converts the patch applied to before into the attribute set
// that has to be written. When totals are touched the recomputed money fields
// of after are included so the stored figures stay consistent.
func patchToFields(p domain.InvoicePatch, after domain.Invoice) (ports.Fields, error) {
	f := ports.Fields{}
	if p.ClientName != nil {
		f[fieldClientName] = after.ClientName
		f[fieldClientAvatar] = after.ClientAvatar
	}
	if p.ClientEmail != nil {
		f[fieldClientEmail] = after.ClientEmail
	}
	if p.ClientAddress != nil {
		f[fieldClientAddress] = after.ClientAddress
	}
	if p.Status != nil {
		f[fieldStatus] = string(after.Status)
	}
	if p.IssuedDate != nil {
		f[fieldIssuedDate] = after.IssuedDate
	}
	if p.DueDate != nil {
		f[fieldDueDate] = after.DueDate
	}
	if p.TouchesTotals() {
		items, err := encodeItems(after.Items)
		if err != nil {
			return nil, err
		}
		f[fieldItems] = items
		f[fieldAmount] = after.Amount
		f[fieldDiscount] = after.Discount
		f[fieldVAT] = after.VAT
		f[fieldVATAmount] = after.VATAmount
		f[fieldTotal] = after.Total
	}
	return f, nil
}

func invoiceFromDocument(doc ports.Document) (domain.Invoice, error) {
	f := doc.Fields
	items, err := decodeItems(f[fieldItems])
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("invoice %s: %w", doc.ID, err)
	}
	inv := domain.Invoice{
		ID:            doc.ID,
		UserID:        str(f[fieldUserID]),
		InvoiceNumber: str(f[fieldInvoiceNumber]),
		ClientName:    str(f[fieldClientName]),
		ClientEmail:   str(f[fieldClientEmail]),
		ClientAddress: str(f[fieldClientAddress]),
		ClientAvatar:  str(f[fieldClientAvatar]),
		Amount:        num(f[fieldAmount]),
		Discount:      num(f[fieldDiscount]),
		VAT:           num(f[fieldVAT]),
		VATAmount:     num(f[fieldVATAmount]),
		Total:         num(f[fieldTotal]),
		Status:        domain.InvoiceStatus(str(f[fieldStatus])),
		IssuedDate:    str(f[fieldIssuedDate]),
		DueDate:       str(f[fieldDueDate]),
		Items:         items,
		CreatedAt:     doc.CreatedAt,
	}
	if inv.ClientAvatar == "" {
		inv.ClientAvatar = domain.Initials(inv.ClientName)
	}
	return inv, nil
}

func userFromDocument(doc ports.Document) *domain.User {
	name := str(doc.Fields[fieldName])
	return &domain.User{
		ID:           doc.ID,
		Name:         name,
		Email:        str(doc.Fields[fieldEmail]),
		Initials:     domain.Initials(name),
		PasswordHash: str(doc.Fields[fieldPasswordHash]),
		CreatedAt:    doc.CreatedAt,
	}
}

func encodeItems(items []domain.InvoiceItem) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return string(b), nil
}

func decodeItems(v any) ([]domain.InvoiceItem, error) {
	s := str(v)
	if s == "" {
		return []domain.InvoiceItem{}, nil
	}
	var items []domain.InvoiceItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if items == nil {
		items = []domain.InvoiceItem{}
	}
	return items, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// num normalises the numeric types the different drivers hand back.
func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
