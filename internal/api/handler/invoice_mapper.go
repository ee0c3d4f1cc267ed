package handler

import (
	"github.com/maglo/invoicing/internal/core/domain"
)

// --- Request → domain input ---

func toDraft(req createInvoiceRequest) domain.InvoiceDraft {
	return domain.InvoiceDraft{
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientAddress: req.ClientAddress,
		Amount:        req.Amount,
		Discount:      req.Discount,
		VAT:           req.VAT,
		IssuedDate:    req.IssuedDate,
		DueDate:       req.DueDate,
		Items:         toItems(req.Items),
	}
}

func toPatch(req updateInvoiceRequest) domain.InvoicePatch {
	p := domain.InvoicePatch{
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientAddress: req.ClientAddress,
		IssuedDate:    req.IssuedDate,
		DueDate:       req.DueDate,
		Amount:        req.Amount,
		Discount:      req.Discount,
		VAT:           req.VAT,
	}
	if req.Status != nil {
		s := domain.InvoiceStatus(*req.Status)
		p.Status = &s
	}
	if req.Items != nil {
		items := toItems(*req.Items)
		if items == nil {
			items = []domain.InvoiceItem{}
		}
		p.Items = &items
	}
	return p
}

func toItems(items []itemRequest) []domain.InvoiceItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.InvoiceItem, len(items))
	for i, it := range items {
		out[i] = domain.InvoiceItem{
			ID:       it.ID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Rate:     it.Rate,
		}
	}
	return out
}

// --- domain → Response ---

func toListResponse(invoices []domain.Invoice) invoiceListResponse {
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	return invoiceListResponse{Invoices: invoices, Count: len(invoices)}
}
