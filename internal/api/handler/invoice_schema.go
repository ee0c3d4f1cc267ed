package handler

import "github.com/maglo/invoicing/internal/core/domain"

// --- Request / Response types ---

type itemRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Rate     float64 `json:"rate" validate:"gte=0"`
}

type createInvoiceRequest struct {
	ClientName    string        `json:"client_name" validate:"required"`
	ClientEmail   string        `json:"client_email" validate:"required,email"`
	ClientAddress string        `json:"client_address"`
	IssuedDate    string        `json:"issued_date" validate:"omitempty,date"`
	DueDate       string        `json:"due_date" validate:"required,date"`
	Amount        float64       `json:"amount" validate:"gte=0"`
	Discount      float64       `json:"discount" validate:"gte=0"`
	VAT           float64       `json:"vat" validate:"gte=0,lte=100"`
	Items         []itemRequest `json:"items" validate:"dive"`
}

type updateInvoiceRequest struct {
	ClientName    *string        `json:"client_name" validate:"omitempty,min=1"`
	ClientEmail   *string        `json:"client_email" validate:"omitempty,email"`
	ClientAddress *string        `json:"client_address"`
	Status        *string        `json:"status" validate:"omitempty,oneof=Paid Unpaid Pending"`
	IssuedDate    *string        `json:"issued_date" validate:"omitempty,date"`
	DueDate       *string        `json:"due_date" validate:"omitempty,date"`
	Amount        *float64       `json:"amount" validate:"omitempty,gte=0"`
	Discount      *float64       `json:"discount" validate:"omitempty,gte=0"`
	VAT           *float64       `json:"vat" validate:"omitempty,gte=0,lte=100"`
	Items         *[]itemRequest `json:"items" validate:"omitempty,dive"`
}

type invoiceListResponse struct {
	Invoices []domain.Invoice `json:"invoices"`
	Count    int              `json:"count"`
}
