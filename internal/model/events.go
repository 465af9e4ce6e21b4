package model

import "github.com/shopspring/decimal"

// PaymentMethod is the settlement channel of a client payment.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentEspeces  PaymentMethod = "ESPECES"
	PaymentTransfer PaymentMethod = "VIREMENT"
	PaymentCheque   PaymentMethod = "CHEQUE"
)

// Invoice carries the invoice data the posting rules need.
type Invoice struct {
	ID                 string          `json:"id" validate:"required"`
	Number             string          `json:"number" validate:"required"`
	ClientName         string          `json:"client_name"`
	TotalAmount        decimal.Decimal `json:"total_amount" validate:"positive_decimal"`
	AmountExcludingTax decimal.Decimal `json:"amount_excluding_tax" validate:"positive_decimal"`
	TaxAmount          decimal.Decimal `json:"tax_amount" validate:"nonnegative_decimal"`
}

// Payment is a client payment against receivables.
type Payment struct {
	ID         string          `json:"id" validate:"required"`
	ClientName string          `json:"client_name"`
	Amount     decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Method     PaymentMethod   `json:"method"`
	Reference  string          `json:"reference,omitempty"`
}

// Shipment is an airway bill (LTA) whose transport is complete.
type Shipment struct {
	ID             string          `json:"id" validate:"required"`
	Number         string          `json:"number" validate:"required"`
	ClientName     string          `json:"client_name"`
	CalculatedCost decimal.Decimal `json:"calculated_cost" validate:"positive_decimal"`
}

// InvoiceCreated is raised by invoicing after the invoice is stored.
type InvoiceCreated struct {
	Invoice Invoice `json:"invoice"`
	ActorID string  `json:"actor_id"`
}

// PaymentReceived is raised by the payment collaborator.
type PaymentReceived struct {
	Payment Payment `json:"payment"`
	ActorID string  `json:"actor_id"`
}

// ShipmentCompleted is raised when an LTA reaches its completed state.
type ShipmentCompleted struct {
	LTA     Shipment `json:"lta"`
	ActorID string   `json:"actor_id"`
}
