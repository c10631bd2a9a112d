package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PropertyType string

const (
	PropertyTypeBuilding PropertyType = "BUILDING"
	PropertyTypeVilla    PropertyType = "VILLA"
	PropertyTypeCompound PropertyType = "COMPOUND"
)

type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "AVAILABLE"
	UnitStatusOccupied  UnitStatus = "OCCUPIED"
)

type UnitType string

const (
	UnitTypeYearly  UnitType = "YEARLY"
	UnitTypeMonthly UnitType = "MONTHLY"
)

type ContractStatus string

const (
	ContractStatusActive ContractStatus = "ACTIVE"
	ContractStatusEnded  ContractStatus = "ENDED"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
)

type Property struct {
	ID   uuid.UUID    `json:"id"`
	Name string       `json:"name"` // Unique across the portfolio
	Type PropertyType `json:"type"`
}

type Unit struct {
	ID         uuid.UUID  `json:"id"`
	PropertyID uuid.UUID  `json:"property_id"`
	Number     string     `json:"number"` // Unique per property; older records may carry a known alias spelling
	Status     UnitStatus `json:"status"`
	Type       UnitType   `json:"type"`
}

type Tenant struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"` // Natural key
}

type Contract struct {
	ID                 uuid.UUID       `json:"id"`
	UnitID             uuid.UUID       `json:"unit_id"`
	TenantID           uuid.UUID       `json:"tenant_id"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	RentAmount         decimal.Decimal `json:"rent_amount"` // Annual rent per the signed terms
	Amount             decimal.Decimal `json:"amount"`      // Sum of the scheduled invoice amounts
	Deposit            decimal.Decimal `json:"deposit"`
	Status             ContractStatus  `json:"status"`
	RentalType         string          `json:"rental_type"`
	TenantName         string          `json:"tenant_name"` // Denormalized for reporting
	PaymentMethod      string          `json:"payment_method"`
	PaymentFrequency   string          `json:"payment_frequency"`
	EjarContractNumber string          `json:"ejar_contract_number,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	AutoInvoice        bool            `json:"auto_invoice"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type Invoice struct {
	ID          uuid.UUID       `json:"id"`
	ContractID  uuid.UUID       `json:"contract_id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Status      InvoiceStatus   `json:"status"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Payment struct {
	ID        uuid.UUID       `json:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	PaidAt    time.Time       `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at"`
}
