package store

import (
	"time"

	"github.com/durar/rentledger/pkg/models"
	"github.com/google/uuid"
)

// Storage defines the persistence operations for the rental ledger
// entities. Implementations report failures through the sentinel errors
// in errors.go.
type Storage interface {
	CreateProperty(p *models.Property) error
	GetPropertyByName(name string) (*models.Property, error)

	CreateUnit(u *models.Unit) error
	UpdateUnit(u *models.Unit) error
	// FindUnit returns the unit of a property whose number matches any
	// of the given names. Data entered before unit numbers were
	// standardized may be stored under an alias spelling.
	FindUnit(propertyID uuid.UUID, numbers []string) (*models.Unit, error)

	CreateTenant(t *models.Tenant) error
	UpdateTenant(t *models.Tenant) error
	GetTenantByPhone(phone string) (*models.Tenant, error)

	CreateContract(c *models.Contract) error
	GetContract(id uuid.UUID) (*models.Contract, error)
	GetActiveContracts() ([]*models.Contract, error)
	UpdateContractStatus(id uuid.UUID, status models.ContractStatus) error
	// FindOverlappingContracts returns the unit's contracts whose
	// [start_date, end_date] interval intersects [start, end].
	FindOverlappingContracts(unitID uuid.UUID, start, end time.Time) ([]*models.Contract, error)
	FindExpiredActiveContracts(asOf time.Time) ([]*models.Contract, error)
	DeleteContract(id uuid.UUID) error

	CreateInvoice(inv *models.Invoice) error
	GetInvoicesForContract(contractID uuid.UUID) ([]*models.Invoice, error)
	UpdateInvoiceStatus(id uuid.UUID, status models.InvoiceStatus) error
	// MarkOverdueInvoices flips PENDING invoices due before asOf to
	// OVERDUE and returns how many were updated.
	MarkOverdueInvoices(asOf time.Time) (int64, error)
	// HasInvoiceInRange reports whether the contract already has an
	// invoice due in [from, to).
	HasInvoiceInRange(contractID uuid.UUID, from, to time.Time) (bool, error)
	DeleteInvoice(id uuid.UUID) error

	CreatePayment(p *models.Payment) error
	GetPaymentsForInvoice(invoiceID uuid.UUID) ([]*models.Payment, error)
	DeletePaymentsForInvoice(invoiceID uuid.UUID) error

	Close() error
}
