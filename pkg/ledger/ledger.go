// Package ledger reconciles persisted rental contract state against a
// freshly resolved billing schedule.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/durar/rentledger/pkg/models"
	"github.com/durar/rentledger/pkg/schedule"
	"github.com/durar/rentledger/pkg/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scope identifies which contract a reconciliation run targets: the
// unit (by property and primary name plus any known alias spellings),
// the tenant (by phone number) and the contract interval.
type Scope struct {
	PropertyName string              `json:"property_name"`
	PropertyType models.PropertyType `json:"property_type,omitempty"`
	UnitName     string              `json:"unit_name"`
	UnitAliases  []string            `json:"unit_aliases,omitempty"`
	UnitType     models.UnitType     `json:"unit_type,omitempty"`
	TenantName   string              `json:"tenant_name"`
	TenantPhone  string              `json:"tenant_phone"`
	StartDate    time.Time           `json:"start_date"`
	EndDate      time.Time           `json:"end_date"`
}

// Terms carries the static contract terms recorded alongside the ledger.
type Terms struct {
	RentAmount         decimal.Decimal `json:"rent_amount"`
	RentalType         string          `json:"rental_type,omitempty"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	PaymentFrequency   string          `json:"payment_frequency,omitempty"`
	EjarContractNumber string          `json:"ejar_contract_number,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	AutoInvoice        bool            `json:"auto_invoice,omitempty"`
}

// Deposit describes the insurance deposit owed at contract start. A zero
// amount records no deposit invoice.
type Deposit struct {
	Amount decimal.Decimal `json:"amount"`
}

// Ledger handles the business logic for contracts, invoices and payments.
type Ledger struct {
	storage store.Storage
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{storage: s}
}

// Reconcile makes the persisted contract, invoice and payment state for
// the scope match the given schedule exactly. Contracts overlapping the
// scope's interval are deleted with their invoices and payments, then
// one fresh contract and its ledger are created. Re-running with
// identical input reproduces the same final state.
//
// There is no partial-failure recovery: a store error after the deletes
// leaves the scope without a contract, and the fix is to re-run. Callers
// must not run overlapping reconciliations for the same unit
// concurrently; the delete-then-create window is not locked.
func (l *Ledger) Reconcile(scope Scope, terms Terms, deposit Deposit, periods []schedule.BillingPeriod) (*models.Contract, error) {
	// Resolve the schedule before touching the store: a malformed date
	// literal must abort before any mutation, destructive or otherwise.
	invoices, err := schedule.Resolve(periods)
	if err != nil {
		return nil, err
	}

	prop, err := l.ensureProperty(scope)
	if err != nil {
		return nil, err
	}
	unit, err := l.ensureUnit(prop, scope)
	if err != nil {
		return nil, err
	}
	tenant, err := l.ensureTenant(scope)
	if err != nil {
		return nil, err
	}

	existing, err := l.storage.FindOverlappingContracts(unit.ID, scope.StartDate, scope.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping contracts: %w", err)
	}
	for _, c := range existing {
		if err := l.deleteContractLedger(c); err != nil {
			return nil, err
		}
	}

	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.Amount)
	}

	now := time.Now().UTC()
	contract := &models.Contract{
		ID:                 uuid.New(),
		UnitID:             unit.ID,
		TenantID:           tenant.ID,
		StartDate:          scope.StartDate,
		EndDate:            scope.EndDate,
		RentAmount:         terms.RentAmount,
		Amount:             total,
		Deposit:            deposit.Amount,
		Status:             models.ContractStatusActive,
		RentalType:         terms.RentalType,
		TenantName:         tenant.Name,
		PaymentMethod:      terms.PaymentMethod,
		PaymentFrequency:   terms.PaymentFrequency,
		EjarContractNumber: terms.EjarContractNumber,
		Notes:              terms.Notes,
		AutoInvoice:        terms.AutoInvoice,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := l.storage.CreateContract(contract); err != nil {
		return nil, err
	}

	if deposit.Amount.IsPositive() {
		// The deposit is owed from day one regardless of the rent
		// schedule, so it stays PENDING until explicitly settled.
		depositInvoice := &models.Invoice{
			ID:          uuid.New(),
			ContractID:  contract.ID,
			TenantID:    tenant.ID,
			Amount:      deposit.Amount,
			DueDate:     scope.StartDate,
			Status:      models.InvoiceStatusPending,
			Description: "insurance deposit",
			CreatedAt:   now,
		}
		if err := l.storage.CreateInvoice(depositInvoice); err != nil {
			return nil, err
		}
	}

	for _, resolved := range invoices {
		inv := &models.Invoice{
			ID:          uuid.New(),
			ContractID:  contract.ID,
			TenantID:    tenant.ID,
			Amount:      resolved.Amount,
			DueDate:     resolved.DueDate,
			Status:      resolved.Status,
			Description: resolved.Note,
			CreatedAt:   now,
		}
		if err := l.storage.CreateInvoice(inv); err != nil {
			return nil, err
		}

		for _, p := range resolved.Payments {
			payment := &models.Payment{
				ID:        uuid.New(),
				InvoiceID: inv.ID,
				Amount:    p.Amount,
				Method:    models.PaymentMethodBankTransfer,
				PaidAt:    p.PaidAt,
				CreatedAt: now,
			}
			if err := l.storage.CreatePayment(payment); err != nil {
				return nil, err
			}
		}
	}

	log.Printf("Reconciled contract %s for unit %s (%d invoices, %d replaced contracts)",
		contract.ID, scope.UnitName, len(invoices), len(existing))
	return contract, nil
}

func (l *Ledger) ensureProperty(scope Scope) (*models.Property, error) {
	prop, err := l.storage.GetPropertyByName(scope.PropertyName)
	if err == nil {
		return prop, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	propType := scope.PropertyType
	if propType == "" {
		propType = models.PropertyTypeBuilding
	}
	prop = &models.Property{ID: uuid.New(), Name: scope.PropertyName, Type: propType}
	if err := l.storage.CreateProperty(prop); err != nil {
		return nil, err
	}
	return prop, nil
}

func (l *Ledger) ensureUnit(prop *models.Property, scope Scope) (*models.Unit, error) {
	unitType := scope.UnitType
	if unitType == "" {
		unitType = models.UnitTypeYearly
	}

	names := append([]string{scope.UnitName}, scope.UnitAliases...)
	unit, err := l.storage.FindUnit(prop.ID, names)
	if err == nil {
		// Found under the primary name or an alias: standardize the
		// number and mark it occupied.
		unit.Number = scope.UnitName
		unit.Status = models.UnitStatusOccupied
		unit.Type = unitType
		if err := l.storage.UpdateUnit(unit); err != nil {
			return nil, err
		}
		return unit, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	unit = &models.Unit{
		ID:         uuid.New(),
		PropertyID: prop.ID,
		Number:     scope.UnitName,
		Status:     models.UnitStatusOccupied,
		Type:       unitType,
	}
	if err := l.storage.CreateUnit(unit); err != nil {
		return nil, err
	}
	return unit, nil
}

func (l *Ledger) ensureTenant(scope Scope) (*models.Tenant, error) {
	tenant, err := l.storage.GetTenantByPhone(scope.TenantPhone)
	if err == nil {
		tenant.Name = scope.TenantName
		if err := l.storage.UpdateTenant(tenant); err != nil {
			return nil, err
		}
		return tenant, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	tenant = &models.Tenant{ID: uuid.New(), Name: scope.TenantName, Phone: scope.TenantPhone}
	if err := l.storage.CreateTenant(tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// deleteContractLedger removes a contract with its invoices and
// payments. Deletion order matters: payments reference invoices, which
// reference the contract, and the store enforces those references.
func (l *Ledger) deleteContractLedger(c *models.Contract) error {
	invoices, err := l.storage.GetInvoicesForContract(c.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoices of contract %s: %w", c.ID, err)
	}
	for _, inv := range invoices {
		if err := l.storage.DeletePaymentsForInvoice(inv.ID); err != nil {
			return err
		}
		if err := l.storage.DeleteInvoice(inv.ID); err != nil {
			return err
		}
	}
	return l.storage.DeleteContract(c.ID)
}

// InvoiceWithPayments pairs an invoice with its recorded payments.
type InvoiceWithPayments struct {
	Invoice  *models.Invoice   `json:"invoice"`
	Payments []*models.Payment `json:"payments"`
}

// ContractLedger is the full persisted ledger of one contract.
type ContractLedger struct {
	Contract *models.Contract      `json:"contract"`
	Invoices []InvoiceWithPayments `json:"invoices"`
}

// GetContract retrieves a contract by its ID.
func (l *Ledger) GetContract(id uuid.UUID) (*models.Contract, error) {
	return l.storage.GetContract(id)
}

// GetContractLedger retrieves a contract together with its invoices and
// their payments.
func (l *Ledger) GetContractLedger(id uuid.UUID) (*ContractLedger, error) {
	contract, err := l.storage.GetContract(id)
	if err != nil {
		return nil, err
	}

	invoices, err := l.storage.GetInvoicesForContract(id)
	if err != nil {
		return nil, err
	}

	cl := &ContractLedger{Contract: contract, Invoices: make([]InvoiceWithPayments, 0, len(invoices))}
	for _, inv := range invoices {
		payments, err := l.storage.GetPaymentsForInvoice(inv.ID)
		if err != nil {
			return nil, err
		}
		cl.Invoices = append(cl.Invoices, InvoiceWithPayments{Invoice: inv, Payments: payments})
	}
	return cl, nil
}

// SetInvoiceStatus overrides an invoice's settlement status. Used for
// manual corrections, e.g. settling a deposit invoice.
func (l *Ledger) SetInvoiceStatus(id uuid.UUID, status models.InvoiceStatus) error {
	return l.storage.UpdateInvoiceStatus(id, status)
}

// MarkOverdue flips PENDING invoices whose due date has passed to
// OVERDUE and returns how many were updated.
func (l *Ledger) MarkOverdue(asOf time.Time) (int64, error) {
	n, err := l.storage.MarkOverdueInvoices(asOf.UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("Marked %d invoices overdue", n)
	}
	return n, nil
}

// ExpireContracts moves ACTIVE contracts whose end date has passed to
// ENDED and returns how many were updated.
func (l *Ledger) ExpireContracts(asOf time.Time) (int, error) {
	expired, err := l.storage.FindExpiredActiveContracts(asOf.UTC())
	if err != nil {
		return 0, err
	}

	for _, c := range expired {
		if err := l.storage.UpdateContractStatus(c.ID, models.ContractStatusEnded); err != nil {
			return 0, err
		}
		log.Printf("Contract %s ended on %s, status ACTIVE -> ENDED", c.ID, c.EndDate.Format("2006-01-02"))
	}
	return len(expired), nil
}

// GenerateMonthlyInvoices creates the current month's rent invoice for
// every ACTIVE auto-invoicing contract covering asOf, unless the
// contract already has an invoice due in that month. Returns how many
// invoices were created.
func (l *Ledger) GenerateMonthlyInvoices(asOf time.Time) (int, error) {
	contracts, err := l.storage.GetActiveContracts()
	if err != nil {
		return 0, err
	}

	asOf = asOf.UTC()
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	created := 0
	for _, c := range contracts {
		if !c.AutoInvoice {
			continue
		}
		if asOf.Before(c.StartDate) || asOf.After(c.EndDate) {
			continue
		}

		exists, err := l.storage.HasInvoiceInRange(c.ID, monthStart, nextMonth)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		inv := &models.Invoice{
			ID:         uuid.New(),
			ContractID: c.ID,
			TenantID:   c.TenantID,
			Amount:     c.RentAmount,
			DueDate:    monthStart,
			Status:     models.InvoiceStatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		if err := l.storage.CreateInvoice(inv); err != nil {
			return created, err
		}
		created++
		log.Printf("Created %s/%d rent invoice for contract %s", monthStart.Month(), monthStart.Year(), c.ID)
	}
	return created, nil
}
