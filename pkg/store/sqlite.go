package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/durar/rentledger/pkg/models"
	"github.com/google/uuid"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
// Foreign keys carry no ON DELETE CASCADE: the reconciler deletes
// payments, invoices and contracts in dependency order itself, and a
// wrong order must surface ErrReferentialIntegrity instead of silently
// cascading.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		number TEXT NOT NULL,
		status TEXT NOT NULL,
		type TEXT NOT NULL,
		UNIQUE(property_id, number),
		FOREIGN KEY(property_id) REFERENCES properties(id)
	);
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		rent_amount TEXT NOT NULL,
		amount TEXT NOT NULL,
		deposit TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		rental_type TEXT NOT NULL DEFAULT '',
		tenant_name TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		payment_frequency TEXT NOT NULL DEFAULT '',
		ejar_contract_number TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		auto_invoice INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(unit_id) REFERENCES units(id),
		FOREIGN KEY(tenant_id) REFERENCES tenants(id)
	);
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(contract_id) REFERENCES contracts(id),
		FOREIGN KEY(tenant_id) REFERENCES tenants(id)
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		paid_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(invoice_id) REFERENCES invoices(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// classify maps driver-level constraint failures onto the store's
// sentinel errors so callers can match with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrReferentialIntegrity, err)
		}
	}
	return err
}

// ---- Properties ----

func (s *SQLiteStore) CreateProperty(p *models.Property) error {
	_, err := s.db.Exec(
		`INSERT INTO properties (id, name, type) VALUES (?, ?, ?)`,
		p.ID.String(), p.Name, string(p.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStore) GetPropertyByName(name string) (*models.Property, error) {
	var p models.Property
	var idStr, typ string

	row := s.db.QueryRow(`SELECT id, name, type FROM properties WHERE name = ?`, name)
	if err := row.Scan(&idStr, &p.Name, &typ); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("property %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	p.ID = uuid.MustParse(idStr)
	p.Type = models.PropertyType(typ)
	return &p, nil
}

// ---- Units ----

func (s *SQLiteStore) CreateUnit(u *models.Unit) error {
	_, err := s.db.Exec(
		`INSERT INTO units (id, property_id, number, status, type) VALUES (?, ?, ?, ?, ?)`,
		u.ID.String(), u.PropertyID.String(), u.Number, string(u.Status), string(u.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to create unit: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStore) UpdateUnit(u *models.Unit) error {
	result, err := s.db.Exec(
		`UPDATE units SET number = ?, status = ?, type = ? WHERE id = ?`,
		u.Number, string(u.Status), string(u.Type), u.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update unit: %w", classify(err))
	}
	return checkAffected(result, "unit")
}

func (s *SQLiteStore) FindUnit(propertyID uuid.UUID, numbers []string) (*models.Unit, error) {
	if len(numbers) == 0 {
		return nil, fmt.Errorf("unit lookup with no names: %w", ErrNotFound)
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(numbers)), ",")
	args := make([]interface{}, 0, len(numbers)+1)
	args = append(args, propertyID.String())
	for _, n := range numbers {
		args = append(args, n)
	}

	var u models.Unit
	var idStr, propStr, status, typ string

	row := s.db.QueryRow(
		`SELECT id, property_id, number, status, type FROM units WHERE property_id = ? AND number IN (`+placeholders+`)`,
		args...,
	)
	if err := row.Scan(&idStr, &propStr, &u.Number, &status, &typ); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("unit %q: %w", numbers[0], ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find unit: %w", err)
	}
	u.ID = uuid.MustParse(idStr)
	u.PropertyID = uuid.MustParse(propStr)
	u.Status = models.UnitStatus(status)
	u.Type = models.UnitType(typ)
	return &u, nil
}

// ---- Tenants ----

func (s *SQLiteStore) CreateTenant(t *models.Tenant) error {
	_, err := s.db.Exec(
		`INSERT INTO tenants (id, name, phone) VALUES (?, ?, ?)`,
		t.ID.String(), t.Name, t.Phone,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStore) UpdateTenant(t *models.Tenant) error {
	result, err := s.db.Exec(
		`UPDATE tenants SET name = ?, phone = ? WHERE id = ?`,
		t.Name, t.Phone, t.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", classify(err))
	}
	return checkAffected(result, "tenant")
}

func (s *SQLiteStore) GetTenantByPhone(phone string) (*models.Tenant, error) {
	var t models.Tenant
	var idStr string

	row := s.db.QueryRow(`SELECT id, name, phone FROM tenants WHERE phone = ?`, phone)
	if err := row.Scan(&idStr, &t.Name, &t.Phone); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("tenant %s: %w", phone, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	t.ID = uuid.MustParse(idStr)
	return &t, nil
}

// ---- Contracts ----

const contractColumns = `id, unit_id, tenant_id, start_date, end_date, rent_amount, amount, deposit, status,
	rental_type, tenant_name, payment_method, payment_frequency, ejar_contract_number, notes, auto_invoice,
	created_at, updated_at`

func (s *SQLiteStore) CreateContract(c *models.Contract) error {
	_, err := s.db.Exec(
		`INSERT INTO contracts (`+contractColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.UnitID.String(), c.TenantID.String(), c.StartDate, c.EndDate,
		c.RentAmount, c.Amount, c.Deposit, string(c.Status),
		c.RentalType, c.TenantName, c.PaymentMethod, c.PaymentFrequency, c.EjarContractNumber, c.Notes,
		c.AutoInvoice, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contract: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStore) GetContract(id uuid.UUID) (*models.Contract, error) {
	row := s.db.QueryRow(`SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id.String())
	c, err := scanContract(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("contract %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetActiveContracts() ([]*models.Contract, error) {
	rows, err := s.db.Query(`SELECT ` + contractColumns + ` FROM contracts WHERE status = 'ACTIVE'`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active contracts: %w", err)
	}
	defer rows.Close()

	return scanContracts(rows)
}

func (s *SQLiteStore) UpdateContractStatus(id uuid.UUID, status models.ContractStatus) error {
	result, err := s.db.Exec(
		`UPDATE contracts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update contract status: %w", err)
	}
	return checkAffected(result, "contract")
}

func (s *SQLiteStore) FindOverlappingContracts(unitID uuid.UUID, start, end time.Time) ([]*models.Contract, error) {
	rows, err := s.db.Query(
		`SELECT `+contractColumns+` FROM contracts WHERE unit_id = ? AND start_date <= ? AND end_date >= ?`,
		unitID.String(), end, start,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping contracts: %w", err)
	}
	defer rows.Close()

	return scanContracts(rows)
}

func (s *SQLiteStore) FindExpiredActiveContracts(asOf time.Time) ([]*models.Contract, error) {
	rows, err := s.db.Query(
		`SELECT `+contractColumns+` FROM contracts WHERE status = 'ACTIVE' AND end_date < ?`,
		asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired contracts: %w", err)
	}
	defer rows.Close()

	return scanContracts(rows)
}

func (s *SQLiteStore) DeleteContract(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM contracts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete contract: %w", classify(err))
	}
	return checkAffected(result, "contract")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContract(row rowScanner) (*models.Contract, error) {
	var c models.Contract
	var idStr, unitStr, tenantStr, status string

	err := row.Scan(
		&idStr, &unitStr, &tenantStr, &c.StartDate, &c.EndDate, &c.RentAmount, &c.Amount, &c.Deposit, &status,
		&c.RentalType, &c.TenantName, &c.PaymentMethod, &c.PaymentFrequency, &c.EjarContractNumber, &c.Notes,
		&c.AutoInvoice, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ID = uuid.MustParse(idStr)
	c.UnitID = uuid.MustParse(unitStr)
	c.TenantID = uuid.MustParse(tenantStr)
	c.Status = models.ContractStatus(status)
	return &c, nil
}

func scanContracts(rows *sql.Rows) ([]*models.Contract, error) {
	var contracts []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract row: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return contracts, nil
}

// ---- Invoices ----

func (s *SQLiteStore) CreateInvoice(inv *models.Invoice) error {
	_, err := s.db.Exec(
		`INSERT INTO invoices (id, contract_id, tenant_id, amount, due_date, status, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID.String(), inv.ContractID.String(), inv.TenantID.String(),
		inv.Amount, inv.DueDate, string(inv.Status), inv.Description, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStore) GetInvoicesForContract(contractID uuid.UUID) ([]*models.Invoice, error) {
	rows, err := s.db.Query(
		`SELECT id, contract_id, tenant_id, amount, due_date, status, description, created_at
		FROM invoices WHERE contract_id = ? ORDER BY due_date ASC, rowid ASC`,
		contractID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoices for contract %s: %w", contractID, err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		var inv models.Invoice
		var idStr, contractStr, tenantStr, status string
		if err := rows.Scan(&idStr, &contractStr, &tenantStr, &inv.Amount, &inv.DueDate, &status, &inv.Description, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice row: %w", err)
		}
		inv.ID = uuid.MustParse(idStr)
		inv.ContractID = uuid.MustParse(contractStr)
		inv.TenantID = uuid.MustParse(tenantStr)
		inv.Status = models.InvoiceStatus(status)
		invoices = append(invoices, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return invoices, nil
}

func (s *SQLiteStore) UpdateInvoiceStatus(id uuid.UUID, status models.InvoiceStatus) error {
	result, err := s.db.Exec(
		`UPDATE invoices SET status = ? WHERE id = ?`,
		string(status), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return checkAffected(result, "invoice")
}

func (s *SQLiteStore) MarkOverdueInvoices(asOf time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE invoices SET status = 'OVERDUE' WHERE status = 'PENDING' AND due_date < ?`,
		asOf,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) HasInvoiceInRange(contractID uuid.UUID, from, to time.Time) (bool, error) {
	var n int
	row := s.db.QueryRow(
		`SELECT COUNT(1) FROM invoices WHERE contract_id = ? AND due_date >= ? AND due_date < ?`,
		contractID.String(), from, to,
	)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check invoices in range: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteInvoice(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM invoices WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", classify(err))
	}
	return checkAffected(result, "invoice")
}

// ---- Payments ----

func (s *SQLiteStore) CreatePayment(p *models.Payment) error {
	_, err := s.db.Exec(
		`INSERT INTO payments (id, invoice_id, amount, method, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.InvoiceID.String(), p.Amount, string(p.Method), p.PaidAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStore) GetPaymentsForInvoice(invoiceID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.Query(
		`SELECT id, invoice_id, amount, method, paid_at, created_at
		FROM payments WHERE invoice_id = ? ORDER BY paid_at ASC, rowid ASC`,
		invoiceID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for invoice %s: %w", invoiceID, err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var p models.Payment
		var idStr, invoiceStr, method string
		if err := rows.Scan(&idStr, &invoiceStr, &p.Amount, &method, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		p.ID = uuid.MustParse(idStr)
		p.InvoiceID = uuid.MustParse(invoiceStr)
		p.Method = models.PaymentMethod(method)
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

func (s *SQLiteStore) DeletePaymentsForInvoice(invoiceID uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM payments WHERE invoice_id = ?`, invoiceID.String())
	if err != nil {
		return fmt.Errorf("failed to delete payments for invoice %s: %w", invoiceID, classify(err))
	}
	return nil
}

// checkAffected translates a zero-row update or delete into ErrNotFound.
func checkAffected(result sql.Result, entity string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
