// Package schedule turns billing period specifications into resolved
// invoices with Gregorian due dates and settlement status.
package schedule

import (
	"fmt"
	"time"

	"github.com/durar/rentledger/pkg/hijri"
	"github.com/durar/rentledger/pkg/models"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for explicit Gregorian date literals.
const DateLayout = "2006-01-02"

// BillingPeriod describes one invoice of a contract's schedule. Exactly
// one of Hijri and Due must be set.
type BillingPeriod struct {
	Hijri    *hijri.Date     `json:"hijri,omitempty"`
	Due      string          `json:"due,omitempty"` // Gregorian literal, e.g. "2024-07-18"
	Amount   decimal.Decimal `json:"amount"`
	Payments []PaymentSpec   `json:"payments,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// PaymentSpec records a settlement against a billing period.
type PaymentSpec struct {
	Amount decimal.Decimal `json:"amount"`
	PaidAt string          `json:"paid_at"` // Gregorian literal
}

// ResolvedInvoice is a billing period with all dates resolved to
// Gregorian and the settlement status derived.
type ResolvedInvoice struct {
	DueDate  time.Time
	Amount   decimal.Decimal
	Status   models.InvoiceStatus
	Payments []ResolvedPayment
	Note     string
}

type ResolvedPayment struct {
	Amount decimal.Decimal
	PaidAt time.Time
}

// FormatError reports a billing period that cannot be resolved: a
// malformed Gregorian literal, an out-of-range Hijri triple, or a period
// specifying neither (or both) due-date forms.
type FormatError struct {
	Index   int    // position in the schedule
	Field   string // "due", "paid_at" or "hijri"
	Literal string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("schedule period %d: invalid %s %q", e.Index, e.Field, e.Literal)
}

// Resolve converts a schedule of billing periods into resolved invoices,
// preserving input order. Any malformed period fails the whole build with
// a *FormatError and no partial result; the reconciler relies on this to
// reject bad input before it starts deleting prior state.
//
// Periods are taken as-is: Resolve does not check that they are
// contiguous or non-overlapping.
func Resolve(periods []BillingPeriod) ([]ResolvedInvoice, error) {
	resolved := make([]ResolvedInvoice, 0, len(periods))

	for i, p := range periods {
		due, err := resolveDue(i, p)
		if err != nil {
			return nil, err
		}

		inv := ResolvedInvoice{
			DueDate: due,
			Amount:  p.Amount,
			Status:  models.InvoiceStatusPending,
			Note:    p.Note,
		}

		for _, ps := range p.Payments {
			paidAt, err := time.ParseInLocation(DateLayout, ps.PaidAt, time.UTC)
			if err != nil {
				return nil, &FormatError{Index: i, Field: "paid_at", Literal: ps.PaidAt}
			}
			inv.Payments = append(inv.Payments, ResolvedPayment{Amount: ps.Amount, PaidAt: paidAt})
		}

		// No partial-payment state: any recorded payment settles the invoice.
		if len(inv.Payments) > 0 {
			inv.Status = models.InvoiceStatusPaid
		}

		resolved = append(resolved, inv)
	}

	return resolved, nil
}

func resolveDue(i int, p BillingPeriod) (time.Time, error) {
	switch {
	case p.Hijri != nil && p.Due != "":
		return time.Time{}, &FormatError{Index: i, Field: "due", Literal: p.Due}
	case p.Hijri != nil:
		h := *p.Hijri
		if h.Day < 1 || h.Day > 30 || h.Month < 1 || h.Month > 12 || h.Year < 1 {
			return time.Time{}, &FormatError{
				Index:   i,
				Field:   "hijri",
				Literal: fmt.Sprintf("%d/%d/%d", h.Day, h.Month, h.Year),
			}
		}
		return h.Gregorian(), nil
	case p.Due != "":
		due, err := time.ParseInLocation(DateLayout, p.Due, time.UTC)
		if err != nil {
			return time.Time{}, &FormatError{Index: i, Field: "due", Literal: p.Due}
		}
		return due, nil
	default:
		return time.Time{}, &FormatError{Index: i, Field: "due", Literal: ""}
	}
}
