package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/durar/rentledger/pkg/hijri"
	"github.com/durar/rentledger/pkg/models"
	"github.com/shopspring/decimal"
)

func rent(v int) decimal.Decimal { return decimal.NewFromInt(int64(v)) }

func TestResolve_MixedCalendars(t *testing.T) {
	periods := []BillingPeriod{
		{
			Hijri:    &hijri.Date{Day: 6, Month: 9, Year: 1445},
			Amount:   rent(4666),
			Payments: []PaymentSpec{{Amount: rent(4666), PaidAt: "2024-03-14"}},
			Note:     "rent 1445/09/06 - 1445/11/05",
		},
		{
			Due:      "2024-07-12",
			Amount:   rent(2333),
			Payments: []PaymentSpec{{Amount: rent(2333), PaidAt: "2024-07-12"}},
		},
		{
			Hijri:  &hijri.Date{Day: 6, Month: 7, Year: 1446},
			Amount: rent(2333),
		},
	}

	invoices, err := Resolve(periods)
	if err != nil {
		t.Fatalf("Failed to resolve schedule: %v", err)
	}

	if len(invoices) != 3 {
		t.Fatalf("Expected 3 invoices, got %d", len(invoices))
	}

	wantDue := []string{"2024-03-16", "2024-07-12", "2025-01-06"}
	for i, w := range wantDue {
		if got := invoices[i].DueDate.Format(DateLayout); got != w {
			t.Errorf("Invoice %d: expected due date %s, got %s", i, w, got)
		}
	}

	if invoices[0].Status != models.InvoiceStatusPaid {
		t.Errorf("Expected invoice 0 PAID, got %s", invoices[0].Status)
	}
	if invoices[2].Status != models.InvoiceStatusPending {
		t.Errorf("Expected invoice 2 PENDING, got %s", invoices[2].Status)
	}
	if invoices[0].Note != "rent 1445/09/06 - 1445/11/05" {
		t.Errorf("Note not passed through: %q", invoices[0].Note)
	}

	paidAt := invoices[0].Payments[0].PaidAt
	if !paidAt.Equal(time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected payment date 2024-03-14, got %s", paidAt)
	}
}

func TestResolve_StatusDerivation(t *testing.T) {
	invoices, err := Resolve([]BillingPeriod{
		{Due: "2025-01-01", Amount: rent(100)},
		{Due: "2025-02-01", Amount: rent(100), Payments: []PaymentSpec{{Amount: rent(100), PaidAt: "2025-02-03"}}},
	})
	if err != nil {
		t.Fatalf("Failed to resolve schedule: %v", err)
	}

	if invoices[0].Status != models.InvoiceStatusPending || len(invoices[0].Payments) != 0 {
		t.Errorf("Unpaid period must be PENDING with no payments, got %s with %d", invoices[0].Status, len(invoices[0].Payments))
	}
	if invoices[1].Status != models.InvoiceStatusPaid || len(invoices[1].Payments) != 1 {
		t.Errorf("Paid period must be PAID with its payments, got %s with %d", invoices[1].Status, len(invoices[1].Payments))
	}
}

func TestResolve_PreservesOrder(t *testing.T) {
	// Deliberately non-chronological, with a duplicate due date.
	periods := []BillingPeriod{
		{Due: "2025-03-01", Amount: rent(1)},
		{Due: "2025-01-01", Amount: rent(2)},
		{Due: "2025-03-01", Amount: rent(3)},
	}

	invoices, err := Resolve(periods)
	if err != nil {
		t.Fatalf("Failed to resolve schedule: %v", err)
	}

	for i, want := range []int{1, 2, 3} {
		if !invoices[i].Amount.Equal(rent(want)) {
			t.Errorf("Position %d: expected amount %d, got %s", i, want, invoices[i].Amount)
		}
	}
}

func TestResolve_MalformedDueFailsWhole(t *testing.T) {
	periods := []BillingPeriod{
		{Due: "2025-01-01", Amount: rent(100)},
		{Due: "01/02/2025", Amount: rent(100)},
	}

	invoices, err := Resolve(periods)
	if invoices != nil {
		t.Errorf("Expected no partial result, got %d invoices", len(invoices))
	}

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *FormatError, got %v", err)
	}
	if fe.Index != 1 || fe.Field != "due" {
		t.Errorf("Expected error at period 1 field due, got period %d field %s", fe.Index, fe.Field)
	}
}

func TestResolve_MalformedPaymentDate(t *testing.T) {
	_, err := Resolve([]BillingPeriod{
		{Due: "2025-01-01", Amount: rent(100), Payments: []PaymentSpec{{Amount: rent(100), PaidAt: "not-a-date"}}},
	})

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *FormatError, got %v", err)
	}
	if fe.Field != "paid_at" {
		t.Errorf("Expected field paid_at, got %s", fe.Field)
	}
}

func TestResolve_HijriOutOfRange(t *testing.T) {
	cases := []hijri.Date{
		{Day: 0, Month: 1, Year: 1446},
		{Day: 31, Month: 1, Year: 1446},
		{Day: 6, Month: 13, Year: 1446},
		{Day: 6, Month: 1, Year: 0},
	}
	for _, h := range cases {
		h := h
		_, err := Resolve([]BillingPeriod{{Hijri: &h, Amount: rent(100)}})
		var fe *FormatError
		if !errors.As(err, &fe) || fe.Field != "hijri" {
			t.Errorf("Hijri %v: expected hijri FormatError, got %v", h, err)
		}
	}
}

func TestResolve_ExactlyOneDueForm(t *testing.T) {
	if _, err := Resolve([]BillingPeriod{{Amount: rent(100)}}); err == nil {
		t.Error("Expected error for period with no due date")
	}

	h := hijri.Date{Day: 6, Month: 9, Year: 1445}
	if _, err := Resolve([]BillingPeriod{{Hijri: &h, Due: "2024-03-16", Amount: rent(100)}}); err == nil {
		t.Error("Expected error for period with both due-date forms")
	}
}

func TestResolve_EmptySchedule(t *testing.T) {
	invoices, err := Resolve(nil)
	if err != nil {
		t.Fatalf("Empty schedule should resolve: %v", err)
	}
	if len(invoices) != 0 {
		t.Errorf("Expected no invoices, got %d", len(invoices))
	}
}
