package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/durar/rentledger/pkg/ledger"
	"github.com/durar/rentledger/pkg/models"
	"github.com/durar/rentledger/pkg/store"
)

func setupTestServer(t *testing.T, dbFile string) *Server {
	t.Helper()
	os.Remove(dbFile)
	t.Cleanup(func() { os.Remove(dbFile) })

	s, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewServer(s)
}

func reconcileBody() map[string]interface{} {
	return map[string]interface{}{
		"scope": map[string]interface{}{
			"property_name": "Al-Jadwa Building",
			"unit_name":     "Office 10",
			"unit_aliases":  []string{"Office 10A"},
			"tenant_name":   "Battal Est.",
			"tenant_phone":  "0509466667",
			"start_date":    "2024-03-16",
			"end_date":      "2026-01-19",
		},
		"terms": map[string]interface{}{
			"rent_amount":       "28000",
			"rental_type":       "promissory note",
			"payment_frequency": "monthly",
		},
		"deposit": map[string]interface{}{"amount": "2000"},
		"schedule": []map[string]interface{}{
			{
				"hijri":    map[string]int{"day": 6, "month": 9, "year": 1445},
				"amount":   "4666",
				"payments": []map[string]interface{}{{"amount": "4666", "paid_at": "2024-03-14"}},
			},
			{
				"due":    "2024-07-12",
				"amount": "2333",
			},
		},
	}
}

func TestAPI_ReconcileAndGetLedger(t *testing.T) {
	server := setupTestServer(t, "test_api_reconcile.db")
	router := server.routes()

	body, _ := json.Marshal(reconcileBody())
	req := httptest.NewRequest("POST", "/reconcile", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var contract models.Contract
	json.Unmarshal(rr.Body.Bytes(), &contract)

	if contract.Status != models.ContractStatusActive {
		t.Errorf("Expected ACTIVE contract, got %s", contract.Status)
	}
	if contract.Amount.String() != "6999" {
		t.Errorf("Expected contract amount 6999, got %s", contract.Amount)
	}

	// Fetch the full ledger back.
	req = httptest.NewRequest("GET", "/contracts/"+contract.ID.String()+"/ledger", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var cl ledger.ContractLedger
	json.Unmarshal(rr.Body.Bytes(), &cl)

	// Deposit invoice plus two schedule invoices.
	if len(cl.Invoices) != 3 {
		t.Fatalf("Expected 3 invoices, got %d", len(cl.Invoices))
	}

	payments := 0
	for _, iwp := range cl.Invoices {
		payments += len(iwp.Payments)
	}
	if payments != 1 {
		t.Errorf("Expected 1 payment in ledger, got %d", payments)
	}
}

func TestAPI_ReconcileIdempotent(t *testing.T) {
	server := setupTestServer(t, "test_api_idem.db")
	router := server.routes()

	var lastID string
	for i := 0; i < 2; i++ {
		body, _ := json.Marshal(reconcileBody())
		req := httptest.NewRequest("POST", "/reconcile", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("Run %d: expected status 201, got %d. Body: %s", i, rr.Code, rr.Body.String())
		}
		var contract models.Contract
		json.Unmarshal(rr.Body.Bytes(), &contract)
		lastID = contract.ID.String()
	}

	// The first run's contract is gone; only the latest resolves.
	req := httptest.NewRequest("GET", "/contracts/"+lastID, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 for surviving contract, got %d", rr.Code)
	}
}

func TestAPI_ReconcileRejectsMalformedDate(t *testing.T) {
	server := setupTestServer(t, "test_api_badreq.db")
	router := server.routes()

	payload := reconcileBody()
	payload["schedule"] = []map[string]interface{}{
		{"due": "12/07/2024", "amount": "2333"},
	}

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/reconcile", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestAPI_GetContractNotFound(t *testing.T) {
	server := setupTestServer(t, "test_api_404.db")
	router := server.routes()

	req := httptest.NewRequest("GET", "/contracts/00000000-0000-0000-0000-000000000000", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestAPI_SetInvoiceStatus(t *testing.T) {
	server := setupTestServer(t, "test_api_status.db")
	router := server.routes()

	body, _ := json.Marshal(reconcileBody())
	req := httptest.NewRequest("POST", "/reconcile", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var contract models.Contract
	json.Unmarshal(rr.Body.Bytes(), &contract)

	req = httptest.NewRequest("GET", "/contracts/"+contract.ID.String()+"/ledger", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var cl ledger.ContractLedger
	json.Unmarshal(rr.Body.Bytes(), &cl)

	// Settle the deposit invoice manually.
	var depositID string
	for _, iwp := range cl.Invoices {
		if iwp.Invoice.Description == "insurance deposit" {
			depositID = iwp.Invoice.ID.String()
		}
	}
	if depositID == "" {
		t.Fatal("Deposit invoice not found in ledger")
	}

	req = httptest.NewRequest("PATCH", "/invoices/"+depositID+"/status", bytes.NewBufferString(`{"status":"PAID"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest("PATCH", "/invoices/"+depositID+"/status", bytes.NewBufferString(`{"status":"VOID"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown status, got %d", rr.Code)
	}
}

func TestAPI_RunJobs(t *testing.T) {
	server := setupTestServer(t, "test_api_jobs.db")
	router := server.routes()

	body, _ := json.Marshal(reconcileBody())
	req := httptest.NewRequest("POST", "/reconcile", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	req = httptest.NewRequest("POST", "/jobs/run", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var counts map[string]int64
	json.Unmarshal(rr.Body.Bytes(), &counts)

	// The deposit and the unpaid 2024-07-12 invoice are both past due
	// by now.
	if counts["invoices_marked_overdue"] != 2 {
		t.Errorf("Expected 2 invoices marked overdue, got %d", counts["invoices_marked_overdue"])
	}
}
