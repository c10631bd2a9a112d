package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/durar/rentledger/pkg/ledger"
	"github.com/durar/rentledger/pkg/models"
	"github.com/durar/rentledger/pkg/schedule"
	"github.com/durar/rentledger/pkg/store"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
}

func NewServer(s store.Storage) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
	}
}

type reconcileRequest struct {
	Scope struct {
		PropertyName string   `json:"property_name"`
		PropertyType string   `json:"property_type"`
		UnitName     string   `json:"unit_name"`
		UnitAliases  []string `json:"unit_aliases"`
		UnitType     string   `json:"unit_type"`
		TenantName   string   `json:"tenant_name"`
		TenantPhone  string   `json:"tenant_phone"`
		StartDate    string   `json:"start_date"`
		EndDate      string   `json:"end_date"`
	} `json:"scope"`
	Terms    ledger.Terms             `json:"terms"`
	Deposit  ledger.Deposit           `json:"deposit"`
	Schedule []schedule.BillingPeriod `json:"schedule"`
}

func (s *Server) reconcileHandler(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	startDate, err := time.ParseInLocation(schedule.DateLayout, req.Scope.StartDate, time.UTC)
	if err != nil {
		http.Error(w, "Invalid start_date", http.StatusBadRequest)
		return
	}
	endDate, err := time.ParseInLocation(schedule.DateLayout, req.Scope.EndDate, time.UTC)
	if err != nil {
		http.Error(w, "Invalid end_date", http.StatusBadRequest)
		return
	}

	scope := ledger.Scope{
		PropertyName: req.Scope.PropertyName,
		PropertyType: models.PropertyType(req.Scope.PropertyType),
		UnitName:     req.Scope.UnitName,
		UnitAliases:  req.Scope.UnitAliases,
		UnitType:     models.UnitType(req.Scope.UnitType),
		TenantName:   req.Scope.TenantName,
		TenantPhone:  req.Scope.TenantPhone,
		StartDate:    startDate,
		EndDate:      endDate,
	}

	contract, err := s.ledger.Reconcile(scope, req.Terms, req.Deposit, req.Schedule)
	if err != nil {
		var fe *schedule.FormatError
		if errors.As(err, &fe) {
			http.Error(w, fe.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error reconciling contract: %v\n", err)
		http.Error(w, fmt.Sprintf("Failed to reconcile: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(contract)
}

func (s *Server) getContractHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contractID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid contract ID", http.StatusBadRequest)
		return
	}

	contract, err := s.ledger.GetContract(contractID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Contract not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contract)
}

func (s *Server) getContractLedgerHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contractID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid contract ID", http.StatusBadRequest)
		return
	}

	cl, err := s.ledger.GetContractLedger(contractID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Contract not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cl)
}

func (s *Server) setInvoiceStatusHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	invoiceID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status models.InvoiceStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch req.Status {
	case models.InvoiceStatusPending, models.InvoiceStatusPaid, models.InvoiceStatusOverdue:
	default:
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	if err := s.ledger.SetInvoiceStatus(invoiceID, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Invoice not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runJobsHandler(w http.ResponseWriter, r *http.Request) {
	overdue, expired, generated, err := s.runMaintenanceJobs()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{
		"invoices_marked_overdue": overdue,
		"contracts_ended":         int64(expired),
		"invoices_generated":      int64(generated),
	})
}

func (s *Server) runMaintenanceJobs() (int64, int, int, error) {
	now := time.Now().UTC()

	overdue, err := s.ledger.MarkOverdue(now)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("overdue sweep failed: %w", err)
	}
	expired, err := s.ledger.ExpireContracts(now)
	if err != nil {
		return overdue, 0, 0, fmt.Errorf("contract expiry failed: %w", err)
	}
	generated, err := s.ledger.GenerateMonthlyInvoices(now)
	if err != nil {
		return overdue, expired, 0, fmt.Errorf("invoice generation failed: %w", err)
	}
	return overdue, expired, generated, nil
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/reconcile", s.reconcileHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}", s.getContractHandler).Methods("GET")
	router.HandleFunc("/contracts/{id}/ledger", s.getContractLedgerHandler).Methods("GET")
	router.HandleFunc("/invoices/{id}/status", s.setInvoiceStatusHandler).Methods("PATCH")
	router.HandleFunc("/jobs/run", s.runJobsHandler).Methods("POST")
	return router
}

func main() {
	// Initialize SQLite Store
	sqliteStore, err := store.NewSQLiteStore("rentledger.db")
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore)
	router := server.routes()

	// Start a goroutine for the daily maintenance sweep
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			log.Println("Running maintenance jobs...")
			if _, _, _, err := server.runMaintenanceJobs(); err != nil {
				log.Printf("Maintenance jobs failed: %v\n", err)
				continue
			}
			log.Println("Maintenance jobs complete.")
		}
	}()

	log.Println("Server starting on :8080")
	log.Fatal(http.ListenAndServe(":8080", router))
}
