package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/config"
	"github.com/auditkit/expense-sentinel/internal/logger"
	"github.com/auditkit/expense-sentinel/internal/store"
)

func testServer(t *testing.T, detectors []string, rows []audit.Record) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Audit.Detectors = detectors
	cfg.Store.Path = filepath.Join(t.TempDir(), "expenses.csv")

	log := &logger.Logger{Logger: zap.NewNop()}

	backend := store.NewFileBackend(cfg.Store.Path, zap.NewNop())
	st, err := store.New(context.Background(), backend, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	for _, r := range rows {
		if err := st.Add(context.Background(), r); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}

	engine, err := audit.New(cfg.Audit, log)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	return New(cfg, log, engine, st, nil)
}

func doRequest(s *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func seedRecords() []audit.Record {
	return []audit.Record{
		{
			"expense_id": "E-1", "merchant": "Acme Corp", "invoice_no": "INV-1",
			"amount_usd": "1200.50", "paid_amount_usd": "1200.50", "expense_date": "2024-01-06",
		},
		{
			"expense_id": "E-2", "merchant": "ACME CORP", "invoice_no": "inv-1",
			"amount_usd": "$1,200.5", "paid_amount_usd": "1100.00", "expense_date": "2024-01-08",
		},
		{
			"expense_id": "E-3", "merchant": "Globex", "invoice_no": "INV-9",
			"amount_usd": "5200.00", "paid_amount_usd": "5200.00", "expense_date": "2024-01-09",
		},
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t, []string{"all"}, nil)
	rr := doRequest(s, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"healthy"`) {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}

func TestHandleListRecords(t *testing.T) {
	s := testServer(t, []string{"all"}, seedRecords())

	listRecords := func(t *testing.T, target string) (int, []audit.Record) {
		t.Helper()
		rr := doRequest(s, "GET", target, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Total   int            `json:"total"`
			Records []audit.Record `json:"records"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		return resp.Total, resp.Records
	}

	t.Run("page", func(t *testing.T) {
		total, records := listRecords(t, "/api/records?offset=1&limit=1")
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		if len(records) != 1 || records[0]["expense_id"] != "E-2" {
			t.Errorf("unexpected page: %v", records)
		}
	})

	t.Run("limit past the end", func(t *testing.T) {
		_, records := listRecords(t, "/api/records?offset=1&limit=100")
		if len(records) != 2 {
			t.Errorf("got %d records, want 2", len(records))
		}
	})

	t.Run("max int limit", func(t *testing.T) {
		// offset+limit must not overflow into a negative slice bound.
		_, records := listRecords(t, "/api/records?offset=1&limit=9223372036854775807")
		if len(records) != 2 {
			t.Errorf("got %d records, want 2", len(records))
		}
	})

	t.Run("negative limit returns the rest", func(t *testing.T) {
		_, records := listRecords(t, "/api/records?offset=2&limit=-1")
		if len(records) != 1 || records[0]["expense_id"] != "E-3" {
			t.Errorf("unexpected page: %v", records)
		}
	})

	t.Run("offset past the end", func(t *testing.T) {
		_, records := listRecords(t, "/api/records?offset=10&limit=5")
		if len(records) != 0 {
			t.Errorf("got %d records, want 0", len(records))
		}
	})
}

func TestRecordCRUD(t *testing.T) {
	s := testServer(t, []string{"all"}, nil)

	t.Run("add", func(t *testing.T) {
		rr := doRequest(s, "POST", "/api/records", `{"expense_id":"E-1","merchant":"Acme"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("add without id", func(t *testing.T) {
		rr := doRequest(s, "POST", "/api/records", `{"merchant":"Acme"}`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("add duplicate id", func(t *testing.T) {
		rr := doRequest(s, "POST", "/api/records", `{"expense_id":"E-1"}`)
		if rr.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rr.Code)
		}
	})

	t.Run("get", func(t *testing.T) {
		rr := doRequest(s, "GET", "/api/records/E-1", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var rec audit.Record
		if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if rec["merchant"] != "Acme" {
			t.Errorf("merchant = %q", rec["merchant"])
		}
	})

	t.Run("update", func(t *testing.T) {
		rr := doRequest(s, "PUT", "/api/records/E-1", `{"amount_usd":"99.00"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
		}
		var rec audit.Record
		json.Unmarshal(rr.Body.Bytes(), &rec)
		if rec["amount_usd"] != "99.00" {
			t.Errorf("amount = %q, want 99.00", rec["amount_usd"])
		}
	})

	t.Run("update missing", func(t *testing.T) {
		rr := doRequest(s, "PUT", "/api/records/nope", `{"x":"y"}`)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rr := doRequest(s, "DELETE", "/api/records/E-1", "")
		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rr.Code)
		}
		if rr := doRequest(s, "GET", "/api/records/E-1", ""); rr.Code != http.StatusNotFound {
			t.Errorf("deleted record still served: %d", rr.Code)
		}
	})
}

func TestHandleDuplicates(t *testing.T) {
	s := testServer(t, []string{"all"}, seedRecords())

	rr := doRequest(s, "GET", "/api/audit/duplicates", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp struct {
		Detector string          `json:"detector"`
		Count    int             `json:"count"`
		Findings []audit.Finding `json:"findings"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Detector != "duplicates" || resp.Count != 2 || len(resp.Findings) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Findings[0].DupCount != 2 {
		t.Errorf("dup count = %d, want 2", resp.Findings[0].DupCount)
	}
}

func TestHandleThreshold(t *testing.T) {
	s := testServer(t, []string{"all"}, seedRecords())

	t.Run("custom limit and buffer", func(t *testing.T) {
		rr := doRequest(s, "GET", "/api/audit/threshold?limit=1000&buffer=0", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		// All three amounts exceed 1000.
		if resp.Count != 3 {
			t.Errorf("count = %d, want 3", resp.Count)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		rr := doRequest(s, "GET", "/api/audit/threshold?limit=abc", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})
}

func TestDisabledDetector(t *testing.T) {
	s := testServer(t, []string{"weekends"}, seedRecords())
	rr := doRequest(s, "GET", "/api/audit/duplicates", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), audit.ErrDetectorDisabled.Error()) {
		t.Errorf("body = %s, want the disabled-detector error", rr.Body.String())
	}
}

func TestHandleBenford(t *testing.T) {
	t.Run("report", func(t *testing.T) {
		s := testServer(t, []string{"all"}, seedRecords())
		rr := doRequest(s, "GET", "/api/audit/benford", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var report audit.BenfordReport
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if report.TotalAnalyzed != 3 {
			t.Errorf("analyzed = %d, want 3", report.TotalAnalyzed)
		}
	})

	t.Run("no valid amounts", func(t *testing.T) {
		s := testServer(t, []string{"all"}, []audit.Record{{"expense_id": "E-1", "amount_usd": ""}})
		rr := doRequest(s, "GET", "/api/audit/benford", "")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rr.Code)
		}
	})
}

func TestHandleExport(t *testing.T) {
	s := testServer(t, []string{"all"}, seedRecords())

	t.Run("duplicates csv", func(t *testing.T) {
		rr := doRequest(s, "GET", "/api/export?detector=duplicates", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("content type = %q", ct)
		}
		body := rr.Body.String()
		lines := strings.Split(strings.TrimSpace(body), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header + 2 findings, got %d lines", len(lines))
		}
		if !strings.Contains(lines[0], audit.ColumnReason) || !strings.Contains(lines[0], audit.ColumnDupCount) {
			t.Errorf("header missing metadata columns: %s", lines[0])
		}
	})

	t.Run("benford rejected", func(t *testing.T) {
		rr := doRequest(s, "GET", "/api/export?detector=benford", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("missing detector param", func(t *testing.T) {
		rr := doRequest(s, "GET", "/api/export", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})
}

// brokenWriter fails every write, like a client that disconnected
// mid-download.
type brokenWriter struct {
	header http.Header
}

func (b *brokenWriter) Header() http.Header       { return b.header }
func (b *brokenWriter) WriteHeader(int)           {}
func (b *brokenWriter) Write([]byte) (int, error) { return 0, errBrokenPipe }

var errBrokenPipe = errors.New("broken pipe")

func TestHandleExportStreamFailure(t *testing.T) {
	s := testServer(t, []string{"all"}, seedRecords())

	core, logs := observer.New(zap.ErrorLevel)
	s.logger = &logger.Logger{Logger: zap.New(core)}

	req := httptest.NewRequest("GET", "/api/export?detector=weekends", nil)
	s.handleExport(&brokenWriter{header: http.Header{}}, req)

	if logs.FilterMessage("Failed to stream findings export").Len() != 1 {
		t.Errorf("expected one stream-failure log entry, got %d", logs.Len())
	}
}
