package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/audit"
)

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		path     string
		expected FileFormat
	}{
		{"expenses.csv", FormatCSV},
		{"expenses.CSV", FormatCSV},
		{"data/expenses.json", FormatJSON},
		{"expenses.parquet", FormatParquet},
		{"expenses", FormatCSV},
		{"expenses.txt", FormatCSV},
	}
	for _, tt := range tests {
		if got := DetectFileFormat(tt.path); got != tt.expected {
			t.Errorf("DetectFileFormat(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestFileBackendMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")
	backend := NewFileBackend(path, zap.NewNop())

	columns, rows, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("missing file should load as empty table: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(columns, CanonicalColumns) {
		t.Errorf("columns = %v, want canonical schema", columns)
	}
}

func TestFileBackendCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.csv")
	backend := NewFileBackend(path, zap.NewNop())

	columns := []string{"expense_id", "merchant", "amount_usd"}
	rows := []audit.Record{
		{"expense_id": "E-1", "merchant": "Acme, Inc.", "amount_usd": "1200.50"},
		{"expense_id": "E-2", "merchant": `Quote "Co"`, "amount_usd": "99.00"},
	}
	if err := backend.Save(ctx, columns, rows); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	gotCols, gotRows, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(gotCols, columns) {
		t.Errorf("columns = %v, want %v", gotCols, columns)
	}
	if !reflect.DeepEqual(gotRows, rows) {
		t.Errorf("rows = %v, want %v", gotRows, rows)
	}
}

func TestFileBackendCSVBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.csv")
	content := append(append([]byte(nil), utf8BOM...), []byte("expense_id,merchant\nE-1,Acme\n")...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	backend := NewFileBackend(path, zap.NewNop())
	columns, rows, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if columns[0] != "expense_id" {
		t.Errorf("BOM leaked into first column name: %q", columns[0])
	}
	if len(rows) != 1 || rows[0]["merchant"] != "Acme" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestFileBackendCSVWindows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.csv")
	// "Café" with 0xE9, invalid as UTF-8.
	content := []byte("expense_id,merchant\nE-1,Caf\xe9\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	backend := NewFileBackend(path, zap.NewNop())
	_, rows, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["merchant"] != "Café" {
		t.Errorf("expected Windows-1252 fallback to yield Café, got %v", rows)
	}
}

func TestFileBackendCSVRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.csv")
	content := []byte("expense_id,merchant,amount_usd\nE-1,Acme\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	backend := NewFileBackend(path, zap.NewNop())
	_, rows, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rows[0]["amount_usd"] != "" {
		t.Errorf("short row should pad missing columns, got %q", rows[0]["amount_usd"])
	}
}

func TestFileBackendJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.json")
	backend := NewFileBackend(path, zap.NewNop())

	rows := []audit.Record{
		{"expense_id": "E-1", "merchant": "Acme", "amount_usd": "42.00"},
	}
	if err := backend.Save(ctx, nil, rows); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	_, gotRows, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(gotRows, rows) {
		t.Errorf("rows = %v, want %v", gotRows, rows)
	}
}

func TestFileBackendParquetRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.parquet")
	backend := NewFileBackend(path, zap.NewNop())

	rows := []audit.Record{
		{
			"expense_id": "E-1", "employee": "Kim Lee", "department": "Sales",
			"merchant": "Acme", "category": "Travel", "invoice_no": "INV-1",
			"amount_usd": "1200.50", "paid_amount_usd": "1200.50",
			"expense_date": "2024-01-06",
		},
	}
	if err := backend.Save(ctx, CanonicalColumns, rows); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	columns, gotRows, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(columns, CanonicalColumns) {
		t.Errorf("columns = %v, want canonical schema", columns)
	}
	if len(gotRows) != 1 || !reflect.DeepEqual(gotRows[0], rows[0]) {
		t.Errorf("rows = %v, want %v", gotRows, rows)
	}
}

func TestUnionColumns(t *testing.T) {
	columns := []string{"expense_id", "merchant"}
	rows := []audit.Record{
		{"expense_id": "E-1", "merchant": "Acme", "notes": "x"},
		{"expense_id": "E-2", "approver": "Lee", "notes": "y"},
	}

	got := unionColumns(columns, rows)
	want := []string{"expense_id", "merchant", "notes", "approver"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unionColumns = %v, want %v", got, want)
	}
}
