package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/auditkit/expense-sentinel/internal/audit"
)

// FileFormat represents supported data file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
	FormatParquet FileFormat = "parquet"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON
	case ".parquet":
		return FormatParquet
	default:
		return FormatCSV
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CanonicalColumns is the conventional expense schema, used for formats
// that need a fixed column set (Parquet, Postgres). CSV and JSON keep
// whatever columns the data carries.
var CanonicalColumns = []string{
	"expense_id", "employee", "department", "merchant", "category",
	"invoice_no", "amount_usd", "paid_amount_usd", "expense_date",
}

// expenseRow is the fixed-schema row used for Parquet files.
type expenseRow struct {
	ExpenseID     string `parquet:"expense_id"`
	Employee      string `parquet:"employee"`
	Department    string `parquet:"department"`
	Merchant      string `parquet:"merchant"`
	Category      string `parquet:"category"`
	InvoiceNo     string `parquet:"invoice_no"`
	AmountUSD     string `parquet:"amount_usd"`
	PaidAmountUSD string `parquet:"paid_amount_usd"`
	ExpenseDate   string `parquet:"expense_date"`
}

func (r expenseRow) record() audit.Record {
	return audit.Record{
		"expense_id":      r.ExpenseID,
		"employee":        r.Employee,
		"department":      r.Department,
		"merchant":        r.Merchant,
		"category":        r.Category,
		"invoice_no":      r.InvoiceNo,
		"amount_usd":      r.AmountUSD,
		"paid_amount_usd": r.PaidAmountUSD,
		"expense_date":    r.ExpenseDate,
	}
}

func toExpenseRow(rec audit.Record) expenseRow {
	return expenseRow{
		ExpenseID:     rec["expense_id"],
		Employee:      rec["employee"],
		Department:    rec["department"],
		Merchant:      rec["merchant"],
		Category:      rec["category"],
		InvoiceNo:     rec["invoice_no"],
		AmountUSD:     rec["amount_usd"],
		PaidAmountUSD: rec["paid_amount_usd"],
		ExpenseDate:   rec["expense_date"],
	}
}

// FileBackend persists the expense table to a single data file. CSV is
// the primary format; JSON and Parquet are supported by extension.
// Writes go to a temp file in the same directory followed by a rename,
// so readers never observe a half-written table.
type FileBackend struct {
	path   string
	format FileFormat
	logger *zap.Logger
}

// NewFileBackend creates a file backend for the given path.
func NewFileBackend(path string, logger *zap.Logger) *FileBackend {
	return &FileBackend{
		path:   path,
		format: DetectFileFormat(path),
		logger: logger,
	}
}

// Path returns the backing file path.
func (b *FileBackend) Path() string { return b.path }

// Load reads the whole table. A missing file is an empty table, not an
// error, so a fresh deployment starts clean.
func (b *FileBackend) Load(ctx context.Context) ([]string, []audit.Record, error) {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		b.logger.Warn("Data file does not exist yet", zap.String("path", b.path))
		return append([]string(nil), CanonicalColumns...), nil, nil
	}

	switch b.format {
	case FormatJSON:
		return b.loadJSON()
	case FormatParquet:
		return b.loadParquet()
	default:
		return b.loadCSV()
	}
}

// Save writes the whole table atomically.
func (b *FileBackend) Save(ctx context.Context, columns []string, rows []audit.Record) error {
	tmp := b.path + ".tmp"

	var err error
	switch b.format {
	case FormatJSON:
		err = b.writeJSON(tmp, rows)
	case FormatParquet:
		err = b.writeParquet(tmp, rows)
	default:
		err = b.writeCSV(tmp, columns, rows)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

// loadCSV reads a CSV file, tolerating a UTF-8 BOM and falling back to
// Windows-1252 when the bytes are not valid UTF-8.
func (b *FileBackend) loadCSV() ([]string, []audit.Record, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode CSV file: %w", err)
		}
		b.logger.Info("CSV decoded as Windows-1252", zap.String("path", b.path))
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return append([]string(nil), CanonicalColumns...), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows []audit.Record
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rec := make(audit.Record, len(header))
		for i, col := range header {
			if i < len(fields) {
				rec[col] = fields[i]
			} else {
				rec[col] = ""
			}
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// writeCSV writes the table with a union-of-keys header: the known
// column order first, then any stray keys in first-seen row order. The
// file starts with a UTF-8 BOM so spreadsheet tools pick the right
// encoding.
func (b *FileBackend) writeCSV(path string, columns []string, rows []audit.Record) error {
	header := unionColumns(columns, rows)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	fields := make([]string, len(header))
	for _, rec := range rows {
		for i, col := range header {
			fields[i] = rec[col]
		}
		if err := w.Write(fields); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func (b *FileBackend) loadJSON() ([]string, []audit.Record, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer f.Close()

	var rows []audit.Record
	if err := json.NewDecoder(f).Decode(&rows); err != nil {
		return nil, nil, fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return unionColumns(CanonicalColumns, rows), rows, nil
}

func (b *FileBackend) writeJSON(path string, rows []audit.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []audit.Record{}
	}
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return f.Sync()
}

func (b *FileBackend) loadParquet() ([]string, []audit.Record, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewReader(f)
	defer reader.Close()

	var rows []audit.Record
	for {
		var row expenseRow
		err := reader.Read(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read Parquet record: %w", err)
		}
		rows = append(rows, row.record())
	}
	return append([]string(nil), CanonicalColumns...), rows, nil
}

func (b *FileBackend) writeParquet(path string, rows []audit.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create Parquet file: %w", err)
	}
	defer f.Close()

	writer := parquet.NewWriter(f, parquet.SchemaOf(expenseRow{}))
	for _, rec := range rows {
		row := toExpenseRow(rec)
		if err := writer.Write(&row); err != nil {
			return fmt.Errorf("failed to write Parquet record: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// unionColumns returns known columns followed by any keys present in the
// rows but missing from the known set, in first-seen order.
func unionColumns(columns []string, rows []audit.Record) []string {
	header := append([]string(nil), columns...)
	seen := make(map[string]bool, len(header))
	for _, c := range header {
		seen[c] = true
	}
	for _, rec := range rows {
		for _, k := range sortedKeys(rec) {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	return header
}

func sortedKeys(rec audit.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	// Map order is random; a stable header needs a stable key walk.
	sort.Strings(keys)
	return keys
}
