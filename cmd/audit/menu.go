package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/config"
	"github.com/auditkit/expense-sentinel/internal/store"
)

const menuText = `
=== Expense Audit ===
 1) Find duplicate invoices
 2) Flag weekend transactions
 3) Flag threshold violations
 4) Flag suspicious keywords
 5) Flag payment discrepancies
 6) Benford analysis
 7) Add record
 8) Update record
 9) Delete record
 0) Quit
`

func runMenu(ctx context.Context, engine *audit.Engine, st *store.Store, cfg *config.Config) error {
	in := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(menuText)
		choice := prompt(in, "Choice: ")

		switch choice {
		case "1":
			res := engine.Duplicates(st.Snapshot())
			fmt.Printf("Found %d duplicates:\n", len(res))
			printDuplicates(res, cfg.Audit, -1)
		case "2":
			res := engine.Weekends(st.Snapshot())
			fmt.Printf("Found %d weekend transactions:\n", len(res))
			printWeekends(res, cfg.Audit, -1)
		case "3":
			limit := promptFloat(in, fmt.Sprintf("Limit [%.2f]: ", cfg.Audit.Limit), cfg.Audit.Limit)
			buffer := promptFloat(in, fmt.Sprintf("Buffer [%.2f]: ", cfg.Audit.Buffer), cfg.Audit.Buffer)
			res := engine.Threshold(st.Snapshot(), limit, buffer)
			fmt.Printf("Found %d threshold violations:\n", len(res))
			printThreshold(res, cfg.Audit, -1)
		case "4":
			res := engine.Keywords(st.Snapshot())
			fmt.Printf("Found %d records with suspicious keywords:\n", len(res))
			printKeywords(res, cfg.Audit, -1)
		case "5":
			res := engine.Discrepancies(st.Snapshot())
			fmt.Printf("Found %d payment discrepancies:\n", len(res))
			printDiscrepancies(res, cfg.Audit, -1)
		case "6":
			report, err := engine.Benford(st.Snapshot())
			if errors.Is(err, audit.ErrNoValidAmounts) {
				fmt.Println("No valid amounts to analyze.")
				continue
			}
			if err != nil {
				fmt.Printf("Benford analysis failed: %v\n", err)
				continue
			}
			printBenford(report)
		case "7":
			menuAddRecord(ctx, in, st, cfg)
		case "8":
			menuUpdateRecord(ctx, in, st)
		case "9":
			menuDeleteRecord(ctx, in, st)
		case "0", "q", "quit", "exit":
			return nil
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func menuAddRecord(ctx context.Context, in *bufio.Scanner, st *store.Store, cfg *config.Config) {
	rec := audit.Record{}
	for _, col := range store.CanonicalColumns {
		rec[col] = prompt(in, col+": ")
	}

	if _, ok := audit.ParseAmount(rec[cfg.Audit.AmountColumn]); !ok && rec[cfg.Audit.AmountColumn] != "" {
		fmt.Printf("Warning: %q is not a parseable amount.\n", rec[cfg.Audit.AmountColumn])
	}
	if _, ok := audit.ParseDate(rec[cfg.Audit.DateColumn], cfg.Audit.DateFormats); !ok && rec[cfg.Audit.DateColumn] != "" {
		fmt.Printf("Warning: %q is not a recognized date.\n", rec[cfg.Audit.DateColumn])
	}

	if err := st.Add(ctx, rec); err != nil {
		fmt.Printf("Add failed: %v\n", err)
		return
	}
	fmt.Printf("Added record %s (%d records total).\n", rec[store.IDColumn], st.Len())
}

func menuUpdateRecord(ctx context.Context, in *bufio.Scanner, st *store.Store) {
	id := prompt(in, "Record ID: ")
	current, err := st.Get(id)
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", err)
		return
	}

	fmt.Println("Blank input keeps the current value.")
	updated := current.Clone()
	for _, col := range st.Columns() {
		if col == store.IDColumn {
			continue
		}
		v := prompt(in, fmt.Sprintf("%s [%s]: ", col, current[col]))
		if v != "" {
			updated[col] = v
		}
	}

	if err := st.Update(ctx, id, updated); err != nil {
		fmt.Printf("Update failed: %v\n", err)
		return
	}
	fmt.Printf("Updated record %s.\n", id)
}

func menuDeleteRecord(ctx context.Context, in *bufio.Scanner, st *store.Store) {
	id := prompt(in, "Record ID: ")
	confirm := prompt(in, fmt.Sprintf("Delete %s? [y/N]: ", id))
	if !strings.EqualFold(confirm, "y") {
		fmt.Println("Cancelled.")
		return
	}
	if err := st.Delete(ctx, id); err != nil {
		fmt.Printf("Delete failed: %v\n", err)
		return
	}
	fmt.Printf("Deleted record %s (%d records remaining).\n", id, st.Len())
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func promptFloat(in *bufio.Scanner, label string, def float64) float64 {
	s := prompt(in, label)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fmt.Printf("Not a number, using %.2f.\n", def)
		return def
	}
	return v
}
