package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/config"
	"github.com/auditkit/expense-sentinel/internal/logger"
	"github.com/auditkit/expense-sentinel/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		limit      = flag.Float64("limit", 0, "Policy limit for flag-threshold (0 uses the configured default)")
		buffer     = flag.Float64("buffer", -1, "Near-limit buffer for flag-threshold (-1 uses the configured default)")
		show       = flag.Int("show", 20, "Maximum findings to print")
		verbose    = flag.Bool("verbose", false, "Enable info-level logging")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <data-file> <command>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  find-duplicates         Find duplicate invoices\n")
		fmt.Fprintf(os.Stderr, "  flag-weekends           Flag weekend transactions\n")
		fmt.Fprintf(os.Stderr, "  flag-threshold          Flag amounts near or over the policy limit\n")
		fmt.Fprintf(os.Stderr, "  suspicious-keywords     Flag suspicious vocabulary\n")
		fmt.Fprintf(os.Stderr, "  payment-discrepancies   Flag incurred vs paid mismatches\n")
		fmt.Fprintf(os.Stderr, "  benford-analysis        Leading digit distribution analysis\n")
		fmt.Fprintf(os.Stderr, "  menu                    Interactive menu\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	dataFile, command := args[0], args[1]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Store.Path = dataFile
	if *limit > 0 {
		cfg.Audit.Limit = *limit
	}
	if *buffer >= 0 {
		cfg.Audit.Buffer = *buffer
	}

	// Keep the terminal quiet unless asked; findings go to stdout.
	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	backend := store.NewFileBackend(cfg.Store.Path, log.WithComponent("store").Logger)
	st, err := store.New(ctx, backend, log.WithComponent("store").Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", dataFile, err)
		os.Exit(1)
	}
	if st.Len() == 0 {
		fmt.Fprintln(os.Stderr, "No data loaded from the data file.")
		os.Exit(1)
	}

	engine, err := audit.New(cfg.Audit, log.WithComponent("audit"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create audit engine: %v\n", err)
		os.Exit(1)
	}

	if err := runCommand(ctx, command, engine, st, cfg, *show); err != nil {
		log.Error("Command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, command string, engine *audit.Engine, st *store.Store, cfg *config.Config, show int) error {
	rows := st.Snapshot()

	switch command {
	case "find-duplicates":
		res := engine.Duplicates(rows)
		fmt.Printf("Found %d duplicates (showing first %d):\n", len(res), show)
		printDuplicates(res, cfg.Audit, show)

	case "flag-weekends":
		res := engine.Weekends(rows)
		fmt.Printf("Found %d weekend transactions (showing first %d):\n", len(res), show)
		printWeekends(res, cfg.Audit, show)

	case "flag-threshold":
		res := engine.Threshold(rows, cfg.Audit.Limit, cfg.Audit.Buffer)
		fmt.Printf("Found %d threshold violations (showing first %d):\n", len(res), show)
		printThreshold(res, cfg.Audit, show)

	case "suspicious-keywords":
		res := engine.Keywords(rows)
		fmt.Printf("Found %d records with suspicious keywords:\n", len(res))
		printKeywords(res, cfg.Audit, show)

	case "payment-discrepancies":
		res := engine.Discrepancies(rows)
		fmt.Printf("Found %d payment discrepancies:\n", len(res))
		printDiscrepancies(res, cfg.Audit, show)

	case "benford-analysis":
		report, err := engine.Benford(rows)
		if errors.Is(err, audit.ErrNoValidAmounts) {
			fmt.Println("Error: no valid amounts found")
			return nil
		}
		if err != nil {
			return err
		}
		printBenford(report)

	case "menu":
		return runMenu(ctx, engine, st, cfg)

	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	return nil
}

func printDuplicates(findings []audit.Finding, cfg config.AuditConfig, show int) {
	for _, f := range capFindings(findings, show) {
		fmt.Printf("%s | %s | $%s\n",
			f.Record[cfg.MerchantColumn], f.Record[cfg.InvoiceColumn], f.Record[cfg.AmountColumn])
	}
}

func printWeekends(findings []audit.Finding, cfg config.AuditConfig, show int) {
	for _, f := range capFindings(findings, show) {
		fmt.Printf("%s | %s | $%s\n",
			f.Record[cfg.DateColumn], f.Record[cfg.MerchantColumn], f.Record[cfg.AmountColumn])
	}
}

func printThreshold(findings []audit.Finding, cfg config.AuditConfig, show int) {
	for _, f := range capFindings(findings, show) {
		fmt.Printf("%s | %s | $%s (%s)\n",
			f.Record[cfg.DateColumn], f.Record[cfg.MerchantColumn], f.Record[cfg.AmountColumn], f.Reason)
	}
}

func printKeywords(findings []audit.Finding, cfg config.AuditConfig, show int) {
	for _, f := range capFindings(findings, show) {
		fmt.Printf("%s | %s | %s\n",
			f.Record[cfg.MerchantColumn], f.Record["category"], f.Details)
	}
}

func printDiscrepancies(findings []audit.Finding, cfg config.AuditConfig, show int) {
	for _, f := range capFindings(findings, show) {
		fmt.Printf("%s | Amount: %s | Paid: %s | %s\n",
			f.Record[cfg.InvoiceColumn], f.Record[cfg.AmountColumn], f.Record[cfg.PaidColumn], f.Details)
	}
}

func printBenford(report *audit.BenfordReport) {
	fmt.Printf("Benford Analysis (Analyzed %d records)\n", report.TotalAnalyzed)
	fmt.Printf("Suspicious: %t (Max deviation: %.2f%%)\n", report.Suspicious, report.MaxDeviationPct)
	fmt.Println("Digit | Count | Actual% | Expected% | Diff%")
	for _, d := range report.Digits {
		fmt.Printf("%5d | %5d | %7.2f | %9.2f | %5.2f\n",
			d.Digit, d.Count, d.ActualPct, d.ExpectedPct, d.DiffPct)
	}
}

func capFindings(findings []audit.Finding, show int) []audit.Finding {
	if show >= 0 && len(findings) > show {
		return findings[:show]
	}
	return findings
}
