package audit

import (
	"errors"
	"fmt"
	"sort"

	"github.com/auditkit/expense-sentinel/internal/config"
	"github.com/auditkit/expense-sentinel/internal/logger"
	"go.uber.org/zap"
)

// ErrDetectorDisabled reports an attempt to run a detector that
// configuration has switched off. Callers gate runs on Enabled and
// surface this error to their own clients.
var ErrDetectorDisabled = errors.New("detector is disabled")

// Engine runs the detection functions over record snapshots with the
// configured defaults. The detection functions themselves are pure; the
// engine adds configuration, enable/disable switches and logging.
type Engine struct {
	cfg     config.AuditConfig
	enabled map[string]bool
	logger  *logger.Logger
}

// New creates a new audit engine instance
func New(cfg config.AuditConfig, log *logger.Logger) (*Engine, error) {
	engine := &Engine{
		cfg:     cfg,
		enabled: make(map[string]bool),
		logger:  log,
	}

	if err := engine.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Audit engine initialized",
		zap.Strings("enabled_detectors", engine.EnabledDetectors()),
		zap.Float64("limit", cfg.Limit),
		zap.Float64("buffer", cfg.Buffer),
	)

	return engine, nil
}

// configureDetectors enables detectors based on configuration
func (e *Engine) configureDetectors(detectors []string) error {
	for _, name := range config.KnownDetectors {
		e.enabled[name] = false
	}

	for _, name := range detectors {
		if name == "all" {
			for _, known := range config.KnownDetectors {
				e.enabled[known] = true
			}
			continue
		}
		if _, ok := e.enabled[name]; !ok {
			return fmt.Errorf("unknown detector: %s", name)
		}
		e.enabled[name] = true
	}

	return nil
}

// Enabled reports whether the named detector is switched on.
func (e *Engine) Enabled(name string) bool {
	return e.enabled[name]
}

// EnabledDetectors returns the sorted names of all enabled detectors.
func (e *Engine) EnabledDetectors() []string {
	var names []string
	for name, on := range e.enabled {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Config returns the engine's configured defaults.
func (e *Engine) Config() config.AuditConfig {
	return e.cfg
}

// DuplicateKey returns the configured duplicate identity key.
func (e *Engine) DuplicateKey() DuplicateKey {
	return DuplicateKey{
		MerchantColumn:  e.cfg.MerchantColumn,
		InvoiceColumn:   e.cfg.InvoiceColumn,
		AmountColumn:    e.cfg.AmountColumn,
		IncludeMerchant: e.cfg.IncludeMerchant,
	}
}

// Duplicates runs the duplicate invoice detector over the snapshot.
func (e *Engine) Duplicates(rows []Record) []Finding {
	findings := FindDuplicateInvoices(rows, e.DuplicateKey())
	e.logger.Debug("Duplicate detection completed",
		zap.Int("records", len(rows)),
		zap.Int("findings", len(findings)),
	)
	return findings
}

// Weekends runs the weekend transaction detector over the snapshot.
func (e *Engine) Weekends(rows []Record) []Finding {
	findings := FlagWeekends(rows, e.cfg.DateColumn, e.cfg.DateFormats)
	e.logger.Debug("Weekend detection completed",
		zap.Int("records", len(rows)),
		zap.Int("findings", len(findings)),
	)
	return findings
}

// Threshold runs the policy limit detector with the given parameters.
// Use the configured defaults via Config() when the caller has none.
func (e *Engine) Threshold(rows []Record, limit, buffer float64) []Finding {
	findings := FlagThreshold(rows, e.cfg.AmountColumn, limit, buffer)
	e.logger.Debug("Threshold detection completed",
		zap.Int("records", len(rows)),
		zap.Int("findings", len(findings)),
		zap.Float64("limit", limit),
		zap.Float64("buffer", buffer),
	)
	return findings
}

// Keywords runs the suspicious vocabulary detector over the snapshot.
func (e *Engine) Keywords(rows []Record) []Finding {
	findings := FlagSuspiciousKeywords(rows, e.cfg.KeywordColumns)
	e.logger.Debug("Keyword detection completed",
		zap.Int("records", len(rows)),
		zap.Int("findings", len(findings)),
	)
	return findings
}

// Discrepancies runs the incurred-vs-paid detector over the snapshot.
func (e *Engine) Discrepancies(rows []Record) []Finding {
	findings := FlagDiscrepancies(rows, e.cfg.AmountColumn, e.cfg.PaidColumn)
	e.logger.Debug("Discrepancy detection completed",
		zap.Int("records", len(rows)),
		zap.Int("findings", len(findings)),
	)
	return findings
}

// Benford runs the leading digit analysis over the snapshot. It returns
// ErrNoValidAmounts when no record contributes a leading digit.
func (e *Engine) Benford(rows []Record) (*BenfordReport, error) {
	report, err := BenfordStats(rows, e.cfg.AmountColumn)
	if err != nil {
		e.logger.Debug("Benford analysis yielded no sample", zap.Int("records", len(rows)))
		return nil, err
	}
	e.logger.Debug("Benford analysis completed",
		zap.Int("records", len(rows)),
		zap.Int("analyzed", report.TotalAnalyzed),
		zap.Bool("suspicious", report.Suspicious),
	)
	return report, nil
}

// Summary is the aggregate outcome of a full engine run.
type Summary struct {
	Findings map[string][]Finding `json:"findings"`
	Benford  *BenfordReport       `json:"benford,omitempty"`
}

// Run executes every enabled detector against a single snapshot and
// collects the results keyed by detector name. Detectors are independent
// single passes; a Benford sample of zero rows is reported as a missing
// report, not a failure of the run.
func (e *Engine) Run(rows []Record) Summary {
	summary := Summary{Findings: make(map[string][]Finding)}

	if e.enabled["duplicates"] {
		summary.Findings["duplicates"] = e.Duplicates(rows)
	}
	if e.enabled["weekends"] {
		summary.Findings["weekends"] = e.Weekends(rows)
	}
	if e.enabled["threshold"] {
		summary.Findings["threshold"] = e.Threshold(rows, e.cfg.Limit, e.cfg.Buffer)
	}
	if e.enabled["keywords"] {
		summary.Findings["keywords"] = e.Keywords(rows)
	}
	if e.enabled["discrepancies"] {
		summary.Findings["discrepancies"] = e.Discrepancies(rows)
	}
	if e.enabled["benford"] {
		if report, err := e.Benford(rows); err == nil {
			summary.Benford = report
		}
	}

	return summary
}
