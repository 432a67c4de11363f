package web

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/store"
	"github.com/auditkit/expense-sentinel/internal/websocket"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":      "expense-sentinel",
		"version":   "0.1.0",
		"records":   s.store.Len(),
		"detectors": s.engine.EnabledDetectors(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	rows := s.store.Snapshot()

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", len(rows))
	if offset < 0 {
		offset = 0
	}
	if offset > len(rows) {
		offset = len(rows)
	}
	// Clamp before adding: offset+limit overflows for huge limit values.
	if limit < 0 || limit > len(rows)-offset {
		limit = len(rows) - offset
	}
	end := offset + limit

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(rows),
		"columns": s.store.Columns(),
		"records": rows[offset:end],
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var rec audit.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid record body")
		return
	}

	if err := s.store.Add(r.Context(), rec); err != nil {
		switch {
		case errors.Is(err, store.ErrMissingID):
			writeError(w, http.StatusBadRequest, "expense_id is required")
		case errors.Is(err, store.ErrDuplicateID):
			writeError(w, http.StatusConflict, "expense_id already exists")
		default:
			s.logger.Error("Failed to add record", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save record")
		}
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var fields audit.Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid record body")
		return
	}

	if err := s.store.Update(r.Context(), id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("Failed to update record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save record")
		return
	}

	rec, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("Failed to delete record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	s.runFindingDetector(w, r, "duplicates", nil, s.engine.Duplicates)
}

func (s *Server) handleWeekends(w http.ResponseWriter, r *http.Request) {
	s.runFindingDetector(w, r, "weekends", nil, s.engine.Weekends)
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	limit, err := queryFloat(r, "limit", s.engine.Config().Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	buffer, err := queryFloat(r, "buffer", s.engine.Config().Buffer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid buffer")
		return
	}

	params := []string{
		strconv.FormatFloat(limit, 'f', -1, 64),
		strconv.FormatFloat(buffer, 'f', -1, 64),
	}
	s.runFindingDetector(w, r, "threshold", params, func(rows []audit.Record) []audit.Finding {
		return s.engine.Threshold(rows, limit, buffer)
	})
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	s.runFindingDetector(w, r, "keywords", nil, s.engine.Keywords)
}

func (s *Server) handleDiscrepancies(w http.ResponseWriter, r *http.Request) {
	s.runFindingDetector(w, r, "discrepancies", nil, s.engine.Discrepancies)
}

func (s *Server) handleBenford(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Enabled("benford") {
		writeError(w, http.StatusNotFound, audit.ErrDetectorDisabled.Error())
		return
	}

	rows := s.store.Snapshot()
	start := time.Now()

	var report *audit.BenfordReport
	if s.cache != nil {
		key := s.cache.Key("benford", rows)
		if cached, ok := s.cache.GetReport(r.Context(), key); ok {
			report = cached
		} else {
			var err error
			report, err = s.engine.Benford(rows)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			s.cache.SetReport(r.Context(), key, report)
		}
	} else {
		var err error
		report, err = s.engine.Benford(rows)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	s.broadcastAuditRun("benford", len(rows), report.TotalAnalyzed, report.Suspicious, start)
	writeJSON(w, http.StatusOK, report)
}

// runFindingDetector is the shared path for the row-producing detectors:
// snapshot, cache lookup, run, cache fill, event broadcast, respond.
func (s *Server) runFindingDetector(w http.ResponseWriter, r *http.Request, name string, params []string, run func([]audit.Record) []audit.Finding) {
	if !s.engine.Enabled(name) {
		writeError(w, http.StatusNotFound, audit.ErrDetectorDisabled.Error())
		return
	}

	rows := s.store.Snapshot()
	start := time.Now()

	var findings []audit.Finding
	if s.cache != nil {
		key := s.cache.Key(name, rows, params...)
		if cached, ok := s.cache.GetFindings(r.Context(), key); ok {
			findings = cached
		} else {
			findings = run(rows)
			s.cache.SetFindings(r.Context(), key, findings)
		}
	} else {
		findings = run(rows)
	}

	s.broadcastAuditRun(name, len(rows), len(findings), false, start)

	if findings == nil {
		findings = []audit.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"detector": name,
		"count":    len(findings),
		"findings": findings,
	})
}

// handleExport streams a detector's findings as a CSV download. The
// header is the table's column order plus the reserved metadata columns
// actually present in the findings.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("detector")
	if name == "" || name == "benford" {
		writeError(w, http.StatusBadRequest, "detector query parameter must name a finding detector")
		return
	}
	if !s.engine.Enabled(name) {
		writeError(w, http.StatusNotFound, audit.ErrDetectorDisabled.Error())
		return
	}

	rows := s.store.Snapshot()
	var findings []audit.Finding
	switch name {
	case "duplicates":
		findings = s.engine.Duplicates(rows)
	case "weekends":
		findings = s.engine.Weekends(rows)
	case "threshold":
		findings = s.engine.Threshold(rows, s.engine.Config().Limit, s.engine.Config().Buffer)
	case "keywords":
		findings = s.engine.Keywords(rows)
	case "discrepancies":
		findings = s.engine.Discrepancies(rows)
	default:
		writeError(w, http.StatusBadRequest, "unknown detector")
		return
	}

	header := append([]string(nil), s.store.Columns()...)
	header = append(header, audit.ColumnReason)
	hasDup, hasDetails := false, false
	for _, f := range findings {
		if f.DupCount > 0 {
			hasDup = true
		}
		if f.Details != "" {
			hasDetails = true
		}
	}
	if hasDup {
		header = append(header, audit.ColumnDupCount)
	}
	if hasDetails {
		header = append(header, audit.ColumnDetails)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_findings.csv", name))

	cw := csv.NewWriter(w)
	cw.Write(header)
	fields := make([]string, len(header))
	for _, f := range findings {
		row := f.Row()
		for i, col := range header {
			fields[i] = row[col]
		}
		cw.Write(fields)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// Headers are already sent, so the client sees a short body.
		s.logger.Error("Failed to stream findings export",
			zap.String("detector", name),
			zap.Error(err),
		)
	}
}

func (s *Server) broadcastAuditRun(detector string, records, findings int, suspicious bool, start time.Time) {
	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeAuditRun,
		Timestamp: time.Now(),
		Data: websocket.AuditRunEvent{
			Detector:     detector,
			Records:      records,
			Findings:     findings,
			Suspicious:   suspicious,
			ProcessingMS: float64(time.Since(start).Nanoseconds()) / 1e6,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}
