package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeAuditRun represents a completed detector run
	EventTypeAuditRun EventType = "audit_run"
	// EventTypeRecordChange represents a record add/update/delete/reload
	EventTypeRecordChange EventType = "record_change"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AuditRunEvent describes one detector run for the dashboard feed.
type AuditRunEvent struct {
	Detector     string  `json:"detector"`
	Records      int     `json:"records"`
	Findings     int     `json:"findings"`
	Suspicious   bool    `json:"suspicious,omitempty"`
	ProcessingMS float64 `json:"processing_ms"`
}

// RecordChangeEvent describes a mutation of the expense table.
type RecordChangeEvent struct {
	Action       string `json:"action"` // "added", "updated", "deleted", "reloaded"
	ExpenseID    string `json:"expense_id,omitempty"`
	TotalRecords int    `json:"total_records"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRecords     int    `json:"total_records"`
	EnabledDetectors int    `json:"enabled_detectors"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client is one connected dashboard session.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
}

// HubConfig controls which event types are broadcast.
type HubConfig struct {
	BroadcastAudits      bool
	BroadcastRecords     bool
	BroadcastSystem      bool
	BroadcastConnections bool
	AllowedOrigins       []string
}
