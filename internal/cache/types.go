package cache

import (
	"time"

	"github.com/auditkit/expense-sentinel/internal/audit"
)

// CachedFindings is the cached payload for a detector run.
type CachedFindings struct {
	Findings []audit.Finding `json:"findings"`
	CachedAt time.Time       `json:"cached_at"`
}

// CachedReport is the cached payload for a Benford analysis.
type CachedReport struct {
	Report   *audit.BenfordReport `json:"report"`
	CachedAt time.Time            `json:"cached_at"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
