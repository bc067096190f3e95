package models

import "time"

// CacheStats reports summary cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// HistoryEvent records one summary regeneration.
type HistoryEvent struct {
	ID           int64        `json:"id"`
	RecallNumber string       `json:"recall_number"`
	Trigger      string       `json:"trigger"` // "new" or "changed"
	Previous     StatusFields `json:"previous"`
	Current      StatusFields `json:"current"`
	Provider     string       `json:"provider,omitempty"`
	LatencyMs    int64        `json:"latency_ms"`
	CreatedAt    time.Time    `json:"created_at"`
}

// HistoryQueryOpts specifies filters for querying regeneration history.
type HistoryQueryOpts struct {
	RecallNumber string
	Since        time.Time
	Limit        int
}

// HistoryStat is a count of regenerations for one day and trigger.
type HistoryStat struct {
	Day     string `json:"day"`
	Trigger string `json:"trigger"`
	Count   int64  `json:"count"`
}
