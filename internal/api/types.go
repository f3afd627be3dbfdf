package api

// AssetStatus is one asset's book-staleness summary (SPEC_FULL.md item 3 +
// item 6's snapshot-hash plumbing).
type AssetStatus struct {
	AssetID       string `json:"assetId"`
	BidLevels     int    `json:"bidLevels"`
	AskLevels     int    `json:"askLevels"`
	SnapshotHash  string `json:"snapshotHash"`
	LastUpdatedAt string `json:"lastUpdatedAt"`
}

// StatusResponse is the full /api/status payload.
type StatusResponse struct {
	ProcessedTrades uint64        `json:"processedTrades"`
	DetectedSignals uint64        `json:"detectedSignals"`
	UptimeSeconds   float64       `json:"uptimeSeconds"`
	Running         bool          `json:"running"`
	Assets          []AssetStatus `json:"assets"`
}

// StatusProvider is the read-only surface the status server renders. It is
// implemented by internal/stream.Processor plus the order book manager.
type StatusProvider interface {
	ProcessedTrades() uint64
	DetectedSignals() uint64
	UptimeSeconds() float64
	Running() bool
	AssetStatuses() []AssetStatus
}
