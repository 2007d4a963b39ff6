package baseline

import (
	"time"

	"fim/internal/snapshot"
)

// FormatVersion is the persisted form version written by Save.
const FormatVersion = 1

// Baseline is the persisted reference snapshot of a monitored tree.
type Baseline struct {
	Version   int               `json:"version"`   // Persisted form version
	Root      string            `json:"root"`      // Absolute root that was scanned
	Algorithm string            `json:"algorithm"` // Digest algorithm used for Files
	CreatedAt time.Time         `json:"createdAt"` // When the baseline was created
	Checksum  string            `json:"checksum"`  // xxh3 over algorithm and files
	Files     snapshot.Snapshot `json:"files"`     // Normalized path -> hex digest
}

// Summary is a lightweight view of a stored baseline.
type Summary struct {
	Path        string    `json:"path"`
	Root        string    `json:"root"`
	Algorithm   string    `json:"algorithm"`
	CreatedAt   time.Time `json:"createdAt"`
	Files       int       `json:"files"`
	Fingerprint string    `json:"fingerprint"`
}
