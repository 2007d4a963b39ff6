package drift

import (
	"sort"
	"time"

	"fim/internal/snapshot"
)

// ChangeType classifies a path that differs between baseline and current state.
type ChangeType string

const (
	Modified ChangeType = "modified" // Path in both with different digests
	Added    ChangeType = "added"    // Path in current but not baseline
	Deleted  ChangeType = "deleted"  // Path in baseline but not current
)

// Change is a single changed path with the digests on each side.
type Change struct {
	Path           string     `json:"path" yaml:"path"`
	Type           ChangeType `json:"type" yaml:"type"`
	BaselineDigest string     `json:"baselineDigest,omitempty" yaml:"baselineDigest,omitempty"`
	CurrentDigest  string     `json:"currentDigest,omitempty" yaml:"currentDigest,omitempty"`
}

// Result holds three disjoint, sorted path sets. Paths present in both
// snapshots with equal digests are unchanged and appear in none of them.
type Result struct {
	Modified []string `json:"modified" yaml:"modified"`
	Added    []string `json:"added" yaml:"added"`
	Deleted  []string `json:"deleted" yaml:"deleted"`
}

// HasChanges reports whether any path was modified, added or deleted.
func (r Result) HasChanges() bool {
	return r.Total() > 0
}

// Total returns the number of changed paths.
func (r Result) Total() int {
	return len(r.Modified) + len(r.Added) + len(r.Deleted)
}

// Report is a Result plus the context of the check that produced it.
type Report struct {
	RunID               string    `json:"runId,omitempty" yaml:"runId,omitempty"`
	Root                string    `json:"root" yaml:"root"`
	Algorithm           string    `json:"algorithm" yaml:"algorithm"`
	BaselineTime        time.Time `json:"baselineTime" yaml:"baselineTime"`
	CheckedAt           time.Time `json:"checkedAt" yaml:"checkedAt"`
	BaselineFingerprint string    `json:"baselineFingerprint" yaml:"baselineFingerprint"`
	CurrentFingerprint  string    `json:"currentFingerprint" yaml:"currentFingerprint"`
	HasChanges          bool      `json:"hasChanges" yaml:"hasChanges"`
	Files               int       `json:"files" yaml:"files"`
	Result              Result    `json:"result" yaml:"result"`
	Changes             []Change  `json:"changes" yaml:"changes"`
}

// Detect classifies every path of baseline and current. It performs no I/O
// and costs one map lookup per path on each side.
func Detect(baseline, current snapshot.Snapshot) Result {
	result := Result{
		Modified: []string{},
		Added:    []string{},
		Deleted:  []string{},
	}

	for p, baseDigest := range baseline {
		curDigest, ok := current[p]
		switch {
		case !ok:
			result.Deleted = append(result.Deleted, p)
		case curDigest != baseDigest:
			result.Modified = append(result.Modified, p)
		}
	}

	for p := range current {
		if _, ok := baseline[p]; !ok {
			result.Added = append(result.Added, p)
		}
	}

	// Sort for deterministic output
	sort.Strings(result.Modified)
	sort.Strings(result.Added)
	sort.Strings(result.Deleted)

	return result
}

// NewReport runs Detect and fills in the fingerprints and per-change digests.
// Callers set RunID, Root, Algorithm and the timestamps.
func NewReport(baseline, current snapshot.Snapshot) Report {
	result := Detect(baseline, current)

	changes := make([]Change, 0, result.Total())
	for _, p := range result.Modified {
		changes = append(changes, Change{Path: p, Type: Modified, BaselineDigest: baseline[p], CurrentDigest: current[p]})
	}
	for _, p := range result.Added {
		changes = append(changes, Change{Path: p, Type: Added, CurrentDigest: current[p]})
	}
	for _, p := range result.Deleted {
		changes = append(changes, Change{Path: p, Type: Deleted, BaselineDigest: baseline[p]})
	}

	return Report{
		BaselineFingerprint: baseline.Fingerprint(),
		CurrentFingerprint:  current.Fingerprint(),
		HasChanges:          result.HasChanges(),
		Files:               current.Len(),
		Result:              result,
		Changes:             changes,
	}
}
