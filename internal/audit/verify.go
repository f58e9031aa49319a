package audit

import (
	"encoding/json"
	"path/filepath"
)

// Violation describes one integrity failure found during verification.
type Violation struct {
	Segment      string `json:"segment"`
	Line         int    `json:"line"`
	EventID      string `json:"event_id,omitempty"`
	Reason       string `json:"reason"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	ActualHash   string `json:"actual_hash,omitempty"`
}

// Report summarizes a full-chain verification walk.
type Report struct {
	TotalEvents    int         `json:"total_events"`
	VerifiedEvents int         `json:"verified_events"`
	IntegrityPct   float64     `json:"integrity_percentage"`
	Intact         bool        `json:"intact"`
	Violations     []Violation `json:"violations"`
}

// Verify walks every segment chronologically, recomputing each event's
// hash and checking its link to the previous event. Each segment starts
// its own chain at the genesis hash. Verification is read-only and can
// be repeated with identical results.
func (l *Log) Verify() (*Report, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}

	files, err := l.segments()
	if err != nil {
		return nil, err
	}

	report := &Report{Violations: []Violation{}}
	for _, file := range files {
		name := filepath.Base(file)
		expectedPrev := genesisHash

		_, err := scanSegment(file, func(lineNum int, line []byte) bool {
			report.TotalEvents++

			var e Event
			if err := json.Unmarshal(line, &e); err != nil {
				report.Violations = append(report.Violations, Violation{
					Segment: name,
					Line:    lineNum,
					Reason:  "malformed entry",
				})
				return false
			}

			ok := true
			if e.PreviousHash != expectedPrev {
				report.Violations = append(report.Violations, Violation{
					Segment:      name,
					Line:         lineNum,
					EventID:      e.EventID,
					Reason:       "chain link broken",
					ExpectedHash: expectedPrev,
					ActualHash:   e.PreviousHash,
				})
				ok = false
			}

			recomputed, err := computeHash(e)
			if err != nil || recomputed != e.Hash {
				report.Violations = append(report.Violations, Violation{
					Segment:      name,
					Line:         lineNum,
					EventID:      e.EventID,
					Reason:       "hash mismatch, event may be tampered",
					ExpectedHash: recomputed,
					ActualHash:   e.Hash,
				})
				ok = false
			}

			if ok {
				report.VerifiedEvents++
			}
			expectedPrev = e.Hash
			return false
		})
		if err != nil {
			return nil, err
		}
	}

	if report.TotalEvents > 0 {
		report.IntegrityPct = float64(report.VerifiedEvents) / float64(report.TotalEvents) * 100
	}
	report.Intact = len(report.Violations) == 0
	return report, nil
}
