// Package audit implements a tamper-evident audit trail. Events form a
// SHA-256 hash chain persisted as append-only JSONL segments, one file
// per UTC day, so any edit or removal after the fact is detectable.
package audit

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// EventType classifies an audit event.
type EventType string

const (
	EventLLMRequest         EventType = "llm_request"
	EventLLMResponse        EventType = "llm_response"
	EventRoutingDecision    EventType = "routing_decision"
	EventEnsembleValidation EventType = "ensemble_validation"
	EventRateLimitHit       EventType = "rate_limit_hit"
	EventBudgetLimitHit     EventType = "budget_limit_hit"
	EventUserAction         EventType = "user_action"
	EventSystemEvent        EventType = "system_event"
	EventSecurityEvent      EventType = "security_event"
	EventComplianceCheck    EventType = "compliance_check"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// genesisHash is the previous_hash of the first event in a segment.
const genesisHash = "0"

// Event is one audit record. The hash covers every other field, and
// PreviousHash links it to the event before it in the same segment.
type Event struct {
	EventID      string         `json:"event_id"`
	Timestamp    string         `json:"timestamp"`
	EventType    EventType      `json:"event_type"`
	Severity     Severity       `json:"severity"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	Details      map[string]any `json:"details"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// Time parses the event timestamp.
func (e *Event) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "audit: parse timestamp of %s", e.EventID)
	}
	return t, nil
}

// newEvent builds a hashed event. Details are normalized through a JSON
// round trip so the hash computed now matches one recomputed from disk.
func newEvent(now time.Time, eventType EventType, severity Severity, userID, action string, details map[string]any, previousHash string) (Event, error) {
	normalized, err := normalizeDetails(details)
	if err != nil {
		return Event{}, err
	}

	e := Event{
		EventID:      newEventID(now),
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
		EventType:    eventType,
		Severity:     severity,
		UserID:       userID,
		Action:       action,
		Details:      normalized,
		PreviousHash: previousHash,
	}
	e.Hash, err = computeHash(e)
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

// newEventID returns a time-ordered ID with a random suffix, e.g.
// AUD-1724900000000-a1b2c3d4.
func newEventID(now time.Time) string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("AUD-%d-%s", now.UTC().UnixMilli(), hex.EncodeToString(suffix))
}

// normalizeDetails runs the details map through a JSON round trip so
// typed values collapse to the generic forms a reader would see.
func normalizeDetails(details map[string]any) (map[string]any, error) {
	if details == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, eris.Wrap(err, "audit: marshal details")
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, eris.Wrap(err, "audit: normalize details")
	}
	return normalized, nil
}

// computeHash returns the SHA-256 of the canonical JSON of every field
// except the hash itself. Map marshaling sorts keys, which keeps the
// encoding stable across write and verify.
func computeHash(e Event) (string, error) {
	payload := map[string]any{
		"event_id":      e.EventID,
		"timestamp":     e.Timestamp,
		"event_type":    string(e.EventType),
		"severity":      string(e.Severity),
		"user_id":       e.UserID,
		"action":        e.Action,
		"details":       e.Details,
		"previous_hash": e.PreviousHash,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrap(err, "audit: marshal event for hashing")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
