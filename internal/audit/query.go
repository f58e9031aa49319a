package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultQueryLimit = 1000

// Filter narrows a query. Zero values mean no constraint.
type Filter struct {
	Start     time.Time
	End       time.Time
	EventType EventType
	Severity  Severity
	UserID    string
	Limit     int
}

// Query returns events matching the filter in chronological order. The
// buffer is flushed first so results include everything appended so far.
// Malformed lines are logged and skipped.
func (l *Log) Query(filter Filter) ([]Event, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultQueryLimit
	}

	files, err := l.segments()
	if err != nil {
		return nil, err
	}

	var results []Event
	for _, file := range files {
		done, err := scanSegment(file, func(lineNum int, line []byte) bool {
			var e Event
			if err := json.Unmarshal(line, &e); err != nil {
				zap.L().Warn("skipping malformed audit line",
					zap.String("segment", filepath.Base(file)), zap.Int("line", lineNum))
				return false
			}
			if !matches(&e, filter) {
				return false
			}
			results = append(results, e)
			return len(results) >= filter.Limit
		})
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return results, nil
}

func matches(e *Event, filter Filter) bool {
	if filter.EventType != "" && e.EventType != filter.EventType {
		return false
	}
	if filter.Severity != "" && e.Severity != filter.Severity {
		return false
	}
	if filter.UserID != "" && e.UserID != filter.UserID {
		return false
	}
	if !filter.Start.IsZero() || !filter.End.IsZero() {
		ts, err := e.Time()
		if err != nil {
			return false
		}
		if !filter.Start.IsZero() && ts.Before(filter.Start) {
			return false
		}
		if !filter.End.IsZero() && ts.After(filter.End) {
			return false
		}
	}
	return true
}

// scanSegment feeds each non-empty line to fn. fn returning true stops
// the scan early; the bool result reports whether that happened.
func scanSegment(path string, fn func(lineNum int, line []byte) bool) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, eris.Wrapf(err, "audit: open segment %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if fn(lineNum, scanner.Bytes()) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, eris.Wrapf(err, "audit: scan segment %s", path)
	}
	return false, nil
}
