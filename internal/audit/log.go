package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultBufferSize = 100
	segmentPattern    = "audit_*.jsonl"
)

// Log is an append-only, hash-chained audit trail. Events buffer in
// memory and flush to the current day's JSONL segment; the chain restarts
// at the genesis hash with each new segment. Safe for concurrent use.
type Log struct {
	mu         sync.Mutex
	dir        string
	bufferSize int
	buffer     []Event
	lastHash   string
	segment    string

	// nowFunc is swapped in tests to force rotation.
	nowFunc func() time.Time
}

// Open prepares an audit log rooted at dir, creating it if needed. If
// today's segment already has events, the chain resumes from its tail.
func Open(dir string, bufferSize int) (*Log, error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "audit: create log dir %s", dir)
	}

	l := &Log{
		dir:        dir,
		bufferSize: bufferSize,
		lastHash:   genesisHash,
		nowFunc:    time.Now,
	}
	l.segment = l.segmentFor(l.nowFunc())
	if err := l.loadTail(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) segmentFor(t time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("audit_%s.jsonl", t.UTC().Format("20060102")))
}

// loadTail recovers the last hash from the current segment so the chain
// continues across restarts.
func (l *Log) loadTail() error {
	f, err := os.Open(l.segment)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "audit: open segment %s", l.segment)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lastLine []byte
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			lastLine = append(lastLine[:0], scanner.Bytes()...)
		}
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrapf(err, "audit: scan segment %s", l.segment)
	}
	if lastLine == nil {
		return nil
	}

	var tail Event
	if err := json.Unmarshal(lastLine, &tail); err != nil {
		return eris.Wrapf(err, "audit: parse tail of %s", l.segment)
	}
	l.lastHash = tail.Hash
	return nil
}

// Append records an event, chaining it to the previous one. The event is
// buffered; a full buffer or a day rollover triggers a flush. Flush
// failures are returned to the caller.
func (l *Log) Append(eventType EventType, severity Severity, userID, action string, details map[string]any) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if seg := l.segmentFor(now); seg != l.segment {
		if err := l.flushLocked(); err != nil {
			return nil, err
		}
		l.segment = seg
		l.lastHash = genesisHash
	}

	e, err := newEvent(now, eventType, severity, userID, action, details, l.lastHash)
	if err != nil {
		return nil, err
	}
	l.lastHash = e.Hash
	l.buffer = append(l.buffer, e)

	if len(l.buffer) >= l.bufferSize {
		if err := l.flushLocked(); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

// Flush writes all buffered events to the current segment.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// flushLocked appends buffered events to disk. On failure the buffer is
// kept so a later flush can retry.
func (l *Log) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	f, err := os.OpenFile(l.segment, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "audit: open segment %s", l.segment)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range l.buffer {
		line, err := json.Marshal(e)
		if err != nil {
			return eris.Wrapf(err, "audit: marshal event %s", e.EventID)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return eris.Wrapf(err, "audit: write event %s", e.EventID)
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "audit: flush segment %s", l.segment)
	}

	zap.L().Debug("audit buffer flushed",
		zap.Int("events", len(l.buffer)), zap.String("segment", filepath.Base(l.segment)))
	l.buffer = l.buffer[:0]
	return nil
}

// Close flushes any buffered events.
func (l *Log) Close() error {
	return l.Flush()
}

// segments lists the log's segment files in chronological order. The
// date-stamped names make lexical order chronological.
func (l *Log) segments() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.dir, segmentPattern))
	if err != nil {
		return nil, eris.Wrapf(err, "audit: list segments in %s", l.dir)
	}
	return files, nil
}
