package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultRecentCapacity = 500
	defaultRecentLimit    = 50
	maxRecentLimit        = 500
)

type LogEntry struct {
	ID        int64                  `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

type LogQuery struct {
	// MinLevel keeps entries at or above this level ("warn" keeps warn,
	// error and above). Empty keeps everything.
	MinLevel string
	Keyword  string
	Limit    int
}

// RecentLogs keeps the last entries written through a wrapped logger so
// admins can inspect sweeps and dispatch failures without shell access.
type RecentLogs struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
	seq     int64
}

func NewRecentLogs(capacity int) *RecentLogs {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &RecentLogs{entries: make([]LogEntry, capacity)}
}

// Tee returns base with every entry it writes also recorded in r.
func (r *RecentLogs) Tee(base *zap.Logger) *zap.Logger {
	if base == nil || r == nil {
		return base
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &recentCore{Core: core, store: r}
	}))
}

// Query returns matching entries newest first.
func (r *RecentLogs) Query(q LogQuery) []LogEntry {
	if r == nil {
		return nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	minLevel := zapcore.DebugLevel
	if q.MinLevel != "" {
		if parsed, err := zapcore.ParseLevel(q.MinLevel); err == nil {
			minLevel = parsed
		}
	}
	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))

	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.entries)
	}

	out := make([]LogEntry, 0, min(limit, size))
	for i := 0; i < size && len(out) < limit; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		entry := r.entries[idx]

		level, err := zapcore.ParseLevel(entry.Level)
		if err == nil && level < minLevel {
			continue
		}
		if keyword != "" && !matchesKeyword(entry, keyword) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func matchesKeyword(entry LogEntry, keyword string) bool {
	if strings.Contains(strings.ToLower(entry.Message), keyword) {
		return true
	}
	return len(entry.Fields) > 0 && strings.Contains(strings.ToLower(fmt.Sprintf("%v", entry.Fields)), keyword)
}

func (r *RecentLogs) add(entry zapcore.Entry, fields []zapcore.Field) {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range SanitizeFields(fields) {
		field.AddTo(enc)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	item := LogEntry{
		ID:        r.seq,
		Timestamp: entry.Time.UTC(),
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Caller:    entry.Caller.TrimmedPath(),
	}
	if len(enc.Fields) > 0 {
		item.Fields = enc.Fields
	}

	r.entries[r.next] = item
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

type recentCore struct {
	zapcore.Core
	store *RecentLogs
}

func (c *recentCore) With(fields []zapcore.Field) zapcore.Core {
	return &recentCore{Core: c.Core.With(fields), store: c.store}
}

func (c *recentCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Core.Check(entry, nil) == nil {
		return checked
	}
	return checked.AddCore(entry, c)
}

func (c *recentCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.store.add(entry, fields)
	return c.Core.Write(entry, fields)
}
