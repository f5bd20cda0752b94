package orchestrator

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// logBufferCap bounds the ring buffer backing /api/logs/stream. Older
// lines are
// dropped as new ones arrive; a client reconnecting past the low-water mark
// simply starts from whatever is still buffered.
const logBufferCap = 1000

// LogLine is one buffered, sequence-stamped log entry.
type LogLine struct {
	Seq  int64
	Time time.Time
	Text string
}

// LogBuffer is a bounded ring buffer of formatted log lines, addressable by
// a monotonic sequence id independent of its position in the ring (so the
// ?since=N id a reconnecting SSE client sends stays meaningful across
// wraparound). It doubles as a logrus.Hook so any *logrus.Entry derived
// from a logger it's attached to is captured automatically.
type LogBuffer struct {
	mu      sync.Mutex
	lines   []LogLine
	nextSeq int64
}

// NewLogBuffer builds an empty ring buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// Levels implements logrus.Hook: capture every level so /api/logs/stream
// shows the run at whatever verbosity LOG_LEVEL allows.
func (b *LogBuffer) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (b *LogBuffer) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		line = entry.Message
	}
	b.Append(line)
	return nil
}

// Append records one preformatted line and returns it with its assigned
// sequence id.
func (b *LogBuffer) Append(text string) LogLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	line := LogLine{Seq: b.nextSeq, Time: time.Now(), Text: text}
	b.lines = append(b.lines, line)
	if len(b.lines) > logBufferCap {
		b.lines = b.lines[len(b.lines)-logBufferCap:]
	}
	return line
}

// Since returns every buffered line with Seq strictly greater than after.
// Lines older than the current low-water mark (evicted by the ring) are
// simply absent from the result; callers don't distinguish "nothing new"
// from "missed some history", matching the at-most-best-effort nature of
// this diagnostic stream.
func (b *LogBuffer) Since(after int64) []LogLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return nil
	}
	out := make([]LogLine, 0, len(b.lines))
	for _, l := range b.lines {
		if l.Seq > after {
			out = append(out, l)
		}
	}
	return out
}

// Latest returns the most recently assigned sequence id, or 0 if nothing
// has been appended yet.
func (b *LogBuffer) Latest() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}
