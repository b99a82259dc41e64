// Package events keeps the append-only ledger of facts the protocol emits.
// Every successful mutating operation leaves one of these behind; failures
// leave nothing.  The recorder mirrors each fact to slog so a watcher can
// follow along without polling the ledger.
package events

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"cosmossdk.io/math"
)

type Type string

type Attr struct {
	Key   string
	Value string
}

func S(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

func U(key string, value uint64) Attr {
	return Attr{Key: key, Value: strconv.FormatUint(value, 10)}
}

func M(key string, value math.Int) Attr {
	return Attr{Key: key, Value: value.String()}
}

type Event struct {
	Time  time.Time
	Type  Type
	Attrs []Attr
}

func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

type Recorder struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	events []Event
}

func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{logger: logger, now: time.Now}
}

// NewRecorderAt is NewRecorder with an injected time source, for tests that
// pin snapshot timestamps.
func NewRecorderAt(logger *slog.Logger, now func() time.Time) *Recorder {
	return &Recorder{logger: logger, now: now}
}

func (r *Recorder) Emit(t Type, attrs ...Attr) {
	ev := Event{Time: r.now(), Type: t, Attrs: attrs}

	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()

	logAttrs := make([]any, 0, len(attrs)*2)
	for _, a := range attrs {
		logAttrs = append(logAttrs, a.Key, a.Value)
	}
	r.logger.Info(string(t), logAttrs...)
}

// All returns a copy of the ledger in emission order.
func (r *Recorder) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
