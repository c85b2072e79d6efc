package logging

import (
	"fmt"
	"sync"

	"github.com/go-kit/log"
)

// Entry is one buffered log line.
type Entry struct {
	Level   string
	Keyvals []interface{}
}

// Sink is a log.Logger that buffers entries in memory until they are
// flushed into another logger. A sink is created per query so the caller
// can report how many problems the query ran into.
type Sink struct {
	mtx     sync.Mutex
	entries []Entry
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Log(keyvals ...interface{}) error {
	kv := make([]interface{}, len(keyvals))
	copy(kv, keyvals)

	e := Entry{Keyvals: kv}
	for i := 0; i+1 < len(kv); i += 2 {
		if fmt.Sprint(kv[i]) == "level" {
			e.Level = fmt.Sprint(kv[i+1])
			break
		}
	}

	s.mtx.Lock()
	s.entries = append(s.entries, e)
	s.mtx.Unlock()
	return nil
}

// Entries returns a copy of the buffered entries.
func (s *Sink) Entries() []Entry {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Problems counts the buffered warn and error entries.
func (s *Sink) Problems() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.Level == "warn" || e.Level == "error" {
			n++
		}
	}
	return n
}

// Flush replays the buffered entries into dst and clears the sink.
func (s *Sink) Flush(dst log.Logger) error {
	s.mtx.Lock()
	entries := s.entries
	s.entries = nil
	s.mtx.Unlock()

	for _, e := range entries {
		if err := dst.Log(e.Keyvals...); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops the buffered entries.
func (s *Sink) Clear() {
	s.mtx.Lock()
	s.entries = nil
	s.mtx.Unlock()
}
