// Package synclog implements the remote sync log that outbound change
// records are sent to.
//
// Outbox is a durable local queue kept in its own SQLite file. Draining it
// to the sync service is the job of a separate transport.
package synclog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rcliao/syncbridge/internal/model"
)

// ErrInjected is returned by Recorder when a failure was requested.
var ErrInjected = errors.New("injected send failure")

// Message is one record as handed to a log.
type Message struct {
	RecordType model.RecordType
	Action     model.Action
	Record     model.ChangeRecord
}

// WriterLog writes each record as one line of JSON.
type WriterLog struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterLog returns a log writing to w.
func NewWriterLog(w io.Writer) *WriterLog {
	return &WriterLog{w: w}
}

func (l *WriterLog) Send(ctx context.Context, recordType model.RecordType, action model.Action, records []model.ChangeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	enc := json.NewEncoder(l.w)
	for _, r := range records {
		r.RecordType = recordType
		r.Action = action
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

// Recorder keeps sent messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	failures int
	// OnSend, if set, runs before each send is recorded.
	OnSend func(Message)
}

// FailNext makes the next n sends fail with ErrInjected.
func (r *Recorder) FailNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = n
}

func (r *Recorder) Send(ctx context.Context, recordType model.RecordType, action model.Action, records []model.ChangeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return ErrInjected
	}
	for _, rec := range records {
		m := Message{RecordType: recordType, Action: action, Record: rec}
		if r.OnSend != nil {
			r.OnSend(m)
		}
		r.messages = append(r.messages, m)
	}
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
