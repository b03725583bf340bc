package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// AuditEvent records one security-relevant action.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Audit event types emitted by the account flows.
const (
	AuditRegister               = "account.register"
	AuditEmailVerified          = "account.email_verified"
	AuditLogin                  = "account.login"
	AuditLoginLocked            = "account.login_locked"
	AuditPasswordChanged        = "account.password_changed"
	AuditPasswordResetRequested = "account.password_reset_requested"
	AuditPasswordResetCompleted = "account.password_reset_completed"
	AuditEmailChangeRequested   = "account.email_change_requested"
	AuditEmailChangeConfirmed   = "account.email_change_confirmed"
	AuditDeletionRequested      = "account.deletion_requested"
	AuditDeletionCancelled      = "account.deletion_cancelled"
	AuditAccountsPurged         = "account.purged"
)

// AuditSink receives audit events. Implementations must tolerate
// concurrent calls; Emit is never on the request's critical path.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit discards the event.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// JSONWriterSink writes events as JSON lines, one per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink wraps w. The sink serializes writes itself; w does
// not need to be safe for concurrent use.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit writes the event as one JSON line. Marshal failures are dropped.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// auditDispatcher decouples the account flows from the sink: events go
// through a buffered channel drained by one goroutine, and are dropped
// (counted) rather than blocking when the buffer is full.
type auditDispatcher struct {
	sink      AuditSink
	ch        chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(sink AuditSink, buffer int) *auditDispatcher {
	if sink == nil {
		return nil
	}
	if buffer <= 0 {
		buffer = 1
	}

	d := &auditDispatcher{
		sink: sink,
		ch:   make(chan AuditEvent, buffer),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *auditDispatcher) emit(event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case d.ch <- event:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

func (d *auditDispatcher) close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) droppedCount() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
