package compliance

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventType enumerates the compliance-relevant mutations CEI accepts.
type EventType string

const (
	EventObjectCreate EventType = "object.create"
	EventObjectUpdate EventType = "object.update"
	EventObjectDelete EventType = "object.delete"
	EventObjectRead   EventType = "object.read"
	EventPolicyCreate EventType = "policy.create"
	EventPolicyUpdate EventType = "policy.update"
	EventPolicyDelete EventType = "policy.delete"
)

// ComplianceEvent is immutable once created.
type ComplianceEvent struct {
	EventID   string                 `json:"event_id"`
	EventType EventType              `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	TenantID  string                 `json:"tenant_id"`
	Bucket    string                 `json:"bucket"`
	ObjectKey string                 `json:"object_key,omitempty"`
	Principal string                 `json:"principal,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// validate enforces the §3 non-empty invariants at intercept time.
func (e ComplianceEvent) validate() error {
	if e.EventID == "" || e.EventType == "" || e.Timestamp.IsZero() || e.TenantID == "" || e.Bucket == "" {
		return fmt.Errorf("%w: event_id, event_type, timestamp, tenant_id and bucket are required", ErrInvalidInput)
	}
	switch e.EventType {
	case EventObjectCreate, EventObjectUpdate, EventObjectDelete, EventObjectRead,
		EventPolicyCreate, EventPolicyUpdate, EventPolicyDelete:
	default:
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidInput, e.EventType)
	}
	return nil
}

// EventFilter is an additive allow-list filter; matches is the conjunction
// of every non-empty list.
type EventFilter struct {
	TenantFilters    []string
	BucketFilters    []string
	EventTypeFilters []EventType
}

func (f *EventFilter) AddTenantFilter(tenantID string) { f.TenantFilters = append(f.TenantFilters, tenantID) }
func (f *EventFilter) AddBucketFilter(bucket string)   { f.BucketFilters = append(f.BucketFilters, bucket) }
func (f *EventFilter) AddEventTypeFilter(t EventType)  { f.EventTypeFilters = append(f.EventTypeFilters, t) }

func (f *EventFilter) Matches(e ComplianceEvent) bool {
	if len(f.TenantFilters) > 0 && !contains(f.TenantFilters, e.TenantID) {
		return false
	}
	if len(f.BucketFilters) > 0 && !contains(f.BucketFilters, e.Bucket) {
		return false
	}
	if len(f.EventTypeFilters) > 0 && !containsType(f.EventTypeFilters, e.EventType) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsType(list []EventType, v EventType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Handler receives every successfully intercepted event synchronously.
type Handler func(ComplianceEvent)

// Interceptor buffers compliance events in a bounded, non-blocking queue
// and fans each accepted event out to registered handlers on the calling
// goroutine. The queue can be read with Next; Count always reflects the
// number of valid events ever presented to Intercept, including ones
// dropped from the queue for being full. Events that fail validation are
// not counted.
type Interceptor struct {
	mu       sync.Mutex
	queue    chan ComplianceEvent
	handlers []Handler
	count    int64
	log      *slog.Logger
}

// NewInterceptor creates an Interceptor with the given bounded queue
// capacity. A capacity of 0 or less defaults to 10000, matching §5's
// default bound.
func NewInterceptor(capacity int, log *slog.Logger) *Interceptor {
	if capacity <= 0 {
		capacity = 10000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Interceptor{
		queue: make(chan ComplianceEvent, capacity),
		log:   log,
	}
}

// RegisterHandler adds fn to the set invoked on every accepted intercept.
func (i *Interceptor) RegisterHandler(fn Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handlers = append(i.handlers, fn)
}

// Intercept validates and records event, always incrementing the
// completeness counter (completeness over availability, per §4.2), and
// attempts a non-blocking enqueue. It returns accepted=false only when the
// event failed validation; a full queue still returns true but the event
// is dropped from the pull interface and logged.
func (i *Interceptor) Intercept(event ComplianceEvent) (accepted bool, err error) {
	if err := event.validate(); err != nil {
		return false, err
	}

	i.mu.Lock()
	i.count++
	handlers := make([]Handler, len(i.handlers))
	copy(handlers, i.handlers)
	i.mu.Unlock()

	select {
	case i.queue <- event:
	default:
		i.log.Warn("event queue full, dropping from pull interface", "event_id", event.EventID)
	}

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					i.log.Error("handler panic", "error", r)
				}
			}()
			h(event)
		}()
	}

	return true, nil
}

// Next returns the head of the queue, or ok=false after timeout elapses.
// A zero timeout returns immediately.
func (i *Interceptor) Next(timeout time.Duration) (event ComplianceEvent, ok bool) {
	if timeout <= 0 {
		select {
		case event = <-i.queue:
			return event, true
		default:
			return ComplianceEvent{}, false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case event = <-i.queue:
		return event, true
	case <-timer.C:
		return ComplianceEvent{}, false
	}
}

// Count returns the total number of events ever intercepted.
func (i *Interceptor) Count() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.count
}

// VerifyCompleteness reports whether Count equals expected.
func (i *Interceptor) VerifyCompleteness(expected int64) bool {
	return i.Count() == expected
}
