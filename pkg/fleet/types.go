package fleet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskRecord represents one task as stored in the fleet record store.
// Records are immutable at read time: the backend rewrites the whole record
// on status transitions and eventually garbage-collects finished tasks.
type TaskRecord struct {
	ID         string            `json:"uid"`                  // UUID - unique identifier for this task
	ParentID   string            `json:"parent_uid,omitempty"` // UUID of the task that spawned this one (empty for roots)
	RootID     string            `json:"root_uid"`             // UUID of the lineage root shared by the whole analysis
	Priority   Priority          `json:"priority"`             // Scheduling priority assigned by the producer
	Status     TaskStatus        `json:"status"`               // Current lifecycle state
	LastUpdate int64             `json:"last_update"`          // Unix timestamp of the last status transition
	Headers    map[string]string `json:"headers"`              // Routing headers; "receiver" names the target queue
	Payload    json.RawMessage   `json:"payload,omitempty"`    // Opaque task payload, passed through untouched
	Error      string            `json:"error,omitempty"`      // Failure report attached by a crashed consumer
}

// TaskStatus defines the lifecycle state of a task.
// Tasks progress spawned -> started -> finished, or to crashed on failure.
type TaskStatus string

const (
	// StatusSpawned indicates the task is queued and not yet picked up
	StatusSpawned TaskStatus = "spawned"

	// StatusStarted indicates the task has been claimed by a consumer
	StatusStarted TaskStatus = "started"

	// StatusCrashed indicates a consumer reported a failure for the task
	StatusCrashed TaskStatus = "crashed"

	// StatusFinished indicates terminal completion; the record is only
	// waiting for garbage collection and is excluded from all views
	StatusFinished TaskStatus = "finished"
)

// Priority defines the scheduling priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Priorities lists all priorities in display order.
// Used by the metric exporter to zero-initialize every label combination.
var Priorities = []Priority{PriorityHigh, PriorityNormal, PriorityLow}

// Statuses lists the non-terminal statuses a live record can hold.
var Statuses = []TaskStatus{StatusSpawned, StatusStarted, StatusCrashed}

// Filter is a partial-match predicate over string fields.
// All key/value pairs must be present and equal for the filter to match.
type Filter map[string]string

// Descriptor describes one payload shape an identity may produce.
// It has the same representation as a Filter but sits on the producing side.
type Descriptor map[string]string

// Bind is the declarative registration of one service identity: which task
// shapes it accepts and its static display metadata.
type Bind struct {
	Identity       string   `json:"identity"`        // Queue identity the service consumes from
	Filters        []Filter `json:"filters"`         // Accepted task shapes; any single match suffices
	Description    string   `json:"description"`     // Free-text markdown description
	Persistent     bool     `json:"persistent"`      // Whether the queue survives with no live consumers
	Version        string   `json:"version"`         // Bind schema version
	ServiceVersion string   `json:"service_version"` // Version string of the consuming software
}

// OutputDeclaration is the per-identity set of payload shapes the service
// may emit when producing downstream tasks. Independent of Bind: an identity
// may declare outputs without a bind or vice versa.
type OutputDeclaration struct {
	Identity string       `json:"identity"`
	Outputs  []Descriptor `json:"outputs"`
}

// Receiver returns the queue identity this record is routed to.
// The second return value is false when the record has no receiver header,
// which makes it unroutable and excluded from aggregation.
func (t *TaskRecord) Receiver() (string, bool) {
	r, ok := t.Headers["receiver"]
	return r, ok && r != ""
}

// Fork creates a fresh copy of the task for re-submission: new ID, status
// spawned, current timestamp, cleared error. Lineage (root and parent) and
// the headers/payload are preserved so the fork lands in the same queue.
func (t *TaskRecord) Fork() *TaskRecord {
	headers := make(map[string]string, len(t.Headers))
	for k, v := range t.Headers {
		headers[k] = v
	}
	return &TaskRecord{
		ID:         uuid.New().String(),
		ParentID:   t.ParentID,
		RootID:     t.RootID,
		Priority:   t.Priority,
		Status:     StatusSpawned,
		LastUpdate: time.Now().Unix(),
		Headers:    headers,
		Payload:    t.Payload,
	}
}

// Pretty returns the record as indented JSON for display.
func (t *TaskRecord) Pretty() string {
	out, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return ""
	}
	return string(out)
}

// Validate checks if the TaskRecord has valid field values.
// Returns an error if any validation fails.
func (t *TaskRecord) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	if t.RootID == "" {
		return fmt.Errorf("root ID cannot be empty")
	}

	if err := t.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if err := t.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid priority: %w", err)
	}

	return nil
}

// Validate checks if the TaskStatus is a valid enum value.
func (s TaskStatus) Validate() error {
	switch s {
	case StatusSpawned, StatusStarted, StatusCrashed, StatusFinished:
		return nil
	default:
		return fmt.Errorf("unknown task status: %q", s)
	}
}

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// Matches reports whether every key/value pair of the filter is present and
// equal in fields. An empty filter matches everything.
func (f Filter) Matches(fields map[string]string) bool {
	for k, want := range f {
		if got, ok := fields[k]; !ok || got != want {
			return false
		}
	}
	return true
}

// Accepts reports whether any of the bind's filters matches the given
// fields. A bind with no filters accepts nothing.
func (b *Bind) Accepts(fields map[string]string) bool {
	for _, f := range b.Filters {
		if f.Matches(fields) {
			return true
		}
	}
	return false
}

// Validate checks if the Bind has valid field values.
func (b *Bind) Validate() error {
	if b.Identity == "" {
		return fmt.Errorf("bind identity cannot be empty")
	}
	return nil
}

// Validate checks if the OutputDeclaration has valid field values.
func (o *OutputDeclaration) Validate() error {
	if o.Identity == "" {
		return fmt.Errorf("output declaration identity cannot be empty")
	}
	return nil
}
