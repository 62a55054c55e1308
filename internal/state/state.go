// Package state reconstructs structured queue and analysis views from the
// flat, unordered fleet record store.
//
// The store holds nothing but raw task records, bind registrations and
// replica heartbeats. Every call to Aggregator.Snapshot performs one full
// read and classifies the records into per-queue pending/crashed lists and
// per-root analysis trees. Nothing is cached between calls; two concurrent
// snapshots are fully independent.
package state

import (
	"github.com/dyluth/warren/pkg/fleet"
)

// Queue is the derived view of one registered service identity: its bind
// metadata plus the live tasks currently routed to it.
type Queue struct {
	Identity       string
	Filters        []fleet.Filter
	Description    string
	Persistent     bool
	Version        string
	ServiceVersion string
	Replicas       int
	Pending        []*fleet.TaskRecord // Non-crashed live tasks, most recently updated first
	Crashed        []*fleet.TaskRecord // Crashed tasks, same ordering
}

// TaskIDs returns the pending task IDs in display order.
func (q *Queue) TaskIDs() []string {
	return taskIDs(q.Pending)
}

// CrashedIDs returns the crashed task IDs in display order.
func (q *Queue) CrashedIDs() []string {
	return taskIDs(q.Crashed)
}

func taskIDs(tasks []*fleet.TaskRecord) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// Analysis is the derived view of one task lineage: every live task sharing
// one root ID, grouped by the queue it currently sits in. An analysis with
// zero tasks does not exist.
type Analysis struct {
	RootID string
	Queues map[string][]*fleet.TaskRecord
}

// LastUpdate returns the most recent update timestamp across all tasks of
// the analysis.
func (a *Analysis) LastUpdate() int64 {
	var latest int64
	for _, tasks := range a.Queues {
		for _, t := range tasks {
			if t.LastUpdate > latest {
				latest = t.LastUpdate
			}
		}
	}
	return latest
}

// TaskCount returns the number of live tasks under the analysis.
func (a *Analysis) TaskCount() int {
	n := 0
	for _, tasks := range a.Queues {
		n += len(tasks)
	}
	return n
}

// Snapshot is one point-in-time view over the whole store.
type Snapshot struct {
	Queues     map[string]*Queue
	Analyses   map[string]*Analysis
	LogBacklog int64
}

// Queue looks up a queue view by identity.
// The second return value is false when no bind with that identity exists.
func (s *Snapshot) Queue(identity string) (*Queue, bool) {
	q, ok := s.Queues[identity]
	return q, ok
}

// Analysis looks up an analysis view by root task ID.
// The second return value is false when no live task shares that root.
func (s *Snapshot) Analysis(rootID string) (*Analysis, bool) {
	a, ok := s.Analyses[rootID]
	return a, ok
}
