package state

import (
	"context"
	"fmt"
	"sort"

	"github.com/dyluth/warren/pkg/fleet"
)

// Aggregator computes fresh snapshots of the fleet store.
// It holds no state of its own beyond the client handle.
type Aggregator struct {
	client *fleet.Client
}

// NewAggregator creates an aggregator reading through the given client.
func NewAggregator(client *fleet.Client) *Aggregator {
	return &Aggregator{client: client}
}

// Snapshot reads the whole store once and classifies every live task record
// into queue and analysis views.
//
// The queue universe comes from the bind registry: a record whose receiver
// does not name a registered bind is dropped (its queue was deleted but the
// record not yet collected). Unroutable and finished records are dropped as
// well. Everything else lands in exactly one of pending or crashed per its
// status, and once under its root's analysis.
func (ag *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	binds, err := ag.client.GetBinds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load binds: %w", err)
	}

	queues := make(map[string]*Queue, len(binds))
	for identity, bind := range binds {
		queues[identity] = &Queue{
			Identity:       identity,
			Filters:        bind.Filters,
			Description:    bind.Description,
			Persistent:     bind.Persistent,
			Version:        bind.Version,
			ServiceVersion: bind.ServiceVersion,
		}
	}

	tasks, err := ag.client.AllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	analyses := make(map[string]*Analysis)
	for _, task := range tasks {
		receiver, ok := task.Receiver()
		if !ok {
			// Task without a receiver. Weird flex, but ok.
			continue
		}

		if task.Status == fleet.StatusFinished {
			// Don't count finished tasks (waiting for GC).
			continue
		}

		queue, ok := queues[receiver]
		if !ok {
			// Queue removed but task still in the store (waiting for GC).
			continue
		}

		analysis, ok := analyses[task.RootID]
		if !ok {
			analysis = &Analysis{
				RootID: task.RootID,
				Queues: make(map[string][]*fleet.TaskRecord),
			}
			analyses[task.RootID] = analysis
		}
		analysis.Queues[receiver] = append(analysis.Queues[receiver], task)

		if task.Status == fleet.StatusCrashed {
			queue.Crashed = append(queue.Crashed, task)
		} else {
			queue.Pending = append(queue.Pending, task)
		}
	}

	for _, queue := range queues {
		sortTasks(queue.Pending)
		sortTasks(queue.Crashed)
	}
	for _, analysis := range analyses {
		for _, tasks := range analysis.Queues {
			sortTasks(tasks)
		}
	}

	replicas, err := ag.client.ReplicaCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load replica counts: %w", err)
	}
	for identity, count := range replicas {
		if queue, ok := queues[identity]; ok {
			queue.Replicas = count
		}
	}

	backlog, err := ag.client.LogBacklog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load log backlog: %w", err)
	}

	return &Snapshot{
		Queues:     queues,
		Analyses:   analyses,
		LogBacklog: backlog,
	}, nil
}

// sortTasks orders tasks most recently updated first. Equal timestamps fall
// back to ascending task ID so repeated snapshots over an unchanged store
// are structurally identical.
func sortTasks(tasks []*fleet.TaskRecord) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].LastUpdate != tasks[j].LastUpdate {
			return tasks[i].LastUpdate > tasks[j].LastUpdate
		}
		return tasks[i].ID < tasks[j].ID
	})
}
