// Package metrics exports a snapshot of the fleet as prometheus gauges.
//
// Instead of process-global gauges mutated across requests, every call to
// Registry builds a fresh prometheus registry from a single snapshot and
// hands it to the caller for exposition. Computing state and exposing it as
// a pull metric stay decoupled, and tests never share a mutable registry.
package metrics

import (
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dyluth/warren/internal/state"
	"github.com/dyluth/warren/pkg/fleet"
)

var unsafeLabelChars = regexp.MustCompile("[^a-z0-9]")

// SafeName lowercases a queue identity and replaces everything outside
// [a-z0-9] with underscores so it is usable as a metric label value.
func SafeName(identity string) string {
	return unsafeLabelChars.ReplaceAllString(strings.ToLower(identity), "_")
}

// Registry builds a fresh registry holding the task, replica and log
// backlog gauges for one snapshot.
//
// Every (queue, priority, status) combination of every registered bind is
// zero-initialized before observed counts are overlaid. A combination
// dropping to zero therefore reports an explicit 0 instead of vanishing
// from the exported series - downstream time-series graphs depend on that.
// A queue deleted mid-interval does drop out of the series entirely; its
// bind is gone, so there is nothing left to zero-initialize.
func Registry(snap *state.Snapshot) *prometheus.Registry {
	tasks := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warren_tasks",
			Help: "Live tasks by queue, priority and status.",
		},
		[]string{"name", "priority", "status"},
	)

	replicas := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warren_replicas",
			Help: "Live consumer replicas by queue and bind version.",
		},
		[]string{"name", "version"},
	)

	logs := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warren_logs",
			Help: "Pending fleet log entries.",
		},
	)

	for _, queue := range snap.Queues {
		name := SafeName(queue.Identity)

		// Reset-then-overlay: every combination starts at an explicit zero.
		for _, priority := range fleet.Priorities {
			for _, status := range fleet.Statuses {
				tasks.WithLabelValues(name, string(priority), string(status)).Set(0)
			}
		}

		for _, task := range queue.Pending {
			tasks.WithLabelValues(name, string(task.Priority), string(task.Status)).Inc()
		}
		for _, task := range queue.Crashed {
			tasks.WithLabelValues(name, string(task.Priority), string(task.Status)).Inc()
		}

		replicas.WithLabelValues(name, queue.Version).Set(float64(queue.Replicas))
	}

	logs.Set(float64(snap.LogBacklog))

	reg := prometheus.NewRegistry()
	reg.MustRegister(tasks, replicas, logs)
	return reg
}
