package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/internal/state"
	"github.com/dyluth/warren/pkg/fleet"
)

func TestSafeName(t *testing.T) {
	assert.Equal(t, "warren_classifier_2", SafeName("Warren.Classifier-2"))
	assert.Equal(t, "plain", SafeName("plain"))
}

// gatherFamily returns the named metric family from a freshly built registry.
func gatherFamily(t *testing.T, snap *state.Snapshot, name string) *dto.MetricFamily {
	families, err := Registry(snap).Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

// gaugeValue finds the gauge whose labels match the given map exactly.
func gaugeValue(t *testing.T, family *dto.MetricFamily, labels map[string]string) float64 {
	for _, metric := range family.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if labels[pair.GetName()] == pair.GetValue() {
				matched++
			}
		}
		if matched == len(labels) && matched == len(metric.GetLabel()) {
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("no gauge with labels %v", labels)
	return 0
}

func pendingTask(priority fleet.Priority, status fleet.TaskStatus) *fleet.TaskRecord {
	return &fleet.TaskRecord{
		ID:       "t",
		RootID:   "r",
		Priority: priority,
		Status:   status,
		Headers:  map[string]string{"receiver": "q"},
	}
}

func TestRegistryZeroInitializesAllCombinations(t *testing.T) {
	snap := &state.Snapshot{
		Queues: map[string]*state.Queue{
			"Empty.Queue": {Identity: "Empty.Queue", Version: "1.0.0"},
		},
	}

	family := gatherFamily(t, snap, "warren_tasks")

	// 3 priorities x 3 live statuses, all explicitly zero.
	assert.Len(t, family.GetMetric(), 9)
	for _, metric := range family.GetMetric() {
		assert.Equal(t, float64(0), metric.GetGauge().GetValue())
	}

	value := gaugeValue(t, family, map[string]string{
		"name": "empty_queue", "priority": "normal", "status": "crashed",
	})
	assert.Equal(t, float64(0), value)
}

func TestRegistryOverlaysObservedCounts(t *testing.T) {
	snap := &state.Snapshot{
		Queues: map[string]*state.Queue{
			"q": {
				Identity: "q",
				Version:  "1.0.0",
				Pending: []*fleet.TaskRecord{
					pendingTask(fleet.PriorityNormal, fleet.StatusSpawned),
					pendingTask(fleet.PriorityNormal, fleet.StatusSpawned),
					pendingTask(fleet.PriorityHigh, fleet.StatusStarted),
				},
				Crashed: []*fleet.TaskRecord{
					pendingTask(fleet.PriorityLow, fleet.StatusCrashed),
				},
			},
		},
	}

	family := gatherFamily(t, snap, "warren_tasks")

	assert.Equal(t, float64(2), gaugeValue(t, family, map[string]string{
		"name": "q", "priority": "normal", "status": "spawned",
	}))
	assert.Equal(t, float64(1), gaugeValue(t, family, map[string]string{
		"name": "q", "priority": "high", "status": "started",
	}))
	assert.Equal(t, float64(1), gaugeValue(t, family, map[string]string{
		"name": "q", "priority": "low", "status": "crashed",
	}))
	assert.Equal(t, float64(0), gaugeValue(t, family, map[string]string{
		"name": "q", "priority": "high", "status": "crashed",
	}))
}

func TestRegistryReplicasAndLogs(t *testing.T) {
	snap := &state.Snapshot{
		Queues: map[string]*state.Queue{
			"q": {Identity: "q", Version: "3.1.0", Replicas: 4},
		},
		LogBacklog: 17,
	}

	replicas := gatherFamily(t, snap, "warren_replicas")
	assert.Equal(t, float64(4), gaugeValue(t, replicas, map[string]string{
		"name": "q", "version": "3.1.0",
	}))

	logs := gatherFamily(t, snap, "warren_logs")
	require.Len(t, logs.GetMetric(), 1)
	assert.Equal(t, float64(17), logs.GetMetric()[0].GetGauge().GetValue())
}
