package fleet

import "fmt"

// Redis key pattern helpers
//
// All Redis keys are namespaced by instance name to enable multiple Warren
// fleets to safely coexist on a single Redis server.
//
// Key pattern: warren:{instance_name}:{entity}[:{id}]

// TaskKey returns the Redis key holding one task record as a JSON string.
// Pattern: warren:{instance_name}:task:{task_id}
func TaskKey(instanceName, taskID string) string {
	return fmt.Sprintf("warren:%s:task:%s", instanceName, taskID)
}

// TaskKeyPattern returns the SCAN match pattern for all task records.
// Pattern: warren:{instance_name}:task:*
func TaskKeyPattern(instanceName string) string {
	return fmt.Sprintf("warren:%s:task:*", instanceName)
}

// BindsKey returns the Redis key of the bind registry hash.
// Fields are identities, values are JSON-encoded Bind objects.
// Pattern: warren:{instance_name}:binds
func BindsKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:binds", instanceName)
}

// OutputsKey returns the Redis key of the output declaration hash.
// Fields are identities, values are JSON-encoded descriptor lists.
// Pattern: warren:{instance_name}:outputs
func OutputsKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:outputs", instanceName)
}

// QueueKey returns the Redis key of a pending-delivery list for one
// identity at one priority. Workers consume task IDs from these lists.
// Pattern: warren:{instance_name}:queue:{priority}:{identity}
func QueueKey(instanceName string, priority Priority, identity string) string {
	return fmt.Sprintf("warren:%s:queue:%s:%s", instanceName, priority, identity)
}

// ReplicaKey returns the heartbeat key announcing one live consumer
// replica. The key is written with a TTL; a replica is counted for as long
// as its key lives.
// Pattern: warren:{instance_name}:replica:{identity}:{replica_id}
func ReplicaKey(instanceName, identity, replicaID string) string {
	return fmt.Sprintf("warren:%s:replica:%s:%s", instanceName, identity, replicaID)
}

// ReplicaKeyPattern returns the SCAN match pattern for all replica
// heartbeat keys.
// Pattern: warren:{instance_name}:replica:*
func ReplicaKeyPattern(instanceName string) string {
	return fmt.Sprintf("warren:%s:replica:*", instanceName)
}

// LogsKey returns the Redis key of the fleet log backlog list.
// Only its length is read by the dashboard.
// Pattern: warren:{instance_name}:logs
func LogsKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:logs", instanceName)
}
