package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the fleet store.
// All keys are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new fleet client for the specified instance.
// The client automatically namespaces all keys with the instance name.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: fleet instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the fleet instance this client is scoped to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// GetTask retrieves a task record by ID.
// Returns (nil, redis.Nil) if the task doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskRecord, error) {
	raw, err := c.rdb.Get(ctx, TaskKey(c.instanceName, taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read task from Redis: %w", err)
	}

	var task TaskRecord
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("failed to deserialize task: %w", err)
	}

	return &task, nil
}

// ListTaskIDs returns the IDs of all task records currently in the store.
// The listing is a point-in-time enumeration: a record may be collected
// between listing and a subsequent fetch.
func (c *Client) ListTaskIDs(ctx context.Context) ([]string, error) {
	keys, err := c.scanKeys(ctx, TaskKeyPattern(c.instanceName))
	if err != nil {
		return nil, fmt.Errorf("failed to list task keys: %w", err)
	}

	prefix := fmt.Sprintf("warren:%s:task:", c.instanceName)
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, prefix))
	}
	return ids, nil
}

// AllTasks retrieves every live task record in one bulk fetch.
//
// Records that vanish between key enumeration and value fetch (collected by
// the backend in the meantime) are skipped silently - this is a harmless
// race, not an error. Records with undecodable JSON are skipped as well so
// that a single bad record never aborts a full-store read.
func (c *Client) AllTasks(ctx context.Context) ([]*TaskRecord, error) {
	keys, err := c.scanKeys(ctx, TaskKeyPattern(c.instanceName))
	if err != nil {
		return nil, fmt.Errorf("failed to list task keys: %w", err)
	}

	if len(keys) == 0 {
		return []*TaskRecord{}, nil
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task records: %w", err)
	}

	tasks := make([]*TaskRecord, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Task removed between SCAN and MGET.
			continue
		}

		var task TaskRecord
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			continue
		}

		tasks = append(tasks, &task)
	}

	return tasks, nil
}

// CreateTask writes a task record and pushes its ID onto the pending
// delivery list of the receiving queue. The record must carry a receiver
// header, otherwise no consumer could ever pick it up.
func (c *Client) CreateTask(ctx context.Context, task *TaskRecord) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	receiver, ok := task.Receiver()
	if !ok {
		return fmt.Errorf("task %s has no receiver header", task.ID)
	}

	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	if err := c.rdb.Set(ctx, TaskKey(c.instanceName, task.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write task to Redis: %w", err)
	}

	queueKey := QueueKey(c.instanceName, task.Priority, receiver)
	if err := c.rdb.RPush(ctx, queueKey, task.ID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// SetTaskStatus transitions a task to a new status and rewrites the record
// with a fresh last_update timestamp. The passed record is updated in place.
func (c *Client) SetTaskStatus(ctx context.Context, task *TaskRecord, status TaskStatus) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	task.Status = status
	task.LastUpdate = time.Now().Unix()

	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	if err := c.rdb.Set(ctx, TaskKey(c.instanceName, task.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write task to Redis: %w", err)
	}

	return nil
}

// RegisterBind stores the bind registration for an identity, replacing any
// previous registration.
func (c *Client) RegisterBind(ctx context.Context, bind *Bind) error {
	if err := bind.Validate(); err != nil {
		return fmt.Errorf("invalid bind: %w", err)
	}

	raw, err := json.Marshal(bind)
	if err != nil {
		return fmt.Errorf("failed to serialize bind: %w", err)
	}

	if err := c.rdb.HSet(ctx, BindsKey(c.instanceName), bind.Identity, raw).Err(); err != nil {
		return fmt.Errorf("failed to write bind to Redis: %w", err)
	}

	return nil
}

// GetBinds retrieves all bind registrations keyed by identity.
// Returns an empty map when no binds are registered (not an error).
func (c *Client) GetBinds(ctx context.Context) (map[string]*Bind, error) {
	raw, err := c.rdb.HGetAll(ctx, BindsKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read binds from Redis: %w", err)
	}

	binds := make(map[string]*Bind, len(raw))
	for identity, value := range raw {
		var bind Bind
		if err := json.Unmarshal([]byte(value), &bind); err != nil {
			return nil, fmt.Errorf("failed to deserialize bind for %q: %w", identity, err)
		}
		// The hash field is authoritative for the identity.
		bind.Identity = identity
		binds[identity] = &bind
	}

	return binds, nil
}

// DeclareOutputs stores the output declaration for an identity, replacing
// any previous declaration.
func (c *Client) DeclareOutputs(ctx context.Context, decl *OutputDeclaration) error {
	if err := decl.Validate(); err != nil {
		return fmt.Errorf("invalid output declaration: %w", err)
	}

	raw, err := json.Marshal(decl.Outputs)
	if err != nil {
		return fmt.Errorf("failed to serialize outputs: %w", err)
	}

	if err := c.rdb.HSet(ctx, OutputsKey(c.instanceName), decl.Identity, raw).Err(); err != nil {
		return fmt.Errorf("failed to write outputs to Redis: %w", err)
	}

	return nil
}

// GetOutputs retrieves all output declarations keyed by identity.
// Returns an empty map when no outputs are declared (not an error).
func (c *Client) GetOutputs(ctx context.Context) (map[string][]Descriptor, error) {
	raw, err := c.rdb.HGetAll(ctx, OutputsKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read outputs from Redis: %w", err)
	}

	outputs := make(map[string][]Descriptor, len(raw))
	for identity, value := range raw {
		var descriptors []Descriptor
		if err := json.Unmarshal([]byte(value), &descriptors); err != nil {
			return nil, fmt.Errorf("failed to deserialize outputs for %q: %w", identity, err)
		}
		outputs[identity] = descriptors
	}

	return outputs, nil
}

// AnnounceReplica writes the heartbeat key for one live consumer replica.
// Consumers call this periodically with an interval shorter than ttl; a
// replica that stops announcing ages out of the count automatically.
func (c *Client) AnnounceReplica(ctx context.Context, identity, replicaID string, ttl time.Duration) error {
	if identity == "" || replicaID == "" {
		return fmt.Errorf("identity and replica ID cannot be empty")
	}

	key := ReplicaKey(c.instanceName, identity, replicaID)
	if err := c.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to announce replica: %w", err)
	}

	return nil
}

// ReplicaCounts returns the number of live consumer replicas per identity,
// derived from the heartbeat keys currently alive. Identities with no live
// replicas are absent from the map.
func (c *Client) ReplicaCounts(ctx context.Context) (map[string]int, error) {
	keys, err := c.scanKeys(ctx, ReplicaKeyPattern(c.instanceName))
	if err != nil {
		return nil, fmt.Errorf("failed to list replica keys: %w", err)
	}

	prefix := fmt.Sprintf("warren:%s:replica:", c.instanceName)
	counts := make(map[string]int)
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		// Replica IDs are UUIDs and never contain a colon, so the last
		// separator splits identity from replica ID.
		sep := strings.LastIndex(rest, ":")
		if sep <= 0 {
			continue
		}
		counts[rest[:sep]]++
	}

	return counts, nil
}

// LogBacklog returns the number of entries waiting in the fleet log list.
func (c *Client) LogBacklog(ctx context.Context) (int64, error) {
	n, err := c.rdb.LLen(ctx, LogsKey(c.instanceName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read log backlog: %w", err)
	}
	return n, nil
}

// scanKeys collects all keys matching the pattern using SCAN so that large
// stores are never blocked by a KEYS call.
func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetTask returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
