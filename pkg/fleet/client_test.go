package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	err := client.Ping(context.Background())
	assert.NoError(t, err)
}

func TestCreateAndGetTask(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	task := validTask()
	require.NoError(t, client.CreateTask(ctx, task))

	t.Run("round-trips the record", func(t *testing.T) {
		got, err := client.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, task.RootID, got.RootID)
		assert.Equal(t, task.Headers, got.Headers)
		assert.Equal(t, StatusSpawned, got.Status)
	})

	t.Run("pushes the ID onto the receiver queue", func(t *testing.T) {
		queued, err := client.rdb.LRange(ctx, QueueKey("test-instance", task.Priority, "classifier"), 0, -1).Result()
		require.NoError(t, err)
		assert.Equal(t, []string{task.ID}, queued)
	})

	t.Run("rejects a task without receiver", func(t *testing.T) {
		orphan := validTask()
		delete(orphan.Headers, "receiver")
		err := client.CreateTask(ctx, orphan)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no receiver header")
	})
}

func TestGetTaskNotFound(t *testing.T) {
	client, _ := setupTestClient(t)

	_, err := client.GetTask(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSetTaskStatus(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	task := validTask()
	task.LastUpdate = 1 // ancient
	require.NoError(t, client.CreateTask(ctx, task))

	require.NoError(t, client.SetTaskStatus(ctx, task, StatusFinished))

	got, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Greater(t, got.LastUpdate, int64(1))
}

func TestListTaskIDs(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	first := validTask()
	second := validTask()
	require.NoError(t, client.CreateTask(ctx, first))
	require.NoError(t, client.CreateTask(ctx, second))

	ids, err := client.ListTaskIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
}

func TestAllTasks(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("empty store yields empty slice", func(t *testing.T) {
		tasks, err := client.AllTasks(ctx)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("fetches every record", func(t *testing.T) {
		first := validTask()
		second := validTask()
		require.NoError(t, client.CreateTask(ctx, first))
		require.NoError(t, client.CreateTask(ctx, second))

		tasks, err := client.AllTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("skips undecodable records silently", func(t *testing.T) {
		mr.Set(TaskKey("test-instance", "broken"), "not json at all")

		tasks, err := client.AllTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
		for _, task := range tasks {
			assert.NotEqual(t, "broken", task.ID)
		}
	})
}

func TestBindRegistry(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	bind := &Bind{
		Identity:       "classifier",
		Filters:        []Filter{{"type": "sample"}},
		Description:    "Routes samples by *file type*.",
		Persistent:     true,
		Version:        "1.0.0",
		ServiceVersion: "2.3.1",
	}
	require.NoError(t, client.RegisterBind(ctx, bind))

	t.Run("round-trips bind metadata", func(t *testing.T) {
		binds, err := client.GetBinds(ctx)
		require.NoError(t, err)
		require.Contains(t, binds, "classifier")
		assert.Equal(t, bind.Filters, binds["classifier"].Filters)
		assert.Equal(t, bind.Description, binds["classifier"].Description)
		assert.True(t, binds["classifier"].Persistent)
		assert.Equal(t, "2.3.1", binds["classifier"].ServiceVersion)
	})

	t.Run("re-registration replaces the previous bind", func(t *testing.T) {
		updated := *bind
		updated.ServiceVersion = "2.4.0"
		require.NoError(t, client.RegisterBind(ctx, &updated))

		binds, err := client.GetBinds(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2.4.0", binds["classifier"].ServiceVersion)
	})

	t.Run("rejects bind without identity", func(t *testing.T) {
		err := client.RegisterBind(ctx, &Bind{})
		assert.Error(t, err)
	})
}

func TestOutputRegistry(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	decl := &OutputDeclaration{
		Identity: "unpacker",
		Outputs:  []Descriptor{{"type": "sample", "kind": "unpacked"}},
	}
	require.NoError(t, client.DeclareOutputs(ctx, decl))

	outputs, err := client.GetOutputs(ctx)
	require.NoError(t, err)
	require.Contains(t, outputs, "unpacker")
	assert.Equal(t, decl.Outputs, outputs["unpacker"])
}

func TestReplicaCounts(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("no announcements means empty map", func(t *testing.T) {
		counts, err := client.ReplicaCounts(ctx)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("counts live heartbeats per identity", func(t *testing.T) {
		require.NoError(t, client.AnnounceReplica(ctx, "classifier", "r1", time.Minute))
		require.NoError(t, client.AnnounceReplica(ctx, "classifier", "r2", time.Minute))
		require.NoError(t, client.AnnounceReplica(ctx, "unpacker", "r1", time.Minute))

		counts, err := client.ReplicaCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"classifier": 2, "unpacker": 1}, counts)
	})

	t.Run("expired heartbeats age out", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)

		counts, err := client.ReplicaCounts(ctx)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("rejects empty identity", func(t *testing.T) {
		err := client.AnnounceReplica(ctx, "", "r1", time.Minute)
		assert.Error(t, err)
	})
}

func TestLogBacklog(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	n, err := client.LogBacklog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	mr.Lpush(LogsKey("test-instance"), "a log line")
	mr.Lpush(LogsKey("test-instance"), "another log line")

	n, err = client.LogBacklog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
