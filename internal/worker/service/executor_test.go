package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nemanja-m/gomar/internal/protocol"
	mr "github.com/nemanja-m/gomar/pkg/core"
	"github.com/nemanja-m/gomar/pkg/datasource"
	"github.com/nemanja-m/gomar/pkg/jobs"
)

func memoryTask(t *testing.T, function string, records ...mr.Record) *protocol.MapTask {
	t.Helper()
	factory, err := datasource.NewFactory(datasource.MemorySource, datasource.MemoryOptions{Records: records})
	if err != nil {
		t.Fatalf("Failed to create factory: %v", err)
	}
	shards, err := factory.Split(context.Background(), 1)
	if err != nil {
		t.Fatalf("Failed to split source: %v", err)
	}
	return &protocol.MapTask{JobID: uuid.New(), Shard: 0, Attempt: 1, Function: function, Source: shards[0]}
}

func executorWith(job jobs.Job) *mapExecutor {
	return &mapExecutor{lookup: func(name string) (jobs.Job, error) {
		if name != "test" {
			return jobs.Job{}, errors.New("job not found: " + name)
		}
		return job, nil
	}}
}

func TestMapExecutor_RunsMapOverShard(t *testing.T) {
	executor := executorWith(jobs.Job{
		Map: mr.MapJSON(func(ctx context.Context, src mr.DataSource) (int, error) {
			sum := 0
			for record, err := range src.Records(ctx) {
				if err != nil {
					return 0, err
				}
				sum += int(record["n"].(float64))
			}
			return sum, nil
		}),
	})

	value, err := executor.Execute(context.Background(), memoryTask(t, "test", mr.Record{"n": 1}, mr.Record{"n": 2}, mr.Record{"n": 3}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(value) != "6" {
		t.Errorf("Expected 6, got %s", value)
	}
}

func TestMapExecutor_UnknownFunction(t *testing.T) {
	executor := executorWith(jobs.Job{})

	_, err := executor.Execute(context.Background(), memoryTask(t, "missing", mr.Record{"n": 1}))
	if err == nil || !strings.Contains(err.Error(), "job not found: missing") {
		t.Errorf("Expected job not found error, got %v", err)
	}
}

func TestMapExecutor_RecoversPanic(t *testing.T) {
	executor := executorWith(jobs.Job{
		Map: func(context.Context, mr.DataSource) ([]byte, error) {
			panic("index out of range")
		},
	})

	value, err := executor.Execute(context.Background(), memoryTask(t, "test", mr.Record{"n": 1}))
	if err == nil || !strings.Contains(err.Error(), "panicked: index out of range") {
		t.Errorf("Expected panic to be reported as error, got %v", err)
	}
	if value != nil {
		t.Errorf("Expected no value, got %q", value)
	}
}

func TestMapExecutor_UnknownSource(t *testing.T) {
	executor := executorWith(jobs.Job{
		Map: func(context.Context, mr.DataSource) ([]byte, error) {
			return nil, nil
		},
	})
	task := memoryTask(t, "test", mr.Record{"n": 1})
	task.Source.Source = "nope"

	_, err := executor.Execute(context.Background(), task)
	var cfgErr *mr.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestNewMapExecutor_UsesJobRegistry(t *testing.T) {
	name := "executor-test-" + uuid.NewString()
	if err := jobs.Register(name, jobs.Job{
		Map: func(context.Context, mr.DataSource) ([]byte, error) {
			return []byte("ok"), nil
		},
		Reduce: func(context.Context, [][]byte) ([]byte, error) {
			return nil, nil
		},
	}); err != nil {
		t.Fatalf("Failed to register job: %v", err)
	}

	value, err := NewMapExecutor().Execute(context.Background(), memoryTask(t, name, mr.Record{"n": 1}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(value) != "ok" {
		t.Errorf("Expected ok, got %s", value)
	}
}
