package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/zato-cache-client/internal/testutil"
	"github.com/Sternrassler/zato-cache-client/pkg/cacheapi"
)

type fakeRunner struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
	fail        map[string]error
}

func (f *fakeRunner) RunCommand(ctx context.Context, cfg cacheapi.CommandConfig) (*cacheapi.CommandResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := f.fail[cfg.Key]; err != nil {
		return nil, err
	}
	return &cacheapi.CommandResponse{Key: cfg.Key, StatusCode: 200}, nil
}

func commands(keys ...string) []cacheapi.CommandConfig {
	cmds := make([]cacheapi.CommandConfig, len(keys))
	for i, k := range keys {
		cmds[i] = cacheapi.CommandConfig{Command: cacheapi.CommandGet, Key: k}
	}
	return cmds
}

func TestRun_OrderAndConcurrency(t *testing.T) {
	f := &fakeRunner{delay: 5 * time.Millisecond}
	r := New(f, Config{MaxConcurrency: 3})

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	results, err := r.Run(context.Background(), commands(keys...))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(results) != len(keys) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(keys))
	}
	for i, res := range results {
		if res.Index != i || res.Response == nil || res.Response.Key != keys[i] {
			t.Errorf("results[%d] = %+v", i, res)
		}
	}
	if m := f.maxInFlight.Load(); m > 3 {
		t.Errorf("max in flight = %d, want <= 3", m)
	}
}

func TestRun_FirstErrorWithPartialResults(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeRunner{fail: map[string]error{"b": boom, "d": errors.New("later")}}
	r := New(f, DefaultConfig())

	results, err := r.Run(context.Background(), commands("a", "b", "c", "d"))
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want the error of command 1", err)
	}

	if results[0].Error != nil || results[2].Error != nil {
		t.Error("successful commands should have no error")
	}
	if results[0].Response == nil || results[2].Response == nil {
		t.Error("successful commands should have a response")
	}
	if results[1].Error == nil || results[3].Error == nil {
		t.Error("failed commands should record their error")
	}
}

func TestRun_Timeout(t *testing.T) {
	f := &fakeRunner{delay: time.Second}
	r := New(f, Config{MaxConcurrency: 2, Timeout: 10 * time.Millisecond})

	_, err := r.Run(context.Background(), commands("slow"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want DeadlineExceeded", err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(&fakeRunner{}, DefaultConfig())
	results, err := r.Run(ctx, commands("a", "b"))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want Canceled", err)
	}
	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("result %d error = %v", res.Index, res.Error)
		}
	}
}

func TestRun_Empty(t *testing.T) {
	results, err := New(&fakeRunner{}, DefaultConfig()).Run(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Errorf("Run(nil) = %v, %v", results, err)
	}
}

func TestRun_WithClient(t *testing.T) {
	mock := testutil.NewMockCache()
	defer mock.Close()
	mock.SetResponse("/zato/cache/a", testutil.NewJSONResponse(`{"value": "A"}`))
	mock.SetResponse("/zato/cache/b", testutil.NewNotFoundResponse())

	client := cacheapi.New(cacheapi.Config{Address: mock.Addr()})
	results, err := New(client, DefaultConfig()).Run(context.Background(), commands("a", "b"))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if v, _ := results[0].Response.Value(); v != "A" {
		t.Errorf("a = %v, want A", v)
	}
	if results[1].Response.StatusCode != 404 || results[1].Response.HasValue {
		t.Errorf("b = %+v", results[1].Response)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount() = %d, want 2", mock.RequestCount())
	}
}
