package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"spotter_portal_backend/internal/notification"
	"spotter_portal_backend/platform/apperr"
	"spotter_portal_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type schedulerConfig struct {
	url   string
	queue string
}

func (c schedulerConfig) GetRedisURL() string       { return c.url }
func (schedulerConfig) GetRedisTLSInsecure() bool   { return false }
func (c schedulerConfig) GetAsynqQueueName() string { return c.queue }
func (schedulerConfig) GetAsynqConcurrency() int    { return 2 }

func TestDeliverUpdateTaskPayload(t *testing.T) {
	task, err := NewDeliverUpdateTask(DeliverUpdatePayload{UpdateID: 42})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskDeliverUpdate {
		t.Fatalf("unexpected task type %q", task.Type())
	}
	payload, err := ParseDeliverUpdatePayload(task)
	if err != nil || payload.UpdateID != 42 {
		t.Fatalf("unexpected payload %+v %v", payload, err)
	}

	if _, err := NewDeliverUpdateTask(DeliverUpdatePayload{}); err == nil {
		t.Fatal("expected missing update id to fail")
	}
	if _, err := ParseDeliverUpdatePayload(asynq.NewTask(TaskDeliverUpdate, []byte(`{"updateId":0}`))); err == nil {
		t.Fatal("expected zero update id to fail")
	}
}

func TestMaxRetryFromAttempts(t *testing.T) {
	tests := map[int]int{0: 0, 1: 0, 5: 4}
	for attempts, want := range tests {
		if got := maxRetry(attempts); got != want {
			t.Errorf("attempts %d: expected max retry %d, got %d", attempts, want, got)
		}
	}
}

func TestNewClientRequiresRedis(t *testing.T) {
	if _, err := NewClient(schedulerConfig{}, 5); err == nil {
		t.Fatal("expected error without redis url")
	}
	if _, err := NewWorker(schedulerConfig{}, nil, logger.Nop()); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestQueueNameDefault(t *testing.T) {
	if got := queueName(schedulerConfig{}); got != "default" {
		t.Fatalf("expected default queue, got %q", got)
	}
	if got := queueName(schedulerConfig{queue: "notifications"}); got != "notifications" {
		t.Fatalf("expected configured queue, got %q", got)
	}
}

type fakeDeliverer struct {
	err error
	ids []int64
}

func (f *fakeDeliverer) Deliver(_ context.Context, id int64) error {
	f.ids = append(f.ids, id)
	return f.err
}

func TestHandleDeliverUpdateRetryPolicy(t *testing.T) {
	task, _ := NewDeliverUpdateTask(DeliverUpdatePayload{UpdateID: 7})
	channelErr := errors.New("smtp down")

	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantRetry bool
	}{
		{"delivered", nil, false, false},
		{"channel failure", channelErr, true, true},
		{"in flight", notification.ErrDeliveryInFlight, true, true},
		{"exhausted", fmt.Errorf("%w: %w", notification.ErrAttemptsExhausted, channelErr), true, false},
		{"missing update", apperr.NotFound("update not found"), true, false},
	}

	for _, tc := range tests {
		d := &fakeDeliverer{err: tc.err}
		w := &Worker{deliverer: d, log: logger.Nop()}

		err := w.handleDeliverUpdate(context.Background(), task)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if err != nil && errors.Is(err, asynq.SkipRetry) == tc.wantRetry {
			t.Errorf("%s: expected retry=%v, got error %v", tc.name, tc.wantRetry, err)
		}
		if len(d.ids) != 1 || d.ids[0] != 7 {
			t.Errorf("%s: expected delivery of update 7, got %v", tc.name, d.ids)
		}
	}
}

func TestHandleDeliverUpdateMalformedPayload(t *testing.T) {
	d := &fakeDeliverer{}
	w := &Worker{deliverer: d, log: logger.Nop()}
	err := w.handleDeliverUpdate(context.Background(), asynq.NewTask(TaskDeliverUpdate, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry for malformed payload, got %v", err)
	}
	if len(d.ids) != 0 {
		t.Fatal("malformed payload must not reach the deliverer")
	}
}

func TestRedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	g := NewRedisGuard(rdb)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "notification:delivery:1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got %v %v", ok, err)
	}
	ok, _ = g.Acquire(ctx, "notification:delivery:1", time.Minute)
	if ok {
		t.Fatal("expected second acquire to fail while held")
	}

	if err := g.Release(ctx, "notification:delivery:1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _ = g.Acquire(ctx, "notification:delivery:1", time.Minute)
	if !ok {
		t.Fatal("expected acquire after release")
	}

	mr.FastForward(2 * time.Minute)
	ok, _ = g.Acquire(ctx, "notification:delivery:1", time.Minute)
	if !ok {
		t.Fatal("expected lock to expire")
	}
}

func TestRedisGuardReleaseKeepsLockTakenAfterExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	slow := NewRedisGuard(rdb)
	fast := NewRedisGuard(rdb)
	ctx := context.Background()
	const key = "notification:delivery:7"

	if ok, err := slow.Acquire(ctx, key, time.Minute); err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got %v %v", ok, err)
	}
	mr.FastForward(2 * time.Minute)
	if ok, err := fast.Acquire(ctx, key, time.Minute); err != nil || !ok {
		t.Fatalf("expected acquire after expiry to succeed, got %v %v", ok, err)
	}

	if err := slow.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("stale release removed a lock held by another worker")
	}
	if ok, _ := slow.Acquire(ctx, key, time.Minute); ok {
		t.Fatal("expected lock to stay held by the second worker")
	}

	if err := fast.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("owner release left the lock behind")
	}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(schedulerConfig{url: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

type countingRedeliverer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingRedeliverer) Redeliver(context.Context, time.Duration, int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 3, c.err
}

func TestRedeliverySweep(t *testing.T) {
	if _, err := NewRedeliverySweep("not a schedule", &countingRedeliverer{}, logger.Nop()); err == nil {
		t.Fatal("expected invalid schedule to fail")
	}

	r := &countingRedeliverer{}
	s, err := NewRedeliverySweep("@every 5m", r, logger.Nop())
	if err != nil {
		t.Fatalf("new sweep: %v", err)
	}
	s.runOnce()
	r.err = errors.New("db down")
	s.runOnce()
	if r.calls != 2 {
		t.Fatalf("expected 2 sweeps, got %d", r.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not stop")
	}
}
