package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestPublishReachesEveryStreamOfUser(t *testing.T) {
	s := New(nil)
	a := &client{userID: 5, events: make(chan Event, 1)}
	b := &client{userID: 5, events: make(chan Event, 1)}
	other := &client{userID: 6, events: make(chan Event, 1)}
	s.addClient(a)
	s.addClient(b)
	s.addClient(other)

	if n := s.Publish(5, Event{Type: EventUpdateCreated, UpdateID: 1}); n != 2 {
		t.Fatalf("expected 2 streams, got %d", n)
	}
	if len(other.events) != 0 {
		t.Fatal("other user must not receive the event")
	}

	// Full buffers drop instead of blocking.
	if n := s.Publish(5, Event{Type: EventUpdateCreated, UpdateID: 2}); n != 0 {
		t.Fatalf("expected full buffers to drop, got %d", n)
	}
}

func TestRemoveAfterCloseDoesNotPanic(t *testing.T) {
	s := New(nil)
	c := &client{userID: 1, events: make(chan Event, 1)}
	s.addClient(c)
	s.Close()
	s.removeClient(c)

	if s.Connected(1) != 0 {
		t.Fatal("expected no clients after close")
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(nil)

	r := gin.New()
	r.GET("/stream", s.Handler(func(*gin.Context) (int64, bool) { return 5, true }))
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	readUntil := func(substr string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", substr, lines.Err())
	}

	readUntil("connected")
	s.Publish(5, Event{Type: EventUpdateCreated, UpdateID: 9, Title: "Lead #42 accepted"})
	readUntil("update_created")
	readUntil("Lead #42 accepted")
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(nil)
	r := gin.New()
	r.GET("/stream", s.Handler(func(*gin.Context) (int64, bool) { return 0, false }))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRelayForwardsAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	local := New(nil)
	c := &client{userID: 5, events: make(chan Event, 1)}
	local.addClient(c)

	subscriber := NewRelay(rdb, "", local, nil)
	publisher := NewRelay(rdb, "", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- subscriber.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := publisher.PublishUpdate(context.Background(), 5, Event{Type: EventUpdateCreated, UpdateID: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-c.events:
		if ev.UpdateID != 3 || ev.Type != EventUpdateCreated {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("relay stopped with error: %v", err)
	}
}

func TestRelayKeepsRetryingWhileRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	local := New(nil)
	c := &client{userID: 9, events: make(chan Event, 1)}
	local.addClient(c)

	subscriber := NewRelay(rdb, "", local, nil)
	subscriber.retryBase = 10 * time.Millisecond
	subscriber.retryMax = 40 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- subscriber.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("relay returned while redis was down: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if err := mr.Restart(); err != nil {
		t.Fatalf("restart redis: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay never subscribed after redis came back")
		}
		time.Sleep(5 * time.Millisecond)
	}

	publisher := NewRelay(rdb, "", nil, nil)
	if err := publisher.PublishUpdate(context.Background(), 9, Event{Type: EventLeadUpdated, UpdateID: 11}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case ev := <-c.events:
		if ev.UpdateID != 11 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed after reconnect")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("relay stopped with error: %v", err)
	}
}
