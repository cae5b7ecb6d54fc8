package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/poll"
)

// streamServer pushes whatever is sent on frames to every results stream and
// holds the connection open until the client goes away or hangup is closed.
type streamServer struct {
	*httptest.Server
	frames chan string
	hangup chan struct{}
	paths  chan string
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()

	s := &streamServer{
		frames: make(chan string, 16),
		hangup: make(chan struct{}),
		paths:  make(chan string, 4),
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.paths <- r.URL.Path

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-s.hangup:
				return
			case f := <-s.frames:
				_, _ = io.WriteString(w, f)
				w.(http.Flusher).Flush()
			}
		}
	}))
	t.Cleanup(s.Close)

	return s
}

func snapshotFrame(t *testing.T, snap poll.Snapshot) string {
	t.Helper()

	var b bytesWriter
	require.NoError(t, sse.Encode(&b, sse.Event{Data: snap}))

	return string(b)
}

type bytesWriter []byte

func (b *bytesWriter) Write(p []byte) (int, error) {
	*b = append(*b, p...)

	return len(p), nil
}

type collector struct {
	mu    sync.Mutex
	snaps []poll.Snapshot
}

func (c *collector) add(s poll.Snapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, s)
	c.mu.Unlock()
}

func (c *collector) get() []poll.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]poll.Snapshot(nil), c.snaps...)
}

func TestSubscribeReplacesSnapshots(t *testing.T) {
	srv := newStreamServer(t)

	s, err := NewSubscriber(srv.URL)
	require.NoError(t, err)

	got := &collector{}
	sub := s.Subscribe(context.Background(), "p1", got.add)
	defer sub.Close()

	assert.Equal(t, "/api/poll/p1/results-stream", <-srv.paths)

	srv.frames <- snapshotFrame(t, poll.Snapshot{
		Options:    []poll.Option{{Text: "A", Votes: 1}, {Text: "B", Votes: 1}},
		TotalVotes: 2,
	})
	srv.frames <- ": keepalive\n\n"
	srv.frames <- "event: ping\ndata: {}\n\n"
	srv.frames <- "data: {\"options\":[{\"text\":\"A\",\"votes\":3},{\"text\":\"B\"}],\r\ndata: \"totalVotes\":4}\r\n\r\n"

	require.Eventually(t, func() bool { return len(got.get()) == 2 }, 2*time.Second, 10*time.Millisecond)

	snaps := got.get()
	assert.Equal(t, 2, snaps[0].TotalVotes)

	last := snaps[1]
	assert.Equal(t, []poll.Option{{Text: "A", Votes: 3}, {Text: "B", Votes: 0}}, last.Options)

	r := last.Results()
	assert.InDelta(t, 75.0, r.Rows[0].Percent, 1e-9)
	assert.InDelta(t, 25.0, r.Rows[1].Percent, 1e-9)
	assert.True(t, r.Rows[0].Leader)
	assert.False(t, r.Rows[1].Leader)
}

func TestSubscribeSkipsMalformedPayloads(t *testing.T) {
	srv := newStreamServer(t)

	s, err := NewSubscriber(srv.URL)
	require.NoError(t, err)

	got := &collector{}
	sub := s.Subscribe(context.Background(), "p1", got.add)
	defer sub.Close()

	srv.frames <- "data: not json\n\n"
	srv.frames <- "data: {\"options\":[{\"text\":\"A\",\"votes\":-1},{\"text\":\"B\"}],\"totalVotes\":0}\n\n"
	srv.frames <- "data: {\"options\":[],\"totalVotes\":0}\n\n"
	srv.frames <- "data: {\"options\":[{\"text\":\"A\",\"votes\":1}],\"totalVotes\":1}\n\n"
	srv.frames <- "data: {\"options\":[{\"text\":\"A\"},{\"text\":\"B\"},{\"text\":\"C\"},{\"text\":\"D\"},{\"text\":\"E\"}],\"totalVotes\":0}\n\n"
	srv.frames <- "data: {\"options\":[{\"text\":\"A\"},{\"text\":\"B\",\"votes\":1}],\"totalVotes\":1}\n\n"

	require.Eventually(t, func() bool { return len(got.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	// the valid frame is last, so everything before it was already skipped
	snaps := got.get()
	require.Len(t, snaps, 1)
	assert.Equal(t, []poll.Option{{Text: "A"}, {Text: "B", Votes: 1}}, snaps[0].Options)
	assert.NoError(t, sub.Err())
}

func TestSubscribeClosesOnServerHangup(t *testing.T) {
	srv := newStreamServer(t)

	s, err := NewSubscriber(srv.URL)
	require.NoError(t, err)

	sub := s.Subscribe(context.Background(), "p1", func(poll.Snapshot) {})
	defer sub.Close()

	<-srv.paths
	close(srv.hangup)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end after hangup")
	}

	assert.True(t, e.Is(sub.Err(), e.KindTransport))
}

func TestSubscribeBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such poll", http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewSubscriber(srv.URL)
	require.NoError(t, err)

	sub := s.Subscribe(context.Background(), "missing", func(poll.Snapshot) {
		t.Error("unexpected update")
	})

	<-sub.Done()
	assert.True(t, e.Is(sub.Err(), e.KindTransport))

	sub.Close()
}

func TestSubscribeConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := NewSubscriber(url)
	require.NoError(t, err)

	sub := s.Subscribe(context.Background(), "p1", func(poll.Snapshot) {})
	<-sub.Done()

	assert.True(t, e.Retryable(sub.Err()))
}

// countingBody counts Close calls on the stream body.
type countingBody struct {
	io.ReadCloser
	closes *int32
}

func (b countingBody) Close() error {
	atomic.AddInt32(b.closes, 1)

	return b.ReadCloser.Close()
}

type countingTransport struct {
	closes int32
	opened int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	atomic.AddInt32(&c.opened, 1)
	resp.Body = countingBody{ReadCloser: resp.Body, closes: &c.closes}

	return resp, nil
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	srv := newStreamServer(t)

	tr := &countingTransport{}
	s, err := NewSubscriber(srv.URL, WithStreamClient(&http.Client{Transport: tr}))
	require.NoError(t, err)

	got := &collector{}
	sub := s.Subscribe(context.Background(), "p1", got.add)

	srv.frames <- "data: {\"options\":[{\"text\":\"A\",\"votes\":1},{\"text\":\"B\"}],\"totalVotes\":1}\n\n"
	require.Eventually(t, func() bool { return len(got.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() {
		sub.Close()
		sub.Close()
	})

	select {
	case <-sub.Done():
	default:
		t.Fatal("Close returned before the stream ended")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&tr.opened))
	assert.Equal(t, int32(1), atomic.LoadInt32(&tr.closes))
	assert.NoError(t, sub.Err())

	// no update after close
	srv.frames <- "data: {\"options\":[{\"text\":\"A\",\"votes\":2},{\"text\":\"B\"}],\"totalVotes\":2}\n\n"
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, got.get(), 1)
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	srv := newStreamServer(t)

	s, err := NewSubscriber(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sub := s.Subscribe(ctx, "p1", func(poll.Snapshot) {})

	<-srv.paths
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not follow ctx")
	}

	assert.NoError(t, sub.Err())
	sub.Close()
}

func TestEachSubscriptionOpensOneStream(t *testing.T) {
	srv := newStreamServer(t)

	s, err := NewSubscriber(srv.URL)
	require.NoError(t, err)

	subs := make([]*Subscription, 0, 3)
	for i := 0; i < 3; i++ {
		subs = append(subs, s.Subscribe(context.Background(), fmt.Sprintf("p%d", i), func(poll.Snapshot) {}))
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		seen[<-srv.paths] = true
	}

	assert.Len(t, seen, 3)

	for _, sub := range subs {
		sub.Close()
	}
}
