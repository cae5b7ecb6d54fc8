package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-contrib/sse"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/poll"
)

const messageEvent = "message"

// Subscriber opens results streams. Its HTTP client has no overall timeout,
// since a stream stays open for as long as the poll is viewed.
type Subscriber struct {
	base string
	http *http.Client
}

type SubscriberOption func(*Subscriber)

func WithStreamClient(hc *http.Client) SubscriberOption {
	return func(s *Subscriber) {
		s.http = hc
	}
}

func NewSubscriber(baseURL string, opts ...SubscriberOption) (*Subscriber, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		base: base,
		http: cleanhttp.DefaultPooledClient(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Subscription is one open results stream. It ends on Close, on ctx
// cancellation, or on the first transport failure; it never reconnects.
type Subscription struct {
	pollID   string
	onUpdate func(poll.Snapshot)

	ctx    context.Context
	cancel func()
	group  sync.WaitGroup
	once   sync.Once
	done   chan struct{}

	mu     sync.Mutex
	body   io.Closer
	closed bool
	shut   bool
	err    error
}

// Subscribe starts streaming snapshots of pollID to onUpdate. onUpdate runs
// on the stream goroutine and must not call Close.
func (s *Subscriber) Subscribe(ctx context.Context, pollID string, onUpdate func(poll.Snapshot)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)

	sub := &Subscription{
		pollID:   pollID,
		onUpdate: onUpdate,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	sub.group.Add(1)

	go sub.run(s.http, pollPath(s.base, pollID, "results-stream"))

	return sub
}

// Close tears the stream down. Only the first call closes the connection;
// later calls return immediately after the stream has finished.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.shut = true
		sub.mu.Unlock()

		sub.cancel()
		sub.closeBody()
	})

	sub.group.Wait()
}

func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Err is the transport failure that ended the stream, or nil when it was
// closed by the caller.
func (sub *Subscription) Err() error {
	defer sub.mu.Unlock()
	sub.mu.Lock()

	return sub.err
}

func (sub *Subscription) closeBody() {
	defer sub.mu.Unlock()
	sub.mu.Lock()

	if sub.closed {
		return
	}

	sub.closed = true

	if sub.body != nil {
		if err := sub.body.Close(); err != nil {
			logrus.Debug("results stream close: ", err)
		}
	}
}

func (sub *Subscription) fail(err error) {
	defer sub.mu.Unlock()
	sub.mu.Lock()

	if sub.shut || sub.ctx.Err() != nil {
		return
	}

	sub.err = err

	logrus.WithError(err).Warnf("results stream for poll %s closed", sub.pollID)
}

func (sub *Subscription) attach(body io.Closer) bool {
	defer sub.mu.Unlock()
	sub.mu.Lock()

	if sub.closed {
		return false
	}

	sub.body = body

	return true
}

func (sub *Subscription) active() bool {
	defer sub.mu.Unlock()
	sub.mu.Lock()

	return !sub.shut
}

func (sub *Subscription) run(hc *http.Client, endpoint string) {
	defer sub.group.Done()
	defer close(sub.done)
	defer sub.cancel()
	defer sub.closeBody()

	req, err := http.NewRequestWithContext(sub.ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		sub.fail(e.NewInternal(err.Error()))

		return
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(RequestIDHeader, xid.New().String())

	resp, err := hc.Do(req)
	if err != nil {
		sub.fail(e.NewTransport(err, "results stream connect failed"))

		return
	}

	if !sub.attach(resp.Body) {
		_ = resp.Body.Close()

		return
	}

	if resp.StatusCode != http.StatusOK {
		sub.fail(e.NewTransport(nil, fmt.Sprintf("results stream status %d", resp.StatusCode)))

		return
	}

	logrus.Debugf("results stream for poll %s open", sub.pollID)

	if err := sub.read(resp.Body); err != nil {
		sub.fail(err)
	}
}

// read splits the stream into event blocks at blank lines and hands each
// block to dispatch.
func (sub *Subscription) read(r io.Reader) error {
	reader := bufio.NewReader(r)

	var block bytes.Buffer

	for {
		line, err := reader.ReadString('\n')

		if err == nil {
			if line = strings.TrimRight(line, "\r\n"); line == "" {
				sub.dispatch(block.Bytes())
				block.Reset()
			} else {
				block.WriteString(line)
				block.WriteByte('\n')
			}

			continue
		}

		if err == io.EOF {
			return e.NewTransport(nil, "results stream ended")
		}

		return e.NewTransport(err, "results stream read failed")
	}
}

func (sub *Subscription) dispatch(block []byte) {
	if len(block) == 0 {
		return
	}

	events, err := sse.Decode(bytes.NewReader(append(block, '\n')))
	if err != nil {
		logrus.WithError(err).Warn("undecodable results event")

		return
	}

	for _, ev := range events {
		if ev.Event != messageEvent {
			logrus.Debugf("ignore %q event on poll %s", ev.Event, sub.pollID)

			continue
		}

		data, ok := ev.Data.(string)
		if !ok {
			continue
		}

		var snap poll.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			logrus.WithError(err).Warnf("malformed snapshot on poll %s", sub.pollID)

			continue
		}

		if err := snap.Normalize(); err != nil {
			logrus.WithError(err).Warnf("invalid snapshot on poll %s", sub.pollID)

			continue
		}

		if !sub.active() {
			return
		}

		sub.onUpdate(snap)
	}
}
