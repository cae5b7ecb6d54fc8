package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/poll"
)

const (
	StatusVoteAccepted = "Vote submitted successfully!"
	StatusVoteRejected = "You've already voted or poll expired."
	StatusVoteFailed   = "Error submitting vote."
)

// ViewState is a copy of everything needed to render one poll.
type ViewState struct {
	Poll          poll.Poll
	Results       poll.Results
	Expired       bool
	HasVoted      bool
	VotedIndex    int
	CanVote       bool
	ResultsHidden bool
	AutoInsight   string
	Status        string
	Live          bool
	StreamErr     error
}

// View ties a fetched poll, the local vote record and the live results
// stream together for a single poll id.
type View struct {
	pollID     string
	client     *Client
	subscriber *Subscriber

	mu        sync.Mutex
	poll      *poll.Poll
	results   poll.Results
	status    string
	sub       *Subscription
	live      bool
	streamErr error
	onChange  func(ViewState)
	closeOnce sync.Once
	done      chan struct{}
}

func NewView(pollID string, client *Client, subscriber *Subscriber) *View {
	return &View{
		pollID:     pollID,
		client:     client,
		subscriber: subscriber,
		done:       make(chan struct{}),
	}
}

// OnChange registers f to be called with the new state after every refresh,
// snapshot or stream end. f may run on the stream goroutine.
func (v *View) OnChange(f func(ViewState)) {
	defer v.mu.Unlock()
	v.mu.Lock()

	v.onChange = f
}

// Open fetches the poll and subscribes to its results stream. It must be
// called at most once per view.
func (v *View) Open(ctx context.Context) error {
	if err := v.Refresh(ctx); err != nil {
		return err
	}

	sub := v.subscriber.Subscribe(ctx, v.pollID, v.apply)

	v.mu.Lock()
	v.sub = sub
	v.live = true
	v.mu.Unlock()

	go v.watch(sub)

	return nil
}

func (v *View) watch(sub *Subscription) {
	<-sub.Done()

	v.mu.Lock()
	v.live = false
	v.streamErr = sub.Err()
	v.mu.Unlock()

	v.notify()
	close(v.done)
}

// Done is closed once the live stream of an opened view has ended.
func (v *View) Done() <-chan struct{} {
	return v.done
}

func (v *View) Refresh(ctx context.Context) error {
	p, err := v.client.FetchPoll(ctx, v.pollID)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch poll %s", v.pollID)
	}

	v.mu.Lock()
	v.poll = p
	v.results = p.Results()
	v.mu.Unlock()

	v.notify()

	return nil
}

// apply replaces the option tallies with a pushed snapshot.
func (v *View) apply(snap poll.Snapshot) {
	v.mu.Lock()

	if v.poll == nil {
		v.mu.Unlock()

		return
	}

	options := make([]poll.Option, len(snap.Options))
	copy(options, snap.Options)

	v.poll.Options = options
	v.results = snap.Results()
	v.mu.Unlock()

	v.notify()
}

// Vote submits a vote and then re-fetches the poll, since the server is
// authoritative whatever the outcome.
func (v *View) Vote(ctx context.Context, option int) (VoteResult, error) {
	res, err := v.client.SubmitVote(ctx, v.pollID, option)

	v.mu.Lock()

	switch {
	case err != nil:
		v.status = StatusVoteFailed
	case res.Accepted():
		v.status = StatusVoteAccepted
	default:
		v.status = StatusVoteRejected
	}

	v.mu.Unlock()

	if err != nil {
		v.notify()

		return res, err
	}

	if rerr := v.Refresh(ctx); rerr != nil {
		logrus.WithError(rerr).Warn("refresh after vote failed")
		v.notify()
	}

	return res, nil
}

func (v *View) State() ViewState {
	voted, hasVoted := v.client.Ledger().VotedIndex(v.pollID)
	now := v.client.Now()

	defer v.mu.Unlock()
	v.mu.Lock()

	s := ViewState{
		Results:    v.results,
		HasVoted:   hasVoted,
		VotedIndex: -1,
		Status:     v.status,
		Live:       v.live,
		StreamErr:  v.streamErr,
	}

	if hasVoted {
		s.VotedIndex = voted
	}

	if v.poll == nil {
		return s
	}

	s.Poll = *v.poll
	s.Poll.Options = append([]poll.Option(nil), v.poll.Options...)
	s.Expired = v.poll.Expired || v.poll.ExpiredAt(now)
	s.Poll.Expired = s.Expired
	s.CanVote = !s.Expired && !hasVoted
	s.ResultsHidden = v.poll.HideResultsUntilVoted && !hasVoted
	s.AutoInsight = v.poll.AutoInsight

	return s
}

func (v *View) notify() {
	v.mu.Lock()
	f := v.onChange
	v.mu.Unlock()

	if f != nil {
		f(v.State())
	}
}

// Close ends the live subscription. It is safe to call more than once.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		sub := v.sub
		v.mu.Unlock()

		if sub != nil {
			sub.Close()
		}
	})
}
