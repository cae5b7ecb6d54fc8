package stub

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/lib/utils"
	"github.com/dimcz/livepoll/poll"
)

var (
	ErrExpired   = errors.New("poll expired")
	ErrBadOption = errors.New("option out of range")
)

type record struct {
	poll poll.Poll
	keys *utils.Set[string]
}

// Store keeps polls in memory along with the idempotency keys seen for each.
type Store struct {
	mu    sync.Mutex
	polls map[string]*record
	order []string
	now   func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}

	return &Store{
		polls: make(map[string]*record),
		now:   now,
	}
}

func (s *Store) Create(req poll.CreateRequest) poll.Poll {
	options := make([]poll.Option, 0, len(req.Options))
	for _, c := range req.Options {
		options = append(options, poll.Option{Text: strings.TrimSpace(c.Text)})
	}

	p := poll.Poll{
		ID:                    xid.New().String(),
		Question:              strings.TrimSpace(req.Question),
		Options:               options,
		CreatedAt:             s.now().UTC(),
		TTL:                   time.Duration(req.TTL) * time.Millisecond,
		HideResultsUntilVoted: req.HideResultsUntilVoted,
	}

	defer s.mu.Unlock()
	s.mu.Lock()

	s.polls[p.ID] = &record{poll: p, keys: utils.NewSet[string]()}
	s.order = append(s.order, p.ID)

	return clonePoll(p)
}

func (s *Store) Get(id string) (poll.Poll, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	r, ok := s.polls[id]
	if !ok {
		return poll.Poll{}, e.ErrNotFound
	}

	p := clonePoll(r.poll)
	p.Expired = p.ExpiredAt(s.now())

	return p, nil
}

// List returns every poll, newest first.
func (s *Store) List() []poll.Poll {
	defer s.mu.Unlock()
	s.mu.Lock()

	list := make([]poll.Poll, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		list = append(list, clonePoll(s.polls[s.order[i]].poll))
	}

	return list
}

// Vote counts option once per idempotency key. A replayed key returns the
// current snapshot with counted false.
func (s *Store) Vote(id string, option int, key string) (poll.Snapshot, bool, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	r, ok := s.polls[id]
	if !ok {
		return poll.Snapshot{}, false, e.ErrNotFound
	}

	if r.keys.Has(key) {
		return snapshotOf(r.poll), false, nil
	}

	if r.poll.ExpiredAt(s.now()) {
		return poll.Snapshot{}, false, ErrExpired
	}

	if option < 0 || option >= len(r.poll.Options) {
		return poll.Snapshot{}, false, ErrBadOption
	}

	r.keys.Set(key)
	r.poll.Options[option].Votes++

	return snapshotOf(r.poll), true, nil
}

func (s *Store) Snapshot(id string) (poll.Snapshot, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	r, ok := s.polls[id]
	if !ok {
		return poll.Snapshot{}, e.ErrNotFound
	}

	return snapshotOf(r.poll), nil
}

func clonePoll(p poll.Poll) poll.Poll {
	p.Options = append([]poll.Option(nil), p.Options...)

	return p
}

func snapshotOf(p poll.Poll) poll.Snapshot {
	return poll.Snapshot{
		Options:    append([]poll.Option(nil), p.Options...),
		TotalVotes: p.TotalVotes(),
	}
}

// Insight summarizes who is ahead. It is empty until the first vote.
func Insight(p poll.Poll) string {
	res := p.Results()
	if res.Total == 0 {
		return ""
	}

	leaders := res.Leaders()
	if len(leaders) == 1 {
		return fmt.Sprintf("%q is leading with %s of the votes.", leaders[0].Text, leaders[0].PercentString())
	}

	names := make([]string, 0, len(leaders))
	for _, row := range leaders {
		names = append(names, fmt.Sprintf("%q", row.Text))
	}

	return "It's a tie between " + strings.Join(names, " and ") + "."
}
