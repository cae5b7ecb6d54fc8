package storage

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/lib/e"
)

// Ledger keeps the per-poll idempotency keys and the voted-option record.
// Store failures never reach the caller: they go to the warn handler and the
// ledger keeps working from its in-memory copy.
type Ledger struct {
	mu sync.Mutex

	kv     Store
	keys   map[string]string
	voted  VotedIndex
	warn   func(error)
	newKey func() string
}

type LedgerOption func(*Ledger)

func WithWarnHandler(f func(error)) LedgerOption {
	return func(l *Ledger) {
		l.warn = f
	}
}

func WithKeyGenerator(f func() string) LedgerOption {
	return func(l *Ledger) {
		l.newKey = f
	}
}

func NewLedger(kv Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		kv:    kv,
		keys:  make(map[string]string),
		voted: make(VotedIndex),
		warn: func(err error) {
			logrus.WithError(err).Warn("vote ledger falls back to memory")
		},
		newKey: func() string {
			return uuid.New().String()
		},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// IdempotencyKey returns the key for pollID, creating and persisting one on
// first use. The same key is returned for the life of the stored record.
func (l *Ledger) IdempotencyKey(pollID string) string {
	defer l.mu.Unlock()
	l.mu.Lock()

	if k, ok := l.keys[pollID]; ok {
		return k
	}

	storeKey := IdempotencyPrefix + pollID

	stored, err := l.kv.Get(storeKey)
	if err == nil && stored != "" {
		l.keys[pollID] = stored

		return stored
	}

	k := l.newKey()
	l.keys[pollID] = k

	if err != nil && !errors.Is(err, e.ErrNotFound) {
		// The store may still hold an older key; keep this one in memory only.
		l.warn(errors.Wrap(err, "failed to load idempotency key"))

		return k
	}

	if err := l.kv.Set(storeKey, k); err != nil {
		l.warn(errors.Wrap(err, "failed to persist idempotency key"))
	}

	return k
}

func (l *Ledger) VotedIndex(pollID string) (int, bool) {
	defer l.mu.Unlock()
	l.mu.Lock()

	m, _ := l.load()
	i, ok := m[pollID]

	return i, ok
}

// RecordVote marks pollID as voted with the given option. It persists before
// returning. When the stored record cannot be read the vote is kept in
// memory only, so the records of other polls are not overwritten.
func (l *Ledger) RecordVote(pollID string, index int) {
	defer l.mu.Unlock()
	l.mu.Lock()

	l.voted[pollID] = index

	m, ok := l.load()
	if !ok {
		l.warn(errors.Errorf("vote for poll %s kept in memory only", pollID))

		return
	}

	m[pollID] = index

	data, err := m.MarshalBinary()
	if err != nil {
		l.warn(errors.Wrap(err, "failed to encode voted index"))

		return
	}

	if err := l.kv.Set(VotedIndexKey, string(data)); err != nil {
		l.warn(errors.Wrap(err, "failed to persist voted index"))
	}
}

// load merges the stored record with the in-memory one. It reports false
// when the store could not be read, in which case the result must not be
// written back. Caller holds mu.
func (l *Ledger) load() (VotedIndex, bool) {
	m := make(VotedIndex)
	readable := true

	raw, err := l.kv.Get(VotedIndexKey)

	switch {
	case err == nil:
		if err := m.UnmarshalBinary([]byte(raw)); err != nil {
			l.warn(errors.Wrap(err, "failed to decode voted index"))

			m = make(VotedIndex)
		}
	case !errors.Is(err, e.ErrNotFound):
		l.warn(errors.Wrap(err, "failed to load voted index"))

		readable = false
	}

	for k, i := range l.voted {
		m[k] = i
	}

	return m, readable
}
