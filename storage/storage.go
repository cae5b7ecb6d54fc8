package storage

const (
	IdempotencyPrefix = "poll:idempotency:"
	VotedIndexKey     = "poll:votedIndex"
)

// Store is the client-side key/value state. Get returns e.ErrNotFound for a
// missing key.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Close()
}
