package memory

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/storage"
)

var _ storage.Store = &Client{}

// Client keeps state for the life of the process only. A ttl <= 0 keeps
// entries until Close.
type Client struct {
	cache *ttlcache.Cache[string, string]
}

func (cli *Client) Get(key string) (string, error) {
	item := cli.cache.Get(key)
	if item == nil {
		return "", e.ErrNotFound
	}

	return item.Value(), nil
}

func (cli *Client) Set(key, value string) error {
	cli.cache.Set(key, value, ttlcache.DefaultTTL)

	return nil
}

func (cli *Client) Close() {
	cli.cache.Stop()
}

func New(ttl time.Duration) *Client {
	opts := []ttlcache.Option[string, string]{
		ttlcache.WithDisableTouchOnHit[string, string](),
	}

	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, string](ttl))
	}

	cache := ttlcache.New(opts...)

	go cache.Start()

	return &Client{cache: cache}
}
