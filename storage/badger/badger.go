package badger

import (
	"os"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/storage"
)

const gcInterval = 5 * time.Minute

var _ storage.Store = &Client{}

type Client struct {
	db   *badger.DB
	done chan struct{}
}

func (cli *Client) Close() {
	close(cli.done)

	if err := cli.db.Close(); err != nil {
		logrus.Error(err)
	}
}

func (cli *Client) Set(key, value string) error {
	err := cli.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return errors.Wrap(err, "failed to write state")
	}

	return nil
}

func (cli *Client) Get(key string) (string, error) {
	var buffer []byte

	err := cli.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		buffer, err = item.ValueCopy(nil)

		return err
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", e.ErrNotFound
		}

		return "", e.NewInternal(err.Error())
	}

	return string(buffer), nil
}

// Open keeps state in path. SyncWrites is on so a recorded vote survives a
// crash right after the server accepted it.
func Open(path string) (*Client, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, os.FileMode(0700)); err != nil {
			return nil, errors.Wrap(err, "failed to create directory")
		}
	}

	opts := badger.DefaultOptions(path).
		WithDir(path).
		WithValueDir(path).
		WithSyncWrites(true).
		WithValueThreshold(256).
		WithCompactL0OnClose(true).
		WithLoggingLevel(badger.WARNING)

	return open(opts)
}

func OpenInMemory() (*Client, error) {
	return open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING))
}

func open(opts badger.Options) (*Client, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "badger open failed")
	}

	cli := &Client{db: db, done: make(chan struct{})}

	if !opts.InMemory {
		go cli.cleanup()
	}

	return cli, nil
}

func (cli *Client) cleanup() {
	timer := time.NewTicker(gcInterval)
	defer timer.Stop()

	for {
		select {
		case <-cli.done:
			return
		case <-timer.C:
		loop:
			if err := cli.db.RunValueLogGC(0.7); err == nil {
				goto loop
			}
		}
	}
}
