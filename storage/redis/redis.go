package redis

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/storage"
)

const opTimeout = 3 * time.Second

var _ storage.Store = &Client{}

type Client struct {
	ctx context.Context
	db  *redis.Client
}

// Set stores without expiry: a voted record is never cleared by this client.
func (cli *Client) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(cli.ctx, opTimeout)
	defer cancel()

	return cli.db.Set(ctx, key, value, 0).Err()
}

func (cli *Client) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(cli.ctx, opTimeout)
	defer cancel()

	v, err := cli.db.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", e.ErrNotFound
		}

		return "", errors.Wrap(err, "redis get")
	}

	return v, nil
}

func (cli *Client) Close() {
	if err := cli.db.Close(); err != nil {
		logrus.Error(err)
	}
}

func parseURL(conn string) (*redis.Options, error) {
	u, err := url.Parse(conn)
	if err != nil {
		return nil, err
	}

	if u.Host == "" {
		return nil, errors.Errorf("redis url %q has no host", conn)
	}

	num := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		num, err = strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrap(err, "invalid redis db number")
		}
	}

	username, password := "", ""
	if u.User != nil {
		username = u.User.Username()

		if p, ok := u.User.Password(); ok {
			password = p
		}
	}

	return &redis.Options{
		Addr:     u.Host,
		Username: username,
		Password: password,
		DB:       num,
	}, nil
}

func Connect(ctx context.Context, conn string) (*Client, error) {
	opts, err := parseURL(conn)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(c).Err(); err != nil {
		_ = client.Close()

		return nil, errors.Wrap(err, "failed to ping redis")
	}

	return &Client{ctx: ctx, db: client}, nil
}
