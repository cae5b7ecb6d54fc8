package mongo

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/storage"
)

const (
	StateCollection = "state"
	defaultDatabase = "livepoll"
	opTimeout       = 3 * time.Second
)

var _ storage.Store = &Client{}

type Client struct {
	ctx    context.Context
	client *mongo.Client
	db     *mongo.Database
}

type entry struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

func (cli *Client) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(cli.ctx, opTimeout)
	defer cancel()

	_, err := cli.db.Collection(StateCollection).
		ReplaceOne(ctx, bson.M{"_id": key}, entry{Key: key, Value: value}, options.Replace().SetUpsert(true))

	return errors.Wrap(err, "mongo set")
}

func (cli *Client) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(cli.ctx, opTimeout)
	defer cancel()

	var r entry

	err := cli.db.Collection(StateCollection).
		FindOne(ctx, bson.M{"_id": key}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", e.ErrNotFound
		}

		return "", errors.Wrap(err, "mongo get")
	}

	return r.Value, nil
}

func (cli *Client) Close() {
	if err := cli.client.Disconnect(context.Background()); err != nil {
		logrus.Error(err)
	}
}

// databaseName takes the database from the url path.
func databaseName(conn string) (string, error) {
	u, err := url.Parse(conn)
	if err != nil {
		return "", err
	}

	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", errors.Errorf("mongo url %q must use the mongodb scheme", conn)
	}

	if name := strings.Trim(u.Path, "/"); name != "" {
		return name, nil
	}

	return defaultDatabase, nil
}

func Connect(ctx context.Context, conn string) (*Client, error) {
	name, err := databaseName(conn)
	if err != nil {
		return nil, err
	}

	opts := options.Client().ApplyURI(conn)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(c, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed connect to mongodb")
	}

	if err = client.Ping(c, nil); err != nil {
		_ = client.Disconnect(context.Background())

		return nil, errors.Wrap(err, "failed to mongo.Client.Ping")
	}

	return &Client{
		ctx:    ctx,
		client: client,
		db:     client.Database(name),
	}, nil
}
