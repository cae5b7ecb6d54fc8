package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/cli"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/command"
	"github.com/dimcz/livepoll/config"
	"github.com/dimcz/livepoll/lib/logger"
	"github.com/dimcz/livepoll/service"
	"github.com/dimcz/livepoll/storage"
	"github.com/dimcz/livepoll/storage/badger"
	"github.com/dimcz/livepoll/storage/memory"
	"github.com/dimcz/livepoll/storage/mongo"
	"github.com/dimcz/livepoll/storage/redis"
)

var VERSION = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Error(err)

		return 1
	}

	logFile, err := logger.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Error(err)

		return 1
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		logrus.Error(err)

		return 1
	}
	defer db.Close()

	ledger := storage.NewLedger(db)

	client, err := service.NewClient(cfg.APIURL, ledger, service.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		logrus.Error(err)

		return 1
	}

	subscriber, err := service.NewSubscriber(cfg.APIURL)
	if err != nil {
		logrus.Error(err)

		return 1
	}

	c := cli.NewCLI("livepoll", VERSION)
	c.Args = args
	c.Commands = command.Commands(&command.Meta{
		Ctx: ctx,
		Ui: &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
		},
		Client:     client,
		Subscriber: subscriber,
		Origin:     cfg.Origin,
	})

	code, err := c.Run()
	if err != nil {
		logrus.Error(err)
	}

	return code
}

// openStore picks redis or mongo when configured, otherwise badger under
// the state dir, or memory when the state dir is "-".
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch {
	case cfg.RedisDB != "":
		return redis.Connect(ctx, cfg.RedisDB)
	case cfg.MongoDB != "":
		return mongo.Connect(ctx, cfg.MongoDB)
	case cfg.InMemory():
		logrus.Warn("state is kept in memory, votes will be forgotten on exit")

		return memory.New(0), nil
	}

	return badger.Open(cfg.StateDir)
}
