package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/config"
	"github.com/dimcz/livepoll/lib/logger"
	"github.com/dimcz/livepoll/stub"
)

var VERSION = "dev"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatal(err)
	}

	logFile, err := logger.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Fatal(err)
	}
	defer logFile.Close()

	logrus.Info("Start livepoll stub server ", VERSION)

	srv := stub.New(stub.Options{
		Rate:      cfg.StubRate,
		AccessLog: true,
	})

	if err := run(srv, cfg.Port); err != nil {
		logrus.Error(err)
	}
}

func run(srv *stub.Server, port int) error {
	e := srv.Echo

	conn := fmt.Sprintf(":%d", port)
	go func() {
		if err := e.Start(conn); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	logrus.Infof("listening on %s", conn)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return e.Shutdown(ctx)
}
