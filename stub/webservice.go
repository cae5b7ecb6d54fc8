package stub

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/poll"
)

type WebService struct {
	store     *Store
	hub       *Hub
	metrics   *Metrics
	keepAlive time.Duration
}

func (srv *WebService) List(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, srv.store.List())
}

func (srv *WebService) Get(ctx echo.Context) error {
	p, err := srv.store.Get(ctx.Param("id"))
	if err != nil {
		return e.HTTPError(err)
	}

	return ctx.JSON(http.StatusOK, poll.Envelope{
		Poll:                  p,
		AutoInsight:           Insight(p),
		HideResultsUntilVoted: p.HideResultsUntilVoted,
	})
}

func (srv *WebService) Post(ctx echo.Context) error {
	var req poll.CreateRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.Wrap(err, "could not decode poll").Error())
	}

	if err := ctx.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, errors.Wrap(err, "could not validate poll").Error())
	}

	p := srv.store.Create(req)
	srv.metrics.PollsCreated.Inc()

	logrus.WithFields(logrus.Fields{"poll": p.ID, "options": len(p.Options)}).Info("poll created")

	return ctx.JSON(http.StatusCreated, poll.CreateResponse{Poll: p})
}

func (srv *WebService) Vote(ctx echo.Context) error {
	id := ctx.Param("id")

	var req poll.VoteRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.Wrap(err, "could not decode vote").Error())
	}

	if err := ctx.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.Wrap(err, "could not validate vote").Error())
	}

	snap, counted, err := srv.store.Vote(id, *req.Option, req.IdempotencyKey)

	switch {
	case errors.Is(err, ErrExpired):
		srv.metrics.Votes.WithLabelValues("expired").Inc()

		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, ErrBadOption):
		srv.metrics.Votes.WithLabelValues("invalid").Inc()

		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return e.HTTPError(err)
	}

	if !counted {
		srv.metrics.Votes.WithLabelValues("replayed").Inc()

		return ctx.JSON(http.StatusOK, map[string]bool{"ok": true, "duplicate": true})
	}

	srv.metrics.Votes.WithLabelValues("counted").Inc()
	srv.hub.Publish(id, snap)

	return ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Stream sends the current snapshot and then every update until the client
// goes away.
func (srv *WebService) Stream(ctx echo.Context) error {
	id := ctx.Param("id")

	updates, cancel := srv.hub.Subscribe(id)
	defer cancel()

	snap, err := srv.store.Snapshot(id)
	if err != nil {
		return e.HTTPError(err)
	}

	srv.metrics.Streams.Inc()
	defer srv.metrics.Streams.Dec()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := sse.Encode(res, sse.Event{Data: snap}); err != nil {
		return nil
	}
	res.Flush()

	ticker := time.NewTicker(srv.keepAlive)
	defer ticker.Stop()

	done := ctx.Request().Context().Done()

	for {
		select {
		case <-done:
			return nil
		case snap := <-updates:
			if err := sse.Encode(res, sse.Event{Data: snap}); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := io.WriteString(res, ": keepalive\n\n"); err != nil {
				return nil
			}
		}

		res.Flush()
	}
}

func NewWebService(store *Store, hub *Hub, metrics *Metrics, keepAlive time.Duration) *WebService {
	return &WebService{
		store:     store,
		hub:       hub,
		metrics:   metrics,
		keepAlive: keepAlive,
	}
}
