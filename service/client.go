package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/poll"
	"github.com/dimcz/livepoll/storage"
)

const (
	DefaultTimeout  = 10 * time.Second
	RequestIDHeader = "X-Request-Id"
	maxBodySize     = 1 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type VoteStatus string

const (
	VoteAccepted VoteStatus = "accepted"
	VoteRejected VoteStatus = "rejected"
)

type RejectReason string

const (
	ReasonAlreadyVoted RejectReason = "already_voted"
	ReasonExpired      RejectReason = "expired"
	ReasonUnknown      RejectReason = "unknown"
)

// VoteResult is the business outcome of a vote. A rejection is not an error.
type VoteResult struct {
	Status         VoteStatus
	Reason         RejectReason
	Message        string
	Option         int
	IdempotencyKey string
}

func (r VoteResult) Accepted() bool {
	return r.Status == VoteAccepted
}

type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	ledger  *storage.Ledger
	now     func() time.Time
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithTimeout sets the per-request timeout. A client passed through
// WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func NewClient(baseURL string, ledger *storage.Ledger, opts ...ClientOption) (*Client, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = DefaultTimeout

	c := &Client{
		base:   base,
		http:   hc,
		ledger: ledger,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		withTimeout := *c.http
		withTimeout.Timeout = c.timeout
		c.http = &withTimeout
	}

	return c, nil
}

func parseBase(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid api url")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Errorf("api url %q must be http or https", baseURL)
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func (c *Client) Ledger() *storage.Ledger {
	return c.ledger
}

func (c *Client) Now() time.Time {
	return c.now()
}

func pollPath(base, id string, tail ...string) string {
	p := base + "/api/poll/" + url.PathEscape(id)
	for _, t := range tail {
		p += "/" + t
	}

	return p
}

// ShareURL is the public link of a poll on the web front-end.
func ShareURL(origin, id string) string {
	return strings.TrimRight(origin, "/") + "/poll/" + url.PathEscape(id)
}

func (c *Client) FetchPoll(ctx context.Context, id string) (*poll.Poll, error) {
	if id == "" {
		return nil, e.NewValidation("poll id required")
	}

	var env poll.Envelope

	status, msg, err := c.do(ctx, http.MethodGet, pollPath(c.base, id), nil, &env)
	if err != nil {
		return nil, err
	}

	if err := expectOK(status, msg, "poll"); err != nil {
		return nil, err
	}

	p := env.Poll
	p.HideResultsUntilVoted = p.HideResultsUntilVoted || env.HideResultsUntilVoted
	p.AutoInsight = env.AutoInsight

	if err := p.Normalize(c.now()); err != nil {
		return nil, err
	}

	return &p, nil
}

// ListPolls returns every poll the server lists. Items that do not satisfy
// the poll invariants are skipped.
func (c *Client) ListPolls(ctx context.Context) ([]poll.Poll, error) {
	var raw []poll.Poll

	status, msg, err := c.do(ctx, http.MethodGet, c.base+"/api/", nil, &raw)
	if err != nil {
		return nil, err
	}

	if err := expectOK(status, msg, "poll list"); err != nil {
		return nil, err
	}

	now := c.now()
	polls := make([]poll.Poll, 0, len(raw))

	for _, p := range raw {
		if err := p.Normalize(now); err != nil {
			logrus.WithError(err).Warn("skip malformed poll in list")

			continue
		}

		polls = append(polls, p)
	}

	return polls, nil
}

func (c *Client) CreatePoll(ctx context.Context, req poll.CreateRequest) (*poll.Poll, error) {
	var resp poll.CreateResponse

	status, msg, err := c.do(ctx, http.MethodPost, c.base+"/api/poll/add", req, &resp)
	if err != nil {
		return nil, err
	}

	if err := expectOK(status, msg, "poll"); err != nil {
		return nil, err
	}

	p := resp.Poll
	if err := p.Normalize(c.now()); err != nil {
		return nil, err
	}

	logrus.Infof("created poll %s", p.ID)

	return &p, nil
}

// SubmitVote votes once for pollID. The idempotency key is persisted before
// the request, so a retry after a TransportError reuses it. Callers must not
// run two SubmitVote calls for the same poll at once, and should re-fetch
// the poll afterwards whatever the outcome.
func (c *Client) SubmitVote(ctx context.Context, pollID string, option int) (VoteResult, error) {
	res := VoteResult{Option: option}

	if _, voted := c.ledger.VotedIndex(pollID); voted {
		res.Status, res.Reason = VoteRejected, ReasonAlreadyVoted
		res.Message = "already voted from this client"

		return res, nil
	}

	p, err := c.FetchPoll(ctx, pollID)
	if err != nil {
		return res, err
	}

	if p.Expired {
		res.Status, res.Reason = VoteRejected, ReasonExpired
		res.Message = "poll expired"

		return res, nil
	}

	if option < 0 || option >= len(p.Options) {
		return res, e.NewValidation(fmt.Sprintf("option %d out of range", option))
	}

	res.IdempotencyKey = c.ledger.IdempotencyKey(pollID)

	body := poll.VoteRequest{Option: &option, IdempotencyKey: res.IdempotencyKey}

	status, msg, err := c.do(ctx, http.MethodPost, pollPath(c.base, pollID, "vote"), body, nil)
	if err != nil {
		return res, err
	}

	switch {
	case status >= 200 && status < 300:
		c.ledger.RecordVote(pollID, option)
		res.Status = VoteAccepted

		logrus.Infof("vote for option %d in poll %s accepted", option, pollID)

		return res, nil
	case status == http.StatusNotFound || status >= 500:
		return res, expectOK(status, msg, "poll")
	case status == http.StatusConflict:
		res.Reason = ReasonAlreadyVoted
	case status == http.StatusGone:
		res.Reason = ReasonExpired
	default:
		res.Reason = ReasonUnknown
	}

	res.Status = VoteRejected
	res.Message = msg

	logrus.WithFields(logrus.Fields{
		"poll":   pollID,
		"status": status,
		"reason": res.Reason,
	}).Info("vote rejected")

	return res, nil
}

// do sends one request. A non-nil error is a transport or protocol failure;
// any HTTP status is returned as is, with the server message for non-2xx.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out interface{}) (int, string, error) {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, "", errors.Wrap(err, "failed to encode request")
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, "", errors.Wrap(err, "failed to build request")
	}

	reqID := xid.New().String()

	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := logrus.WithFields(logrus.Fields{
		"method":     method,
		"url":        endpoint,
		"request_id": reqID,
	})

	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Debug("poll api request failed")

		return 0, "", e.NewTransport(err, method+" "+endpoint+" failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, "", e.NewTransport(err, "failed to read response")
	}

	log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(started),
	}).Debug("poll api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, serverMessage(data, resp.Status), nil
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, "", e.NewProtocol(err, "unexpected response from "+endpoint)
		}
	}

	return resp.StatusCode, "", nil
}

// serverMessage extracts echo's {"message": ...} error body.
func serverMessage(data []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}

		if body.Error != "" {
			return body.Error
		}
	}

	if s := strings.TrimSpace(string(data)); s != "" && len(s) < 200 {
		return s
	}

	return fallback
}

func expectOK(status int, msg, what string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return e.NewNotFound(what + " not found")
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return e.NewValidation(msg)
	case status >= 500:
		return e.NewTransport(nil, fmt.Sprintf("server error %d: %s", status, msg))
	default:
		return e.NewProtocol(nil, fmt.Sprintf("unexpected status %d: %s", status, msg))
	}
}
