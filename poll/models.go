package poll

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/dimcz/livepoll/lib/e"
)

const (
	MaxQuestionLength = 120
	MinOptions        = 2
	MaxOptions        = 4
	DefaultTTL        = 24 * time.Hour
	MaxTTL            = 24 * time.Hour
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Option struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Choice is an option as sent at creation time.
type Choice struct {
	Text string `json:"text" validate:"required,max=120"`
}

// Poll is the normalized client view of a server poll. Expired is derived
// from the local clock and is advisory only.
type Poll struct {
	ID                    string
	Question              string
	Options               []Option
	CreatedAt             time.Time
	TTL                   time.Duration
	HideResultsUntilVoted bool

	AutoInsight string
	Expired     bool
}

type wirePoll struct {
	ID                    string   `json:"_id"`
	AltID                 string   `json:"id,omitempty"`
	Question              string   `json:"question"`
	Options               []Option `json:"options"`
	CreatedAt             string   `json:"createdAt,omitempty"`
	TTL                   int64    `json:"ttl,omitempty"`
	HideResultsUntilVoted bool     `json:"hideResultsUntilVoted"`
}

func (p Poll) MarshalJSON() ([]byte, error) {
	w := wirePoll{
		ID:                    p.ID,
		Question:              p.Question,
		Options:               p.Options,
		TTL:                   p.TTL.Milliseconds(),
		HideResultsUntilVoted: p.HideResultsUntilVoted,
	}

	if !p.CreatedAt.IsZero() {
		w.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	return json.Marshal(w)
}

func (p *Poll) UnmarshalJSON(data []byte) error {
	var w wirePoll
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	p.ID = w.ID
	if p.ID == "" {
		p.ID = w.AltID
	}

	p.Question = w.Question
	p.Options = w.Options
	p.TTL = time.Duration(w.TTL) * time.Millisecond
	p.HideResultsUntilVoted = w.HideResultsUntilVoted
	p.CreatedAt = time.Time{}

	if w.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, w.CreatedAt)
		if err != nil {
			return fmt.Errorf("createdAt: %w", err)
		}

		p.CreatedAt = t
	}

	return nil
}

// Normalize fills wire defaults, checks the option invariants and computes
// Expired against now.
func (p *Poll) Normalize(now time.Time) error {
	if p.ID == "" {
		return e.NewProtocol(nil, "poll without id")
	}

	if n := len(p.Options); n < MinOptions || n > MaxOptions {
		return e.NewProtocol(nil, fmt.Sprintf("poll %s has %d options", p.ID, n))
	}

	for i, o := range p.Options {
		if o.Votes < 0 {
			return e.NewProtocol(nil, fmt.Sprintf("poll %s option %d has negative votes", p.ID, i))
		}
	}

	if p.TTL <= 0 {
		p.TTL = DefaultTTL
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	p.Expired = p.ExpiredAt(now)

	return nil
}

func (p *Poll) ExpiresAt() time.Time {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return p.CreatedAt.Add(ttl)
}

// ExpiredAt reports whether more than TTL has elapsed since creation.
func (p *Poll) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt())
}

func (p *Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}

	return total
}

func (p *Poll) Results() Results {
	return Tally(p.Options, p.TotalVotes())
}

type CreateRequest struct {
	Question              string   `json:"question" validate:"required,max=120"`
	Options               []Choice `json:"options" validate:"min=2,max=4,dive"`
	TTL                   int64    `json:"ttl" validate:"gt=0,lte=86400000"`
	HideResultsUntilVoted bool     `json:"hideResultsUntilVoted"`
}

type CreateResponse struct {
	Poll Poll `json:"poll"`
}

// Envelope is the single-poll response of GET /api/poll/:id.
type Envelope struct {
	Poll                  Poll   `json:"poll"`
	AutoInsight           string `json:"autoInsight,omitempty"`
	HideResultsUntilVoted bool   `json:"hideResultsUntilVoted,omitempty"`
}

type VoteRequest struct {
	Option         *int   `json:"option" validate:"required,gte=0"`
	IdempotencyKey string `json:"idempotencyKey" validate:"required,max=128"`
}

// Snapshot is a complete tally pushed by the results stream. It replaces any
// previous snapshot.
type Snapshot struct {
	Options    []Option `json:"options"`
	TotalVotes int      `json:"totalVotes"`
}

func (s *Snapshot) Normalize() error {
	if s.TotalVotes < 0 {
		return e.NewProtocol(nil, "negative totalVotes")
	}

	if n := len(s.Options); n < MinOptions || n > MaxOptions {
		return e.NewProtocol(nil, fmt.Sprintf("snapshot has %d options", n))
	}

	for i, o := range s.Options {
		if o.Votes < 0 {
			return e.NewProtocol(nil, fmt.Sprintf("option %d has negative votes", i))
		}
	}

	return nil
}

func (s Snapshot) Results() Results {
	return Tally(s.Options, s.TotalVotes)
}
