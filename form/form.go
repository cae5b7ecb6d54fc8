// Package form validates poll-creation input before it is sent to the API.
package form

import (
	"math"
	"strings"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/lib/validator"
	"github.com/dimcz/livepoll/poll"
)

const (
	ErrQuestionTooLong = "question too long"
	ErrTooFewOptions   = "need at least 2 options"
	ErrTTLOutOfRange   = "ttl out of range"
)

const millisPerHour = 3_600_000

type Input struct {
	Question              string
	Options               []string
	TTLHours              float64
	HideResultsUntilVoted bool
}

// checked mirrors the rule order: question, options, ttl.
type checked struct {
	Question string   `validate:"max=120"`
	Options  []string `validate:"min=2"`
	TTLHours float64  `validate:"gt=0,lte=24"`
}

var messages = map[string]string{
	"Question": ErrQuestionTooLong,
	"Options":  ErrTooFewOptions,
	"TTLHours": ErrTTLOutOfRange,
}

var v = validator.NewValidator()

// Validate applies the creation rules in order and returns the payload for
// POST /api/poll/add. Only the first poll.MaxOptions raw options are read.
func Validate(in Input) (poll.CreateRequest, error) {
	raw := in.Options
	if len(raw) > poll.MaxOptions {
		raw = raw[:poll.MaxOptions]
	}

	options := make([]string, 0, len(raw))
	for _, o := range raw {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}

	fe, err := v.First(&checked{
		Question: in.Question,
		Options:  options,
		TTLHours: in.TTLHours,
	})
	if err != nil {
		return poll.CreateRequest{}, e.NewValidation(err.Error())
	}

	if fe != nil {
		return poll.CreateRequest{}, e.NewValidation(messages[fe.StructField()])
	}

	payload := poll.CreateRequest{
		Question:              in.Question,
		Options:               make([]poll.Choice, 0, len(options)),
		TTL:                   int64(math.Round(in.TTLHours * millisPerHour)),
		HideResultsUntilVoted: in.HideResultsUntilVoted,
	}

	for _, o := range options {
		payload.Options = append(payload.Options, poll.Choice{Text: o})
	}

	return payload, nil
}
