package command

import (
	"bytes"
	"context"
	"flag"
	"io"
	"strconv"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/pkg/errors"

	"github.com/dimcz/livepoll/lib/e"
	"github.com/dimcz/livepoll/service"
)

// Meta holds what every command shares.
type Meta struct {
	Ctx        context.Context
	Ui         cli.Ui
	Client     *service.Client
	Subscriber *service.Subscriber
	Origin     string
}

func (m *Meta) context() context.Context {
	if m.Ctx == nil {
		return context.Background()
	}

	return m.Ctx
}

func (m *Meta) flagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.SetOutput(io.Discard)

	return f
}

// output sends whatever write produces to the ui in one piece.
func (m *Meta) output(write func(io.Writer) error) error {
	var b bytes.Buffer
	if err := write(&b); err != nil {
		return err
	}

	m.Ui.Output(strings.TrimRight(b.String(), "\n"))

	return nil
}

// fail reports err and returns the exit code.
func (m *Meta) fail(err error) int {
	var ae e.Error
	if errors.As(err, &ae) && ae.Kind() == e.KindValidation {
		m.Ui.Error(ae.Detail())

		return 1
	}

	if e.Retryable(err) {
		m.Ui.Error("Network error, please try again: " + err.Error())

		return 1
	}

	m.Ui.Error(err.Error())

	return 1
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, e.NewValidation("option index must be a non-negative integer")
	}

	return i, nil
}

func Commands(m *Meta) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"list": func() (cli.Command, error) {
			return &ListCommand{Meta: m}, nil
		},
		"show": func() (cli.Command, error) {
			return &ShowCommand{Meta: m}, nil
		},
		"create": func() (cli.Command, error) {
			return &CreateCommand{Meta: m}, nil
		},
		"vote": func() (cli.Command, error) {
			return &VoteCommand{Meta: m}, nil
		},
		"watch": func() (cli.Command, error) {
			return &WatchCommand{Meta: m}, nil
		},
	}
}
