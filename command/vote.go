package command

import (
	"io"
	"strings"

	"github.com/dimcz/livepoll/render"
	"github.com/dimcz/livepoll/service"
)

type VoteCommand struct {
	*Meta
}

// Run exits 0 when the vote is accepted, 2 when it is rejected and 1 on
// error.
func (c *VoteCommand) Run(args []string) int {
	if len(args) != 2 {
		c.Ui.Error(c.Help())

		return 1
	}

	option, err := parseIndex(args[1])
	if err != nil {
		return c.fail(err)
	}

	v := service.NewView(args[0], c.Client, c.Subscriber)

	res, err := v.Vote(c.context(), option)
	if err != nil {
		c.Ui.Error(service.StatusVoteFailed)

		return c.fail(err)
	}

	s := v.State()
	if s.Poll.ID != "" {
		if err := c.output(func(w io.Writer) error {
			return render.Poll(w, s, service.ShareURL(c.Origin, s.Poll.ID))
		}); err != nil {
			return c.fail(err)
		}
	} else {
		c.Ui.Output(s.Status)
	}

	if !res.Accepted() {
		return 2
	}

	return 0
}

func (c *VoteCommand) Synopsis() string {
	return "Vote in a poll"
}

func (c *VoteCommand) Help() string {
	return strings.TrimSpace(`
Usage: livepoll vote <id> <index>

  Votes for the option at index (starting at 0). A client votes once per
  poll; retrying after a network error reuses the same idempotency key.
`)
}
