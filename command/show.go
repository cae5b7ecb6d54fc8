package command

import (
	"io"
	"strings"

	"github.com/dimcz/livepoll/render"
	"github.com/dimcz/livepoll/service"
)

type ShowCommand struct {
	*Meta
}

func (c *ShowCommand) Run(args []string) int {
	if len(args) != 1 {
		c.Ui.Error(c.Help())

		return 1
	}

	v := service.NewView(args[0], c.Client, c.Subscriber)
	if err := v.Refresh(c.context()); err != nil {
		return c.fail(err)
	}

	s := v.State()
	if err := c.output(func(w io.Writer) error {
		return render.Poll(w, s, service.ShareURL(c.Origin, s.Poll.ID))
	}); err != nil {
		return c.fail(err)
	}

	return 0
}

func (c *ShowCommand) Synopsis() string {
	return "Show a poll and its results"
}

func (c *ShowCommand) Help() string {
	return strings.TrimSpace(`
Usage: livepoll show <id>

  Prints the poll question, the current results and the share link.
`)
}
