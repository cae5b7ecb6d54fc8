package command

import (
	"io"
	"strings"

	"github.com/dimcz/livepoll/render"
)

type ListCommand struct {
	*Meta
}

func (c *ListCommand) Run(args []string) int {
	polls, err := c.Client.ListPolls(c.context())
	if err != nil {
		return c.fail(err)
	}

	if err := c.output(func(w io.Writer) error { return render.List(w, polls) }); err != nil {
		return c.fail(err)
	}

	return 0
}

func (c *ListCommand) Synopsis() string {
	return "List polls"
}

func (c *ListCommand) Help() string {
	return strings.TrimSpace(`
Usage: livepoll list

  Lists every poll on the server with its vote count and whether it
  has expired.
`)
}
