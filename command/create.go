package command

import (
	"fmt"
	"strings"

	"github.com/dimcz/livepoll/form"
	"github.com/dimcz/livepoll/service"
)

// stringsFlag collects a repeated flag.
type stringsFlag []string

func (s *stringsFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)

	return nil
}

type CreateCommand struct {
	*Meta
}

func (c *CreateCommand) Run(args []string) int {
	var (
		in      form.Input
		options stringsFlag
	)

	f := c.flagSet("create")
	f.StringVar(&in.Question, "q", "", "")
	f.Var(&options, "o", "")
	f.Float64Var(&in.TTLHours, "ttl", 24, "")
	f.BoolVar(&in.HideResultsUntilVoted, "hide", false, "")

	if err := f.Parse(args); err != nil {
		c.Ui.Error(err.Error())
		c.Ui.Error(c.Help())

		return 1
	}

	in.Options = options

	req, err := form.Validate(in)
	if err != nil {
		return c.fail(err)
	}

	p, err := c.Client.CreatePoll(c.context(), req)
	if err != nil {
		return c.fail(err)
	}

	c.Ui.Output(fmt.Sprintf("Created poll %s", p.ID))
	c.Ui.Output(fmt.Sprintf("Share: %s", service.ShareURL(c.Origin, p.ID)))

	return 0
}

func (c *CreateCommand) Synopsis() string {
	return "Create a poll"
}

func (c *CreateCommand) Help() string {
	return strings.TrimSpace(`
Usage: livepoll create -q <question> -o <option> -o <option> [options]

  Creates a poll with two to four options. Blank options are dropped and
  only the first four are used.

Options:

  -q <question>   Question, at most 120 characters.
  -o <option>     An option. Repeat for each option.
  -ttl <hours>    Hours until the poll closes, above 0 and at most 24.
                  Defaults to 24.
  -hide           Hide results until the viewer has voted.
`)
}
