package command

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dimcz/livepoll/render"
	"github.com/dimcz/livepoll/service"
)

type WatchCommand struct {
	*Meta
}

func (c *WatchCommand) Run(args []string) int {
	if len(args) != 1 {
		c.Ui.Error(c.Help())

		return 1
	}

	ctx := c.context()
	share := service.ShareURL(c.Origin, args[0])

	v := service.NewView(args[0], c.Client, c.Subscriber)
	defer v.Close()

	v.OnChange(func(s service.ViewState) {
		if err := c.output(func(w io.Writer) error { return render.Poll(w, s, share) }); err != nil {
			logrus.WithError(err).Warn("render failed")
		}
	})

	if err := v.Open(ctx); err != nil {
		return c.fail(err)
	}

	select {
	case <-ctx.Done():
		return 0
	case <-v.Done():
	}

	if err := v.State().StreamErr; err != nil {
		return c.fail(err)
	}

	return 0
}

func (c *WatchCommand) Synopsis() string {
	return "Follow live results of a poll"
}

func (c *WatchCommand) Help() string {
	return strings.TrimSpace(`
Usage: livepoll watch <id>

  Prints the poll and prints it again on every results update until
  interrupted or the server ends the stream.
`)
}
