package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/table"

	"github.com/dimcz/livepoll/poll"
	"github.com/dimcz/livepoll/service"
)

const (
	MsgExpired      = "Poll has expired. Voting closed."
	MsgAlreadyVoted = "You've already voted in this poll!"
	MsgHidden       = "Results are hidden until you vote."
	MsgNoPolls      = "No polls found."
)

// Poll writes a single poll view: question, voting state, results and the
// share link.
func Poll(w io.Writer, s service.ViewState, shareURL string) error {
	var b strings.Builder

	fmt.Fprintln(&b, s.Poll.Question)
	fmt.Fprintln(&b, strings.Repeat("=", len([]rune(s.Poll.Question))))

	switch {
	case s.Expired:
		fmt.Fprintln(&b, MsgExpired)
	case s.HasVoted:
		fmt.Fprintln(&b, MsgAlreadyVoted)
	}

	if s.AutoInsight != "" {
		fmt.Fprintln(&b, s.AutoInsight)
	}

	if s.ResultsHidden {
		fmt.Fprintln(&b, MsgHidden)
		writeChoices(&b, s)
	} else {
		writeResults(&b, s)
		fmt.Fprintf(&b, "Total votes: %d\n", s.Results.Total)
	}

	if s.Status != "" {
		fmt.Fprintln(&b, s.Status)
	}

	if s.StreamErr != nil {
		fmt.Fprintf(&b, "Live updates stopped: %v\n", s.StreamErr)
	}

	if shareURL != "" {
		fmt.Fprintf(&b, "Share: %s\n", shareURL)
	}

	_, err := io.WriteString(w, b.String())

	return err
}

func writeResults(w io.Writer, s service.ViewState) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Option", "Votes", "%", ""})

	for i, r := range s.Results.Rows {
		t.AppendRow(table.Row{i, r.Text, r.Votes, r.PercentString(), marker(s, i, r.Leader)})
	}

	t.Render()
}

func writeChoices(w io.Writer, s service.ViewState) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Option"})

	for i, o := range s.Poll.Options {
		t.AppendRow(table.Row{i, o.Text})
	}

	t.Render()
}

func marker(s service.ViewState, i int, leader bool) string {
	var m []string
	if leader {
		m = append(m, "leader")
	}

	if s.HasVoted && s.VotedIndex == i {
		m = append(m, "your vote")
	}

	return strings.Join(m, ", ")
}

// List writes one row per poll.
func List(w io.Writer, polls []poll.Poll) error {
	if len(polls) == 0 {
		_, err := fmt.Fprintln(w, MsgNoPolls)

		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Question", "Options", "Votes", "Status"})

	for _, p := range polls {
		status := "open"
		if p.Expired {
			status = "expired"
		}

		t.AppendRow(table.Row{p.ID, p.Question, len(p.Options), p.TotalVotes(), status})
	}

	t.Render()

	return nil
}
