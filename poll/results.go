package poll

import "fmt"

type Row struct {
	Text    string
	Votes   int
	Percent float64
	Leader  bool
}

func (r Row) PercentString() string {
	return fmt.Sprintf("%.1f%%", r.Percent)
}

type Results struct {
	Rows  []Row
	Total int
}

// Tally turns option counts into display rows. Every option holding the
// maximum count is a leader, as long as that maximum is above zero.
func Tally(options []Option, total int) Results {
	top := 0
	for _, o := range options {
		if o.Votes > top {
			top = o.Votes
		}
	}

	rows := make([]Row, 0, len(options))
	for _, o := range options {
		r := Row{
			Text:   o.Text,
			Votes:  o.Votes,
			Leader: top > 0 && o.Votes == top,
		}

		if total > 0 {
			r.Percent = float64(o.Votes) / float64(total) * 100
		}

		rows = append(rows, r)
	}

	return Results{Rows: rows, Total: total}
}

func (r Results) Leaders() []Row {
	var leaders []Row
	for _, row := range r.Rows {
		if row.Leader {
			leaders = append(leaders, row)
		}
	}

	return leaders
}
