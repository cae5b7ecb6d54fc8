package poll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimcz/livepoll/lib/e"
)

func twoOptions() []Option {
	return []Option{{Text: "A"}, {Text: "B"}}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		created time.Time
		ttl     time.Duration
		expired bool
	}{
		{"25h old with 24h ttl", now.Add(-25 * time.Hour), 24 * time.Hour, true},
		{"1h old with 24h ttl", now.Add(-time.Hour), 24 * time.Hour, false},
		{"exactly at ttl", now.Add(-24 * time.Hour), 24 * time.Hour, false},
		{"default ttl applies", now.Add(-25 * time.Hour), 0, true},
		{"short ttl", now.Add(-2 * time.Hour), time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Poll{ID: "p1", Options: twoOptions(), CreatedAt: tt.created, TTL: tt.ttl}

			require.NoError(t, p.Normalize(now))
			assert.Equal(t, tt.expired, p.Expired)
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	now := time.Now()
	p := Poll{ID: "p1", Options: twoOptions()}

	require.NoError(t, p.Normalize(now))
	assert.Equal(t, DefaultTTL, p.TTL)
	assert.Equal(t, now, p.CreatedAt)
	assert.False(t, p.Expired)
}

func TestNormalizeRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		poll Poll
	}{
		{"no id", Poll{Options: twoOptions()}},
		{"one option", Poll{ID: "p", Options: []Option{{Text: "A"}}}},
		{"five options", Poll{ID: "p", Options: []Option{{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}, {Text: "E"}}}},
		{"negative votes", Poll{ID: "p", Options: []Option{{Text: "A", Votes: -1}, {Text: "B"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.poll.Normalize(time.Now())

			require.Error(t, err)
			assert.True(t, e.Is(err, e.KindProtocol))
		})
	}
}

func TestUnmarshalWire(t *testing.T) {
	data := []byte(`{
		"_id": "65f0c",
		"question": "Tea or coffee?",
		"options": [{"text": "Tea", "votes": 3}, {"text": "Coffee"}],
		"createdAt": "2024-03-01T10:00:00.000Z",
		"ttl": 3600000,
		"hideResultsUntilVoted": true
	}`)

	var p Poll
	require.NoError(t, json.Unmarshal(data, &p))

	assert.Equal(t, "65f0c", p.ID)
	assert.Equal(t, "Tea or coffee?", p.Question)
	assert.Equal(t, []Option{{Text: "Tea", Votes: 3}, {Text: "Coffee", Votes: 0}}, p.Options)
	assert.Equal(t, time.Hour, p.TTL)
	assert.True(t, p.HideResultsUntilVoted)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt)
}

func TestUnmarshalFallbackID(t *testing.T) {
	var p Poll
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x1","question":"q","options":[]}`), &p))

	assert.Equal(t, "x1", p.ID)
	assert.True(t, p.CreatedAt.IsZero())
}

func TestUnmarshalBadTimestamp(t *testing.T) {
	var p Poll
	assert.Error(t, json.Unmarshal([]byte(`{"_id":"x","createdAt":"yesterday"}`), &p))
}

func TestMarshalUsesWireNames(t *testing.T) {
	p := Poll{
		ID:        "abc",
		Question:  "q",
		Options:   twoOptions(),
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		TTL:       2 * time.Hour,
	}

	data, err := json.Marshal(Envelope{Poll: p, AutoInsight: "A leads"})
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"_id":"abc"`)
	assert.Contains(t, s, `"ttl":7200000`)
	assert.Contains(t, s, `"createdAt":"2024-03-01T10:00:00Z"`)
	assert.Contains(t, s, `"autoInsight":"A leads"`)
}

func TestSnapshotResults(t *testing.T) {
	s := Snapshot{
		Options:    []Option{{Text: "A", Votes: 3}, {Text: "B", Votes: 1}},
		TotalVotes: 4,
	}
	require.NoError(t, s.Normalize())

	r := s.Results()

	require.Len(t, r.Rows, 2)
	assert.Equal(t, 4, r.Total)
	assert.InDelta(t, 75.0, r.Rows[0].Percent, 1e-9)
	assert.InDelta(t, 25.0, r.Rows[1].Percent, 1e-9)
	assert.Equal(t, "75.0%", r.Rows[0].PercentString())
	assert.Equal(t, "25.0%", r.Rows[1].PercentString())

	leaders := r.Leaders()
	require.Len(t, leaders, 1)
	assert.Equal(t, "A", leaders[0].Text)
}

func TestTallyEdgeCases(t *testing.T) {
	t.Run("no votes has no leader", func(t *testing.T) {
		r := Tally(twoOptions(), 0)

		assert.Empty(t, r.Leaders())
		assert.Zero(t, r.Rows[0].Percent)
	})

	t.Run("ties share the lead", func(t *testing.T) {
		r := Tally([]Option{{Text: "A", Votes: 2}, {Text: "B", Votes: 2}, {Text: "C", Votes: 1}}, 5)

		assert.Len(t, r.Leaders(), 2)
		assert.InDelta(t, 40.0, r.Rows[0].Percent, 1e-9)
	})
}

func TestSnapshotNormalize(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"options":[{"text":"A"},{"text":"B","votes":2}],"totalVotes":2}`), &s))
	require.NoError(t, s.Normalize())
	assert.Equal(t, 0, s.Options[0].Votes)

	tests := []struct {
		name string
		snap Snapshot
	}{
		{"negative votes", Snapshot{Options: []Option{{Text: "A", Votes: -2}, {Text: "B"}}}},
		{"negative total", Snapshot{Options: []Option{{Text: "A"}, {Text: "B"}}, TotalVotes: -1}},
		{"no options", Snapshot{}},
		{"one option", Snapshot{Options: []Option{{Text: "A", Votes: 1}}, TotalVotes: 1}},
		{"five options", Snapshot{Options: []Option{{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}, {Text: "E"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, e.Is(tt.snap.Normalize(), e.KindProtocol))
		})
	}
}
