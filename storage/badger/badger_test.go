package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimcz/livepoll/lib/e"
)

func TestInMemory(t *testing.T) {
	cli, err := OpenInMemory()
	require.NoError(t, err)
	defer cli.Close()

	_, err = cli.Get("poll:votedIndex")
	assert.ErrorIs(t, err, e.ErrNotFound)

	require.NoError(t, cli.Set("poll:votedIndex", `{"p1":1}`))

	v, err := cli.Get("poll:votedIndex")
	require.NoError(t, err)
	assert.Equal(t, `{"p1":1}`, v)
}

func TestReopenKeepsState(t *testing.T) {
	dir := t.TempDir()

	cli, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, cli.Set("poll:idempotency:p1", "k1"))
	cli.Close()

	cli, err = Open(dir)
	require.NoError(t, err)
	defer cli.Close()

	v, err := cli.Get("poll:idempotency:p1")
	require.NoError(t, err)
	assert.Equal(t, "k1", v)
}
