package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadgraph/backend/pkg/errors"
)

func TestRangeFlagsDefaults(t *testing.T) {
	root := newRootCmd()
	syncCmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)

	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	from, to, err := rangeFlags(syncCmd, now)
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-24*time.Hour), from)

	require.NoError(t, syncCmd.Flags().Set("from", "2024-06-01T00:00:00Z"))
	from, _, err = rangeFlags(syncCmd, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), from)

	require.NoError(t, syncCmd.Flags().Set("to", "soon"))
	_, _, err = rangeFlags(syncCmd, now)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestRender(t *testing.T) {
	v := map[string]int{"rounds_processed": 3}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", v))
	assert.Contains(t, buf.String(), `"rounds_processed": 3`)

	buf.Reset()
	require.NoError(t, render(&buf, "yaml", v))
	assert.Equal(t, "rounds_processed: 3\n", buf.String())

	assert.Error(t, render(&buf, "xml", v))
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"sync", "sync-servers", "communities", "alias", "timeline"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
