package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsErrorType_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("query teammates: %w", NewStoreUnavailable("graph", "teammates", context.DeadlineExceeded))

	assert.True(t, IsStoreUnavailable(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotFound(t *testing.T) {
	err := NewNotFound("player", "Ghost")

	assert.True(t, IsNotFound(err))
	assert.Equal(t, "[not_found] player not found: Ghost", err.Error())
}

func TestAsBatchFailure(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cause := fmt.Errorf("connection reset")
	err := fmt.Errorf("sync: %w", NewBatchFailure("run-1", 3, 420, "r10", "r19", start, start.Add(time.Hour), cause))

	bf, ok := AsBatchFailure(err)
	require.True(t, ok)
	assert.Equal(t, 3, bf.FlushIndex)
	assert.Equal(t, 420, bf.PairCount)
	assert.Equal(t, "r10", bf.FirstRoundID)
	assert.Equal(t, "r19", bf.LastRoundID)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsErrorType(err, ErrorTypeBatch))
	assert.True(t, IsBatchFailure(err))

	_, ok = AsBatchFailure(NewInvalidArgument("depth", "must be 1..3"))
	assert.False(t, ok)
}
