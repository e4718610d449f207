package runner

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipejournal/internal/journal"
)

func collect[I any](s Stream[I]) ([]I, error) {
	var out []I
	for x, err := range s {
		if err != nil {
			return out, err
		}
		out = append(out, x)
	}
	return out, nil
}

func TestFromSeq(t *testing.T) {
	got, err := collect(FromSeq(slices.Values([]int{1, 2, 3})))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestFromChan_EndsWhenClosed(t *testing.T) {
	ch := make(chan item, 2)
	ch <- newItem("a", 1)
	ch <- newItem("b", 2)
	close(ch)

	j, err := Run(context.Background(), config{Scale: 1}, scaleFactory, FromChan(context.Background(), ch))
	require.NoError(t, err)
	assert.Equal(t, 2, j.Len())
}

func TestFromChan_CancelledContextIsStreamCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan item)

	go func() {
		ch <- newItem("a", 1)
		cancel()
	}()

	j, err := Run(ctx, config{Scale: 1}, scaleFactory, FromChan(ctx, ch))
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, 1, j.Len())
}

func TestFromResults_PropagatesTransformError(t *testing.T) {
	src, err := Run(context.Background(), config{Scale: 1}, scaleFactory, FromSlice(items("a", "b")))
	require.NoError(t, err)

	// The transformer drops the identifier, which ends the transform.
	results := journal.Transform(context.Background(), src, func(_ context.Context, e journal.Entry[item, output]) (item, bool, error) {
		if e.Input().ID == "b" {
			return item{}, true, nil
		}
		return e.Input(), true, nil
	})

	next, err := Run(context.Background(), config{Scale: 1}, scaleFactory, FromResults(results))
	require.Error(t, err)
	assert.True(t, IsStreamError(err))
	assert.ErrorIs(t, err, journal.ErrMissingIdentifier)
	assert.Equal(t, 1, next.Len())
}
