package payment

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{19.99, 1999},
		{0.01, 1},
		{100, 10000},
		{0.1 + 0.2, 30},
		{4.35, 435},
	}
	for _, c := range cases {
		got, err := MinorUnits(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestMinorUnits_Invalid(t *testing.T) {
	for _, in := range []float64{0, -5, math.NaN(), math.Inf(1), 0.001} {
		_, err := MinorUnits(in)
		assert.Error(t, err, in)
	}
}

func TestFake_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	in, err := f.CreateIntent(ctx, 1999, Currency)
	require.NoError(t, err)
	assert.NotEmpty(t, in.ClientSecret)

	got, err := f.GetIntent(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.EqualValues(t, 1999, got.Amount)

	_, err = f.GetIntent(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestIdempotencyKeyContext(t *testing.T) {
	_, ok := IdempotencyKeyFrom(context.Background())
	assert.False(t, ok)

	key, ok := IdempotencyKeyFrom(WithIdempotencyKey(context.Background(), "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", key)
}
