package textgen

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts() Options {
	return Options{Timeout: 50 * time.Millisecond, MaxAttempts: 3, InitialInterval: time.Millisecond}
}

func TestResilientRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	g := GeneratorFunc(func(ctx context.Context, role, input string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("quota exceeded")
		}
		return "  Hello Mike!  ", nil
	})

	out, err := NewResilient(g, fastOpts(), nil, nil).Generate(context.Background(), "role", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello Mike!", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResilientGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	g := GeneratorFunc(func(ctx context.Context, role, input string) (string, error) {
		calls.Add(1)
		return "   ", nil
	})

	_, err := NewResilient(g, fastOpts(), nil, nil).Generate(context.Background(), "role", "hi")
	assert.ErrorIs(t, err, ErrEmptyOutput)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResilientBoundsEachAttempt(t *testing.T) {
	g := GeneratorFunc(func(ctx context.Context, role, input string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	start := time.Now()
	_, err := NewResilient(g, fastOpts(), nil, nil).Generate(context.Background(), "role", "hi")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerateOr(t *testing.T) {
	ctx := context.Background()
	failing := GeneratorFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("provider exploded: 500")
	})
	blank := GeneratorFunc(func(context.Context, string, string) (string, error) { return "\n", nil })
	ok := GeneratorFunc(func(context.Context, string, string) (string, error) { return "generated", nil })

	assert.Equal(t, "fallback", GenerateOr(ctx, nil, "r", "u", "fallback"))
	assert.Equal(t, "fallback", GenerateOr(ctx, failing, "r", "u", "fallback"))
	assert.Equal(t, "fallback", GenerateOr(ctx, blank, "r", "u", "fallback"))
	assert.Equal(t, "generated", GenerateOr(ctx, ok, "r", "u", "fallback"))
}
