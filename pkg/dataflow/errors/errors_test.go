package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "transient", CategoryTransient.String())
	assert.Equal(t, "permanent", CategoryPermanent.String())
	assert.Equal(t, "unknown", Category(99).String())
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"HTTP 429", &HTTPError{StatusCode: 429}, CategoryTransient},
		{"HTTP 503", &HTTPError{StatusCode: 503}, CategoryTransient},
		{"HTTP 500", &HTTPError{StatusCode: 500}, CategoryTransient},
		{"HTTP 400", &HTTPError{StatusCode: 400}, CategoryPermanent},
		{"HTTP 404", &HTTPError{StatusCode: 404}, CategoryPermanent},
		{"timeout", &TimeoutError{Operation: "write", Duration: time.Second}, CategoryTransient},
		{"capacity", &CapacityError{Resource: "buffer", Limit: 10}, CategoryTransient},
		{"deadline", context.DeadlineExceeded, CategoryTransient},
		{"wrapped deadline", fmt.Errorf("write: %w", context.DeadlineExceeded), CategoryTransient},
		{"canceled", context.Canceled, CategoryPermanent},
		{"categorized", Transient(errors.New("x"), "sink"), CategoryTransient},
		{"wrapped categorized", fmt.Errorf("outer: %w", Permanent(errors.New("x"), "")), CategoryPermanent},
		{"unknown", errors.New("boom"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.err))
		})
	}
}

func TestCategorizedErrorMessage(t *testing.T) {
	base := errors.New("disk full")
	err := &CategorizedError{Err: base, Category: CategoryPermanent, Retries: 2, Context: "append"}

	assert.Equal(t, "append: disk full (category: permanent, attempts: 2)", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestWithRetryContext_SucceedsAfterTransient(t *testing.T) {
	cfg := NewRetryConfig(WithInitialBackoff(time.Millisecond), WithJitter(0), WithMaxAttempts(4))

	calls := 0
	res := WithRetryContext(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &CapacityError{Resource: "queue"}
		}
		return 42, nil
	})

	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)
	assert.Equal(t, 3, res.Attempts)
}

func TestWithRetryContext_StopsOnPermanent(t *testing.T) {
	cfg := NewRetryConfig(WithInitialBackoff(time.Millisecond))

	calls := 0
	res := WithRetryContext(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		return "", errors.New("rejected")
	})

	require.Error(t, res.Err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CategoryPermanent, Categorize(res.Err))
}

func TestWithRetryContext_Exhausted(t *testing.T) {
	cfg := NewRetryConfig(WithInitialBackoff(time.Millisecond), WithMaxBackoff(2*time.Millisecond), WithMaxAttempts(3))

	res := WithRetryContext(context.Background(), cfg, func(context.Context) (struct{}, error) {
		return struct{}{}, &TimeoutError{Operation: "deliver", Duration: time.Millisecond}
	})

	var catErr *CategorizedError
	require.ErrorAs(t, res.Err, &catErr)
	assert.Equal(t, "max retries exceeded", catErr.Context)
	assert.Equal(t, 3, res.Attempts)
}

func TestWithRetryContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := WithRetryContext(ctx, DefaultRetry, func(context.Context) (int, error) {
		t.Fatal("fn must not run on a cancelled context")
		return 0, nil
	})

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, res.Attempts)
}

func TestWithRetryContext_CustomRetryable(t *testing.T) {
	cfg := NewRetryConfig(
		WithInitialBackoff(time.Millisecond),
		WithMaxAttempts(2),
		WithRetryableFunc(func(error) bool { return true }),
	)

	calls := 0
	res := WithRetryContext(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("always")
	})
	assert.Error(t, res.Err)
	assert.Equal(t, 2, calls)
}
