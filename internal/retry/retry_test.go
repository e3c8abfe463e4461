package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &HTTPStatusError{StatusCode: http.StatusTooManyRequests, Err: errors.New("429")}, true},
		{"server error", &HTTPStatusError{StatusCode: http.StatusBadGateway, Err: errors.New("502")}, true},
		{"bad request", &HTTPStatusError{StatusCode: http.StatusBadRequest, Err: errors.New("400")}, false},
		{"unauthorized", &HTTPStatusError{StatusCode: http.StatusUnauthorized, Err: errors.New("401")}, false},
		{"unclassified network error", errors.New("connection reset"), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Retryable(c.err); got != c.want {
				t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return &HTTPStatusError{StatusCode: http.StatusBadRequest, Err: errors.New("bad")}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly one attempt for a non-retryable error, got %d", attempts)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &HTTPStatusError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("503")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return &HTTPStatusError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("503")}
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
