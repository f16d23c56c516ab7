package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollUntil(t *testing.T) {
	testCases := []struct {
		name          string
		visibleAfter  int
		attempts      int
		expectedCalls int
		expectedErr   error
	}{
		{name: "Visible immediately", visibleAfter: 1, attempts: 5, expectedCalls: 1},
		{name: "Visible on third attempt", visibleAfter: 3, attempts: 5, expectedCalls: 3},
		{name: "Visible on last attempt", visibleAfter: 5, attempts: 5, expectedCalls: 5},
		{name: "Never visible", visibleAfter: 100, attempts: 5, expectedCalls: 5, expectedErr: ErrNotVisible},
		{name: "Zero attempts still tries once", visibleAfter: 100, attempts: 0, expectedCalls: 1, expectedErr: ErrNotVisible},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			v, err := PollUntil(context.Background(), Policy{Attempts: tc.attempts, Delay: time.Millisecond},
				func(ctx context.Context) (string, bool, error) {
					calls++
					if calls >= tc.visibleAfter {
						return "profile", true, nil
					}
					return "", false, nil
				})

			if !errors.Is(err, tc.expectedErr) {
				t.Errorf("Expected error %v, got %v", tc.expectedErr, err)
			}
			if calls != tc.expectedCalls {
				t.Errorf("Expected %d calls, got %d", tc.expectedCalls, calls)
			}
			if tc.expectedErr == nil && v != "profile" {
				t.Errorf("Expected value 'profile', got %q", v)
			}
		})
	}
}

func TestPollUntilAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := PollUntil(context.Background(), Policy{Attempts: 5, Delay: time.Millisecond},
		func(ctx context.Context) (int, bool, error) {
			calls++
			return 0, false, boom
		})

	if !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestPollUntilContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := PollUntil(ctx, Policy{Attempts: 5, Delay: time.Hour},
		func(ctx context.Context) (int, bool, error) {
			calls++
			cancel()
			return 0, false, nil
		})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestPollOrCreate(t *testing.T) {
	policy := Policy{Attempts: 3, Delay: time.Millisecond}
	never := func(ctx context.Context) (string, bool, error) { return "", false, nil }

	t.Run("Falls back to create", func(t *testing.T) {
		created := false
		v, err := PollOrCreate(context.Background(), policy, never, func(ctx context.Context) (string, error) {
			created = true
			return "created", nil
		})
		if err != nil || v != "created" || !created {
			t.Errorf("Expected fallback create, got %q, %v", v, err)
		}
	})

	t.Run("Skips create when visible", func(t *testing.T) {
		v, err := PollOrCreate(context.Background(), policy,
			func(ctx context.Context) (string, bool, error) { return "polled", true, nil },
			func(ctx context.Context) (string, error) {
				t.Error("create should not be called")
				return "", nil
			})
		if err != nil || v != "polled" {
			t.Errorf("Expected polled value, got %q, %v", v, err)
		}
	})
}
