package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowCheck ignores its context and finishes after d.
func slowCheck(d time.Duration) func(context.Context) error {
	return func(context.Context) error {
		time.Sleep(d)
		return nil
	}
}

func TestTimeout_Execute(t *testing.T) {
	refused := errors.New("connection refused")

	tests := []struct {
		name    string
		timeout time.Duration
		op      func(context.Context) error
		wantErr error
	}{
		{name: "fast check", timeout: time.Second, op: func(context.Context) error { return nil }},
		{name: "check error passes through", timeout: time.Second, op: func(context.Context) error { return refused }, wantErr: refused},
		{name: "slow check", timeout: 10 * time.Millisecond, op: slowCheck(200 * time.Millisecond), wantErr: ErrTimeout},
		{name: "zero disables", timeout: 0, op: slowCheck(20 * time.Millisecond)},
		{name: "negative disables", timeout: -time.Second, op: slowCheck(20 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTimeout(TimeoutConfig{Timeout: tt.timeout}).Execute(context.Background(), tt.op)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTimeout_Duration(t *testing.T) {
	assert.Equal(t, 2*time.Second, NewTimeout(TimeoutConfig{Timeout: 2 * time.Second}).Duration())
	assert.Zero(t, NewTimeout(TimeoutConfig{Timeout: -time.Second}).Duration())
}

func TestTimeout_DisabledRunsWithoutDeadline(t *testing.T) {
	err := NewTimeout(TimeoutConfig{}).Execute(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.False(t, ok, "disabled timeout must not set a deadline")
		return nil
	})
	require.NoError(t, err)
}

func TestTimeout_ErrorNamesDeadline(t *testing.T) {
	err := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond}).Execute(context.Background(), slowCheck(200*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "after 10ms")
}

func TestTimeout_OperationSeesCancellation(t *testing.T) {
	observed := make(chan error, 1)
	err := NewTimeout(TimeoutConfig{Timeout: 20 * time.Millisecond}).Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		observed <- ctx.Err()
		return ctx.Err()
	})
	require.ErrorIs(t, err, ErrTimeout)

	select {
	case got := <-observed:
		assert.ErrorIs(t, got, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("operation never saw its context end")
	}
}

func TestTimeout_ParentCancellationWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := NewTimeout(TimeoutConfig{Timeout: time.Second}).Execute(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}
