package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(0, 0, 0, 0, 0)
	def := DefaultRetryConfig()
	assert.Equal(t, def.MaxAttempts, p.Retry.MaxAttempts)
	assert.Equal(t, def.InitialBackoff, p.Retry.InitialBackoff)
	assert.Equal(t, def.MaxBackoff, p.Retry.MaxBackoff)
	assert.Equal(t, CircuitClosed, p.Breakers.Get("backend").State())
}

func TestCall_NilPolicyCallsOnce(t *testing.T) {
	calls := 0
	_, err := Call(context.Background(), nil, "backend", func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("503"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall_TransientFailuresOpenBreaker(t *testing.T) {
	p := NewPolicy(2, 1, 2, 2, 30)
	calls := 0
	fail := func(context.Context) (string, error) {
		calls++
		return "", NewTransientError(errors.New("bad gateway"), 502)
	}

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), p, "backend", fail)
		require.Error(t, err)
	}
	assert.Equal(t, 4, calls, "each call retries once")
	assert.Equal(t, CircuitOpen, p.Breakers.Get("backend").State())

	_, err := Call(context.Background(), p, "backend", fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 4, calls)

	// Breakers are per service.
	v, err := Call(context.Background(), p, "places", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCall_BusinessErrorKeepsBreakerClosed(t *testing.T) {
	p := NewPolicy(2, 1, 2, 1, 30)
	calls := 0
	_, err := Call(context.Background(), p, "backend", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("locations must be at least 2")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, p.Breakers.Get("backend").State())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("x"), 503), true},
		{"wrapped explicit", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 0)), true},
		{"net timeout", timeoutErr{}, true},
		{"reset message", errors.New("read tcp: connection reset by peer"), true},
		{"plain", errors.New("invalid mode"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, IsTransientStatus(code), code)
	}
}
