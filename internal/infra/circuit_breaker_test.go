package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errStore = errors.New("connection refused")

func newTestBreaker(clock *time.Time, trips func(error) bool) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
		Trips:            trips,
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func fail() error    { return errStore }
func succeed() error { return nil }

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock, nil)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errStore)
	}
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock, nil)

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock, nil)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	clock = clock.Add(time.Minute)
	assert.Equal(t, CBHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(succeed))
	assert.Equal(t, CBHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(succeed))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock, nil)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	clock = clock.Add(time.Minute)

	assert.ErrorIs(t, cb.Execute(fail), errStore)
	assert.Equal(t, CBOpen, cb.State())
}

func TestCircuitBreaker_CallerErrorsDoNotTrip(t *testing.T) {
	clock := time.Now()
	errBadInput := errors.New("bad input")
	cb := newTestBreaker(&clock, func(err error) bool { return !errors.Is(err, errBadInput) })

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errBadInput }), errBadInput)
	}
	assert.Equal(t, CBClosed, cb.State())
}
