package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transportErr() error {
	return corerr.Transport("test", errors.New("dial failed"))
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New("host-1", Config{FailureThreshold: 3, RecoveryTimeout: 30 * time.Second, SuccessThreshold: 2})

	for i := 0; i < 2; i++ {
		err := b.Call(func() error { return transportErr() })
		assert.Error(t, err)
		assert.Equal(t, Closed, b.Status().State)
	}

	err := b.Call(func() error { return transportErr() })
	assert.Error(t, err)
	assert.Equal(t, Open, b.Status().State)

	err = b.Call(func() error { return nil })
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindBreakerOpen))
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := New("host-1", Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 2})

	err := b.Call(func() error { return transportErr() })
	require.Error(t, err)
	assert.Equal(t, Open, b.Status().State)

	time.Sleep(20 * time.Millisecond)

	err = b.Call(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, HalfOpen, b.Status().State)

	err = b.Call(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Closed, b.Status().State)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New("host-1", Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 2})

	_ = b.Call(func() error { return transportErr() })
	time.Sleep(20 * time.Millisecond)

	err := b.Call(func() error { return transportErr() })
	assert.Error(t, err)
	assert.Equal(t, Open, b.Status().State)
}

func TestBreaker_NonTransportErrorDoesNotTrip(t *testing.T) {
	b := New("host-1", DefaultConfig())

	for i := 0; i < 10; i++ {
		err := b.Call(func() error { return corerr.NotFound("test", "missing") })
		assert.Error(t, err)
	}

	assert.Equal(t, Closed, b.Status().State)
}

func TestBreaker_Reset(t *testing.T) {
	b := New("host-1", Config{FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 2})

	_ = b.Call(func() error { return transportErr() })
	assert.Equal(t, Open, b.Status().State)

	b.Reset()
	assert.Equal(t, Closed, b.Status().State)
}

func TestManager_GetOrCreateIsolatesHosts(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 1, RecoveryTimeout: time.Hour, SuccessThreshold: 2})

	_ = m.GetOrCreate("host-a").Call(func() error { return transportErr() })

	assert.Equal(t, Open, m.GetOrCreate("host-a").Status().State)
	assert.Equal(t, Closed, m.GetOrCreate("host-b").Status().State)

	m.ResetAll()
	assert.Equal(t, Closed, m.GetOrCreate("host-a").Status().State)
}
