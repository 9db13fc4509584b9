package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPChecker_HealthyWhenListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	checker := NewTCPChecker(ln.Addr().String())
	result := checker.Check(context.Background())

	assert.True(t, result.Healthy)
	assert.Equal(t, CheckTypeTCP, checker.Type())
}

func TestTCPChecker_UnhealthyWhenUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // nothing listening now

	checker := NewTCPChecker(addr).WithTimeout(200 * time.Millisecond)
	result := checker.Check(context.Background())

	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection failed")
}

func TestStatus_UpdateDebouncesFailures(t *testing.T) {
	cfg := Config{Retries: 2}
	s := NewStatus()

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.True(t, s.Healthy, "single failure should not flip healthy yet")

	s.Update(Result{Healthy: false, CheckedAt: time.Now()}, cfg)
	assert.False(t, s.Healthy, "consecutive failures reaching Retries should flip healthy")

	s.Update(Result{Healthy: true, CheckedAt: time.Now()}, cfg)
	assert.True(t, s.Healthy, "a single success resets to healthy")
}

func TestStatus_InStartPeriod(t *testing.T) {
	s := NewStatus()
	assert.False(t, s.InStartPeriod(Config{StartPeriod: 0}))
	assert.True(t, s.InStartPeriod(Config{StartPeriod: time.Hour}))
}
