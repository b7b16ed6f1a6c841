package monitor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	t.Run("empty checker is healthy", func(t *testing.T) {
		h := NewHealthChecker()
		st := h.Status()
		assert.True(t, st.Healthy)
		assert.Empty(t, st.Checks)
	})

	t.Run("aggregates results", func(t *testing.T) {
		h := NewHealthChecker()
		h.Register("cache", func() (bool, string) { return true, "hit rate 0.97" })
		h.Register("controller", func() (bool, string) { return false, "no circuits" })

		st := h.Status()
		assert.False(t, st.Healthy)
		require.Len(t, st.Checks, 2)
		assert.True(t, st.Checks["cache"].Healthy)
		assert.False(t, st.Checks["controller"].Healthy)
		assert.Equal(t, "no circuits", st.Checks["controller"].Message)
	})

	t.Run("panicking check is unhealthy", func(t *testing.T) {
		h := NewHealthChecker()
		h.Register("bad", func() (bool, string) { panic("boom") })

		st := h.Status()
		assert.False(t, st.Healthy)
		assert.Contains(t, st.Checks["bad"].Message, "boom")
	})

	t.Run("register replaces", func(t *testing.T) {
		h := NewHealthChecker()
		h.Register("c", func() (bool, string) { return false, "old" })
		h.Register("c", func() (bool, string) { return true, "new" })

		st := h.Status()
		assert.True(t, st.Healthy)
		assert.Equal(t, "new", st.Checks["c"].Message)
	})
}

func TestRoutesHealthz(t *testing.T) {
	m := NewMetrics()
	h := NewHealthChecker()
	h.Register("ok", func() (bool, string) { return true, "fine" })

	ts := httptest.NewServer(Routes(m, h))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.True(t, st.Healthy)
	assert.Equal(t, "fine", st.Checks["ok"].Message)

	h.Register("down", func() (bool, string) { return false, "degraded" })
	resp2, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestRoutesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordPacket(1.5)
	m.Sweeps.Inc()
	m.ActiveCircuits.Set(2)
	m.CircuitEvents.Inc()

	ts := httptest.NewServer(Routes(m, NewHealthChecker()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "qtop_packets_processed_total 1")
	assert.Contains(t, body, "qtop_sweeps_total 1")
	assert.Contains(t, body, "qtop_active_circuits 2")
	assert.Contains(t, body, "qtop_circuit_events_total 1")
	assert.Contains(t, body, "qtop_packet_delay_ms_bucket")
}

func TestServerStopsOnCancel(t *testing.T) {
	// Port 0 lets the kernel pick a free port; the test only cares about
	// lifecycle, not reachability.
	s := NewServer(0, NewMetrics(), NewHealthChecker(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
